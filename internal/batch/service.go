package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmordret/macave/internal/domain"
	"github.com/jmordret/macave/internal/extraction"
	"github.com/jmordret/macave/internal/match"
)

// Inventory is the slice of the persistence layer reconciliation needs:
// a snapshot of the bottles currently in the cellar.
type Inventory interface {
	ListInStock(ctx context.Context) ([]*domain.Bottle, error)
}

// Listener receives a session snapshot after every state change.
type Listener func(SessionView)

// Config bounds the extraction pipeline.
type Config struct {
	// Workers caps concurrent in-flight extractions.
	Workers int
	// ExtractionTimeout bounds a single extraction call; expiry is
	// recorded as that item's error.
	ExtractionTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.ExtractionTimeout <= 0 {
		c.ExtractionTimeout = 30 * time.Second
	}
	return c
}

// Service owns the single active batch session. All mutation goes through
// the service; readers get copy-on-read snapshots. Results arriving for a
// session that has been replaced or cleared are dropped.
type Service struct {
	extractor extraction.Extractor
	inventory Inventory
	logger    *slog.Logger
	cfg       Config

	mu        sync.Mutex
	current   *Session
	listeners []Listener
	sem       chan struct{}
}

func NewService(extractor extraction.Extractor, inventory Inventory, logger *slog.Logger, cfg Config) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		extractor: extractor,
		inventory: inventory,
		logger:    logger,
		cfg:       cfg,
		sem:       make(chan struct{}, cfg.Workers),
	}
}

// Subscribe registers a listener notified with a snapshot after every
// session state change.
func (s *Service) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// CreateSession discards any existing session, releasing its preview
// resources, and starts a new one with one pending item per photo.
// Extraction is scheduled, not performed inline; this never blocks on the
// extraction service.
func (s *Service) CreateSession(ctx context.Context, label string, photos []Photo) SessionView {
	now := time.Now()
	sess := &Session{
		ID:        fmt.Sprintf("batch-%d", now.UnixNano()),
		CreatedAt: now,
		Label:     label,
		Status:    SessionProcessing,
	}
	for _, p := range photos {
		sess.Items = append(sess.Items, &Item{
			ID:     uuid.NewString(),
			Status: ItemPending,
			photo:  p,
		})
	}
	if len(sess.Items) == 0 {
		sess.Status = SessionReady
	}

	s.mu.Lock()
	s.clearLocked()
	s.current = sess
	view := sess.snapshot()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.logger.Info("batch session created", "session_id", sess.ID, "items", len(sess.Items))
	notify(listeners, view)

	// Extractions outlive the creating call; only their timeout bounds them.
	bg := context.WithoutCancel(ctx)
	for _, it := range sess.Items {
		go s.runExtraction(bg, sess.ID, it.ID)
	}
	return view
}

// Current returns a snapshot of the active session, if any.
func (s *Service) Current() (SessionView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return SessionView{}, false
	}
	return s.current.snapshot(), true
}

// runExtraction moves one item through pending -> extracting -> extracted
// or error. Late results targeting a replaced session are dropped.
func (s *Service) runExtraction(ctx context.Context, sessionID, itemID string) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	s.mu.Lock()
	item := s.itemLocked(sessionID, itemID)
	if item == nil || item.Status != ItemPending {
		s.mu.Unlock()
		return
	}
	item.Status = ItemExtracting
	item.Err = ""
	data := item.photo.Data
	view := s.current.snapshot()
	listeners := s.listenersLocked()
	s.mu.Unlock()
	notify(listeners, view)

	extCtx, cancel := context.WithTimeout(ctx, s.cfg.ExtractionTimeout)
	ext, err := s.extractor.Extract(extCtx, data)
	cancel()

	s.mu.Lock()
	item = s.itemLocked(sessionID, itemID)
	if item == nil {
		// Session replaced or cleared while the call was in flight.
		s.mu.Unlock()
		s.logger.Debug("dropping stale extraction result", "session_id", sessionID, "item_id", itemID)
		return
	}
	if err != nil {
		item.Status = ItemError
		item.Err = err.Error()
		s.logger.Warn("extraction failed", "session_id", sessionID, "item_id", itemID, "error", err)
	} else {
		item.Status = ItemExtracted
		item.Extraction = ext
	}
	s.refreshStatusLocked()
	view = s.current.snapshot()
	listeners = s.listenersLocked()
	s.mu.Unlock()
	notify(listeners, view)
}

// RetryExtraction re-runs extraction for an item that previously failed.
// Retry is always user-initiated; the pipeline never retries on its own.
func (s *Service) RetryExtraction(ctx context.Context, sessionID, itemID string) error {
	s.mu.Lock()
	item := s.itemLocked(sessionID, itemID)
	if item == nil {
		s.mu.Unlock()
		return fmt.Errorf("no such item in the active session")
	}
	if item.Status != ItemError {
		s.mu.Unlock()
		return fmt.Errorf("item is not in error state")
	}
	item.Status = ItemPending
	item.Err = ""
	s.current.Status = SessionProcessing
	view := s.current.snapshot()
	listeners := s.listenersLocked()
	s.mu.Unlock()
	notify(listeners, view)

	go s.runExtraction(context.WithoutCancel(ctx), sessionID, itemID)
	return nil
}

// Reconcile classifies an extracted item against the current cellar
// inventory: no match, a single auto-resolved match, or an ambiguous set
// the user must choose from. Items in error state are never reconciled.
func (s *Service) Reconcile(ctx context.Context, sessionID, itemID string) error {
	s.mu.Lock()
	item := s.itemLocked(sessionID, itemID)
	if item == nil {
		s.mu.Unlock()
		return fmt.Errorf("no such item in the active session")
	}
	if item.Status != ItemExtracted {
		s.mu.Unlock()
		return fmt.Errorf("item is not extracted")
	}
	ext := item.Extraction
	s.mu.Unlock()

	inventory, err := s.inventory.ListInStock(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cellar inventory: %w", err)
	}
	result := match.Classify(match.FindMatches(inventory, ext))

	now := time.Now()
	s.mu.Lock()
	item = s.itemLocked(sessionID, itemID)
	if item == nil {
		s.mu.Unlock()
		return fmt.Errorf("session is no longer active")
	}
	item.MatchType = result.Type
	item.PrimaryMatch = result.Primary
	item.Alternatives = result.Alternatives
	if result.Primary != nil {
		item.MatchedBottleID = result.Primary.ID
	}
	item.ProcessedAt = &now
	s.refreshStatusLocked()
	view := s.current.snapshot()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	s.logger.Info("item reconciled", "session_id", sessionID, "item_id", itemID, "match_type", result.Type)
	notify(listeners, view)
	return nil
}

// ResolveAmbiguous settles an unresolved item on the bottle the user chose.
func (s *Service) ResolveAmbiguous(sessionID, itemID, bottleID string) error {
	s.mu.Lock()
	item := s.itemLocked(sessionID, itemID)
	if item == nil {
		s.mu.Unlock()
		return fmt.Errorf("no such item in the active session")
	}
	if item.MatchType != domain.MatchUnresolved {
		s.mu.Unlock()
		return fmt.Errorf("item is not awaiting disambiguation")
	}
	var chosen *domain.Bottle
	for _, alt := range item.Alternatives {
		if alt.ID == bottleID {
			chosen = alt
			break
		}
	}
	if chosen == nil {
		s.mu.Unlock()
		return fmt.Errorf("bottle %s is not among the candidates", bottleID)
	}
	item.MatchType = domain.MatchInCave
	item.PrimaryMatch = chosen
	item.MatchedBottleID = chosen.ID
	s.refreshStatusLocked()
	view := s.current.snapshot()
	listeners := s.listenersLocked()
	s.mu.Unlock()
	notify(listeners, view)
	return nil
}

// IgnoreItem dismisses an item; the user owes it no further decision.
func (s *Service) IgnoreItem(sessionID, itemID string) error {
	s.mu.Lock()
	item := s.itemLocked(sessionID, itemID)
	if item == nil {
		s.mu.Unlock()
		return fmt.Errorf("no such item in the active session")
	}
	item.Ignored = true
	s.refreshStatusLocked()
	view := s.current.snapshot()
	listeners := s.listenersLocked()
	s.mu.Unlock()
	notify(listeners, view)
	return nil
}

// MarkDone ends the session explicitly. Calling it with an id that is not
// the active session is a no-op.
func (s *Service) MarkDone(sessionID string) {
	s.mu.Lock()
	if s.current == nil || s.current.ID != sessionID {
		s.mu.Unlock()
		return
	}
	s.current.Status = SessionDone
	view := s.current.snapshot()
	listeners := s.listenersLocked()
	s.mu.Unlock()
	notify(listeners, view)
}

// ClearSession discards the active session and releases every per-item
// preview resource exactly once. Safe to call with no active session.
func (s *Service) ClearSession() {
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
}

// clearLocked releases the current session's previews and drops the
// reference. Caller holds s.mu.
func (s *Service) clearLocked() {
	if s.current == nil {
		return
	}
	for _, it := range s.current.Items {
		if it.photo.Preview != nil && !it.released {
			it.photo.Preview.Release()
		}
		it.released = true
	}
	s.logger.Info("batch session cleared", "session_id", s.current.ID)
	s.current = nil
}

// itemLocked returns the item only when sessionID is the active session.
// Caller holds s.mu.
func (s *Service) itemLocked(sessionID, itemID string) *Item {
	if s.current == nil || s.current.ID != sessionID {
		return nil
	}
	for _, it := range s.current.Items {
		if it.ID == itemID {
			return it
		}
	}
	return nil
}

// refreshStatusLocked recomputes the session status: ready once every item
// has left extraction, done once every item is resolved or dismissed.
// An explicit done is never demoted. Caller holds s.mu.
func (s *Service) refreshStatusLocked() {
	if s.current == nil || s.current.Status == SessionDone {
		return
	}
	allSettled := true
	allResolved := true
	for _, it := range s.current.Items {
		if it.Status == ItemPending || it.Status == ItemExtracting {
			allSettled = false
			allResolved = false
			break
		}
		if it.Status == ItemExtracted && !it.resolved() {
			allResolved = false
		}
		if it.Status == ItemError && !it.Ignored {
			allResolved = false
		}
	}
	switch {
	case !allSettled:
		s.current.Status = SessionProcessing
	case allResolved:
		s.current.Status = SessionDone
	default:
		s.current.Status = SessionReady
	}
}

func (s *Service) listenersLocked() []Listener {
	return append([]Listener(nil), s.listeners...)
}

func notify(listeners []Listener, view SessionView) {
	for _, fn := range listeners {
		fn(view)
	}
}
