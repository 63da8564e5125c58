// Package batch drives the multi-photo scan pipeline: a queue of label
// photos awaiting extraction, per-item status tracking with partial
// failure, and reconciliation of each extracted label against the cellar.
package batch

import (
	"time"

	"github.com/jmordret/macave/internal/domain"
)

// Preview is a transient per-photo preview resource (a temporary URL, a
// decoded thumbnail). It must be released exactly once when the owning
// session is discarded.
type Preview interface {
	Release()
}

// Photo is one captured image handed to CreateSession. Preview may be nil.
type Photo struct {
	Data    []byte
	Preview Preview
}

// ItemStatus is the extraction lifecycle of one photo in a session.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemExtracting ItemStatus = "extracting"
	ItemExtracted  ItemStatus = "extracted"
	ItemError      ItemStatus = "error"
)

// SessionStatus is the lifecycle of the session as a whole.
type SessionStatus string

const (
	// SessionProcessing means at least one item has not finished extraction.
	SessionProcessing SessionStatus = "processing"
	// SessionReady means every item has left the extracting state.
	SessionReady SessionStatus = "ready"
	// SessionDone means every item was reconciled or dismissed, or the
	// user explicitly ended the session.
	SessionDone SessionStatus = "done"
)

// Item is one photo within a session. The service mutates items in place
// under its lock; everything handed to callers is a copy.
type Item struct {
	ID              string
	Status          ItemStatus
	Extraction      *domain.WineExtraction
	MatchType       domain.MatchType
	MatchedBottleID string
	PrimaryMatch    *domain.Bottle
	Alternatives    []*domain.Bottle
	ProcessedAt     *time.Time
	Ignored         bool
	Err             string

	photo    Photo
	released bool
}

// resolved reports whether the user no longer owes this item a decision.
func (it *Item) resolved() bool {
	return it.Ignored || it.MatchType != ""
}

// Session is one user-initiated batch of photos.
type Session struct {
	ID        string
	CreatedAt time.Time
	Label     string
	Status    SessionStatus
	Items     []*Item
}

// snapshot returns a deep copy safe to hand to readers: items are values
// and per-item slices are cloned, so observers can never mutate live state.
func (s *Session) snapshot() SessionView {
	view := SessionView{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Label:     s.Label,
		Status:    s.Status,
		Items:     make([]ItemView, len(s.Items)),
	}
	for i, it := range s.Items {
		iv := ItemView{
			ID:              it.ID,
			Status:          it.Status,
			Extraction:      it.Extraction,
			MatchType:       it.MatchType,
			MatchedBottleID: it.MatchedBottleID,
			PrimaryMatch:    it.PrimaryMatch,
			ProcessedAt:     it.ProcessedAt,
			Ignored:         it.Ignored,
			Err:             it.Err,
		}
		if len(it.Alternatives) > 0 {
			iv.Alternatives = append([]*domain.Bottle(nil), it.Alternatives...)
		}
		view.Items[i] = iv
	}
	return view
}

// SessionView is the read-only state observers and API handlers consume.
type SessionView struct {
	ID        string
	CreatedAt time.Time
	Label     string
	Status    SessionStatus
	Items     []ItemView
}

// ItemView is the read-only projection of an Item.
type ItemView struct {
	ID              string
	Status          ItemStatus
	Extraction      *domain.WineExtraction
	MatchType       domain.MatchType
	MatchedBottleID string
	PrimaryMatch    *domain.Bottle
	Alternatives    []*domain.Bottle
	ProcessedAt     *time.Time
	Ignored         bool
	Err             string
}

// Item returns the item view with the given id, if present.
func (v SessionView) Item(id string) (ItemView, bool) {
	for _, it := range v.Items {
		if it.ID == id {
			return it, true
		}
	}
	return ItemView{}, false
}
