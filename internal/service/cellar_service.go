package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmordret/macave/internal/batch"
	"github.com/jmordret/macave/internal/domain"
	"github.com/jmordret/macave/internal/extraction"
	"github.com/jmordret/macave/internal/group"
	"github.com/jmordret/macave/internal/imageutil"
	"github.com/jmordret/macave/internal/match"
	"github.com/jmordret/macave/internal/photostore"
	"github.com/jmordret/macave/internal/textmatch"
)

// bottleRepository is the subset of store.BottleStore that CellarService requires.
type bottleRepository interface {
	Insert(ctx context.Context, bottles []*domain.Bottle) ([]string, error)
	GetByID(ctx context.Context, id string) (*domain.Bottle, error)
	ListInStock(ctx context.Context) ([]*domain.Bottle, error)
	ListDrunk(ctx context.Context, limit int) ([]*domain.Bottle, error)
	Update(ctx context.Context, b *domain.Bottle) error
	MarkDrunk(ctx context.Context, id string, at time.Time, note string) error
	DistinctDomaines(ctx context.Context) ([]*string, error)
	DistinctAppellations(ctx context.Context) ([]*string, error)
}

// zoneRepository is the subset of store.ZoneStore that CellarService requires.
type zoneRepository interface {
	Create(ctx context.Context, name string) (*domain.Zone, error)
	GetByID(ctx context.Context, id string) (*domain.Zone, error)
	List(ctx context.Context) ([]*domain.Zone, error)
	Delete(ctx context.Context, id string) error
}

type CellarService struct {
	bottles   bottleRepository
	zones     zoneRepository
	photos    photostore.Store
	extractor extraction.Extractor
	batch     *batch.Service
	logger    *slog.Logger
}

func NewCellarService(
	bottles bottleRepository,
	zones zoneRepository,
	photos photostore.Store,
	extractor extraction.Extractor,
	batchSvc *batch.Service,
	logger *slog.Logger,
) *CellarService {
	return &CellarService{
		bottles:   bottles,
		zones:     zones,
		photos:    photos,
		extractor: extractor,
		batch:     batchSvc,
		logger:    logger,
	}
}

func (s *CellarService) CreateZone(ctx context.Context, name string) (*domain.Zone, error) {
	return s.zones.Create(ctx, name)
}

func (s *CellarService) ListZones(ctx context.Context) ([]*domain.Zone, error) {
	return s.zones.List(ctx)
}

func (s *CellarService) DeleteZone(ctx context.Context, id string) error {
	return s.zones.Delete(ctx, id)
}

// AddBottleInput carries everything needed to enter a bottle. PhotoData is
// optional; when present it is resized and stored before the record is
// written.
type AddBottleInput struct {
	Bottle    *domain.Bottle
	PhotoData []byte
}

// AddBottle stores a new bottle. Nothing is observable until the insert is
// acknowledged; on insert failure an already-saved photo is removed again.
func (s *CellarService) AddBottle(ctx context.Context, in AddBottleInput) (*domain.Bottle, error) {
	b := in.Bottle
	if b == nil {
		return nil, fmt.Errorf("bottle is required")
	}
	if b.ZoneID != nil {
		zone, err := s.zones.GetByID(ctx, *b.ZoneID)
		if err != nil {
			return nil, fmt.Errorf("failed to check zone: %w", err)
		}
		if zone == nil {
			return nil, fmt.Errorf("zone not found")
		}
	}

	if len(in.PhotoData) > 0 {
		resized, err := imageutil.Resize(in.PhotoData, imageutil.DefaultMaxDimension, imageutil.DefaultQuality)
		if err != nil {
			return nil, fmt.Errorf("failed to resize photo: %w", err)
		}
		key, err := s.photos.Save(ctx, "bottle", "image/jpeg", bytes.NewReader(resized))
		if err != nil {
			return nil, fmt.Errorf("failed to save photo: %w", err)
		}
		b.PhotoKey = key
	}

	ids, err := s.bottles.Insert(ctx, []*domain.Bottle{b})
	if err != nil {
		if b.PhotoKey != "" {
			if derr := s.photos.Delete(ctx, b.PhotoKey); derr != nil {
				s.logger.Error("failed to remove photo after insert failure", "photo_key", b.PhotoKey, "error", derr)
			}
		}
		return nil, fmt.Errorf("failed to insert bottle: %w", err)
	}

	s.logger.Info("bottle added", "bottle_id", ids[0])
	return s.bottles.GetByID(ctx, ids[0])
}

func (s *CellarService) GetBottle(ctx context.Context, id string) (*domain.Bottle, error) {
	return s.bottles.GetByID(ctx, id)
}

func (s *CellarService) ListInStock(ctx context.Context) ([]*domain.Bottle, error) {
	return s.bottles.ListInStock(ctx)
}

func (s *CellarService) UpdateBottle(ctx context.Context, b *domain.Bottle) (*domain.Bottle, error) {
	if err := s.bottles.Update(ctx, b); err != nil {
		return nil, err
	}
	return s.bottles.GetByID(ctx, b.ID)
}

// ConsumeBottle records drinking a bottle now.
func (s *CellarService) ConsumeBottle(ctx context.Context, id string, note string) error {
	return s.bottles.MarkDrunk(ctx, id, time.Now().UTC(), note)
}

// CellarGroups returns the in-stock inventory clustered for display.
func (s *CellarService) CellarGroups(ctx context.Context) ([]*group.BottleGroup, error) {
	bottles, err := s.bottles.ListInStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cellar: %w", err)
	}
	return group.GroupRecords(bottles), nil
}

// Journal returns recent consumption events clustered by day and identity.
func (s *CellarService) Journal(ctx context.Context, limit int) ([]*group.BottleGroup, error) {
	bottles, err := s.bottles.ListDrunk(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal: %w", err)
	}
	return group.GroupRecords(bottles), nil
}

func (s *CellarService) DomaineSuggestions(ctx context.Context) ([]string, error) {
	values, err := s.bottles.DistinctDomaines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load domaine suggestions: %w", err)
	}
	return group.UniqueSuggestions(values), nil
}

func (s *CellarService) AppellationSuggestions(ctx context.Context) ([]string, error) {
	values, err := s.bottles.DistinctAppellations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load appellation suggestions: %w", err)
	}
	return group.UniqueSuggestions(values), nil
}

// NearDuplicate is a pair of suggestion values likely naming the same thing
// with different spellings (accents, typos from hand entry).
type NearDuplicate struct {
	A, B       string
	Similarity float64
}

// NearDuplicateDomaines reports domaine spellings whose similarity meets
// the threshold. Data-quality helper; nothing is merged automatically.
func (s *CellarService) NearDuplicateDomaines(ctx context.Context, threshold float64) ([]NearDuplicate, error) {
	values, err := s.DomaineSuggestions(ctx)
	if err != nil {
		return nil, err
	}

	var pairs []NearDuplicate
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			sim := textmatch.Similarity(values[i], values[j])
			if sim >= threshold && sim < 1 {
				pairs = append(pairs, NearDuplicate{A: values[i], B: values[j], Similarity: sim})
			}
		}
	}
	return pairs, nil
}

// ScanResult is the outcome of a single-photo capture: the extraction plus
// its classification against the cellar.
type ScanResult struct {
	Extraction *domain.WineExtraction
	Match      match.Result
}

// ScanLabel runs the capture flow for one photo: resize, extract, match
// against the current inventory snapshot.
func (s *CellarService) ScanLabel(ctx context.Context, imageData []byte) (*ScanResult, error) {
	resized, err := imageutil.Resize(imageData, imageutil.DefaultMaxDimension, imageutil.DefaultQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to resize photo: %w", err)
	}

	ext, err := s.extractor.Extract(ctx, resized)
	if err != nil {
		return nil, fmt.Errorf("failed to extract label: %w", err)
	}

	inventory, err := s.bottles.ListInStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}

	result := match.Classify(match.FindMatches(inventory, ext))
	s.logger.Info("label scanned", "match_type", result.Type, "confidence", ext.Confidence)
	return &ScanResult{Extraction: ext, Match: result}, nil
}

// Batch exposes the batch session state machine.
func (s *CellarService) Batch() *batch.Service {
	return s.batch
}

// ConfirmBatchConsumption records a consumption event for an item resolved
// as an existing cellar bottle.
func (s *CellarService) ConfirmBatchConsumption(ctx context.Context, sessionID, itemID, note string) error {
	view, ok := s.batch.Current()
	if !ok || view.ID != sessionID {
		return fmt.Errorf("session is not active")
	}
	item, ok := view.Item(itemID)
	if !ok {
		return fmt.Errorf("no such item")
	}
	if item.MatchType != domain.MatchInCave || item.MatchedBottleID == "" {
		return fmt.Errorf("item is not resolved to a cellar bottle")
	}
	return s.bottles.MarkDrunk(ctx, item.MatchedBottleID, time.Now().UTC(), note)
}

// AddBottleFromBatchItem enters a new bottle from an extracted item that
// did not match anything in the cellar.
func (s *CellarService) AddBottleFromBatchItem(ctx context.Context, sessionID, itemID string, zoneID *string) (*domain.Bottle, error) {
	view, ok := s.batch.Current()
	if !ok || view.ID != sessionID {
		return nil, fmt.Errorf("session is not active")
	}
	item, ok := view.Item(itemID)
	if !ok {
		return nil, fmt.Errorf("no such item")
	}
	if item.Extraction == nil {
		return nil, fmt.Errorf("item has no extraction")
	}

	ext := item.Extraction
	b := &domain.Bottle{
		Domaine:     ext.Domaine,
		Cuvee:       ext.Cuvee,
		Appellation: ext.Appellation,
		Millesime:   ext.Millesime,
		Couleur:     ext.Couleur,
		Region:      ext.Region,
		Cepage:      ext.Cepage,
		ZoneID:      zoneID,
	}
	return s.AddBottle(ctx, AddBottleInput{Bottle: b})
}
