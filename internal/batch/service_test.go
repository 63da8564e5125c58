package batch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmordret/macave/internal/domain"
)

// fakeExtractor blocks each Extract call until the test releases it,
// keyed by the photo payload. Lets tests control completion order.
type fakeExtractor struct {
	mu    sync.Mutex
	gates map[string]chan extractResult
}

type extractResult struct {
	ext *domain.WineExtraction
	err error
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{gates: make(map[string]chan extractResult)}
}

func (f *fakeExtractor) gate(key string) chan extractResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.gates[key]
	if !ok {
		ch = make(chan extractResult, 1)
		f.gates[key] = ch
	}
	return ch
}

func (f *fakeExtractor) Extract(ctx context.Context, imageData []byte) (*domain.WineExtraction, error) {
	select {
	case res := <-f.gate(string(imageData)):
		return res.ext, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// release lets the Extract call for the given payload return.
func (f *fakeExtractor) release(key string, ext *domain.WineExtraction, err error) {
	f.gate(key) <- extractResult{ext: ext, err: err}
}

// fakeInventory is a static cellar snapshot.
type fakeInventory struct {
	bottles []*domain.Bottle
	err     error
}

func (f *fakeInventory) ListInStock(ctx context.Context) ([]*domain.Bottle, error) {
	return f.bottles, f.err
}

// fakePreview counts releases so tests can assert exactly-once semantics.
type fakePreview struct {
	mu       sync.Mutex
	releases int
}

func (p *fakePreview) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases++
}

func (p *fakePreview) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releases
}

func extractionFor(domaine string, millesime int) *domain.WineExtraction {
	return &domain.WineExtraction{
		Domaine:    domain.StrPtr(domaine),
		Millesime:  domain.IntPtr(millesime),
		Confidence: 0.9,
	}
}

func newTestService(ext *fakeExtractor, inv *fakeInventory) *Service {
	return NewService(ext, inv, slog.Default(), Config{Workers: 4, ExtractionTimeout: 5 * time.Second})
}

func itemStatus(t *testing.T, svc *Service, itemID string) ItemStatus {
	t.Helper()
	view, ok := svc.Current()
	require.True(t, ok)
	it, ok := view.Item(itemID)
	require.True(t, ok)
	return it.Status
}

func waitForStatus(t *testing.T, svc *Service, itemID string, want ItemStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		view, ok := svc.Current()
		if !ok {
			return false
		}
		it, ok := view.Item(itemID)
		return ok && it.Status == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestCreateSessionSchedulesAllItems(t *testing.T) {
	ext := newFakeExtractor()
	svc := newTestService(ext, &fakeInventory{})

	view := svc.CreateSession(context.Background(), "saturday tasting", []Photo{
		{Data: []byte("a")}, {Data: []byte("b")},
	})

	assert.Equal(t, SessionProcessing, view.Status)
	assert.Equal(t, "saturday tasting", view.Label)
	require.Len(t, view.Items, 2)
	for _, it := range view.Items {
		assert.Equal(t, ItemPending, it.Status)
		assert.Empty(t, it.MatchType)
	}

	ext.release("a", extractionFor("Roulot", 2018), nil)
	ext.release("b", extractionFor("Agrapart", 2015), nil)

	waitForStatus(t, svc, view.Items[0].ID, ItemExtracted)
	waitForStatus(t, svc, view.Items[1].ID, ItemExtracted)

	current, ok := svc.Current()
	require.True(t, ok)
	assert.Equal(t, SessionReady, current.Status)
}

func TestCreateSessionEmptyIsImmediatelyReady(t *testing.T) {
	svc := newTestService(newFakeExtractor(), &fakeInventory{})
	view := svc.CreateSession(context.Background(), "", nil)
	assert.Equal(t, SessionReady, view.Status)
}

func TestOutOfOrderCompletion(t *testing.T) {
	ext := newFakeExtractor()
	svc := newTestService(ext, &fakeInventory{})

	view := svc.CreateSession(context.Background(), "", []Photo{
		{Data: []byte("a")}, {Data: []byte("b")},
	})
	itemA, itemB := view.Items[0].ID, view.Items[1].ID

	// B resolves before A.
	ext.release("b", extractionFor("Agrapart", 2015), nil)
	waitForStatus(t, svc, itemB, ItemExtracted)
	assert.NotEqual(t, ItemExtracted, itemStatus(t, svc, itemA))

	ext.release("a", extractionFor("Roulot", 2018), nil)
	waitForStatus(t, svc, itemA, ItemExtracted)

	// No cross-contamination: each item carries its own extraction.
	current, _ := svc.Current()
	a, _ := current.Item(itemA)
	b, _ := current.Item(itemB)
	assert.Equal(t, "Roulot", *a.Extraction.Domaine)
	assert.Equal(t, "Agrapart", *b.Extraction.Domaine)
}

func TestSingleItemFailureDoesNotAbortSession(t *testing.T) {
	ext := newFakeExtractor()
	svc := newTestService(ext, &fakeInventory{})

	view := svc.CreateSession(context.Background(), "", []Photo{
		{Data: []byte("ok")}, {Data: []byte("bad")},
	})

	ext.release("bad", nil, errors.New("label unreadable"))
	ext.release("ok", extractionFor("Roulot", 2018), nil)

	waitForStatus(t, svc, view.Items[0].ID, ItemExtracted)
	waitForStatus(t, svc, view.Items[1].ID, ItemError)

	current, _ := svc.Current()
	assert.Equal(t, SessionReady, current.Status)
	failed, _ := current.Item(view.Items[1].ID)
	assert.Contains(t, failed.Err, "label unreadable")
	assert.Empty(t, failed.MatchType)
}

func TestExtractionTimeoutSurfacesAsItemError(t *testing.T) {
	ext := newFakeExtractor() // never released: the call only ends via ctx
	svc := NewService(ext, &fakeInventory{}, slog.Default(),
		Config{Workers: 1, ExtractionTimeout: 20 * time.Millisecond})

	view := svc.CreateSession(context.Background(), "", []Photo{{Data: []byte("slow")}})
	waitForStatus(t, svc, view.Items[0].ID, ItemError)

	current, _ := svc.Current()
	it, _ := current.Item(view.Items[0].ID)
	assert.Contains(t, it.Err, "deadline")
}

func TestStaleResultDropped(t *testing.T) {
	ext := newFakeExtractor()
	svc := newTestService(ext, &fakeInventory{})

	first := svc.CreateSession(context.Background(), "", []Photo{{Data: []byte("old")}})
	second := svc.CreateSession(context.Background(), "", []Photo{{Data: []byte("new")}})

	// The first session's extraction completes after its session was replaced.
	ext.release("old", extractionFor("Ghost", 1999), nil)
	ext.release("new", extractionFor("Roulot", 2018), nil)
	waitForStatus(t, svc, second.Items[0].ID, ItemExtracted)

	current, ok := svc.Current()
	require.True(t, ok)
	assert.Equal(t, second.ID, current.ID)
	assert.NotEqual(t, first.ID, current.ID)
	require.Len(t, current.Items, 1)
	assert.Equal(t, "Roulot", *current.Items[0].Extraction.Domaine)
}

func TestPreviewReleasedExactlyOnce(t *testing.T) {
	ext := newFakeExtractor()
	svc := newTestService(ext, &fakeInventory{})

	p1, p2 := &fakePreview{}, &fakePreview{}
	svc.CreateSession(context.Background(), "", []Photo{
		{Data: []byte("a"), Preview: p1},
		{Data: []byte("b"), Preview: p2},
	})

	svc.ClearSession()
	assert.Equal(t, 1, p1.count())
	assert.Equal(t, 1, p2.count())

	// Clearing again must not double-release.
	svc.ClearSession()
	assert.Equal(t, 1, p1.count())
	assert.Equal(t, 1, p2.count())

	_, ok := svc.Current()
	assert.False(t, ok)
}

func TestNewSessionReleasesPreviousPreviews(t *testing.T) {
	ext := newFakeExtractor()
	svc := newTestService(ext, &fakeInventory{})

	old := &fakePreview{}
	svc.CreateSession(context.Background(), "", []Photo{{Data: []byte("old"), Preview: old}})
	svc.CreateSession(context.Background(), "", []Photo{{Data: []byte("new")}})

	assert.Equal(t, 1, old.count())
}

func TestReconcileSingleMatch(t *testing.T) {
	ext := newFakeExtractor()
	cellar := &fakeInventory{bottles: []*domain.Bottle{
		{ID: "b1", Domaine: domain.StrPtr("Roulot"), Millesime: domain.IntPtr(2018), Status: domain.StatusInStock},
		{ID: "b2", Domaine: domain.StrPtr("Overnoy"), Millesime: domain.IntPtr(2017), Status: domain.StatusInStock},
	}}
	svc := newTestService(ext, cellar)

	view := svc.CreateSession(context.Background(), "", []Photo{{Data: []byte("a")}})
	ext.release("a", extractionFor("Roulot", 2018), nil)
	waitForStatus(t, svc, view.Items[0].ID, ItemExtracted)

	require.NoError(t, svc.Reconcile(context.Background(), view.ID, view.Items[0].ID))

	current, _ := svc.Current()
	it, _ := current.Item(view.Items[0].ID)
	assert.Equal(t, domain.MatchInCave, it.MatchType)
	require.NotNil(t, it.PrimaryMatch)
	assert.Equal(t, "b1", it.PrimaryMatch.ID)
	assert.Equal(t, "b1", it.MatchedBottleID)
	assert.NotNil(t, it.ProcessedAt)
}

func TestReconcileNoMatch(t *testing.T) {
	ext := newFakeExtractor()
	svc := newTestService(ext, &fakeInventory{})

	view := svc.CreateSession(context.Background(), "", []Photo{{Data: []byte("a")}})
	ext.release("a", extractionFor("Unknown Estate", 2001), nil)
	waitForStatus(t, svc, view.Items[0].ID, ItemExtracted)

	require.NoError(t, svc.Reconcile(context.Background(), view.ID, view.Items[0].ID))

	current, _ := svc.Current()
	it, _ := current.Item(view.Items[0].ID)
	assert.Equal(t, domain.MatchNotInCave, it.MatchType)
	assert.Nil(t, it.PrimaryMatch)
}

func TestReconcileAmbiguousThenResolve(t *testing.T) {
	ext := newFakeExtractor()
	cellar := &fakeInventory{bottles: []*domain.Bottle{
		{ID: "b1", Domaine: domain.StrPtr("Roulot"), Millesime: domain.IntPtr(2018)},
		{ID: "b2", Domaine: domain.StrPtr("Roulot"), Millesime: domain.IntPtr(2018)},
	}}
	svc := newTestService(ext, cellar)

	view := svc.CreateSession(context.Background(), "", []Photo{{Data: []byte("a")}})
	ext.release("a", extractionFor("Roulot", 2018), nil)
	waitForStatus(t, svc, view.Items[0].ID, ItemExtracted)

	require.NoError(t, svc.Reconcile(context.Background(), view.ID, view.Items[0].ID))

	current, _ := svc.Current()
	it, _ := current.Item(view.Items[0].ID)
	assert.Equal(t, domain.MatchUnresolved, it.MatchType)
	assert.Len(t, it.Alternatives, 2)

	require.NoError(t, svc.ResolveAmbiguous(view.ID, view.Items[0].ID, "b2"))
	current, _ = svc.Current()
	it, _ = current.Item(view.Items[0].ID)
	assert.Equal(t, domain.MatchInCave, it.MatchType)
	assert.Equal(t, "b2", it.MatchedBottleID)
}

func TestReconcileErroredItemRejected(t *testing.T) {
	ext := newFakeExtractor()
	svc := newTestService(ext, &fakeInventory{})

	view := svc.CreateSession(context.Background(), "", []Photo{{Data: []byte("bad")}})
	ext.release("bad", nil, errors.New("boom"))
	waitForStatus(t, svc, view.Items[0].ID, ItemError)

	assert.Error(t, svc.Reconcile(context.Background(), view.ID, view.Items[0].ID))
}

func TestRetryAfterError(t *testing.T) {
	ext := newFakeExtractor()
	svc := newTestService(ext, &fakeInventory{})

	view := svc.CreateSession(context.Background(), "", []Photo{{Data: []byte("flaky")}})
	ext.release("flaky", nil, errors.New("transient"))
	waitForStatus(t, svc, view.Items[0].ID, ItemError)

	require.NoError(t, svc.RetryExtraction(context.Background(), view.ID, view.Items[0].ID))
	ext.release("flaky", extractionFor("Roulot", 2018), nil)
	waitForStatus(t, svc, view.Items[0].ID, ItemExtracted)
}

func TestMarkDoneIdempotentOnStaleID(t *testing.T) {
	ext := newFakeExtractor()
	svc := newTestService(ext, &fakeInventory{})

	view := svc.CreateSession(context.Background(), "", []Photo{{Data: []byte("a")}})

	// Unknown id is a no-op.
	svc.MarkDone("batch-0")
	current, _ := svc.Current()
	assert.Equal(t, SessionProcessing, current.Status)

	svc.MarkDone(view.ID)
	current, _ = svc.Current()
	assert.Equal(t, SessionDone, current.Status)
}

func TestSessionDoneWhenAllItemsResolvedOrIgnored(t *testing.T) {
	ext := newFakeExtractor()
	svc := newTestService(ext, &fakeInventory{})

	view := svc.CreateSession(context.Background(), "", []Photo{
		{Data: []byte("a")}, {Data: []byte("bad")},
	})

	ext.release("a", extractionFor("Roulot", 2018), nil)
	ext.release("bad", nil, errors.New("boom"))
	waitForStatus(t, svc, view.Items[0].ID, ItemExtracted)
	waitForStatus(t, svc, view.Items[1].ID, ItemError)

	require.NoError(t, svc.Reconcile(context.Background(), view.ID, view.Items[0].ID))
	current, _ := svc.Current()
	assert.Equal(t, SessionReady, current.Status)

	require.NoError(t, svc.IgnoreItem(view.ID, view.Items[1].ID))
	current, _ = svc.Current()
	assert.Equal(t, SessionDone, current.Status)
}

func TestThreePhotoScenario(t *testing.T) {
	ext := newFakeExtractor()
	cellar := &fakeInventory{bottles: []*domain.Bottle{
		{ID: "b1", Domaine: domain.StrPtr("Chartogne Taillet"), Appellation: domain.StrPtr("Champagne"), Millesime: domain.IntPtr(2019)},
	}}
	svc := newTestService(ext, cellar)

	view := svc.CreateSession(context.Background(), "dinner", []Photo{
		{Data: []byte("p1")}, {Data: []byte("p2")}, {Data: []byte("p3")},
	})

	ext.release("p1", &domain.WineExtraction{
		Domaine:     domain.StrPtr("Chartogne Taillet"),
		Appellation: domain.StrPtr("Champagne"),
		Millesime:   domain.IntPtr(2020),
	}, nil)
	ext.release("p2", extractionFor("Unknown Estate", 1993), nil)
	ext.release("p3", nil, errors.New("blurry photo"))

	waitForStatus(t, svc, view.Items[0].ID, ItemExtracted)
	waitForStatus(t, svc, view.Items[1].ID, ItemExtracted)
	waitForStatus(t, svc, view.Items[2].ID, ItemError)

	// Session is ready despite item 3's failure.
	current, _ := svc.Current()
	assert.Equal(t, SessionReady, current.Status)

	require.NoError(t, svc.Reconcile(context.Background(), view.ID, view.Items[0].ID))
	require.NoError(t, svc.Reconcile(context.Background(), view.ID, view.Items[1].ID))

	current, _ = svc.Current()
	p1, _ := current.Item(view.Items[0].ID)
	p2, _ := current.Item(view.Items[1].ID)
	p3, _ := current.Item(view.Items[2].ID)

	assert.Equal(t, domain.MatchInCave, p1.MatchType)
	assert.Equal(t, "b1", p1.MatchedBottleID)
	assert.Equal(t, domain.MatchNotInCave, p2.MatchType)
	assert.Empty(t, p3.MatchType)
	assert.Equal(t, ItemError, p3.Status)
}

func TestObserverNotifiedOnChange(t *testing.T) {
	ext := newFakeExtractor()
	svc := newTestService(ext, &fakeInventory{})

	var mu sync.Mutex
	var seen []SessionStatus
	svc.Subscribe(func(v SessionView) {
		mu.Lock()
		seen = append(seen, v.Status)
		mu.Unlock()
	})

	view := svc.CreateSession(context.Background(), "", []Photo{{Data: []byte("a")}})
	ext.release("a", extractionFor("Roulot", 2018), nil)
	waitForStatus(t, svc, view.Items[0].ID, ItemExtracted)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, SessionProcessing, seen[0])
	assert.Equal(t, SessionReady, seen[len(seen)-1])
}

func TestSnapshotIsolation(t *testing.T) {
	ext := newFakeExtractor()
	svc := newTestService(ext, &fakeInventory{})

	view := svc.CreateSession(context.Background(), "original", []Photo{{Data: []byte("a")}})
	view.Label = "mutated"
	view.Items[0].Status = ItemError

	current, _ := svc.Current()
	assert.Equal(t, "original", current.Label)
	assert.NotEqual(t, ItemError, current.Items[0].Status)
}
