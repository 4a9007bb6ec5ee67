package rating

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/theodi/contract-radar/internal/db"
	"github.com/theodi/contract-radar/internal/models"
)

type fakeBatchStore struct {
	mu      sync.Mutex
	org     *models.Organisation
	unrated []string
}

func (f *fakeBatchStore) GetOrganisation(ctx context.Context) (*models.Organisation, error) {
	if f.org == nil {
		return nil, db.ErrNotFound
	}
	return f.org, nil
}

func (f *fakeBatchStore) FindUnrated(ctx context.Context, limit int) ([]models.ContractRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := limit
	if n > len(f.unrated) {
		n = len(f.unrated)
	}
	var out []models.ContractRecord
	for _, id := range f.unrated[:n] {
		out = append(out, models.ContractRecord{ItemID: id})
	}
	return out, nil
}

func (f *fakeBatchStore) CountUnrated(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.unrated), nil
}

// markRated removes an item from the unrated set, mimicking ApplyRating.
func (f *fakeBatchStore) markRated(itemID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, id := range f.unrated {
		if id == itemID {
			f.unrated = append(f.unrated[:i], f.unrated[i+1:]...)
			return
		}
	}
}

type fakeRater struct {
	store   *fakeBatchStore
	failIDs map[string]bool
	rated   []string

	// block, when non-nil, holds Rate until released. Used to overlap runs.
	block chan struct{}
}

func (f *fakeRater) Rate(ctx context.Context, itemID string) (*models.AIRating, error) {
	if f.block != nil {
		<-f.block
	}
	if f.failIDs[itemID] {
		// Failed items still leave the unrated set in this fake so the
		// run terminates; the real store keeps them for the next run.
		f.store.markRated(itemID)
		return nil, errors.New("rate failed")
	}
	f.rated = append(f.rated, itemID)
	f.store.markRated(itemID)
	return &models.AIRating{Score: 7, Relevance: "high", RatedBy: "AI"}, nil
}

func zeroDelayPolicy() BatchPolicy {
	return BatchPolicy{BatchSize: 5}
}

func newTestCoordinator(store *fakeBatchStore, rater *fakeRater, policy BatchPolicy) (*Coordinator, *[]time.Duration) {
	c := NewCoordinator(store, rater, policy)
	var sleeps []time.Duration
	c.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return c, &sleeps
}

func unratedIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = string(rune('a'+i)) + "-contract"
	}
	return ids
}

func TestRateAllProcessesEverythingInBatches(t *testing.T) {
	store := &fakeBatchStore{org: testOrg(), unrated: unratedIDs(12)}
	rater := &fakeRater{store: store, failIDs: map[string]bool{}}
	coord, _ := newTestCoordinator(store, rater, zeroDelayPolicy())

	result, err := coord.RateAll(context.Background())
	if err != nil {
		t.Fatalf("RateAll returned error: %v", err)
	}

	if result.Processed != 12 {
		t.Errorf("Processed = %d, want 12", result.Processed)
	}
	if result.Rated != 12 {
		t.Errorf("Rated = %d, want 12", result.Rated)
	}
	if result.Errors != 0 {
		t.Errorf("Errors = %d, want 0", result.Errors)
	}
	if result.Skipped {
		t.Error("run should not be skipped")
	}
	if remaining, _ := store.CountUnrated(context.Background()); remaining != 0 {
		t.Errorf("%d contracts left unrated", remaining)
	}
}

func TestRateAllCountsPerItemFailures(t *testing.T) {
	store := &fakeBatchStore{org: testOrg(), unrated: unratedIDs(7)}
	rater := &fakeRater{store: store, failIDs: map[string]bool{
		"b-contract": true,
		"e-contract": true,
	}}
	coord, _ := newTestCoordinator(store, rater, zeroDelayPolicy())

	result, err := coord.RateAll(context.Background())
	if err != nil {
		t.Fatalf("RateAll returned error: %v", err)
	}

	if result.Processed != 7 {
		t.Errorf("Processed = %d, want 7", result.Processed)
	}
	if result.Rated != 5 {
		t.Errorf("Rated = %d, want 5", result.Rated)
	}
	if result.Errors != 2 {
		t.Errorf("Errors = %d, want 2", result.Errors)
	}
}

func TestRateAllPacing(t *testing.T) {
	policy := BatchPolicy{
		BatchSize:             5,
		DelayBetweenContracts: 2 * time.Second,
		DelayBetweenBatches:   5 * time.Second,
	}
	store := &fakeBatchStore{org: testOrg(), unrated: unratedIDs(12)}
	rater := &fakeRater{store: store, failIDs: map[string]bool{}}
	coord, sleeps := newTestCoordinator(store, rater, policy)

	if _, err := coord.RateAll(context.Background()); err != nil {
		t.Fatalf("RateAll returned error: %v", err)
	}

	// 12 per-contract pauses plus 2 inter-batch pauses (after the first
	// two of three batches).
	var contracts, batches int
	for _, d := range *sleeps {
		switch d {
		case policy.DelayBetweenContracts:
			contracts++
		case policy.DelayBetweenBatches:
			batches++
		default:
			t.Errorf("unexpected sleep duration %v", d)
		}
	}
	if contracts != 12 {
		t.Errorf("per-contract sleeps = %d, want 12", contracts)
	}
	if batches != 2 {
		t.Errorf("inter-batch sleeps = %d, want 2", batches)
	}
}

func TestRateAllSkipsWithoutOrganisation(t *testing.T) {
	store := &fakeBatchStore{unrated: unratedIDs(3)}
	rater := &fakeRater{store: store, failIDs: map[string]bool{}}
	coord, _ := newTestCoordinator(store, rater, zeroDelayPolicy())

	result, err := coord.RateAll(context.Background())
	if err != nil {
		t.Fatalf("RateAll returned error: %v", err)
	}
	if !result.Skipped {
		t.Fatal("run should be skipped without a profile")
	}
	if result.Processed != 0 || len(rater.rated) != 0 {
		t.Error("no contracts should be touched without a profile")
	}
}

func TestRateAllRejectsOverlappingRuns(t *testing.T) {
	store := &fakeBatchStore{org: testOrg(), unrated: unratedIDs(2)}
	rater := &fakeRater{store: store, failIDs: map[string]bool{}, block: make(chan struct{})}
	coord := NewCoordinator(store, rater, zeroDelayPolicy())
	coord.sleep = func(time.Duration) {}

	firstDone := make(chan *BatchResult)
	go func() {
		result, _ := coord.RateAll(context.Background())
		firstDone <- result
	}()

	// Wait until the first run holds the guard.
	deadline := time.After(2 * time.Second)
	for !coord.running.Load() {
		select {
		case <-deadline:
			t.Fatal("first run never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	second, err := coord.RateAll(context.Background())
	if err != nil {
		t.Fatalf("second RateAll returned error: %v", err)
	}
	if !second.Skipped {
		t.Error("overlapping run must be skipped")
	}
	if second.Processed != 0 {
		t.Errorf("overlapping run Processed = %d, want 0", second.Processed)
	}

	close(rater.block)
	first := <-firstDone
	if first.Skipped {
		t.Error("first run must not be skipped")
	}

	// Guard released: a third run proceeds.
	third, err := coord.RateAll(context.Background())
	if err != nil {
		t.Fatalf("third RateAll returned error: %v", err)
	}
	if third.Skipped {
		t.Error("guard must be released after the first run completes")
	}
}

func TestRateAllReleasesGuardOnContextCancel(t *testing.T) {
	store := &fakeBatchStore{org: testOrg(), unrated: unratedIDs(3)}
	rater := &fakeRater{store: store, failIDs: map[string]bool{}}
	coord, _ := newTestCoordinator(store, rater, zeroDelayPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := coord.RateAll(ctx); err == nil {
		t.Fatal("cancelled context should surface an error")
	}
	if coord.running.Load() {
		t.Error("guard must be released after an aborted run")
	}
}
