// Package progress tracks batch-run counters with an explicit lifecycle:
// create, advance, snapshot, finish. State is persisted so a crash mid-run
// leaves an inspectable record instead of silent loss.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/partscope/partscope/pkg/storage"
)

// Tracker persists run progress through the cache store. It is safe for
// concurrent advancement from scrape workers and concurrent snapshots from
// polling consumers: writes serialize on a mutex in front of the store so
// counter batches land atomically relative to snapshots.
type Tracker struct {
	db *storage.DB
	mu sync.Mutex
}

func New(db *storage.DB) *Tracker {
	return &Tracker{db: db}
}

// Create registers a new pending run with its fixed work-list size.
func (t *Tracker) Create(ctx context.Context, runID string, requested int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.db.CreateRun(ctx, runID, requested)
}

// Start moves the run from pending to running.
func (t *Tracker) Start(ctx context.Context, runID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.db.MarkRunRunning(ctx, runID)
}

// Advance atomically increments a supplier's counters. Deltas must be
// non-negative; counters never decrease.
func (t *Tracker) Advance(ctx context.Context, runID, supplierID string, dRequested, dScraped, dStored, dErrors int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.db.AdvanceRunSupplier(ctx, runID, supplierID, dRequested, dScraped, dStored, dErrors)
}

// MarkSupplierFailed flags a supplier as irrecoverable for this run.
func (t *Tracker) MarkSupplierFailed(ctx context.Context, runID, supplierID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.db.MarkSupplierFailed(ctx, runID, supplierID)
}

// Snapshot returns a read-only copy of the run's current state.
func (t *Tracker) Snapshot(ctx context.Context, runID string) (storage.Run, error) {
	return t.db.GetRun(ctx, runID)
}

// Finish moves the run to a terminal status. Finishing an already-terminal
// run is a no-op, so the first terminal status wins.
func (t *Tracker) Finish(ctx context.Context, runID, status string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.db.FinishRun(ctx, runID, status)
}

// Stale lists runs still marked running whose last update is older than age.
func (t *Tracker) Stale(ctx context.Context, age time.Duration) ([]storage.Run, error) {
	return t.db.StaleRuns(ctx, age)
}
