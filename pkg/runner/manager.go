package runner

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/partscope/partscope/pkg/parts"
	"github.com/partscope/partscope/pkg/storage"
)

// ErrEmptyWorkList rejects runs with nothing to do.
var ErrEmptyWorkList = errors.New("empty work list")

// Manager starts runs on a background goroutine and keeps their cancel
// functions so a UI can cancel by run ID. The triggering caller returns as
// soon as the run record exists; progress is observed by polling the
// tracker.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, cancels: make(map[string]context.CancelFunc)}
}

// StartRun creates the run record and launches the batch runner in the
// background. The returned run ID is immediately pollable.
func (m *Manager) StartRun(ctx context.Context, work []parts.WorkItem) (string, error) {
	if len(work) == 0 {
		return "", ErrEmptyWorkList
	}

	runID := uuid.NewString()
	if err := m.cfg.Tracker.Create(ctx, runID, len(work)); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	m.cancels[runID] = cancel
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			delete(m.cancels, runID)
			m.mu.Unlock()
			cancel()
		}()

		log := m.cfg.Log
		if log == nil {
			log = nopLogger{}
		}
		if err := m.cfg.Tracker.Start(runCtx, runID); err != nil {
			log.Errorf("Run %s: could not mark running: %v", runID, err)
			_ = m.cfg.Tracker.Finish(context.Background(), runID, storage.RunFailed)
			return
		}
		if err := Run(runCtx, m.cfg, runID, work); err != nil {
			log.Errorf("Run %s: %v", runID, err)
		}
	}()

	return runID, nil
}

// Cancel requests cooperative cancellation of a run. In-flight scrape calls
// complete; no new batch starts. Returns false for unknown or already
// finished runs.
func (m *Manager) Cancel(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	cancel, ok := m.cancels[runID]
	if ok {
		cancel()
	}
	return ok
}
