package storage

import (
	"context"
	"database/sql"
	"time"
)

// Run statuses persisted in runs.status.
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// SupplierProgress holds per-supplier counters for one run. Counters only
// ever increase, and stored <= scraped <= requested at every observation.
type SupplierProgress struct {
	SupplierID string `json:"supplier_id"`
	Requested  int    `json:"requested"`
	Scraped    int    `json:"scraped"`
	Stored     int    `json:"stored"`
	Errors     int    `json:"errors"`
	Failed     bool   `json:"failed"`
}

// Run is a read-only snapshot of one batch run.
type Run struct {
	RunID      string             `json:"run_id"`
	Status     string             `json:"status"`
	Requested  int                `json:"requested"` // work-list size, fixed at creation
	StartedAt  time.Time          `json:"started_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
	Suppliers  []SupplierProgress `json:"suppliers"`
}

// CreateRun inserts a pending run with a fixed work-list size.
func (d *DB) CreateRun(ctx context.Context, runID string, requested int) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO runs (run_id, status, requested, started_at, updated_at) VALUES (?,?,?,?,?)",
		runID, RunPending, requested, now, now)
	return err
}

// MarkRunRunning moves a pending run to running.
func (d *DB) MarkRunRunning(ctx context.Context, runID string) error {
	res, err := d.sql.ExecContext(ctx,
		"UPDATE runs SET status = ?, updated_at = ? WHERE run_id = ? AND status = ?",
		RunRunning, time.Now().UTC().Format(timeFormat), runID, RunPending)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// FinishRun moves a run to a terminal status exactly once; finishing an
// already-terminal run is a no-op.
func (d *DB) FinishRun(ctx context.Context, runID, status string) error {
	now := time.Now().UTC().Format(timeFormat)
	_, err := d.sql.ExecContext(ctx,
		"UPDATE runs SET status = ?, updated_at = ?, finished_at = ? WHERE run_id = ? AND status IN (?,?)",
		status, now, now, runID, RunPending, RunRunning)
	return err
}

// AdvanceRunSupplier atomically adds deltas to a supplier's counters.
// Negative deltas are rejected by clamping to zero so counters stay
// monotonic even on caller bugs.
func (d *DB) AdvanceRunSupplier(ctx context.Context, runID, supplierID string, dRequested, dScraped, dStored, dErrors int) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO run_suppliers (run_id, supplier_id, requested, scraped, stored, errors)
VALUES (?,?,?,?,?,?)
ON CONFLICT(run_id, supplier_id) DO UPDATE SET
  requested = requested + excluded.requested,
  scraped   = scraped + excluded.scraped,
  stored    = stored + excluded.stored,
  errors    = errors + excluded.errors`,
		runID, supplierID, clampNonNegative(dRequested), clampNonNegative(dScraped), clampNonNegative(dStored), clampNonNegative(dErrors))
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx, "UPDATE runs SET updated_at = ? WHERE run_id = ?",
		time.Now().UTC().Format(timeFormat), runID)
	return err
}

// MarkSupplierFailed flags a supplier as irrecoverable for the rest of the
// run (missing strategy, repeated fetch bans, ...).
func (d *DB) MarkSupplierFailed(ctx context.Context, runID, supplierID string) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO run_suppliers (run_id, supplier_id, failed) VALUES (?,?,1)
ON CONFLICT(run_id, supplier_id) DO UPDATE SET failed = 1`,
		runID, supplierID)
	return err
}

// GetRun returns a snapshot of a run with its per-supplier counters.
func (d *DB) GetRun(ctx context.Context, runID string) (Run, error) {
	var r Run
	var startedAt, updatedAt string
	var finishedAt sql.NullString
	err := d.sql.QueryRowContext(ctx,
		"SELECT run_id, status, requested, started_at, updated_at, finished_at FROM runs WHERE run_id = ?", runID).
		Scan(&r.RunID, &r.Status, &r.Requested, &startedAt, &updatedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}

	if r.StartedAt, err = time.Parse(timeFormat, startedAt); err != nil {
		return Run{}, err
	}
	if r.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return Run{}, err
	}
	if finishedAt.Valid {
		t, err := time.Parse(timeFormat, finishedAt.String)
		if err != nil {
			return Run{}, err
		}
		r.FinishedAt = &t
	}

	rows, err := d.sql.QueryContext(ctx,
		"SELECT supplier_id, requested, scraped, stored, errors, failed FROM run_suppliers WHERE run_id = ? ORDER BY supplier_id", runID)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var sp SupplierProgress
		var failed int
		if err := rows.Scan(&sp.SupplierID, &sp.Requested, &sp.Scraped, &sp.Stored, &sp.Errors, &failed); err != nil {
			return Run{}, err
		}
		sp.Failed = failed == 1
		r.Suppliers = append(r.Suppliers, sp)
	}
	return r, rows.Err()
}

// StaleRuns lists runs still marked running whose last update is older than
// age: typically runs orphaned by a crash, for the UI to reconcile.
func (d *DB) StaleRuns(ctx context.Context, age time.Duration) ([]Run, error) {
	cutoff := time.Now().UTC().Add(-age).Format(timeFormat)
	rows, err := d.sql.QueryContext(ctx,
		"SELECT run_id FROM runs WHERE status = ? AND updated_at < ?", RunRunning, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []Run
	for _, id := range ids {
		r, err := d.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}
