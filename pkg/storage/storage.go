// Package storage persists part records, selector strategies, and run
// progress in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/partscope/partscope/pkg/parts"
)

var (
	// ErrNoStrategy signals that a supplier has no active selector strategy.
	ErrNoStrategy = errors.New("no active strategy for supplier")

	// ErrRunNotFound signals an unknown run ID.
	ErrRunNotFound = errors.New("run not found")
)

const timeFormat = time.RFC3339

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS cached_parts (
  id                INTEGER PRIMARY KEY,
  supplier_id       TEXT NOT NULL,
  part_number       TEXT NOT NULL,
  mpn               TEXT,
  mpn_normalized    TEXT,
  description       TEXT,
  qty               INTEGER,
  price             TEXT,
  currency          TEXT,
  purchase_url      TEXT,
  datasheet_url     TEXT,
  observed_at       TEXT NOT NULL,
  strategy_version  INTEGER NOT NULL DEFAULT 0,
  UNIQUE(supplier_id, part_number)
);
CREATE INDEX IF NOT EXISTS idx_parts_mpn ON cached_parts(mpn_normalized);
CREATE INDEX IF NOT EXISTS idx_parts_supplier ON cached_parts(supplier_id);
CREATE TABLE IF NOT EXISTS strategies (
  id                  INTEGER PRIMARY KEY,
  supplier_id         TEXT NOT NULL,
  version             INTEGER NOT NULL,
  search_url_template TEXT,
  container           TEXT,
  sel_part_number     TEXT,
  sel_description     TEXT,
  sel_price           TEXT,
  sel_quantity        TEXT,
  sel_link            TEXT,
  confidence          REAL NOT NULL,
  manual              INTEGER NOT NULL CHECK (manual IN (0,1)),
  active              INTEGER NOT NULL CHECK (active IN (0,1)),
  created_at          TEXT NOT NULL,
  UNIQUE(supplier_id, version)
);
CREATE TABLE IF NOT EXISTS runs (
  run_id      TEXT PRIMARY KEY,
  status      TEXT NOT NULL CHECK (status IN ('pending','running','completed','failed','cancelled')),
  requested   INTEGER NOT NULL DEFAULT 0,
  started_at  TEXT NOT NULL,
  updated_at  TEXT NOT NULL,
  finished_at TEXT
);
CREATE TABLE IF NOT EXISTS run_suppliers (
  run_id      TEXT NOT NULL,
  supplier_id TEXT NOT NULL,
  requested   INTEGER NOT NULL DEFAULT 0,
  scraped     INTEGER NOT NULL DEFAULT 0,
  stored      INTEGER NOT NULL DEFAULT 0,
  errors      INTEGER NOT NULL DEFAULT 0,
  failed      INTEGER NOT NULL DEFAULT 0 CHECK (failed IN (0,1)),
  PRIMARY KEY (run_id, supplier_id)
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// UpsertParts stores a batch of records in one transaction, keyed on
// (supplier_id, part_number). Re-applying the same batch is a no-op, and a
// replayed observation older than the stored one is discarded so observed_at
// never moves backwards. Returns the number of rows written.
func (d *DB) UpsertParts(ctx context.Context, records []parts.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stored := 0
	for _, r := range records {
		if r.SupplierID == "" || r.PartNumber == "" {
			continue
		}
		observed := r.ObservedAt
		if observed.IsZero() {
			observed = time.Now().UTC()
		}
		var res sql.Result
		res, err = tx.ExecContext(ctx, `
INSERT INTO cached_parts (supplier_id, part_number, mpn, mpn_normalized, description, qty, price, currency, purchase_url, datasheet_url, observed_at, strategy_version)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(supplier_id, part_number) DO UPDATE SET
  mpn = excluded.mpn,
  mpn_normalized = excluded.mpn_normalized,
  description = excluded.description,
  qty = excluded.qty,
  price = excluded.price,
  currency = excluded.currency,
  purchase_url = excluded.purchase_url,
  datasheet_url = excluded.datasheet_url,
  observed_at = excluded.observed_at,
  strategy_version = excluded.strategy_version
WHERE excluded.observed_at >= cached_parts.observed_at`,
			r.SupplierID, r.PartNumber,
			nullIfEmpty(r.MPN), nullIfEmpty(parts.NormalizePartNumber(r.MPN)),
			nullIfEmpty(r.Description), qtyValue(r.Qty),
			nullIfEmpty(r.Price), nullIfEmpty(r.Currency),
			nullIfEmpty(r.PurchaseURL), nullIfEmpty(r.DatasheetURL),
			observed.UTC().Format(timeFormat), r.StrategyVersion)
		if err != nil {
			return 0, err
		}
		// Rows discarded by the observed_at guard don't count as written.
		if n, raErr := res.RowsAffected(); raErr == nil {
			stored += int(n)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return stored, nil
}

// QueryOptions controls selection when querying the parts cache.
type QueryOptions struct {
	Suppliers    []string
	Search       string        // free-text match on part number / mpn / description
	InStockOnly  bool          // qty known and > 0
	IncludeStale bool          // include records older than StaleAfter
	StaleAfter   time.Duration // 0 disables staleness filtering
}

// QueryParts returns cached records matching the filter, ordered by
// supplier then part number for reproducible output.
func (d *DB) QueryParts(ctx context.Context, opts QueryOptions) ([]parts.Record, error) {
	where := "WHERE 1=1"
	args := []interface{}{}

	if len(opts.Suppliers) > 0 {
		where += " AND supplier_id IN (?" + strings.Repeat(",?", len(opts.Suppliers)-1) + ")"
		for _, s := range opts.Suppliers {
			args = append(args, s)
		}
	}
	if opts.Search != "" {
		like := "%" + opts.Search + "%"
		where += " AND (part_number LIKE ? OR mpn LIKE ? OR description LIKE ?)"
		args = append(args, like, like, like)
	}
	if opts.InStockOnly {
		where += " AND qty IS NOT NULL AND qty > 0"
	}
	if !opts.IncludeStale && opts.StaleAfter > 0 {
		cutoff := time.Now().UTC().Add(-opts.StaleAfter)
		where += " AND observed_at >= ?"
		args = append(args, cutoff.Format(timeFormat))
	}

	q := `SELECT supplier_id, part_number, mpn, description, qty, price, currency, purchase_url, datasheet_url, observed_at, strategy_version
FROM cached_parts ` + where + " ORDER BY supplier_id, part_number"
	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []parts.Record
	for rows.Next() {
		r, err := scanPart(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountParts returns per-supplier record counts for stats output.
func (d *DB) CountParts(ctx context.Context) (map[string]int, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT supplier_id, COUNT(*) FROM cached_parts GROUP BY supplier_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var supplier string
		var n int
		if err := rows.Scan(&supplier, &n); err != nil {
			return nil, err
		}
		out[supplier] = n
	}
	return out, rows.Err()
}

func scanPart(rows *sql.Rows) (parts.Record, error) {
	var r parts.Record
	var mpn, desc, price, currency, purchaseURL, datasheetURL sql.NullString
	var qty sql.NullInt64
	var observedAt string
	if err := rows.Scan(&r.SupplierID, &r.PartNumber, &mpn, &desc, &qty, &price, &currency, &purchaseURL, &datasheetURL, &observedAt, &r.StrategyVersion); err != nil {
		return parts.Record{}, err
	}
	r.MPN = mpn.String
	r.Description = desc.String
	r.Price = price.String
	r.Currency = currency.String
	r.PurchaseURL = purchaseURL.String
	r.DatasheetURL = datasheetURL.String
	if qty.Valid {
		r.Qty = int(qty.Int64)
	} else {
		r.Qty = parts.QtyUnknown
	}
	t, err := time.Parse(timeFormat, observedAt)
	if err != nil {
		return parts.Record{}, fmt.Errorf("bad observed_at %q: %w", observedAt, err)
	}
	r.ObservedAt = t
	return r, nil
}

func qtyValue(q int) interface{} {
	if q < 0 {
		return nil
	}
	return q
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
