package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/partscope/partscope/pkg/strategy"
)

// SetStrategy stores a new strategy version for its supplier and returns the
// assigned version. The new version becomes active unless it is auto-detected
// and a manual override is already active: manual strategies always win, so
// the auto one is retained for audit but left inactive.
func (d *DB) SetStrategy(ctx context.Context, st strategy.Strategy) (int, error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var version int
	if err = tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) + 1 FROM strategies WHERE supplier_id = ?", st.SupplierID).Scan(&version); err != nil {
		return 0, err
	}

	activate := true
	if !st.Manual {
		var manualActive int
		if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM strategies WHERE supplier_id = ? AND active = 1 AND manual = 1", st.SupplierID).Scan(&manualActive); err != nil {
			return 0, err
		}
		activate = manualActive == 0
	}

	if activate {
		if _, err = tx.ExecContext(ctx, "UPDATE strategies SET active = 0 WHERE supplier_id = ?", st.SupplierID); err != nil {
			return 0, err
		}
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO strategies (supplier_id, version, search_url_template, container, sel_part_number, sel_description, sel_price, sel_quantity, sel_link, confidence, manual, active, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		st.SupplierID, version,
		nullIfEmpty(st.SearchURLTemplate), nullIfEmpty(st.Container),
		nullIfEmpty(st.Fields.PartNumber), nullIfEmpty(st.Fields.Description),
		nullIfEmpty(st.Fields.Price), nullIfEmpty(st.Fields.Quantity), nullIfEmpty(st.Fields.PurchaseLink),
		st.Confidence, boolToInt(st.Manual), boolToInt(activate),
		time.Now().UTC().Format(timeFormat))
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return version, nil
}

// ActiveStrategy returns the single active strategy for a supplier, or
// ErrNoStrategy when none has been established yet.
func (d *DB) ActiveStrategy(ctx context.Context, supplierID string) (strategy.Strategy, error) {
	row := d.sql.QueryRowContext(ctx, `
SELECT supplier_id, version, search_url_template, container, sel_part_number, sel_description, sel_price, sel_quantity, sel_link, confidence, manual
FROM strategies WHERE supplier_id = ? AND active = 1`, supplierID)

	st, err := scanStrategy(row)
	if err == sql.ErrNoRows {
		return strategy.Strategy{}, ErrNoStrategy
	}
	return st, err
}

// ListStrategies returns all stored versions for a supplier, newest first.
// Superseded strategies are kept for debugging broken extractions.
func (d *DB) ListStrategies(ctx context.Context, supplierID string) ([]strategy.Strategy, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT supplier_id, version, search_url_template, container, sel_part_number, sel_description, sel_price, sel_quantity, sel_link, confidence, manual
FROM strategies WHERE supplier_id = ? ORDER BY version DESC`, supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []strategy.Strategy
	for rows.Next() {
		st, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStrategy(row rowScanner) (strategy.Strategy, error) {
	var st strategy.Strategy
	var urlTpl, container, pn, desc, price, qty, link sql.NullString
	var manual int
	if err := row.Scan(&st.SupplierID, &st.Version, &urlTpl, &container, &pn, &desc, &price, &qty, &link, &st.Confidence, &manual); err != nil {
		return strategy.Strategy{}, err
	}
	st.SearchURLTemplate = urlTpl.String
	st.Container = container.String
	st.Fields = strategy.FieldSelectors{
		PartNumber:   pn.String,
		Description:  desc.String,
		Price:        price.String,
		Quantity:     qty.String,
		PurchaseLink: link.String,
	}
	st.Manual = manual == 1
	return st, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
