package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/partscope/partscope/pkg/parts"
	"github.com/partscope/partscope/pkg/strategy"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "partscope.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecords(observed time.Time) []parts.Record {
	return []parts.Record{
		{SupplierID: "acme", PartNumber: "R-100", MPN: "R-100", Description: "resistor 100 ohm", Qty: 50, Price: "0.10", Currency: "USD", ObservedAt: observed},
		{SupplierID: "acme", PartNumber: "R-101", MPN: "R-101", Description: "resistor 101 ohm", Qty: parts.QtyUnknown, Price: "0.12", Currency: "USD", ObservedAt: observed},
		{SupplierID: "globex", PartNumber: "R-100X", MPN: "R-100X", Description: "resistor 100 ohm wide body", Qty: 10, Price: "0.11", Currency: "USD", ObservedAt: observed},
	}
}

func TestUpsertIdempotence(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	recs := testRecords(time.Now().UTC().Truncate(time.Second))

	for i := 0; i < 2; i++ {
		if _, err := db.UpsertParts(ctx, recs); err != nil {
			t.Fatalf("UpsertParts (pass %d): %v", i+1, err)
		}
	}

	got, err := db.QueryParts(ctx, QueryOptions{})
	if err != nil {
		t.Fatalf("QueryParts: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows after double upsert, got %d", len(got))
	}
}

func TestUpsertObservedAtMonotonic(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	newer := time.Now().UTC().Truncate(time.Second)
	older := newer.Add(-time.Hour)

	rec := parts.Record{SupplierID: "acme", PartNumber: "C-1", Description: "new", ObservedAt: newer}
	stored, err := db.UpsertParts(ctx, []parts.Record{rec})
	if err != nil {
		t.Fatal(err)
	}
	if stored != 1 {
		t.Errorf("fresh insert: stored = %d, want 1", stored)
	}

	rec.Description = "stale replay"
	rec.ObservedAt = older
	stored, err = db.UpsertParts(ctx, []parts.Record{rec})
	if err != nil {
		t.Fatal(err)
	}
	if stored != 0 {
		t.Errorf("stale replay: stored = %d, want 0", stored)
	}

	got, err := db.QueryParts(ctx, QueryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if !got[0].ObservedAt.Equal(newer) {
		t.Errorf("observed_at moved backwards: %v, want %v", got[0].ObservedAt, newer)
	}
	if got[0].Description != "new" {
		t.Errorf("stale replay overwrote fields: %q", got[0].Description)
	}
}

func TestQueryFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	recs := testRecords(now)
	recs[2].ObservedAt = now.Add(-72 * time.Hour) // stale
	if _, err := db.UpsertParts(ctx, recs); err != nil {
		t.Fatal(err)
	}

	fresh, err := db.QueryParts(ctx, QueryOptions{StaleAfter: 24 * time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh) != 2 {
		t.Errorf("staleness filter: got %d rows, want 2", len(fresh))
	}

	all, err := db.QueryParts(ctx, QueryOptions{StaleAfter: 24 * time.Hour, IncludeStale: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("include stale: got %d rows, want 3", len(all))
	}

	inStock, err := db.QueryParts(ctx, QueryOptions{InStockOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range inStock {
		if r.Qty <= 0 {
			t.Errorf("in-stock filter returned %s with qty %d", r.PartNumber, r.Qty)
		}
	}

	bySupplier, err := db.QueryParts(ctx, QueryOptions{Suppliers: []string{"globex"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(bySupplier) != 1 || bySupplier[0].SupplierID != "globex" {
		t.Errorf("supplier filter: %+v", bySupplier)
	}
}

func TestStrategyManualPrecedence(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ActiveStrategy(ctx, "acme"); !errors.Is(err, ErrNoStrategy) {
		t.Fatalf("expected ErrNoStrategy, got %v", err)
	}

	auto := strategy.Strategy{SupplierID: "acme", Container: "li.product", Confidence: 0.8}
	if _, err := db.SetStrategy(ctx, auto); err != nil {
		t.Fatal(err)
	}

	manual := strategy.Manual("acme", "https://acme.example/search?q={query}", "div.row", strategy.FieldSelectors{PartNumber: "h3"})
	if _, err := db.SetStrategy(ctx, manual); err != nil {
		t.Fatal(err)
	}

	// A later auto-detection, even at full confidence, must not displace
	// the manual override.
	auto2 := strategy.Strategy{SupplierID: "acme", Container: "tr", Confidence: 1.0}
	if _, err := db.SetStrategy(ctx, auto2); err != nil {
		t.Fatal(err)
	}

	active, err := db.ActiveStrategy(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if !active.Manual || active.Container != "div.row" {
		t.Errorf("active strategy = %+v, want the manual override", active)
	}

	history, err := db.ListStrategies(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Errorf("expected 3 retained versions, got %d", len(history))
	}
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.CreateRun(ctx, "run-1", 100); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkRunRunning(ctx, "run-1"); err != nil {
		t.Fatal(err)
	}
	if err := db.AdvanceRunSupplier(ctx, "run-1", "acme", 10, 8, 8, 2); err != nil {
		t.Fatal(err)
	}
	if err := db.AdvanceRunSupplier(ctx, "run-1", "acme", 10, 9, 7, 1); err != nil {
		t.Fatal(err)
	}
	if err := db.FinishRun(ctx, "run-1", RunCompleted); err != nil {
		t.Fatal(err)
	}
	// Terminal exactly once: a late cancel must not overwrite completed.
	if err := db.FinishRun(ctx, "run-1", RunCancelled); err != nil {
		t.Fatal(err)
	}

	r, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != RunCompleted {
		t.Errorf("status = %s, want completed", r.Status)
	}
	if r.FinishedAt == nil {
		t.Error("finished_at not set")
	}
	if len(r.Suppliers) != 1 {
		t.Fatalf("suppliers = %d, want 1", len(r.Suppliers))
	}
	sp := r.Suppliers[0]
	if sp.Requested != 20 || sp.Scraped != 17 || sp.Stored != 15 || sp.Errors != 3 {
		t.Errorf("counters = %+v", sp)
	}
	if sp.Stored > sp.Scraped || sp.Scraped > sp.Requested {
		t.Errorf("counter invariant violated: %+v", sp)
	}
}

func TestStaleRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.CreateRun(ctx, "run-stale", 10); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkRunRunning(ctx, "run-stale"); err != nil {
		t.Fatal(err)
	}

	// Nothing is stale yet.
	stale, err := db.StaleRuns(ctx, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 0 {
		t.Errorf("expected no stale runs, got %d", len(stale))
	}

	stale, err = db.StaleRuns(ctx, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if len(stale) != 1 || stale[0].RunID != "run-stale" {
		t.Errorf("stale runs = %+v", stale)
	}

	if _, err := db.GetRun(ctx, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}
