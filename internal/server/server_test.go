package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/partscope/partscope/pkg/match"
	"github.com/partscope/partscope/pkg/parts"
	"github.com/partscope/partscope/pkg/progress"
	"github.com/partscope/partscope/pkg/runner"
	"github.com/partscope/partscope/pkg/storage"
	"github.com/partscope/partscope/pkg/strategy"
	"github.com/partscope/partscope/pkg/suppliers"
)

type stubScraper struct{ name string }

func (s stubScraper) Name() string { return s.name }

func (s stubScraper) Scrape(ctx context.Context, query string, st strategy.Strategy, opts suppliers.Options) ([]parts.Record, error) {
	return []parts.Record{{
		SupplierID: s.name,
		PartNumber: query + "-1",
		MPN:        query,
		ObservedAt: time.Now().UTC(),
	}}, nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "api.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tracker := progress.New(db)
	mgr := runner.NewManager(runner.Config{
		Store:    db,
		Tracker:  tracker,
		Scrapers: map[string]suppliers.Scraper{"stub": stubScraper{name: "stub"}},
	})

	srv := New(db, tracker, mgr, match.Engine{}, "", "")
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts, db
}

func TestRunLifecycleOverAPI(t *testing.T) {
	_, ts, _ := newTestServer(t)

	body, _ := json.Marshal(StartRunRequest{Work: []parts.WorkItem{
		{SupplierID: "stub", Query: "LM358"},
		{SupplierID: "stub", Query: "NE555"},
	}})
	res, err := http.Post(ts.URL+"/api/runs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/runs: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", res.StatusCode)
	}
	var started map[string]string
	if err := json.NewDecoder(res.Body).Decode(&started); err != nil {
		t.Fatalf("decode: %v", err)
	}
	runID := started["run_id"]
	if runID == "" {
		t.Fatal("no run_id in response")
	}

	deadline := time.After(10 * time.Second)
	var run storage.Run
	for {
		res, err := http.Get(ts.URL + "/api/runs/" + runID)
		if err != nil {
			t.Fatalf("GET run: %v", err)
		}
		err = json.NewDecoder(res.Body).Decode(&run)
		res.Body.Close()
		if err != nil {
			t.Fatalf("decode run: %v", err)
		}
		if run.Status == storage.RunCompleted {
			break
		}
		if run.Status == storage.RunFailed || run.Status == storage.RunCancelled {
			t.Fatalf("run ended %s", run.Status)
		}
		select {
		case <-deadline:
			t.Fatalf("run stuck in %s", run.Status)
		case <-time.After(20 * time.Millisecond):
		}
	}
	if run.Requested != 2 {
		t.Errorf("requested = %d, want 2", run.Requested)
	}

	// Finished run: cancel must report conflict, not accepted.
	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/runs/"+runID, nil)
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE run: %v", err)
	}
	res2.Body.Close()
	if res2.StatusCode != http.StatusConflict {
		t.Errorf("cancel finished run: status = %d, want 409", res2.StatusCode)
	}
}

func TestStartRunRejectsEmptyWork(t *testing.T) {
	_, ts, _ := newTestServer(t)
	res, err := http.Post(ts.URL+"/api/runs", "application/json", bytes.NewReader([]byte(`{"work":[]}`)))
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
}

func TestUnknownRun(t *testing.T) {
	_, ts, _ := newTestServer(t)

	res, err := http.Get(ts.URL + "/api/runs/nope")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("GET unknown run: status = %d, want 404", res.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/runs/nope", nil)
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res2.Body.Close()
	if res2.StatusCode != http.StatusNotFound {
		t.Errorf("DELETE unknown run: status = %d, want 404", res2.StatusCode)
	}
}

func TestMatchAndPartsEndpoints(t *testing.T) {
	_, ts, db := newTestServer(t)

	now := time.Now().UTC()
	_, err := db.UpsertParts(context.Background(), []parts.Record{
		{SupplierID: "acme", PartNumber: "R-100", MPN: "R-100", Description: "resistor 100 ohm", Price: "0.10", Currency: "USD", Qty: 50, ObservedAt: now},
		{SupplierID: "acme", PartNumber: "C-22", MPN: "C-22", Description: "capacitor 22pF", Price: "0.05", Currency: "USD", Qty: parts.QtyUnknown, ObservedAt: now},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	res, err := http.Get(ts.URL + "/api/parts?in_stock=true")
	if err != nil {
		t.Fatal(err)
	}
	var records []parts.Record
	err = json.NewDecoder(res.Body).Decode(&records)
	res.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].PartNumber != "R-100" {
		t.Errorf("in-stock filter returned %+v", records)
	}

	res, err = http.Get(ts.URL + "/api/match?part_number=R-100&top=1")
	if err != nil {
		t.Fatal(err)
	}
	var results []match.Result
	err = json.NewDecoder(res.Body).Decode(&results)
	res.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || !results[0].IsExact {
		t.Errorf("match returned %+v, want one exact hit", results)
	}

	res, err = http.Get(ts.URL + "/api/match")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("match without query: status = %d, want 400", res.StatusCode)
	}
}

func TestStrategyEndpoints(t *testing.T) {
	_, ts, _ := newTestServer(t)

	body := `{"search_url_template":"https://shop.example/?s={query}","container":"li.product","fields":{"part_number":".sku","price":".price"}}`
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/api/strategies/acme", bytes.NewReader([]byte(body)))
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var ver map[string]int
	err = json.NewDecoder(res.Body).Decode(&ver)
	res.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if ver["version"] != 1 {
		t.Errorf("version = %d, want 1", ver["version"])
	}

	res, err = http.Get(ts.URL + "/api/strategies/acme")
	if err != nil {
		t.Fatal(err)
	}
	var strategies []strategy.Strategy
	err = json.NewDecoder(res.Body).Decode(&strategies)
	res.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if len(strategies) != 1 || !strategies[0].Manual || strategies[0].Container != "li.product" {
		t.Errorf("strategies = %+v", strategies)
	}

	// Container is the one mandatory selector.
	req, _ = http.NewRequest(http.MethodPut, ts.URL+"/api/strategies/acme", bytes.NewReader([]byte(`{"fields":{}}`)))
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("missing container: status = %d, want 400", res.StatusCode)
	}
}

func TestBasicAuth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.Username = "ops"
	srv.Password = "hunter2"
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Errorf("no credentials: status = %d, want 401", res.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/stats", nil)
	req.SetBasicAuth("ops", "hunter2")
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("with credentials: status = %d, want 200", res.StatusCode)
	}
}
