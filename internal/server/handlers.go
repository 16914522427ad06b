package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/partscope/partscope/pkg/match"
	"github.com/partscope/partscope/pkg/parts"
	"github.com/partscope/partscope/pkg/runner"
	"github.com/partscope/partscope/pkg/storage"
	"github.com/partscope/partscope/pkg/strategy"
)

type StartRunRequest struct {
	Work []parts.WorkItem `json:"work"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req StartRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runID, err := s.Runs.StartRun(r.Context(), req.Work)
	if err != nil {
		if errors.Is(err, runner.ErrEmptyWorkList) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"run_id": runID})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.Tracker.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, storage.ErrRunNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(run)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if !s.Runs.Cancel(runID) {
		// Unknown to the manager: either a bad ID or an already finished
		// run. Disambiguate through the store.
		if _, err := s.Tracker.Snapshot(r.Context(), runID); err != nil {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		http.Error(w, "run already finished", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleParts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := storage.QueryOptions{
		Search:       q.Get("search"),
		InStockOnly:  q.Get("in_stock") == "true",
		IncludeStale: q.Get("include_stale") == "true",
	}
	if supplier := q.Get("supplier"); supplier != "" {
		opts.Suppliers = []string{supplier}
	}
	if days, err := strconv.Atoi(q.Get("stale_days")); err == nil && days > 0 {
		opts.StaleAfter = time.Duration(days) * 24 * time.Hour
	}

	records, err := s.DB.QueryParts(r.Context(), opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []parts.Record{}
	}
	json.NewEncoder(w).Encode(records)
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := parts.Query{
		PartNumber:  q.Get("part_number"),
		Description: q.Get("description"),
	}
	if query.PartNumber == "" && query.Description == "" {
		http.Error(w, "part_number or description required", http.StatusBadRequest)
		return
	}

	topK := 5
	if n, err := strconv.Atoi(q.Get("top")); err == nil && n > 0 {
		topK = n
	}

	opts := storage.QueryOptions{InStockOnly: q.Get("in_stock") == "true"}
	if supplier := q.Get("supplier"); supplier != "" {
		opts.Suppliers = []string{supplier}
	}
	catalog, err := s.DB.QueryParts(r.Context(), opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	results := s.Matcher.Match(query, catalog, topK)
	if results == nil {
		results = []match.Result{}
	}
	json.NewEncoder(w).Encode(results)
}

func (s *Server) handleGetStrategies(w http.ResponseWriter, r *http.Request) {
	strategies, err := s.DB.ListStrategies(r.Context(), r.PathValue("supplier"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if strategies == nil {
		strategies = []strategy.Strategy{}
	}
	json.NewEncoder(w).Encode(strategies)
}

type SetStrategyRequest struct {
	SearchURLTemplate string                  `json:"search_url_template"`
	Container         string                  `json:"container"`
	Fields            strategy.FieldSelectors `json:"fields"`
}

// handleSetStrategy installs a manual override; it displaces any active
// strategy, auto-detected or manual.
func (s *Server) handleSetStrategy(w http.ResponseWriter, r *http.Request) {
	var req SetStrategyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Container == "" {
		http.Error(w, "container selector required", http.StatusBadRequest)
		return
	}

	st := strategy.Manual(r.PathValue("supplier"), req.SearchURLTemplate, req.Container, req.Fields)
	version, err := s.DB.SetStrategy(r.Context(), st)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]int{"version": version})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.DB.CountParts(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total_parts": total,
		"by_supplier": counts,
	})
}
