// Package server exposes the scraping and matching pipeline over a small
// JSON API, meant for a local dashboard or scripting against a long-running
// instance.
package server

import (
	"log"
	"net/http"

	"github.com/partscope/partscope/pkg/match"
	"github.com/partscope/partscope/pkg/progress"
	"github.com/partscope/partscope/pkg/runner"
	"github.com/partscope/partscope/pkg/storage"
)

type Server struct {
	DB       *storage.DB
	Tracker  *progress.Tracker
	Runs     *runner.Manager
	Matcher  match.Engine
	Username string
	Password string
}

func New(db *storage.DB, tracker *progress.Tracker, runs *runner.Manager, matcher match.Engine, user, pass string) *Server {
	return &Server{
		DB:       db,
		Tracker:  tracker,
		Runs:     runs,
		Matcher:  matcher,
		Username: user,
		Password: pass,
	}
}

// Handler builds the route table. Split from Start so tests can drive the
// API through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/runs", s.basicAuth(s.handleStartRun))
	mux.HandleFunc("GET /api/runs/{id}", s.basicAuth(s.handleGetRun))
	mux.HandleFunc("DELETE /api/runs/{id}", s.basicAuth(s.handleCancelRun))
	mux.HandleFunc("GET /api/parts", s.basicAuth(s.handleParts))
	mux.HandleFunc("GET /api/match", s.basicAuth(s.handleMatch))
	mux.HandleFunc("GET /api/strategies/{supplier}", s.basicAuth(s.handleGetStrategies))
	mux.HandleFunc("PUT /api/strategies/{supplier}", s.basicAuth(s.handleSetStrategy))
	mux.HandleFunc("GET /api/stats", s.basicAuth(s.handleStats))

	return mux
}

func (s *Server) Start(addr string) error {
	log.Printf("Starting server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) basicAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Username == "" && s.Password == "" {
			next(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.Username || pass != s.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
