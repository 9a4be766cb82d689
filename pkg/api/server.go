// Package api exposes the HTTP surface: auth bootstrap, host registry,
// scan lifecycle, reports, diffs and free-text search.
package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"driftwatch/pkg/scan"
	"driftwatch/pkg/search"
	"driftwatch/pkg/store"
	"driftwatch/pkg/version"
)

type Server struct {
	store    store.Store
	orch     *scan.Orchestrator
	searcher *search.Searcher
	log      zerolog.Logger
}

func NewServer(st store.Store, orch *scan.Orchestrator, searcher *search.Searcher, log zerolog.Logger) *Server {
	return &Server{
		store:    st,
		orch:     orch,
		searcher: searcher,
		log:      log.With().Str("component", "api").Logger(),
	}
}

// Handler wires all routes. Auth bootstrap endpoints are public; everything
// else requires a bearer token.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /token", s.handleToken)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("GET /users/count", s.handleUsersCount)

	mux.Handle("GET /users/me", s.requireAuth(s.handleMe))
	mux.Handle("GET /hosts", s.requireAuth(s.handleListHosts))
	mux.Handle("POST /hosts", s.requireAuth(s.handleCreateHost))
	mux.Handle("DELETE /hosts/{id}", s.requireAuth(s.handleDeleteHost))
	mux.Handle("POST /hosts/{id}/scan", s.requireAuth(s.handleTriggerScan))
	mux.Handle("GET /hosts/{id}/scans", s.requireAuth(s.handleListScans))
	mux.Handle("GET /scans/{id}", s.requireAuth(s.handleGetScan))
	mux.Handle("GET /scans/{id}/diff", s.requireAuth(s.handleScanDiff))
	mux.Handle("GET /search", s.requireAuth(s.handleSearch))

	return s.requestLogger(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "online",
		"message": "driftwatch API is running",
		"version": version.Build,
	})
}
