// Package server exposes a read-only localhost status API. The queue itself
// is never network-exposed: there is no enqueue route, only inspection.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dean0x/devlog/internal/memory"
	"github.com/dean0x/devlog/internal/queue"
)

// Server is the devlog status HTTP server.
type Server struct {
	queue   *queue.Queue
	memory  *memory.Store
	router  chi.Router
	version string
	started time.Time
}

// New creates a Server over the queue and memory store.
func New(q *queue.Queue, m *memory.Store, version string) *Server {
	s := &Server{
		queue:   q,
		memory:  m,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/memory/short-term", s.handleShortTerm)
		r.Get("/memory/long-term", s.handleLongTerm)
		r.Get("/candidates", s.handleCandidates)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.queue.GetStats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleShortTerm(w http.ResponseWriter, r *http.Request) {
	entries, skipped, err := s.memory.ReadShortTerm()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entriesOrEmpty(entries),
		"skipped": skipped,
	})
}

func (s *Server) handleLongTerm(w http.ResponseWriter, r *http.Request) {
	entries, skipped, err := s.memory.ReadLongTerm()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entriesOrEmpty(entries),
		"skipped": skipped,
	})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	cands, err := s.memory.ReadCandidates()
	if err != nil {
		writeError(w, err)
		return
	}
	if cands == nil {
		cands = []memory.Candidate{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": cands})
}

func entriesOrEmpty(entries []memory.Entry) []memory.Entry {
	if entries == nil {
		return []memory.Entry{}
	}
	return entries
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
