package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/caretrace/caretrace/internal/affect"
	"github.com/caretrace/caretrace/internal/engagement"
	"github.com/caretrace/caretrace/internal/memory"
	"github.com/caretrace/caretrace/internal/risk"
	"github.com/caretrace/caretrace/internal/scheduler"
	"github.com/caretrace/caretrace/internal/store"
	"github.com/caretrace/caretrace/internal/worker"
)

// Deps holds everything the API surface needs. Pool and Sched may be nil in
// tests; the affected routes respond 503.
type Deps struct {
	DB          *store.DB
	Risk        *risk.Service
	Memory      *memory.Service
	Engagements *engagement.Service
	Detector    affect.Detector
	Pool        *worker.Pool
	Sched       *scheduler.Scheduler
	Version     string
}

// Server is the caretrace HTTP API server.
type Server struct {
	deps    Deps
	router  chi.Router
	started time.Time
}

// New creates a new Server.
func New(deps Deps) *Server {
	s := &Server{
		deps:    deps,
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

		r.Post("/events", s.handleIngestEvent)

		r.Route("/subjects/{subjectID}", func(r chi.Router) {
			r.Get("/score", s.handleLatestScore)
			r.Get("/score/history", s.handleScoreHistory)
			r.Post("/score", s.handleTriggerScore)
			r.Get("/score/live", s.handleLiveScore)

			r.Post("/memories", s.handleRemember)
			r.Post("/memories/search", s.handleSearchMemories)
		})

		r.Get("/engagements", s.handleListEngagements)
		r.Route("/engagements/{engagementID}", func(r chi.Router) {
			r.Get("/", s.handleGetEngagement)
			r.Post("/offer", s.transitionHandler(engagement.StateOffered))
			r.Post("/accept", s.transitionHandler(engagement.StateAccepted))
			r.Post("/decline", s.transitionHandler(engagement.StateDeclined))
			r.Post("/complete", s.transitionHandler(engagement.StateCompleted))
			r.Post("/fail", s.transitionHandler(engagement.StateFailed))
			r.Post("/escalate", s.handleEscalate)
		})

		r.Post("/followups/run", s.handleRunFollowUps)
		r.Post("/cleanup/run", s.handleRunCleanup)
		r.Get("/tasks", s.handleTaskStatuses)
		r.Get("/deadletters", s.handleDeadLetters)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.deps.DB.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.deps.Version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeUnavailable is the user-visible shape for dependency failures: a
// clear "temporarily unavailable", never a stack trace.
func writeUnavailable(w http.ResponseWriter) {
	writeError(w, http.StatusServiceUnavailable, "temporarily unavailable")
}
