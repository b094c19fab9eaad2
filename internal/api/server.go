// Package api exposes wizard sessions and stored drafts over HTTP, with a
// server-sent event stream per session.
package api

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/rendis/listwizard/internal/session"
	"github.com/rendis/listwizard/internal/streaming"
)

// Deps holds the dependencies for the API server.
type Deps struct {
	Sessions *session.Manager
	Hub      streaming.EventHub
	Logger   *slog.Logger
}

// Server serves the wizard HTTP API.
type Server struct {
	deps Deps
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	deps.Logger = deps.Logger.With(slog.String("component", "api"))
	return &Server{deps: deps}
}

// Handler returns the HTTP handler for the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)

	// Sessions.
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleStartSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.withSession(s.handleGetSession))
	mux.HandleFunc("GET /api/sessions/{id}/progress", s.withSession(s.handleSessionProgress))
	mux.HandleFunc("POST /api/sessions/{id}/answer", s.withSession(s.handleAnswer))
	mux.HandleFunc("POST /api/sessions/{id}/next", s.withSession(s.handleNext))
	mux.HandleFunc("POST /api/sessions/{id}/previous", s.withSession(s.handlePrevious))
	mux.HandleFunc("POST /api/sessions/{id}/jump", s.withSession(s.handleJump))
	mux.HandleFunc("POST /api/sessions/{id}/exit", s.withSession(s.handleExit))
	mux.HandleFunc("GET /api/sessions/{id}/events", s.handleSessionEvents)

	// Drafts.
	mux.HandleFunc("GET /api/drafts", s.handleListDrafts)
	mux.HandleFunc("POST /api/drafts", s.handleImportDraft)
	mux.HandleFunc("GET /api/drafts/{id}", s.handleGetDraft)
	mux.HandleFunc("GET /api/drafts/{id}/progress", s.handleDraftProgress)
	mux.HandleFunc("GET /api/drafts/{id}/history", s.handleDraftHistory)
	mux.HandleFunc("DELETE /api/drafts/{id}", s.handleDeleteDraft)

	// SSE streams.
	mux.HandleFunc("GET /sse/sessions/{id}", s.handleSSESession)

	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.deps.Logger.Debug("request", slog.String("method", r.Method), slog.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
