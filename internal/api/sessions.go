package api

import (
	"net/http"

	"github.com/rendis/listwizard/internal/progress"
	"github.com/rendis/listwizard/internal/session"
	"github.com/rendis/listwizard/internal/wizard"
	"github.com/rendis/listwizard/pkg/schema"
)

// sessionResponse is the state of a session plus its progress view.
type sessionResponse struct {
	wizard.State
	Progress progress.View `json:"progress"`
}

func respondSession(w http.ResponseWriter, status int, s *session.Session) {
	writeJSON(w, status, snapshotOf(s))
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	cat := s.deps.Sessions.Engine().Catalog
	writeJSON(w, http.StatusOK, map[string]any{
		"version":  cat.Version(),
		"sections": cat.Sections(),
		"steps":    cat.Steps(),
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	list := s.deps.Sessions.List()
	out := make([]wizard.State, 0, len(list))
	for _, sess := range list {
		out = append(out, sess.State())
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req session.StartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.deps.Sessions.Start(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	respondSession(w, http.StatusCreated, sess)
}

// withSession resolves the {id} path value to a live session.
func (s *Server) withSession(fn func(w http.ResponseWriter, r *http.Request, sess *session.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.deps.Sessions.Get(r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		fn(w, r, sess)
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	respondSession(w, http.StatusOK, sess)
}

func (s *Server) handleSessionProgress(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, sess.Progress())
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var body struct {
		StepID string `json:"step_id"`
		Value  any    `json:"value"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if body.StepID == "" {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "step_id is required"))
		return
	}
	if err := sess.Answer(r.Context(), body.StepID, body.Value); err != nil {
		writeError(w, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.Next(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.Previous(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var body struct {
		StepID string `json:"step_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if _, err := sess.JumpTo(r.Context(), body.StepID); err != nil {
		writeError(w, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}

func (s *Server) handleExit(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := sess.Exit(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	respondSession(w, http.StatusOK, sess)
}

// handleSessionEvents reads the stored event log of a live or finished
// session. ?since=<sequence> and ?type=<event type> narrow it.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	since := int64(queryInt(r, "since", 0))
	events, err := s.deps.Sessions.SessionEvents(r.Context(), r.PathValue("id"), since, r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []*schema.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
