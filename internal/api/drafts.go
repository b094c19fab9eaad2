package api

import (
	"io"
	"net/http"

	"github.com/rendis/listwizard/pkg/schema"
)

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	status := schema.DraftStatus(r.URL.Query().Get("status"))
	switch status {
	case "", schema.DraftStatusInProgress, schema.DraftStatusSubmitted:
	default:
		writeError(w, schema.NewErrorf(schema.ErrCodeValidation, "unknown draft status %q", status))
		return
	}
	drafts, err := s.deps.Sessions.ListDrafts(r.Context(), status, queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

func (s *Server) handleImportDraft(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "read body").WithCause(err))
		return
	}
	d, err := s.deps.Sessions.Import(r.Context(), raw)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	d, err := s.deps.Sessions.GetDraft(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleDraftProgress(w http.ResponseWriter, r *http.Request) {
	v, err := s.deps.Sessions.DraftProgress(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDraftHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := s.deps.Sessions.DraftHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": hist})
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Sessions.DeleteDraft(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"ok": "true", "draft_id": id})
}
