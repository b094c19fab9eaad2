package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rendis/listwizard/internal/session"
	"github.com/rendis/listwizard/internal/streaming"
)

// sseSnapshot is the first frame of every session stream.
const sseSnapshot = "snapshot"

var heartbeatInterval = 15 * time.Second

// handleSSESession streams one session: a snapshot of its state and
// progress, then every event it emits. ?types=a,b narrows the stream.
func (s *Server) handleSSESession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if s.deps.Hub == nil {
		http.Error(w, "streaming not configured", http.StatusNotImplemented)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	filter := streaming.EventFilter{SessionID: sess.SessionID()}
	if types := r.URL.Query().Get("types"); types != "" {
		filter.EventTypes = strings.Split(types, ",")
	}
	// Subscribe before the snapshot so nothing between the two is lost.
	ch, cancel, err := s.deps.Hub.Subscribe(r.Context(), filter)
	if err != nil {
		s.deps.Logger.Error("SSE subscribe failed",
			slog.String("session_id", sess.SessionID()),
			slog.String("error", err.Error()))
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeFrame(w, sseSnapshot, snapshotOf(sess))
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, ok := <-ch:
			if !ok {
				return
			}
			writeFrame(w, event.EventType, event)
			flusher.Flush()
		}
	}
}

func snapshotOf(sess *session.Session) sessionResponse {
	return sessionResponse{State: sess.State(), Progress: sess.Progress()}
}

func writeFrame(w http.ResponseWriter, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}
