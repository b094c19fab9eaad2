package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/listwizard/internal/streaming"
	"github.com/rendis/listwizard/pkg/schema"
)

// notifiedEvents are forwarded to the client that owns the session.
var notifiedEvents = []string{
	schema.EventCelebrate,
	schema.EventAutoAdvance,
	schema.EventSessionCompleted,
	schema.EventSessionExited,
}

// ClientNotifier pushes a payload to one MCP client session.
type ClientNotifier interface {
	SendNotificationToSpecificClient(sessionID, method string, params map[string]any) error
}

// Notifier forwards wizard session events as MCP notifications.
type Notifier struct {
	sender  ClientNotifier
	clients *SessionRegistry
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that pushes through sender.
func NewNotifier(sender ClientNotifier, clients *SessionRegistry, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, clients: clients, logger: logger}
}

// Forward subscribes to hub and delivers events until ctx is done.
func (n *Notifier) Forward(ctx context.Context, hub streaming.EventHub) error {
	ch, cancel, err := hub.Subscribe(ctx, streaming.EventFilter{EventTypes: notifiedEvents})
	if err != nil {
		return err
	}
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				if err := n.Notify(ev); err != nil {
					n.logger.Warn("notify client", slog.String("session_id", ev.SessionID), slog.String("error", err.Error()))
				}
			}
		}
	}()
	return nil
}

// Notify sends one event to the client owning its session.
// Best-effort: returns nil if the client is not connected.
func (n *Notifier) Notify(ev streaming.StreamEvent) error {
	clientID, ok := n.clients.ClientFor(ev.SessionID)
	if !ok {
		return nil
	}
	payload := map[string]any{
		"level":  "info",
		"logger": "listwizard",
		"data": map[string]any{
			"session_id": ev.SessionID,
			"step_id":    ev.StepID,
			"event_type": ev.EventType,
		},
	}
	err := n.sender.SendNotificationToSpecificClient(clientID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		n.clients.Remove(clientID)
		return nil
	}
	if err == nil && (ev.EventType == schema.EventSessionCompleted || ev.EventType == schema.EventSessionExited) {
		n.clients.Forget(ev.SessionID)
	}
	return err
}
