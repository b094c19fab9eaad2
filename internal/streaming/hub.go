// Package streaming fans wizard session events out to live subscribers,
// such as SSE clients following a session.
package streaming

import (
	"context"
	"time"

	"github.com/rendis/listwizard/pkg/schema"
)

// StreamEvent is a real-time event emitted by a wizard session.
type StreamEvent struct {
	SessionID string    `json:"session_id"`
	DraftID   string    `json:"draft_id,omitempty"`
	StepID    string    `json:"step_id,omitempty"`
	EventType string    `json:"event_type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	SessionID  string   `json:"session_id,omitempty"`
	DraftID    string   `json:"draft_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for real-time session events.
type EventHub interface {
	Publish(ctx context.Context, event StreamEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StreamEvent, func(), error)
}

// EventAppender is the write side of the session event log.
type EventAppender interface {
	AppendEvent(ctx context.Context, event *schema.Event) error
}

// Tee appends each event to the durable log and then publishes it.
// A nil log only publishes.
type Tee struct {
	Log EventAppender
	Hub EventHub
}

func (t Tee) AppendEvent(ctx context.Context, event *schema.Event) error {
	if t.Log != nil {
		if err := t.Log.AppendEvent(ctx, event); err != nil {
			return err
		}
	}
	if t.Hub == nil {
		return nil
	}
	return t.Hub.Publish(ctx, FromEvent(event))
}

// FromEvent converts a log event to a stream event.
func FromEvent(e *schema.Event) StreamEvent {
	se := StreamEvent{
		SessionID: e.SessionID,
		DraftID:   e.DraftID,
		StepID:    e.StepID,
		EventType: e.Type,
		Timestamp: e.Timestamp,
	}
	if len(e.Payload) > 0 {
		se.Payload = e.Payload
	}
	return se
}
