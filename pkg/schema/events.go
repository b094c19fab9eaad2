package schema

import (
	"encoding/json"
	"time"
)

// Event type constants for the session event log.
const (
	EventSessionStarted   = "session_started"
	EventSessionResumed   = "session_resumed"
	EventSessionCompleted = "session_completed"
	EventSessionExited    = "session_exited"

	EventStepAnswered    = "step_answered"
	EventStepChanged     = "step_changed"
	EventAutoAdvance     = "auto_advance_scheduled"
	EventCompletionBegan = "completion_began"
	EventCompletionAbort = "completion_cancelled"
	EventFieldsCleared   = "fields_cleared"
	EventDraftSaved      = "draft_saved"

	// Stream-only events, published to live subscribers but not logged.
	EventSessionState = "session_state"
	EventCelebrate    = "celebrate"
)

// SessionStatus represents the lifecycle state of a wizard session.
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusCompleting SessionStatus = "completing"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusExited     SessionStatus = "exited"
)

// Terminal reports whether no further transitions are possible.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusExited
}

// DraftStatus is the persisted status of a draft record.
type DraftStatus string

const (
	DraftStatusInProgress DraftStatus = "draft"
	DraftStatusSubmitted  DraftStatus = "submitted"
)

// Event is one entry of the append-only session event log.
type Event struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	DraftID   string          `json:"draft_id,omitempty"`
	StepID    string          `json:"step_id,omitempty"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}
