package store

import (
	"time"

	"github.com/rendis/listwizard/pkg/schema"
)

// Draft is the persisted representation of a listing draft.
type Draft struct {
	ID          string              `json:"id"`
	Status      schema.DraftStatus  `json:"status"`
	LastStep    string              `json:"last_step,omitempty"`
	Document    *schema.DraftRecord `json:"document"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	SubmittedAt *time.Time          `json:"submitted_at,omitempty"`
}

// Session is the persisted record of one wizard session.
type Session struct {
	ID          string               `json:"id"`
	DraftID     string               `json:"draft_id"`
	Status      schema.SessionStatus `json:"status"`
	CurrentStep string               `json:"current_step,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	EndedAt     *time.Time           `json:"ended_at,omitempty"`
}

// DraftFilter specifies criteria for listing drafts.
type DraftFilter struct {
	Status *schema.DraftStatus `json:"status,omitempty"`
	Since  *time.Time          `json:"since,omitempty"`
	Limit  int                 `json:"limit,omitempty"`
	Offset int                 `json:"offset,omitempty"`
}

// SessionFilter specifies criteria for listing sessions.
type SessionFilter struct {
	DraftID string                `json:"draft_id,omitempty"`
	Status  *schema.SessionStatus `json:"status,omitempty"`
	Limit   int                   `json:"limit,omitempty"`
}

// EventFilter specifies criteria for querying events.
type EventFilter struct {
	SessionID string     `json:"session_id,omitempty"`
	DraftID   string     `json:"draft_id,omitempty"`
	StepID    string     `json:"step_id,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}
