package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rendis/listwizard/pkg/schema"
)

// EventLog is the serialized append side of the event log on top of a
// LibSQLStore. It satisfies the wizard's EventAppender.
type EventLog struct {
	store *LibSQLStore
}

// NewEventLog wraps a LibSQLStore to provide event-sourcing operations.
func NewEventLog(s *LibSQLStore) *EventLog {
	return &EventLog{store: s}
}

// AppendEvent appends an event with a monotonically increasing per-session sequence.
func (el *EventLog) AppendEvent(ctx context.Context, event *schema.Event) error {
	tx, err := el.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// In WAL mode BeginTx may start a deferred transaction; a write takes the
	// lock before the sequence is read.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM schema_version WHERE version = -1`); err != nil {
		return fmt.Errorf("cleanup write lock: %w", err)
	}

	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// SessionReplay is the session summary reconstructed from its events.
type SessionReplay struct {
	SessionID string               `json:"session_id"`
	DraftID   string               `json:"draft_id,omitempty"`
	Status    schema.SessionStatus `json:"status"`
	Answers   map[string]int       `json:"answers"`
	Cleared   []string             `json:"cleared,omitempty"`
	LastStep  string               `json:"last_step,omitempty"`
	Events    int                  `json:"events"`
}

// Replay folds the ordered events of one session into a summary. It fails
// when the sequence has gaps.
func Replay(sessionID string, events []*schema.Event) (*SessionReplay, error) {
	if len(events) == 0 {
		return nil, storeNotFound("session events", sessionID)
	}
	r := &SessionReplay{
		SessionID: sessionID,
		Status:    schema.SessionStatusActive,
		Answers:   make(map[string]int),
		Events:    len(events),
	}

	for i, e := range events {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in session %s: expected %d, got %d", sessionID, expected, e.Sequence)
		}
		if e.DraftID != "" {
			r.DraftID = e.DraftID
		}
		if e.StepID != "" {
			r.LastStep = e.StepID
		}

		switch e.Type {
		case schema.EventStepAnswered:
			r.Answers[e.StepID]++
		case schema.EventFieldsCleared:
			var p struct {
				Steps []string `json:"steps"`
			}
			if json.Unmarshal(e.Payload, &p) == nil {
				r.Cleared = append(r.Cleared, p.Steps...)
			}
		case schema.EventCompletionBegan:
			r.Status = schema.SessionStatusCompleting
		case schema.EventCompletionAbort:
			r.Status = schema.SessionStatusActive
		case schema.EventSessionCompleted:
			r.Status = schema.SessionStatusCompleted
		case schema.EventSessionExited:
			r.Status = schema.SessionStatusExited
		}
	}
	return r, nil
}
