package wizard

import (
	"context"
	"slices"
	"sync"

	"github.com/rendis/listwizard/pkg/schema"
)

// TransitionHook is called after a session state transition.
type TransitionHook func(from, to schema.SessionStatus) error

// EventAppender receives the session event log. The draft store satisfies it.
type EventAppender interface {
	AppendEvent(ctx context.Context, event *schema.Event) error
}

type nopAppender struct{}

func (nopAppender) AppendEvent(context.Context, *schema.Event) error { return nil }

type hookKey struct {
	from, to schema.SessionStatus
}

// ValidSessionTransitions defines the allowed session state transitions.
var ValidSessionTransitions = map[schema.SessionStatus][]schema.SessionStatus{
	schema.SessionStatusActive:     {schema.SessionStatusCompleting, schema.SessionStatusExited},
	schema.SessionStatusCompleting: {schema.SessionStatusCompleted, schema.SessionStatusActive, schema.SessionStatusExited},
	schema.SessionStatusCompleted:  {},
	schema.SessionStatusExited:     {},
}

// SessionFSM validates session lifecycle transitions and emits an event for each.
type SessionFSM struct {
	mu       sync.Mutex
	appender EventAppender
	after    map[hookKey][]TransitionHook
}

// NewSessionFSM creates a SessionFSM that emits events via the given appender.
func NewSessionFSM(appender EventAppender) *SessionFSM {
	if appender == nil {
		appender = nopAppender{}
	}
	return &SessionFSM{
		appender: appender,
		after:    make(map[hookKey][]TransitionHook),
	}
}

// OnAfter registers a hook called after the transition's event is stored.
// A hook error is returned to the caller and leaves its status unchanged.
func (f *SessionFSM) OnAfter(from, to schema.SessionStatus, hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := hookKey{from, to}
	f.after[key] = append(f.after[key], hook)
}

// Transition validates and executes a session state transition.
// The caller owns the status field and updates it only when this returns nil.
func (f *SessionFSM) Transition(ctx context.Context, ev schema.Event, from, to schema.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !IsValidTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid session transition: %s -> %s", from, to).
			WithDetails(map[string]any{"session_id": ev.SessionID, "from": string(from), "to": string(to)})
	}

	if eventType := sessionEventType(from, to); eventType != "" {
		ev.Type = eventType
		if err := f.appender.AppendEvent(ctx, &ev); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "emit session event: %s", err.Error()).
				WithStep(ev.StepID).WithCause(err)
		}
	}

	for _, hook := range f.after[hookKey{from, to}] {
		if err := hook(from, to); err != nil {
			return err
		}
	}
	return nil
}

// IsValidTransition reports whether the transition table allows from -> to.
func IsValidTransition(from, to schema.SessionStatus) bool {
	allowed, ok := ValidSessionTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(allowed, to)
}

func sessionEventType(from, to schema.SessionStatus) string {
	switch to {
	case schema.SessionStatusCompleting:
		return schema.EventCompletionBegan
	case schema.SessionStatusCompleted:
		return schema.EventSessionCompleted
	case schema.SessionStatusExited:
		return schema.EventSessionExited
	case schema.SessionStatusActive:
		if from == schema.SessionStatusCompleting {
			return schema.EventCompletionAbort
		}
	}
	return ""
}
