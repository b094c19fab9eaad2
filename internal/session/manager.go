// Package session owns the live wizard controllers of a process and acts as
// their persistence collaborator.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rendis/listwizard/internal/legacy"
	"github.com/rendis/listwizard/internal/logging"
	"github.com/rendis/listwizard/internal/progress"
	"github.com/rendis/listwizard/internal/store"
	"github.com/rendis/listwizard/internal/streaming"
	"github.com/rendis/listwizard/internal/validation"
	"github.com/rendis/listwizard/internal/wizard"
	"github.com/rendis/listwizard/pkg/schema"
)

// Deps holds the dependencies for a Manager.
type Deps struct {
	Engine    *wizard.Engine
	Store     store.Store
	Events    wizard.EventAppender // defaults to Store
	Hub       streaming.EventHub   // optional
	Validator validation.Validator // required by Import
	Migrator  *legacy.Migrator     // required by Import
	Mode      wizard.Mode
	Delay     time.Duration
	Clock     clockwork.Clock
	Logger    *slog.Logger
}

// Session is one live controller and the draft it edits.
type Session struct {
	*wizard.Controller
	DraftID   string
	StartedAt time.Time

	// saveMu orders autosaves against the collaborator hand-offs.
	saveMu  sync.Mutex
	mu      sync.Mutex
	endedAt time.Time
}

// EndedAt returns when the session reached a terminal status, or the zero time.
func (s *Session) EndedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedAt
}

func (s *Session) markEnded(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endedAt.IsZero() {
		s.endedAt = t
	}
}

// StartRequest opens a session on a new or stored draft.
type StartRequest struct {
	DraftID string `json:"draft_id,omitempty"`
	StepID  string `json:"step_id,omitempty"`
}

// Manager keeps live sessions keyed by id.
type Manager struct {
	engine    *wizard.Engine
	store     store.Store
	events    wizard.EventAppender
	hub       streaming.EventHub
	validator validation.Validator
	migrator  *legacy.Migrator
	mode      wizard.Mode
	delay     time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a Manager. Engine and Store are required.
func NewManager(deps Deps) (*Manager, error) {
	if deps.Engine == nil || deps.Store == nil {
		return nil, schema.NewError(schema.ErrCodeConfig, "session manager needs an engine and a store")
	}
	m := &Manager{
		engine:    deps.Engine,
		store:     deps.Store,
		events:    deps.Events,
		hub:       deps.Hub,
		validator: deps.Validator,
		migrator:  deps.Migrator,
		mode:      deps.Mode,
		delay:     deps.Delay,
		clock:     deps.Clock,
		logger:    deps.Logger,
		sessions:  make(map[string]*Session),
	}
	if m.events == nil {
		m.events = deps.Store
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	m.logger = m.logger.With(slog.String("component", "session"))
	return m, nil
}

// Engine returns the shared wizard engine.
func (m *Manager) Engine() *wizard.Engine { return m.engine }

// Start opens a session. An empty DraftID creates a new draft. StepID, when
// set, overrides the draft's recorded step.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*Session, error) {
	var doc *schema.DraftRecord
	draftID := req.DraftID
	if draftID != "" {
		d, err := m.store.GetDraft(ctx, draftID)
		if err != nil {
			return nil, err
		}
		if d.Status == schema.DraftStatusSubmitted {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "draft %q is already submitted", draftID)
		}
		doc = d.Document
		if doc.LastStep == "" {
			doc.LastStep = d.LastStep
		}
	} else {
		draftID = uuid.NewString()
		doc = schema.NewDraftRecord(draftID)
		if err := m.store.SaveDraft(ctx, &store.Draft{ID: draftID, Document: doc}); err != nil {
			return nil, fmt.Errorf("create draft: %w", err)
		}
	}
	doc.ID = draftID

	sessionID := uuid.NewString()
	now := m.clock.Now()
	sess := &Session{DraftID: draftID, StartedAt: now}
	ctx = logging.WithIDs(ctx, sessionID, draftID, "")

	ctl, err := m.engine.NewController(ctx, wizard.Options{
		SessionID:       sessionID,
		InitialStepID:   req.StepID,
		InitialDraft:    doc,
		Mode:            m.mode,
		CompletionDelay: m.delay,
		Clock:           m.clock,
		Collaborator:    &collaborator{m: m, sess: sess},
		Observer:        wizard.ObserverFunc(m.stepChanged),
		Appender:        m.events,
		Celebrate:       func() { m.celebrate(sessionID, draftID) },
		Hooks:           func(fsm *wizard.SessionFSM) { m.trackEnd(fsm, sess) },
		Logger:          m.logger,
	})
	if err != nil {
		return nil, err
	}
	sess.Controller = ctl

	if err := m.store.UpsertSession(ctx, &store.Session{
		ID:          sessionID,
		DraftID:     draftID,
		Status:      schema.SessionStatusActive,
		CurrentStep: ctl.CurrentStepID(),
		StartedAt:   now,
	}); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[sessionID] = sess
	m.mu.Unlock()

	logging.LogWith(ctx, m.logger).Info("session started",
		slog.String("step_id", ctl.CurrentStepID()),
		slog.Bool("resumed", req.DraftID != ""),
	)
	return sess, nil
}

// Get returns a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "session %q not found", id)
	}
	return s, nil
}

// List returns live sessions ordered by start time.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// active returns sessions that are not terminal.
func (m *Manager) active() []*Session {
	var out []*Session
	for _, s := range m.List() {
		if !s.Status().Terminal() {
			out = append(out, s)
		}
	}
	return out
}

// --- drafts ---

// ListDrafts lists stored drafts, optionally by status.
func (m *Manager) ListDrafts(ctx context.Context, status schema.DraftStatus, limit int) ([]*store.Draft, error) {
	f := store.DraftFilter{Limit: limit}
	if status != "" {
		f.Status = &status
	}
	return m.store.ListDrafts(ctx, f)
}

// GetDraft returns a stored draft.
func (m *Manager) GetDraft(ctx context.Context, id string) (*store.Draft, error) {
	return m.store.GetDraft(ctx, id)
}

// DraftProgress builds the progress view of a stored draft.
func (m *Manager) DraftProgress(ctx context.Context, id string) (progress.View, error) {
	d, err := m.store.GetDraft(ctx, id)
	if err != nil {
		return progress.View{}, err
	}
	doc := d.Document
	if doc.LastStep == "" {
		doc.LastStep = d.LastStep
	}
	return m.engine.Progress(doc), nil
}

// DeleteDraft removes a stored draft that no live session is editing.
func (m *Manager) DeleteDraft(ctx context.Context, id string) error {
	if err := m.ensureClosed(id); err != nil {
		return err
	}
	return m.store.DeleteDraft(ctx, id)
}

// ensureClosed fails when a live session is editing the draft.
func (m *Manager) ensureClosed(draftID string) error {
	for _, s := range m.active() {
		if s.DraftID == draftID {
			return schema.NewErrorf(schema.ErrCodeInvalidTransition, "draft %q is open in session %s", draftID, s.SessionID()).
				WithDetails(map[string]any{"session_id": s.SessionID()})
		}
	}
	return nil
}

// Import upgrades, validates and stores a draft document. A document
// without an id gets a new one. An id naming a submitted draft or a draft
// open in a live session is refused.
func (m *Manager) Import(ctx context.Context, raw []byte) (*store.Draft, error) {
	if m.migrator == nil || m.validator == nil {
		return nil, schema.NewError(schema.ErrCodeConfig, "draft import is not configured")
	}
	doc, err := m.migrator.MigrateJSON(ctx, raw)
	if err != nil {
		return nil, err
	}
	if err := m.validator.ValidateDraft(doc); err != nil {
		return nil, err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	} else if err := m.checkOverwrite(ctx, doc.ID); err != nil {
		return nil, err
	}
	d := &store.Draft{ID: doc.ID, LastStep: doc.LastStep, Document: doc}
	if err := m.store.SaveDraft(ctx, d); err != nil {
		return nil, err
	}
	m.logger.Info("draft imported", slog.String("draft_id", d.ID), slog.Int("sections", len(doc.Sections)))
	return d, nil
}

func (m *Manager) checkOverwrite(ctx context.Context, id string) error {
	if err := m.ensureClosed(id); err != nil {
		return err
	}
	existing, err := m.store.GetDraft(ctx, id)
	if schema.CodeOf(err) == schema.ErrCodeNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.Status == schema.DraftStatusSubmitted {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition, "draft %q is already submitted", id).
			WithDetails(map[string]any{"draft_id": id, "status": string(existing.Status)})
	}
	return nil
}

// --- history ---

// SessionEvents returns the stored events of a session with a sequence
// above since. A non-empty eventType keeps only events of that type.
func (m *Manager) SessionEvents(ctx context.Context, sessionID string, since int64, eventType string) ([]*schema.Event, error) {
	if _, err := m.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	if eventType == "" {
		return m.store.GetEvents(ctx, sessionID, since)
	}
	events, err := m.store.GetEventsByType(ctx, eventType, store.EventFilter{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	out := events[:0]
	for _, e := range events {
		if e.Sequence > since {
			out = append(out, e)
		}
	}
	return out, nil
}

// DraftSessions lists the stored sessions of a draft, newest first.
func (m *Manager) DraftSessions(ctx context.Context, draftID string, limit int) ([]*store.Session, error) {
	return m.store.ListSessions(ctx, store.SessionFilter{DraftID: draftID, Limit: limit})
}

// SessionHistory is a stored session with the summary of its event log.
type SessionHistory struct {
	*store.Session
	Replay *store.SessionReplay `json:"replay,omitempty"`
}

// DraftHistory replays the event log of every stored session of a draft,
// newest first.
func (m *Manager) DraftHistory(ctx context.Context, draftID string) ([]SessionHistory, error) {
	if _, err := m.store.GetDraft(ctx, draftID); err != nil {
		return nil, err
	}
	rows, err := m.DraftSessions(ctx, draftID, 0)
	if err != nil {
		return nil, err
	}
	out := make([]SessionHistory, 0, len(rows))
	for _, row := range rows {
		events, err := m.store.GetEvents(ctx, row.ID, 0)
		if err != nil {
			return nil, err
		}
		h := SessionHistory{Session: row}
		if len(events) > 0 {
			if h.Replay, err = store.Replay(row.ID, events); err != nil {
				return nil, err
			}
		}
		out = append(out, h)
	}
	return out, nil
}

// --- maintenance ---

// Vacuum compacts the draft store.
func (m *Manager) Vacuum(ctx context.Context) error {
	if err := m.store.Vacuum(ctx); err != nil {
		return schema.NewError(schema.ErrCodeStore, "vacuum draft store").WithCause(err)
	}
	return nil
}

// AutosaveDirty persists every active session changed since its last save.
// It returns how many drafts were written.
func (m *Manager) AutosaveDirty(ctx context.Context) (int, error) {
	var (
		saved int
		errs  []error
	)
	for _, s := range m.active() {
		ok, err := m.autosave(ctx, s)
		if err != nil {
			errs = append(errs, fmt.Errorf("autosave %s: %w", s.SessionID(), err))
			continue
		}
		if ok {
			saved++
		}
	}
	return saved, errors.Join(errs...)
}

func (m *Manager) autosave(ctx context.Context, s *Session) (bool, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if s.Status().Terminal() || !s.Dirty() {
		return false, nil
	}
	doc, rev := s.Snapshot()
	if err := m.store.SaveDraft(ctx, &store.Draft{ID: s.DraftID, LastStep: doc.LastStep, Document: doc}); err != nil {
		return false, err
	}
	s.MarkSaved(rev)
	if err := m.store.UpsertSession(ctx, &store.Session{
		ID:          s.SessionID(),
		DraftID:     s.DraftID,
		Status:      s.Status(),
		CurrentStep: doc.LastStep,
		StartedAt:   s.StartedAt,
	}); err != nil {
		return true, err
	}
	ev := &schema.Event{
		SessionID: s.SessionID(),
		DraftID:   s.DraftID,
		StepID:    doc.LastStep,
		Type:      schema.EventDraftSaved,
		Timestamp: m.clock.Now(),
	}
	if err := m.events.AppendEvent(ctx, ev); err != nil {
		m.logger.Warn("append draft_saved failed", slog.String("session_id", s.SessionID()), slog.String("error", err.Error()))
	}
	return true, nil
}

// ExitIdle exits active sessions without activity for at least idle.
func (m *Manager) ExitIdle(ctx context.Context, idle time.Duration) (int, error) {
	now := m.clock.Now()
	var (
		exited int
		errs   []error
	)
	for _, s := range m.active() {
		if now.Sub(s.LastActivity()) < idle {
			continue
		}
		if err := s.Exit(ctx); err != nil && schema.CodeOf(err) != schema.ErrCodeInvalidTransition {
			errs = append(errs, err)
			continue
		}
		exited++
		m.logger.Info("idle session exited", slog.String("session_id", s.SessionID()))
	}
	return exited, errors.Join(errs...)
}

// Prune forgets terminal sessions that ended before cutoff.
func (m *Manager) Prune(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		ended := s.EndedAt()
		if !s.Status().Terminal() || ended.IsZero() || !ended.Before(cutoff) {
			continue
		}
		delete(m.sessions, id)
		n++
	}
	return n
}

// Close exits every active session, saving its draft.
func (m *Manager) Close(ctx context.Context) error {
	var errs []error
	for _, s := range m.active() {
		if err := s.Exit(ctx); err != nil && schema.CodeOf(err) != schema.ErrCodeInvalidTransition {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// --- controller callbacks ---

// trackEnd stamps the session's end time when its FSM reaches a terminal status.
func (m *Manager) trackEnd(fsm *wizard.SessionFSM, sess *Session) {
	ended := func(_, _ schema.SessionStatus) error {
		sess.markEnded(m.clock.Now())
		return nil
	}
	fsm.OnAfter(schema.SessionStatusCompleting, schema.SessionStatusCompleted, ended)
	fsm.OnAfter(schema.SessionStatusActive, schema.SessionStatusExited, ended)
	fsm.OnAfter(schema.SessionStatusCompleting, schema.SessionStatusExited, ended)
}

func (m *Manager) stepChanged(ctx context.Context, change wizard.StepChange) {
	m.publish(ctx, streaming.StreamEvent{
		SessionID: change.SessionID,
		StepID:    change.ToStep,
		EventType: schema.EventSessionState,
		Payload:   change,
		Timestamp: m.clock.Now(),
	})
}

func (m *Manager) celebrate(sessionID, draftID string) {
	m.publish(context.Background(), streaming.StreamEvent{
		SessionID: sessionID,
		DraftID:   draftID,
		EventType: schema.EventCelebrate,
		Timestamp: m.clock.Now(),
	})
}

func (m *Manager) publish(ctx context.Context, ev streaming.StreamEvent) {
	if m.hub == nil {
		return
	}
	if err := m.hub.Publish(ctx, ev); err != nil {
		m.logger.Debug("publish failed", slog.String("event_type", ev.EventType), slog.String("error", err.Error()))
	}
}
