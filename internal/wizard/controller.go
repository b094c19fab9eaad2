// Package wizard drives one listing wizard session: it positions itself in
// the visible step list, applies answers to the draft, schedules the
// auto-advance and completion transitions, and hands the draft to a
// collaborator on exit or completion.
package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rendis/listwizard/internal/catalog"
	"github.com/rendis/listwizard/internal/completion"
	"github.com/rendis/listwizard/internal/filter"
	"github.com/rendis/listwizard/internal/legacy"
	"github.com/rendis/listwizard/internal/logging"
	"github.com/rendis/listwizard/internal/progress"
	"github.com/rendis/listwizard/pkg/schema"
)

// Auto-advance and completion delays.
const (
	SelectDelay            = 200 * time.Millisecond
	ChoiceDelay            = 300 * time.Millisecond
	AddressDelay           = 150 * time.Millisecond
	DefaultCompletionDelay = 800 * time.Millisecond
)

// Mode selects how configuration errors such as unknown step ids surface.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ParseMode parses a configured mode. The empty string is development.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeDevelopment:
		return ModeDevelopment, nil
	case ModeProduction:
		return ModeProduction, nil
	}
	return "", schema.NewErrorf(schema.ErrCodeConfig, "unknown mode %q", s)
}

// Collaborator persists drafts on behalf of the controller.
type Collaborator interface {
	// Complete receives the final draft. It is called at most once per controller.
	Complete(ctx context.Context, d *schema.DraftRecord) error
	// SaveDraft receives a partial draft and the raw step id to resume at.
	SaveDraft(ctx context.Context, d *schema.DraftRecord, rawStepID string) error
}

// StepChange describes one controller transition.
type StepChange struct {
	SessionID string               `json:"session_id"`
	Reason    string               `json:"reason"`
	FromStep  string               `json:"from_step,omitempty"`
	ToStep    string               `json:"to_step,omitempty"`
	FromIndex int                  `json:"from_index"`
	ToIndex   int                  `json:"to_index"`
	Status    schema.SessionStatus `json:"status"`
}

// Observer is notified after every transition.
type Observer interface {
	StepChanged(ctx context.Context, change StepChange)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, change StepChange)

func (f ObserverFunc) StepChanged(ctx context.Context, change StepChange) { f(ctx, change) }

// Transition reasons carried by StepChange.
const (
	ReasonStart    = "start"
	ReasonAnswer   = "answer"
	ReasonNext     = "next"
	ReasonPrevious = "previous"
	ReasonJump     = "jump"
	ReasonAuto     = "auto_advance"
	ReasonComplete = "complete"
	ReasonExit     = "exit"
)

// Engine bundles the immutable parts shared by every controller.
type Engine struct {
	Catalog    *catalog.Catalog
	Filter     *filter.Filter
	Completion *completion.Set
	Resolver   *legacy.Resolver
}

// NewEngine compiles the filter rules and completion predicates for cat.
func NewEngine(cat *catalog.Catalog, logger *slog.Logger) (*Engine, error) {
	f, err := filter.New(cat, logger)
	if err != nil {
		return nil, err
	}
	set, err := completion.New(cat, logger)
	if err != nil {
		return nil, err
	}
	opts := []legacy.Option{}
	if logger != nil {
		opts = append(opts, legacy.WithLogger(logger))
	}
	r, err := legacy.NewResolver(cat.FirstSection(), cat.Known, opts...)
	if err != nil {
		return nil, err
	}
	return &Engine{Catalog: cat, Filter: f, Completion: set, Resolver: r}, nil
}

// Progress builds the progress view for a draft with no live controller.
func (e *Engine) Progress(d *schema.DraftRecord) progress.View {
	return progress.Build(progress.Input{
		Catalog:    e.Catalog,
		Completion: e.Completion,
		Resolver:   e.Resolver,
		Draft:      d,
		Visible:    e.Filter.Visible(d),
		CurrentRaw: d.LastStep,
	})
}

// Options configures a Controller. Only Engine-independent fields live here.
type Options struct {
	SessionID       string
	InitialStepID   string
	InitialDraft    *schema.DraftRecord
	Mode            Mode
	CompletionDelay time.Duration
	Clock           clockwork.Clock
	Collaborator    Collaborator
	Observer        Observer
	Appender        EventAppender
	// Hooks registers lifecycle hooks on the session FSM before the
	// controller emits its start event.
	Hooks func(fsm *SessionFSM)
	// Celebrate is fired without waiting when the last step's Next is invoked.
	Celebrate func()
	Logger    *slog.Logger
}

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingAdvance
	pendingComplete
)

func (p pendingKind) String() string {
	switch p {
	case pendingAdvance:
		return "advance"
	case pendingComplete:
		return "complete"
	default:
		return ""
	}
}

// Controller is the state machine for one wizard session.
type Controller struct {
	mu sync.Mutex

	engine    *Engine
	sessionID string
	mode      Mode
	delay     time.Duration
	clock     clockwork.Clock
	collab    Collaborator
	observer  Observer
	appender  EventAppender
	celebrate func()
	logger    *slog.Logger
	fsm       *SessionFSM
	baseCtx   context.Context

	draft        *schema.DraftRecord
	visible      []schema.StepDefinition
	index        int
	status       schema.SessionStatus
	timer        clockwork.Timer
	gen          uint64
	pending      pendingKind
	revision     uint64
	savedRev     uint64
	lastActivity time.Time

	effects []func()
}

// NewController creates a controller positioned at opts.InitialStepID, which
// may be a legacy alias or a section id.
func (e *Engine) NewController(ctx context.Context, opts Options) (*Controller, error) {
	mode := opts.Mode
	if mode == "" {
		mode = ModeDevelopment
	}
	delay := opts.CompletionDelay
	if delay <= 0 {
		delay = DefaultCompletionDelay
	}
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	appender := opts.Appender
	if appender == nil {
		appender = nopAppender{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	logger = logger.With(slog.String("component", "wizard"))

	draft := opts.InitialDraft.Clone()
	resumed := draft != nil && (len(draft.Sections) > 0 || draft.LastStep != "")
	if draft == nil {
		draft = schema.NewDraftRecord("")
	}
	if draft.Sections == nil {
		draft.Sections = make(map[string]schema.Section)
	}

	c := &Controller{
		engine:       e,
		sessionID:    opts.SessionID,
		mode:         mode,
		delay:        delay,
		clock:        clock,
		collab:       opts.Collaborator,
		observer:     opts.Observer,
		appender:     appender,
		celebrate:    opts.Celebrate,
		logger:       logger,
		fsm:          NewSessionFSM(appender),
		baseCtx:      logging.WithIDs(context.Background(), opts.SessionID, draft.ID, ""),
		draft:        draft,
		status:       schema.SessionStatusActive,
		lastActivity: clock.Now(),
	}
	if opts.Hooks != nil {
		opts.Hooks(c.fsm)
	}

	raw := opts.InitialStepID
	if raw == "" && resumed {
		raw = draft.LastStep
	}
	c.refresh()
	c.index = c.locate(e.Resolver.ResolveOrFirst(raw))

	eventType := schema.EventSessionStarted
	if resumed {
		eventType = schema.EventSessionResumed
	}
	start := c.event(eventType, c.currentID(), map[string]any{
		"raw_step_id": raw,
		"index":       c.index,
	})
	if err := c.appender.AppendEvent(ctx, &start); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "emit session start event").WithCause(err)
	}

	c.mu.Lock()
	c.notify(ctx, ReasonStart, c.index, c.index)
	c.unlock()
	return c, nil
}

// Answer writes value into the step's draft field, clears dependent
// conditional answers that became hidden, and schedules auto-advance when
// the answered step is the current one.
func (c *Controller) Answer(ctx context.Context, stepID string, value any) error {
	c.mu.Lock()
	defer c.unlock()

	if err := c.guard(stepID); err != nil {
		return err
	}
	c.cancelPending(ctx)
	step, ok := c.engine.Catalog.Get(stepID)
	if !ok {
		return c.unknownStep(ctx, stepID)
	}
	if err := validateAnswer(step, value); err != nil {
		return err
	}
	if !c.engine.Filter.IsVisible(step.ID, c.draft) {
		return schema.NewErrorf(schema.ErrCodeValidation, "step %q is not visible", step.ID).WithStep(step.ID)
	}

	from := c.index
	c.draft.SetField(step.Section, step.Field, value)
	c.draft.UpdatedAt = c.clock.Now()
	cleared := c.clearHidden(step)
	c.refresh()
	c.touch()

	c.appendEvent(ctx, schema.EventStepAnswered, step.ID, map[string]any{
		"section": step.Section,
		"field":   step.Field,
		"value":   value,
	})
	if len(cleared) > 0 {
		c.appendEvent(ctx, schema.EventFieldsCleared, step.ID, map[string]any{"steps": cleared})
		logging.LogWith(ctx, c.logger).Debug("cleared hidden answers",
			slog.String("step_id", step.ID),
			slog.Any("cleared", cleared),
		)
	}

	if d, ok := AutoAdvanceDelay(step, value); ok && c.currentID() == step.ID {
		c.schedule(pendingAdvance, d)
		c.appendEvent(ctx, schema.EventAutoAdvance, step.ID, map[string]any{"delay_ms": d.Milliseconds()})
	}
	c.notify(ctx, ReasonAnswer, from, c.index)
	return nil
}

// Next advances one step. At the last visible step it begins completion:
// Celebrate fires immediately and the collaborator's Complete runs after the
// completion delay unless another action intervenes.
func (c *Controller) Next(ctx context.Context) error {
	c.mu.Lock()
	defer c.unlock()

	if err := c.guard(""); err != nil {
		return err
	}
	c.cancelPending(ctx)
	c.touch()
	return c.next(ctx, ReasonNext)
}

// Previous moves back one step, floored at the first step.
func (c *Controller) Previous(ctx context.Context) error {
	c.mu.Lock()
	defer c.unlock()

	if err := c.guard(""); err != nil {
		return err
	}
	c.cancelPending(ctx)
	c.touch()

	from := c.index
	if c.index > 0 {
		c.index--
	}
	c.stepChanged(ctx, ReasonPrevious, from)
	return nil
}

// JumpTo moves to raw, which may be a legacy alias, a question id or a
// section id. Ids not in the visible list land on the first step. It returns
// the new index.
func (c *Controller) JumpTo(ctx context.Context, raw string) (int, error) {
	c.mu.Lock()
	defer c.unlock()

	if err := c.guard(raw); err != nil {
		return c.index, err
	}
	c.cancelPending(ctx)
	c.touch()

	from := c.index
	c.refresh()
	id := c.engine.Resolver.Resolve(raw)
	c.index = c.locate(id)
	if c.index == 0 && !c.isFirst(id) {
		logging.LogWith(ctx, c.logger).Info("jump target not visible, moving to first step",
			slog.String("raw_step_id", raw),
			slog.String("resolved", id),
		)
	}
	c.stepChanged(ctx, ReasonJump, from)
	return c.index, nil
}

// Exit cancels any pending transition, records the current step on the
// draft and hands a copy to the collaborator's SaveDraft. The draft is kept.
func (c *Controller) Exit(ctx context.Context) error {
	c.mu.Lock()

	if err := c.guard(""); err != nil {
		c.unlock()
		return err
	}
	c.stopTimer()

	raw := c.currentID()
	from := c.status
	if err := c.fsm.Transition(ctx, c.event("", raw, map[string]any{"raw_step_id": raw}), from, schema.SessionStatusExited); err != nil {
		c.unlock()
		return err
	}
	c.status = schema.SessionStatusExited
	c.draft.LastStep = raw
	c.draft.UpdatedAt = c.clock.Now()
	snapshot := c.draft.Clone()
	c.notify(ctx, ReasonExit, c.index, c.index)
	collab := c.collab
	c.unlock()

	if collab == nil {
		return nil
	}
	if err := collab.SaveDraft(ctx, snapshot, raw); err != nil {
		return fmt.Errorf("save draft on exit: %w", err)
	}
	return nil
}

// --- read API ---

// State is a point-in-time snapshot of the controller.
type State struct {
	SessionID string                 `json:"session_id"`
	DraftID   string                 `json:"draft_id,omitempty"`
	Status    schema.SessionStatus   `json:"status"`
	Index     int                    `json:"index"`
	Total     int                    `json:"total"`
	StepID    string                 `json:"step_id"`
	Step      *schema.StepDefinition `json:"step,omitempty"`
	Visible   []string               `json:"visible"`
	Pending   string                 `json:"pending,omitempty"`
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		SessionID: c.sessionID,
		DraftID:   c.draft.ID,
		Status:    c.status,
		Index:     c.index,
		Total:     len(c.visible),
		StepID:    c.currentID(),
		Pending:   c.pending.String(),
	}
	for _, s := range c.visible {
		st.Visible = append(st.Visible, s.ID)
	}
	if c.index < len(c.visible) {
		step := c.visible[c.index]
		st.Step = &step
	}
	return st
}

// SessionID returns the id given at construction.
func (c *Controller) SessionID() string { return c.sessionID }

// Status returns the session status.
func (c *Controller) Status() schema.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Index returns the current position in the visible list.
func (c *Controller) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

// CurrentStepID returns the id of the step at the current position.
func (c *Controller) CurrentStepID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentID()
}

// Visible returns the current visible step list.
func (c *Controller) Visible() []schema.StepDefinition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]schema.StepDefinition, len(c.visible))
	copy(out, c.visible)
	return out
}

// Draft returns a deep copy of the draft.
func (c *Controller) Draft() *schema.DraftRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.Clone()
}

// Snapshot returns a copy of the draft with LastStep set to the current
// step, and the revision it reflects.
func (c *Controller) Snapshot() (*schema.DraftRecord, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft.Clone()
	d.LastStep = c.currentID()
	return d, c.revision
}

// Dirty reports whether anything changed since the last MarkSaved.
func (c *Controller) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision != c.savedRev
}

// MarkSaved records that the draft at revision rev was persisted. Later
// changes keep the controller dirty.
func (c *Controller) MarkSaved(rev uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rev > c.savedRev {
		c.savedRev = rev
	}
}

// LastActivity returns the time of the last user action.
func (c *Controller) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// Progress builds the progress view model from the live draft and position.
func (c *Controller) Progress() progress.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return progress.Build(progress.Input{
		Catalog:       c.engine.Catalog,
		Completion:    c.engine.Completion,
		Resolver:      c.engine.Resolver,
		Draft:         c.draft,
		Visible:       c.visible,
		CurrentRaw:    c.draft.LastStep,
		CurrentStepID: c.currentID(),
	})
}

// --- internals, called with mu held ---

func (c *Controller) guard(stepID string) error {
	if c.status.Terminal() {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition, "session is %s", c.status).
			WithStep(stepID).
			WithDetails(map[string]any{"session_id": c.sessionID, "status": string(c.status)})
	}
	return nil
}

func (c *Controller) unknownStep(ctx context.Context, stepID string) error {
	if c.mode == ModeProduction {
		logging.LogWith(ctx, c.logger).Warn("ignoring unknown step", slog.String("step_id", stepID))
		return nil
	}
	return schema.NewErrorf(schema.ErrCodeUnknownStep, "unknown step %q", stepID).WithStep(stepID)
}

func (c *Controller) next(ctx context.Context, reason string) error {
	from := c.index
	if c.index >= len(c.visible)-1 {
		return c.beginCompletion(ctx, reason)
	}
	c.index++
	c.stepChanged(ctx, reason, from)
	return nil
}

func (c *Controller) beginCompletion(ctx context.Context, reason string) error {
	ev := c.event("", c.currentID(), map[string]any{"delay_ms": c.delay.Milliseconds()})
	if err := c.fsm.Transition(ctx, ev, c.status, schema.SessionStatusCompleting); err != nil {
		return err
	}
	c.status = schema.SessionStatusCompleting
	if c.celebrate != nil {
		go c.celebrate()
	}
	c.schedule(pendingComplete, c.delay)
	c.notify(ctx, reason, c.index, c.index)
	return nil
}

func (c *Controller) complete(ctx context.Context) {
	if err := c.fsm.Transition(ctx, c.event("", c.currentID(), nil), c.status, schema.SessionStatusCompleted); err != nil {
		c.logger.Error("completion transition failed", slog.String("error", err.Error()))
		return
	}
	c.status = schema.SessionStatusCompleted
	c.draft.UpdatedAt = c.clock.Now()
	final := c.draft.Clone()
	c.notify(ctx, ReasonComplete, c.index, c.index)
	if collab := c.collab; collab != nil {
		c.effects = append(c.effects, func() {
			if err := collab.Complete(ctx, final); err != nil {
				logging.LogWith(ctx, c.logger).Error("collaborator rejected completed draft",
					slog.String("error", err.Error()))
			}
		})
	}
}

// schedule replaces the single pending slot.
func (c *Controller) schedule(kind pendingKind, d time.Duration) {
	c.stopTimer()
	gen := c.gen
	c.pending = kind
	c.timer = c.clock.AfterFunc(d, func() { c.fire(gen, kind) })
}

// stopTimer empties the slot and invalidates a callback already running.
func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = pendingNone
	c.gen++
}

// cancelPending empties the slot and, if completion was pending, returns
// the session to active.
func (c *Controller) cancelPending(ctx context.Context) {
	kind := c.pending
	c.stopTimer()
	if kind != pendingComplete || c.status != schema.SessionStatusCompleting {
		return
	}
	if err := c.fsm.Transition(ctx, c.event("", c.currentID(), nil), c.status, schema.SessionStatusActive); err != nil {
		c.logger.Error("cancel completion failed", slog.String("error", err.Error()))
		return
	}
	c.status = schema.SessionStatusActive
}

func (c *Controller) fire(gen uint64, kind pendingKind) {
	c.mu.Lock()
	defer c.unlock()

	if gen != c.gen || c.status.Terminal() {
		return
	}
	c.timer = nil
	c.pending = pendingNone
	ctx := c.baseCtx

	switch kind {
	case pendingAdvance:
		if err := c.next(ctx, ReasonAuto); err != nil {
			c.logger.Error("auto-advance failed", slog.String("error", err.Error()))
		}
	case pendingComplete:
		c.complete(ctx)
	}
}

// refresh recomputes the visible list. The current step keeps its position
// when it is still visible; otherwise the index is clamped to the list.
func (c *Controller) refresh() {
	cur := c.currentID()
	c.visible = c.engine.Filter.Visible(c.draft)
	if i := c.indexOf(cur); i >= 0 {
		c.index = i
		return
	}
	if c.index > len(c.visible)-1 {
		c.index = len(c.visible) - 1
	}
	if c.index < 0 {
		c.index = 0
	}
}

// clearHidden removes answers of conditional steps that depend on answered
// and are no longer visible. It returns the cleared step ids.
func (c *Controller) clearHidden(answered schema.StepDefinition) []string {
	var cleared []string
	for _, s := range c.engine.Catalog.Steps() {
		if !s.IsConditional || !s.DependsOnStep(answered.ID) {
			continue
		}
		if c.engine.Filter.IsVisible(s.ID, c.draft) {
			continue
		}
		if c.draft.ClearField(s.Section, s.Field) {
			cleared = append(cleared, s.ID)
		}
	}
	return cleared
}

func (c *Controller) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, s := range c.visible {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// locate finds id in the visible list. A section id maps to its first
// visible question. Anything else is 0.
func (c *Controller) locate(id string) int {
	if i := c.indexOf(id); i >= 0 {
		return i
	}
	if sec, ok := c.engine.Catalog.Section(id); ok {
		for i, s := range c.visible {
			if owner, _ := c.engine.Catalog.SectionOf(s.ID); owner == sec.ID {
				return i
			}
		}
	}
	return 0
}

func (c *Controller) isFirst(id string) bool {
	if len(c.visible) > 0 && c.visible[0].ID == id {
		return true
	}
	return id == c.engine.Catalog.WizardSection()
}

func (c *Controller) currentID() string {
	if c.index < 0 || c.index >= len(c.visible) {
		return ""
	}
	return c.visible[c.index].ID
}

func (c *Controller) touch() {
	c.revision++
	c.lastActivity = c.clock.Now()
}

func (c *Controller) stepChanged(ctx context.Context, reason string, from int) {
	c.appendEvent(ctx, schema.EventStepChanged, c.currentID(), map[string]any{
		"reason": reason,
		"from":   from,
		"to":     c.index,
	})
	c.notify(ctx, reason, from, c.index)
}

func (c *Controller) event(eventType, stepID string, payload map[string]any) schema.Event {
	ev := schema.Event{
		SessionID: c.sessionID,
		DraftID:   c.draft.ID,
		StepID:    stepID,
		Type:      eventType,
		Timestamp: c.clock.Now(),
	}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			ev.Payload = b
		}
	}
	return ev
}

func (c *Controller) appendEvent(ctx context.Context, eventType, stepID string, payload map[string]any) {
	ev := c.event(eventType, stepID, payload)
	if err := c.appender.AppendEvent(ctx, &ev); err != nil {
		logging.LogWith(ctx, c.logger).Warn("append event failed",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

// notify queues an observer call for after the lock is released.
func (c *Controller) notify(ctx context.Context, reason string, from, to int) {
	if c.observer == nil {
		return
	}
	change := StepChange{
		SessionID: c.sessionID,
		Reason:    reason,
		FromIndex: from,
		ToIndex:   to,
		ToStep:    c.currentID(),
		Status:    c.status,
	}
	if from >= 0 && from < len(c.visible) {
		change.FromStep = c.visible[from].ID
	}
	obs := c.observer
	c.effects = append(c.effects, func() { obs.StepChanged(ctx, change) })
}

// unlock releases mu and then runs queued side effects in order.
func (c *Controller) unlock() {
	fx := c.effects
	c.effects = nil
	c.mu.Unlock()
	for _, f := range fx {
		f()
	}
}

// AutoAdvanceDelay returns how long to wait before advancing after value
// was given to step. Free-text steps and incomplete addresses never advance.
func AutoAdvanceDelay(step schema.StepDefinition, value any) (time.Duration, bool) {
	switch step.Kind {
	case schema.StepKindSelect:
		return SelectDelay, true
	case schema.StepKindChoice:
		return ChoiceDelay, true
	case schema.StepKindAddress:
		if a, ok := schema.AddressFrom(value); ok && a.Valid() {
			return AddressDelay, true
		}
	}
	return 0, false
}

func validateAnswer(step schema.StepDefinition, value any) error {
	if value == nil {
		return schema.NewError(schema.ErrCodeValidation, "answer value is required").WithStep(step.ID)
	}
	switch step.Kind {
	case schema.StepKindSelect, schema.StepKindChoice:
		s, ok := value.(string)
		if !ok || !step.HasOption(s) {
			opts := make([]string, len(step.Options))
			for i, o := range step.Options {
				opts[i] = o.Value
			}
			return schema.NewErrorf(schema.ErrCodeValidation, "value %v is not an option", value).
				WithStep(step.ID).
				WithDetails(map[string]any{"options": opts})
		}
	case schema.StepKindFreeText:
		if _, ok := value.(string); !ok {
			return schema.NewErrorf(schema.ErrCodeValidation, "expected text, got %T", value).WithStep(step.ID)
		}
	case schema.StepKindAddress:
		if _, ok := value.(string); ok {
			return nil
		}
		if _, ok := schema.AddressFrom(value); !ok {
			return schema.NewErrorf(schema.ErrCodeValidation, "expected an address, got %T", value).WithStep(step.ID)
		}
	}
	return nil
}
