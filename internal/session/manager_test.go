package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/listwizard/internal/catalog"
	"github.com/rendis/listwizard/internal/legacy"
	"github.com/rendis/listwizard/internal/store"
	"github.com/rendis/listwizard/internal/streaming"
	"github.com/rendis/listwizard/internal/validation"
	"github.com/rendis/listwizard/internal/wizard"
	"github.com/rendis/listwizard/pkg/schema"
)

type fixture struct {
	m     *Manager
	store *store.LibSQLStore
	hub   *streaming.MemoryHub
	clock *clockwork.FakeClock
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "wizard.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { _ = st.Close() })

	engine, err := wizard.NewEngine(catalog.MustDefault(), logger)
	require.NoError(t, err)
	v, err := validation.NewJSONSchemaValidator()
	require.NoError(t, err)
	mig, err := legacy.NewMigrator()
	require.NoError(t, err)

	hub := streaming.NewMemoryHub()
	t.Cleanup(hub.Close)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	m, err := NewManager(Deps{
		Engine:    engine,
		Store:     st,
		Events:    streaming.Tee{Log: store.NewEventLog(st), Hub: hub},
		Hub:       hub,
		Validator: v,
		Migrator:  mig,
		Clock:     clock,
		Logger:    logger,
	})
	require.NoError(t, err)
	return &fixture{m: m, store: st, hub: hub, clock: clock, ctx: ctx}
}

func TestNewManager_RequiresEngineAndStore(t *testing.T) {
	_, err := NewManager(Deps{})
	assert.Equal(t, schema.ErrCodeConfig, schema.CodeOf(err))
}

func TestStart_CreatesDraftAndSessionRow(t *testing.T) {
	f := newFixture(t)

	s, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)
	assert.NotEmpty(t, s.SessionID())
	assert.Equal(t, "address", s.CurrentStepID())

	d, err := f.store.GetDraft(f.ctx, s.DraftID)
	require.NoError(t, err)
	assert.Equal(t, schema.DraftStatusInProgress, d.Status)

	row, err := f.store.GetSession(f.ctx, s.SessionID())
	require.NoError(t, err)
	assert.Equal(t, schema.SessionStatusActive, row.Status)
	assert.Equal(t, s.DraftID, row.DraftID)

	got, err := f.m.Get(s.SessionID())
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestStart_UnknownDraft(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Start(f.ctx, StartRequest{DraftID: "missing"})
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestGet_Missing(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Get("nope")
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestExitThenResume(t *testing.T) {
	f := newFixture(t)
	s, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)

	require.NoError(t, s.Answer(f.ctx, "propertyType", "condo"))
	_, err = s.JumpTo(f.ctx, "bathrooms")
	require.NoError(t, err)
	require.NoError(t, s.Exit(f.ctx))

	stored, err := f.store.GetDraft(f.ctx, s.DraftID)
	require.NoError(t, err)
	assert.Equal(t, "bathrooms", stored.LastStep)
	assert.Equal(t, "condo", stored.Document.String("propertySpecs", "propertyType"))

	row, err := f.store.GetSession(f.ctx, s.SessionID())
	require.NoError(t, err)
	assert.Equal(t, schema.SessionStatusExited, row.Status)
	assert.NotNil(t, row.EndedAt)

	again, err := f.m.Start(f.ctx, StartRequest{DraftID: s.DraftID})
	require.NoError(t, err)
	assert.Equal(t, "bathrooms", again.CurrentStepID())
	assert.NotEqual(t, s.SessionID(), again.SessionID())
}

func TestStart_StepOverridesRecordedStep(t *testing.T) {
	f := newFixture(t)
	s, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)
	require.NoError(t, s.Exit(f.ctx))

	again, err := f.m.Start(f.ctx, StartRequest{DraftID: s.DraftID, StepID: "survey"})
	require.NoError(t, err)
	assert.Equal(t, "survey", again.CurrentStepID())
}

func TestCompletion_SubmitsWithBasicInfo(t *testing.T) {
	f := newFixture(t)
	s, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)

	require.NoError(t, s.Answer(f.ctx, "propertyType", "land"))
	require.NoError(t, s.Answer(f.ctx, "occupancy", "vacant"))
	f.clock.Advance(time.Second)
	_, err = s.JumpTo(f.ctx, "occupancy")
	require.NoError(t, err)
	require.NoError(t, s.Next(f.ctx))
	assert.Equal(t, schema.SessionStatusCompleting, s.Status())

	f.clock.Advance(wizard.DefaultCompletionDelay)
	require.Eventually(t, func() bool {
		d, err := f.store.GetDraft(f.ctx, s.DraftID)
		return err == nil && d.Status == schema.DraftStatusSubmitted
	}, time.Second, time.Millisecond)
	assert.Equal(t, schema.SessionStatusCompleted, s.Status())
	assert.Equal(t, f.clock.Now(), s.EndedAt())

	stored, err := f.store.GetDraft(f.ctx, s.DraftID)
	require.NoError(t, err)
	require.NotNil(t, stored.SubmittedAt)
	assert.Equal(t, "land", stored.Document.String("basicInfo", "propertyType"))
	assert.Equal(t, "vacant", stored.Document.String("basicInfo", "occupancy"))

	view, err := f.m.DraftProgress(f.ctx, s.DraftID)
	require.NoError(t, err)
	assert.True(t, view.Sections[0].IsComplete)

	_, err = f.m.Start(f.ctx, StartRequest{DraftID: s.DraftID})
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestAutosaveDirty(t *testing.T) {
	f := newFixture(t)
	s, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)

	n, err := f.m.AutosaveDirty(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, s.Answer(f.ctx, "bedrooms", "3"))
	n, err = f.m.AutosaveDirty(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, s.Dirty())

	stored, err := f.store.GetDraft(f.ctx, s.DraftID)
	require.NoError(t, err)
	assert.Equal(t, "3", stored.Document.String("propertySpecs", "bedrooms"))
	assert.Equal(t, schema.DraftStatusInProgress, stored.Status)

	n, err = f.m.AutosaveDirty(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	saved, err := f.store.GetEventsByType(f.ctx, schema.EventDraftSaved, store.EventFilter{SessionID: s.SessionID()})
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestExitIdle(t *testing.T) {
	f := newFixture(t)
	idle, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)
	busy, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)
	require.NoError(t, busy.Answer(f.ctx, "survey", "yes"))

	f.clock.Advance(15 * time.Minute)
	n, err := f.m.ExitIdle(f.ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, schema.SessionStatusExited, idle.Status())
	assert.Equal(t, schema.SessionStatusActive, busy.Status())
}

func TestPrune(t *testing.T) {
	f := newFixture(t)
	done, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)
	live, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)
	require.NoError(t, done.Exit(f.ctx))
	assert.False(t, done.EndedAt().IsZero())

	assert.Equal(t, 0, f.m.Prune(f.clock.Now()))
	f.clock.Advance(time.Hour)
	assert.Equal(t, 1, f.m.Prune(f.clock.Now()))

	_, err = f.m.Get(done.SessionID())
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
	_, err = f.m.Get(live.SessionID())
	assert.NoError(t, err)
}

func TestDeleteDraft_RefusedWhileOpen(t *testing.T) {
	f := newFixture(t)
	s, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)

	err = f.m.DeleteDraft(f.ctx, s.DraftID)
	assert.Equal(t, schema.ErrCodeInvalidTransition, schema.CodeOf(err))

	require.NoError(t, s.Exit(f.ctx))
	require.NoError(t, f.m.DeleteDraft(f.ctx, s.DraftID))
	_, err = f.m.GetDraft(f.ctx, s.DraftID)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestImport_LegacyDocument(t *testing.T) {
	f := newFixture(t)
	raw := []byte(`{
		"id": "d-old",
		"currentStep": "home-facts",
		"homeFacts": {"propertyType": "condo", "bedrooms": "2"}
	}`)

	d, err := f.m.Import(f.ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "d-old", d.ID)

	list, err := f.m.ListDrafts(f.ctx, schema.DraftStatusInProgress, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	s, err := f.m.Start(f.ctx, StartRequest{DraftID: "d-old"})
	require.NoError(t, err)
	assert.Equal(t, "address", s.CurrentStepID())
	assert.Equal(t, "basic-info", s.Progress().CurrentSection)
	assert.NotContains(t, s.State().Visible, "lotSize")
}

func TestImport_RefusesSubmittedDraft(t *testing.T) {
	f := newFixture(t)
	raw := []byte(`{"id": "d-done", "sections": {"propertySpecs": {"propertyType": "condo"}}}`)
	d, err := f.m.Import(f.ctx, raw)
	require.NoError(t, err)
	require.NoError(t, f.store.SubmitDraft(f.ctx, d.ID, d.Document))

	_, err = f.m.Import(f.ctx, []byte(`{"id": "d-done", "sections": {"propertySpecs": {"propertyType": "land"}}}`))
	assert.Equal(t, schema.ErrCodeInvalidTransition, schema.CodeOf(err))

	stored, err := f.store.GetDraft(f.ctx, "d-done")
	require.NoError(t, err)
	assert.Equal(t, schema.DraftStatusSubmitted, stored.Status)
	assert.Equal(t, "condo", stored.Document.String("propertySpecs", "propertyType"))
}

func TestImport_RefusesDraftOpenInSession(t *testing.T) {
	f := newFixture(t)
	raw := []byte(`{"id": "d-open", "sections": {"propertySpecs": {"propertyType": "condo"}}}`)
	_, err := f.m.Import(f.ctx, raw)
	require.NoError(t, err)
	s, err := f.m.Start(f.ctx, StartRequest{DraftID: "d-open"})
	require.NoError(t, err)

	_, err = f.m.Import(f.ctx, raw)
	assert.Equal(t, schema.ErrCodeInvalidTransition, schema.CodeOf(err))

	require.NoError(t, s.Exit(f.ctx))
	_, err = f.m.Import(f.ctx, raw)
	assert.NoError(t, err)
}

func TestImport_RejectsNonObject(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Import(f.ctx, []byte(`[1,2]`))
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestDraftHistory(t *testing.T) {
	f := newFixture(t)
	first, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)
	require.NoError(t, first.Answer(f.ctx, "coveredParking", "other"))
	require.NoError(t, first.Answer(f.ctx, "coveredParkingOtherDescription", "Shed"))
	require.NoError(t, first.Answer(f.ctx, "coveredParking", "none"))
	require.NoError(t, first.Exit(f.ctx))

	f.clock.Advance(time.Minute)
	second, err := f.m.Start(f.ctx, StartRequest{DraftID: first.DraftID})
	require.NoError(t, err)

	hist, err := f.m.DraftHistory(f.ctx, first.DraftID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, second.SessionID(), hist[0].ID)
	assert.Equal(t, schema.SessionStatusActive, hist[0].Replay.Status)
	assert.Equal(t, first.SessionID(), hist[1].ID)
	assert.Equal(t, schema.SessionStatusExited, hist[1].Replay.Status)
	assert.Equal(t, 2, hist[1].Replay.Answers["coveredParking"])
	assert.Equal(t, []string{"coveredParkingOtherDescription"}, hist[1].Replay.Cleared)

	_, err = f.m.DraftHistory(f.ctx, "missing")
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestSessionEvents(t *testing.T) {
	f := newFixture(t)
	s, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)
	require.NoError(t, s.Answer(f.ctx, "bedrooms", "3"))
	require.NoError(t, s.Next(f.ctx))

	all, err := f.m.SessionEvents(f.ctx, s.SessionID(), 0, "")
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, schema.EventSessionStarted, all[0].Type)

	later, err := f.m.SessionEvents(f.ctx, s.SessionID(), 1, "")
	require.NoError(t, err)
	assert.Len(t, later, len(all)-1)

	answered, err := f.m.SessionEvents(f.ctx, s.SessionID(), 0, schema.EventStepAnswered)
	require.NoError(t, err)
	require.Len(t, answered, 1)
	assert.Equal(t, "bedrooms", answered[0].StepID)

	_, err = f.m.SessionEvents(f.ctx, "missing", 0, "")
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestVacuum(t *testing.T) {
	f := newFixture(t)
	_, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)
	assert.NoError(t, f.m.Vacuum(f.ctx))
}

func TestStepChangesArePublished(t *testing.T) {
	f := newFixture(t)
	s, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)

	ch, cancel, err := f.hub.Subscribe(f.ctx, streaming.EventFilter{
		SessionID:  s.SessionID(),
		EventTypes: []string{schema.EventSessionState},
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, s.Next(f.ctx))

	select {
	case ev := <-ch:
		change, ok := ev.Payload.(wizard.StepChange)
		require.True(t, ok)
		assert.Equal(t, wizard.ReasonNext, change.Reason)
		assert.Equal(t, "propertyType", change.ToStep)
	case <-time.After(time.Second):
		t.Fatal("no session_state event")
	}
}

func TestClose_ExitsActiveSessions(t *testing.T) {
	f := newFixture(t)
	a, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)
	b, err := f.m.Start(f.ctx, StartRequest{})
	require.NoError(t, err)
	require.NoError(t, b.Exit(f.ctx))

	require.NoError(t, f.m.Close(f.ctx))
	assert.Equal(t, schema.SessionStatusExited, a.Status())
}

func TestBasicInfoSummary(t *testing.T) {
	d := schema.NewDraftRecord("d")
	d.SetField("address", "value", map[string]any{"line1": "1 Main", "city": "Austin", "state": "TX", "postalCode": "78701"})
	d.SetField("propertySpecs", "propertyType", "condo")
	d.SetField("propertySpecs", "bedrooms", "2")

	sum := BasicInfoSummary(d, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2026-03-01T00:00:00Z", sum["completedAt"])
	assert.Equal(t, "condo", sum["propertyType"])
	assert.Equal(t, "2", sum["bedrooms"])
	assert.Equal(t, schema.Address{Line1: "1 Main", City: "Austin", State: "TX", PostalCode: "78701"}, sum["address"])
	assert.NotContains(t, sum, "lotSize")
}
