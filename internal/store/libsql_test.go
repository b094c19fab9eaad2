package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/listwizard/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func seedDraft(t *testing.T, s *LibSQLStore) *Draft {
	t.Helper()
	doc := schema.NewDraftRecord("")
	doc.SetField("address", "value", map[string]any{"line1": "12 Oak Ln", "city": "Austin"})
	doc.SetField("propertySpecs", "propertyType", "condo")
	d := &Draft{ID: uuid.New().String(), LastStep: "bedrooms", Document: doc}
	require.NoError(t, s.SaveDraft(context.Background(), d))
	return d
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))
	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, LatestSchemaVersion(), v)
}

func TestSaveAndGetDraft(t *testing.T) {
	s := newTestStore(t)
	d := seedDraft(t, s)

	got, err := s.GetDraft(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Equal(t, schema.DraftStatusInProgress, got.Status)
	assert.Equal(t, "bedrooms", got.LastStep)
	assert.Equal(t, d.ID, got.Document.ID)
	assert.Equal(t, schema.DraftVersion, got.Document.Version)
	assert.Equal(t, "condo", got.Document.String("propertySpecs", "propertyType"))
	addr, ok := schema.AddressFrom(mustField(t, got.Document, "address", "value"))
	require.True(t, ok)
	assert.Equal(t, "12 Oak Ln", addr.Line1)
	assert.Nil(t, got.SubmittedAt)
}

func mustField(t *testing.T, d *schema.DraftRecord, section, field string) any {
	t.Helper()
	v, ok := d.Field(section, field)
	require.True(t, ok, "%s.%s", section, field)
	return v
}

func TestSaveDraft_LastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := seedDraft(t, s)

	second := d.Document.Clone()
	second.SetField("propertySpecs", "propertyType", "land")
	require.NoError(t, s.SaveDraft(ctx, &Draft{ID: d.ID, LastStep: "lotSize", Document: second}))

	got, err := s.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "land", got.Document.String("propertySpecs", "propertyType"))
	assert.Equal(t, "lotSize", got.LastStep)
	assert.Equal(t, d.CreatedAt.Unix(), got.CreatedAt.Unix())
}

func TestSaveDraft_RequiresID(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveDraft(context.Background(), &Draft{})
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestGetDraft_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDraft(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestSubmitDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := seedDraft(t, s)

	final := d.Document.Clone()
	final.SetSection("basicInfo", schema.Section{"propertyType": "condo"})
	require.NoError(t, s.SubmitDraft(ctx, d.ID, final))

	got, err := s.GetDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.DraftStatusSubmitted, got.Status)
	require.NotNil(t, got.SubmittedAt)
	assert.True(t, got.Document.HasSection("basicInfo"))
}

func TestListDrafts_FilterByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := seedDraft(t, s)
	seedDraft(t, s)
	seedDraft(t, s)
	require.NoError(t, s.SubmitDraft(ctx, a.ID, a.Document))

	all, err := s.ListDrafts(ctx, DraftFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	submitted := schema.DraftStatusSubmitted
	subs, err := s.ListDrafts(ctx, DraftFilter{Status: &submitted})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, a.ID, subs[0].ID)

	inProgress := schema.DraftStatusInProgress
	open, err := s.ListDrafts(ctx, DraftFilter{Status: &inProgress, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestDeleteDraft(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := seedDraft(t, s)

	require.NoError(t, s.DeleteDraft(ctx, d.ID))
	_, err := s.GetDraft(ctx, d.ID)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))

	err = s.DeleteDraft(ctx, d.ID)
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestSessions_UpsertGetList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	d := seedDraft(t, s)

	sess := &Session{ID: uuid.New().String(), DraftID: d.ID, Status: schema.SessionStatusActive, CurrentStep: "address"}
	require.NoError(t, s.UpsertSession(ctx, sess))

	sess.Status = schema.SessionStatusExited
	sess.CurrentStep = "survey"
	now := sess.StartedAt
	sess.EndedAt = &now
	require.NoError(t, s.UpsertSession(ctx, sess))

	got, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.SessionStatusExited, got.Status)
	assert.Equal(t, "survey", got.CurrentStep)
	assert.NotNil(t, got.EndedAt)

	list, err := s.ListSessions(ctx, SessionFilter{DraftID: d.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = s.GetSession(ctx, "missing")
	assert.Equal(t, schema.ErrCodeNotFound, schema.CodeOf(err))
}

func TestAppendEvent_SequencePerSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := &schema.Event{SessionID: "s-a", StepID: "address", Type: schema.EventStepAnswered}
		require.NoError(t, s.AppendEvent(ctx, e))
		assert.Equal(t, int64(i+1), e.Sequence)
		assert.NotZero(t, e.ID)
	}
	e := &schema.Event{SessionID: "s-b", Type: schema.EventSessionStarted}
	require.NoError(t, s.AppendEvent(ctx, e))
	assert.Equal(t, int64(1), e.Sequence)
}

func TestGetEventsByType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendEvent(ctx, &schema.Event{SessionID: "s-1", DraftID: "d-1", StepID: "survey", Type: schema.EventStepAnswered}))
	require.NoError(t, s.AppendEvent(ctx, &schema.Event{SessionID: "s-1", DraftID: "d-1", StepID: "survey", Type: schema.EventStepChanged}))
	require.NoError(t, s.AppendEvent(ctx, &schema.Event{SessionID: "s-2", DraftID: "d-2", StepID: "lotSize", Type: schema.EventStepAnswered}))

	events, err := s.GetEventsByType(ctx, schema.EventStepAnswered, EventFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events, err = s.GetEventsByType(ctx, schema.EventStepAnswered, EventFilter{DraftID: "d-2"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "lotSize", events[0].StepID)

	events, err = s.GetEventsByType(ctx, schema.EventStepAnswered, EventFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestSplitStatements_SkipsComments(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- trailing\nCREATE INDEX i ON a(x);\n")
	assert.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x INT)", stmts[0])
}
