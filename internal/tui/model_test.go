package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/listwizard/internal/catalog"
	"github.com/rendis/listwizard/internal/progress"
	"github.com/rendis/listwizard/internal/wizard"
	"github.com/rendis/listwizard/pkg/schema"
)

type answerCall struct {
	stepID string
	value  any
}

// fakeWizard walks a fixed step list without timers.
type fakeWizard struct {
	steps   []schema.StepDefinition
	index   int
	status  schema.SessionStatus
	draft   *schema.DraftRecord
	answers []answerCall
	exits   int
	err     error
}

func newFakeWizard(ids ...string) *fakeWizard {
	cat := catalog.MustDefault()
	f := &fakeWizard{status: schema.SessionStatusActive, draft: schema.NewDraftRecord("d-1")}
	for _, id := range ids {
		f.steps = append(f.steps, cat.MustGet(id))
	}
	return f
}

func (f *fakeWizard) State() wizard.State {
	step := f.steps[f.index]
	return wizard.State{
		SessionID: "s-1",
		Status:    f.status,
		Index:     f.index,
		Total:     len(f.steps),
		StepID:    step.ID,
		Step:      &step,
	}
}

func (f *fakeWizard) Progress() progress.View {
	return progress.View{
		Sections: []progress.SectionProgress{
			{SectionID: "basic-info", Title: "Basic info", IsCurrent: true},
			{SectionID: "listing-service", Title: "Listing service"},
		},
		Total: 2,
	}
}

func (f *fakeWizard) Draft() *schema.DraftRecord { return f.draft.Clone() }

func (f *fakeWizard) Answer(_ context.Context, stepID string, value any) error {
	if f.err != nil {
		return f.err
	}
	f.answers = append(f.answers, answerCall{stepID, value})
	step := f.steps[f.index]
	f.draft.SetField(step.Section, step.Field, value)
	return nil
}

func (f *fakeWizard) Next(context.Context) error {
	if f.index < len(f.steps)-1 {
		f.index++
		return nil
	}
	f.status = schema.SessionStatusCompleting
	return nil
}

func (f *fakeWizard) Previous(context.Context) error {
	if f.index > 0 {
		f.index--
	}
	return nil
}

func (f *fakeWizard) Exit(context.Context) error {
	f.exits++
	f.status = schema.SessionStatusExited
	return nil
}

func press(m Model, k tea.KeyType) Model {
	next, _ := m.Update(tea.KeyMsg{Type: k})
	return next.(Model)
}

func typeText(m Model, s string) Model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return next.(Model)
}

func TestSelectOptionWithCursor(t *testing.T) {
	w := newFakeWizard("propertyType", "bedrooms")
	m := NewModel(context.Background(), w)

	m = press(m, tea.KeyDown)
	m = press(m, tea.KeyDown)
	m = press(m, tea.KeyUp)
	m = press(m, tea.KeyEnter)

	require.Len(t, w.answers, 1)
	assert.Equal(t, "propertyType", w.answers[0].stepID)
	assert.Equal(t, "half-duplex", w.answers[0].value)
	assert.NoError(t, m.Err())
}

func TestCursorStopsAtEnds(t *testing.T) {
	w := newFakeWizard("survey")
	m := NewModel(context.Background(), w)

	m = press(m, tea.KeyUp)
	m = press(m, tea.KeyDown)
	m = press(m, tea.KeyDown)
	m = press(m, tea.KeyDown)
	press(m, tea.KeyEnter)

	require.Len(t, w.answers, 1)
	assert.Equal(t, "no", w.answers[0].value)
}

func TestFreeTextAnswer(t *testing.T) {
	w := newFakeWizard("squareFootage")
	m := NewModel(context.Background(), w)

	m = typeText(m, "1850")
	press(m, tea.KeyEnter)

	require.Len(t, w.answers, 1)
	assert.Equal(t, "1850", w.answers[0].value)
}

func TestAddressAnswerIsParsed(t *testing.T) {
	w := newFakeWizard("address")
	m := NewModel(context.Background(), w)

	m = typeText(m, "12 Oak Ln, Austin, TX, 78701")
	press(m, tea.KeyEnter)

	require.Len(t, w.answers, 1)
	assert.Equal(t, schema.Address{Line1: "12 Oak Ln", City: "Austin", State: "TX", PostalCode: "78701"}, w.answers[0].value)
}

func TestPartialAddressIsSentAsText(t *testing.T) {
	w := newFakeWizard("address")
	m := NewModel(context.Background(), w)

	m = typeText(m, "12 Oak Ln")
	press(m, tea.KeyEnter)

	require.Len(t, w.answers, 1)
	assert.Equal(t, "12 Oak Ln", w.answers[0].value)
}

func TestNavigationResetsCursorToStoredAnswer(t *testing.T) {
	w := newFakeWizard("propertyType", "survey")
	w.draft.SetField("propertySpecs", "survey", "no")
	m := NewModel(context.Background(), w)

	m = press(m, tea.KeyTab)
	assert.Equal(t, "survey", m.state.StepID)
	assert.Equal(t, 1, m.cursor)

	m = press(m, tea.KeyShiftTab)
	assert.Equal(t, "propertyType", m.state.StepID)
	assert.Equal(t, 0, m.cursor)
}

func TestExitSavesAndQuits(t *testing.T) {
	w := newFakeWizard("propertyType")
	m := NewModel(context.Background(), w)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)

	assert.Equal(t, 1, w.exits)
	assert.True(t, m.Done())
	assert.Equal(t, schema.SessionStatusExited, m.Status())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestTickQuitsOnTerminalStatus(t *testing.T) {
	w := newFakeWizard("propertyType")
	m := NewModel(context.Background(), w)

	next, cmd := m.Update(tickMsg{})
	require.NotNil(t, cmd)
	assert.False(t, next.(Model).Done())

	w.status = schema.SessionStatusCompleted
	next, cmd = m.Update(tickMsg{})
	assert.True(t, next.(Model).Done())
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestAnswerErrorIsShown(t *testing.T) {
	w := newFakeWizard("propertyType")
	w.err = errors.New("boom")
	m := NewModel(context.Background(), w)

	m = press(m, tea.KeyEnter)
	assert.Error(t, m.Err())
	assert.Contains(t, m.View(), "boom")
}

func TestViewShowsTrackerAndQuestion(t *testing.T) {
	w := newFakeWizard("propertyType", "survey")
	m := NewModel(context.Background(), w)

	out := m.View()
	assert.Contains(t, out, "Basic info")
	assert.Contains(t, out, "Listing service")
	assert.Contains(t, out, "1/2")
	assert.Contains(t, out, "Condo")
	assert.True(t, strings.Contains(out, "0 of 2 sections complete"))
}

func TestParseAddress(t *testing.T) {
	a, ok := ParseAddress("1 Main, Unit 2, Austin, TX, 78701")
	require.True(t, ok)
	assert.Equal(t, "Unit 2", a.Line2)

	_, ok = ParseAddress("1 Main, Austin, TX")
	assert.False(t, ok)
	_, ok = ParseAddress(" , Austin, TX, 78701")
	assert.False(t, ok)
}
