// Package tui is the terminal front-end of the listing wizard: it renders
// the current question and the progress tracker of one session.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/listwizard/internal/progress"
	"github.com/rendis/listwizard/internal/wizard"
	"github.com/rendis/listwizard/pkg/schema"
)

// refreshInterval is how often the view re-reads the session, which picks
// up auto-advance and completion.
const refreshInterval = 50 * time.Millisecond

// Wizard is the session surface the front-end drives.
// Satisfied by *session.Session.
type Wizard interface {
	State() wizard.State
	Progress() progress.View
	Draft() *schema.DraftRecord
	Answer(ctx context.Context, stepID string, value any) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Exit(ctx context.Context) error
}

type tickMsg time.Time

// Model is the bubbletea model for one wizard session.
type Model struct {
	ctx    context.Context
	w      Wizard
	input  textinput.Model
	help   help.Model
	cursor int
	stepID string
	state  wizard.State
	err    error
	done   bool
}

// NewModel creates a Model driving w.
func NewModel(ctx context.Context, w Wizard) Model {
	ti := textinput.New()
	ti.CharLimit = 200
	ti.Width = 50
	m := Model{ctx: ctx, w: w, input: ti, help: help.New()}
	m.sync()
	return m
}

// Init starts the refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles key presses and refresh ticks.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.sync()
		if m.state.Status.Terminal() {
			m.done = true
			return m, tea.Quit
		}
		return m, tick()

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Exit):
			m.err = m.w.Exit(m.ctx)
			m.done = true
			m.sync()
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			m.err = m.w.Next(m.ctx)
			m.sync()
			return m, nil
		case key.Matches(msg, keys.Previous):
			m.err = m.w.Previous(m.ctx)
			m.sync()
			return m, nil
		case key.Matches(msg, keys.Answer):
			m.err = m.answer()
			m.sync()
			return m, nil
		}
		if m.isOptionStep() {
			switch {
			case key.Matches(msg, keys.Up):
				if m.cursor > 0 {
					m.cursor--
				}
			case key.Matches(msg, keys.Down):
				if m.state.Step != nil && m.cursor < len(m.state.Step.Options)-1 {
					m.cursor++
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Done reports whether the session ended.
func (m Model) Done() bool { return m.done }

// Err returns the last action error.
func (m Model) Err() error { return m.err }

// Status returns the session status at the last refresh.
func (m Model) Status() schema.SessionStatus { return m.state.Status }

func (m Model) isOptionStep() bool {
	return m.state.Step != nil && len(m.state.Step.Options) > 0
}

func (m Model) answer() error {
	step := m.state.Step
	if step == nil {
		return nil
	}
	if len(step.Options) > 0 {
		return m.w.Answer(m.ctx, step.ID, step.Options[m.cursor].Value)
	}
	text := strings.TrimSpace(m.input.Value())
	if step.Kind == schema.StepKindAddress {
		if a, ok := ParseAddress(text); ok {
			return m.w.Answer(m.ctx, step.ID, a)
		}
	}
	return m.w.Answer(m.ctx, step.ID, text)
}

// sync re-reads the session and, when the step changed, positions the
// cursor and the text input on the stored answer.
func (m *Model) sync() {
	m.state = m.w.State()
	if m.state.StepID == m.stepID {
		return
	}
	m.stepID = m.state.StepID
	m.cursor = 0
	m.input.Reset()
	if m.state.Step == nil {
		return
	}
	step := *m.state.Step
	stored, _ := m.w.Draft().Field(step.Section, step.Field)
	for i, o := range step.Options {
		if s, ok := stored.(string); ok && s == o.Value {
			m.cursor = i
		}
	}
	if len(step.Options) > 0 {
		m.input.Blur()
		return
	}
	m.input.Placeholder = placeholder(step)
	m.input.SetValue(formatAnswer(stored))
	m.input.Focus()
}

// View renders the tracker, the question and the key help.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("List your home"))
	b.WriteString("\n\n")
	b.WriteString(renderTracker(m.w.Progress()))
	b.WriteString("\n")

	if step := m.state.Step; step != nil {
		b.WriteString(questionStyle.Render(fmt.Sprintf("%d/%d  %s", m.state.Index+1, m.state.Total, stepTitle(*step))))
		b.WriteString("\n")
		if len(step.Options) > 0 {
			stored, _ := m.w.Draft().Field(step.Section, step.Field)
			for i, o := range step.Options {
				prefix := "  "
				if i == m.cursor {
					prefix = cursorStyle.Render("> ")
				}
				label := o.Label
				if s, ok := stored.(string); ok && s == o.Value {
					label = chosenStyle.Render(label + " ✓")
				}
				b.WriteString(prefix + label + "\n")
			}
		} else {
			b.WriteString(m.input.View() + "\n")
		}
	}

	switch m.state.Status {
	case schema.SessionStatusCompleting:
		b.WriteString("\n" + sectionDone.Render("🎉 Submitting your listing...") + "\n")
	case schema.SessionStatusCompleted:
		b.WriteString("\n" + sectionDone.Render("Listing submitted.") + "\n")
	case schema.SessionStatusExited:
		b.WriteString("\n" + hintStyle.Render("Draft saved. Resume any time.") + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + m.help.View(keys))
	return panelStyle.Render(b.String())
}

func renderTracker(v progress.View) string {
	rows := make([]string, 0, len(v.Sections))
	for _, s := range v.Sections {
		switch {
		case s.IsCurrent:
			rows = append(rows, sectionActive.Render("● "+s.Title))
		case s.IsComplete:
			rows = append(rows, sectionDone.Render("✓ "+s.Title))
		default:
			rows = append(rows, sectionTodo.Render("○ "+s.Title))
		}
	}
	header := hintStyle.Render(fmt.Sprintf("%d of %d sections complete", v.Completed, v.Total))
	return lipgloss.JoinVertical(lipgloss.Left, append([]string{header}, rows...)...)
}

func stepTitle(s schema.StepDefinition) string {
	if s.Title != "" {
		return s.Title
	}
	return s.ID
}

func placeholder(s schema.StepDefinition) string {
	if s.Kind == schema.StepKindAddress {
		return "street, city, state, zip"
	}
	return "type your answer"
}

func formatAnswer(v any) string {
	if v == nil {
		return ""
	}
	if a, ok := schema.AddressFrom(v); ok {
		return strings.Join([]string{a.Line1, a.City, a.State, a.PostalCode}, ", ")
	}
	return fmt.Sprint(v)
}

// ParseAddress reads "street, city, state, zip". A five-part form carries a
// second address line after the street.
func ParseAddress(s string) (schema.Address, bool) {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	var a schema.Address
	switch len(parts) {
	case 4:
		a = schema.Address{Line1: parts[0], City: parts[1], State: parts[2], PostalCode: parts[3]}
	case 5:
		a = schema.Address{Line1: parts[0], Line2: parts[1], City: parts[2], State: parts[3], PostalCode: parts[4]}
	default:
		return schema.Address{}, false
	}
	return a, a.Valid()
}

// Run drives w in the terminal until the session ends.
func Run(ctx context.Context, w Wizard) (schema.SessionStatus, error) {
	final, err := tea.NewProgram(NewModel(ctx, w), tea.WithContext(ctx)).Run()
	if err != nil {
		return "", err
	}
	m := final.(Model)
	return m.Status(), m.Err()
}
