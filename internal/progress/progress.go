// Package progress derives the seller progress tracker and the per-question
// list from a draft. Nothing here holds state; every read rebuilds the view.
package progress

import (
	"github.com/rendis/listwizard/internal/catalog"
	"github.com/rendis/listwizard/internal/completion"
	"github.com/rendis/listwizard/internal/legacy"
	"github.com/rendis/listwizard/pkg/schema"
)

// SectionProgress is one row of the progress tracker.
type SectionProgress struct {
	SectionID  string `json:"section_id"`
	Title      string `json:"title"`
	IsComplete bool   `json:"is_complete"`
	IsCurrent  bool   `json:"is_current"`
}

// StepProgress is one visible question.
type StepProgress struct {
	StepID    string          `json:"step_id"`
	Title     string          `json:"title"`
	Kind      schema.StepKind `json:"kind"`
	Answered  bool            `json:"answered"`
	IsCurrent bool            `json:"is_current"`
}

// View is the progress view model.
type View struct {
	Sections       []SectionProgress `json:"sections"`
	Steps          []StepProgress    `json:"steps"`
	CurrentSection string            `json:"current_section"`
	CurrentStep    string            `json:"current_step,omitempty"`
	Completed      int               `json:"completed"`
	Total          int               `json:"total"`
}

// Input collects everything Build reads.
type Input struct {
	Catalog    *catalog.Catalog
	Completion *completion.Set
	Resolver   *legacy.Resolver
	Draft      *schema.DraftRecord
	Visible    []schema.StepDefinition

	// CurrentRaw is the last recorded step id, possibly a legacy alias.
	CurrentRaw string
	// CurrentStepID is the controller's position, if a controller is live.
	CurrentStepID string
}

// Build derives the view. An unresolvable CurrentRaw marks the first section
// current; a CurrentStepID that is not visible falls back to CurrentRaw and
// then to the first visible question.
func Build(in Input) View {
	resolved := in.CurrentRaw
	if in.Resolver != nil {
		resolved = in.Resolver.Resolve(in.CurrentRaw)
	}

	position := resolved
	if in.CurrentStepID != "" {
		position = in.CurrentStepID
	}
	currentSection := in.Catalog.FirstSection()
	if _, ok := in.Catalog.Section(position); ok {
		currentSection = position
	} else if sec, ok := in.Catalog.SectionOf(position); ok {
		currentSection = sec
	}

	v := View{CurrentSection: currentSection}
	for _, sec := range in.Catalog.Sections() {
		done := in.Completion.Complete(sec.ID, in.Draft)
		if done {
			v.Completed++
		}
		v.Sections = append(v.Sections, SectionProgress{
			SectionID:  sec.ID,
			Title:      sec.Title,
			IsComplete: done,
			IsCurrent:  sec.ID == currentSection,
		})
	}
	v.Total = len(v.Sections)

	currentStep := matchStep(in.Visible, in.CurrentStepID)
	if currentStep < 0 {
		currentStep = matchStep(in.Visible, resolved)
	}
	if currentStep < 0 && len(in.Visible) > 0 {
		currentStep = 0
	}
	for i, step := range in.Visible {
		_, answered := in.Draft.Field(step.Section, step.Field)
		v.Steps = append(v.Steps, StepProgress{
			StepID:    step.ID,
			Title:     step.Title,
			Kind:      step.Kind,
			Answered:  answered,
			IsCurrent: i == currentStep,
		})
	}
	if currentStep >= 0 {
		v.CurrentStep = in.Visible[currentStep].ID
	}
	return v
}

func matchStep(steps []schema.StepDefinition, id string) int {
	if id == "" {
		return -1
	}
	for i, s := range steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}
