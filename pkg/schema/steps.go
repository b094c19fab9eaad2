package schema

// StepKind enumerates the input shapes a wizard step can take.
type StepKind string

const (
	StepKindAddress  StepKind = "address-input"
	StepKindSelect   StepKind = "single-select"
	StepKindChoice   StepKind = "single-choice-buttons"
	StepKindFreeText StepKind = "free-text"
)

// HasOptions reports whether steps of this kind carry an option list.
func (k StepKind) HasOptions() bool {
	return k == StepKindSelect || k == StepKindChoice
}

// Valid reports whether k is one of the known kinds.
func (k StepKind) Valid() bool {
	switch k {
	case StepKindAddress, StepKindSelect, StepKindChoice, StepKindFreeText:
		return true
	}
	return false
}

// Option is one value/label pair offered by a select or choice step.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// StepDefinition describes a single question of the listing wizard.
// Definitions are loaded once and never mutated.
type StepDefinition struct {
	ID            string   `json:"id" yaml:"id"`
	Kind          StepKind `json:"kind" yaml:"kind"`
	Title         string   `json:"title,omitempty" yaml:"title,omitempty"`
	Section       string   `json:"section" yaml:"section"` // draft section written by this step
	Field         string   `json:"field" yaml:"field"`     // sub-field inside Section
	Options       []Option `json:"options,omitempty" yaml:"options,omitempty"`
	IsConditional bool     `json:"is_conditional,omitempty" yaml:"conditional,omitempty"`
	DependsOn     []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	VisibleWhen   string   `json:"visible_when,omitempty" yaml:"visible_when,omitempty"` // CEL
}

// HasOption reports whether value is one of the step's option values.
func (s StepDefinition) HasOption(value string) bool {
	for _, o := range s.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// DependsOnStep reports whether visibility of s is decided by stepID.
func (s StepDefinition) DependsOnStep(stepID string) bool {
	for _, d := range s.DependsOn {
		if d == stepID {
			return true
		}
	}
	return false
}

// SectionDefinition is one entry of the seller progress tracker.
type SectionDefinition struct {
	ID        string   `json:"id" yaml:"id"`
	Title     string   `json:"title" yaml:"title"`
	DraftKey  string   `json:"draft_key" yaml:"draft_key"`
	Predicate string   `json:"predicate" yaml:"predicate"` // expr-lang, evaluated over draft sections
	Steps     []string `json:"steps,omitempty" yaml:"-"`   // question ids, filled at load
}
