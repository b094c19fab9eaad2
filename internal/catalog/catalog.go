// Package catalog holds the static definition of every listing wizard step
// and progress section.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rendis/listwizard/internal/validation"
	"github.com/rendis/listwizard/pkg/schema"
)

//go:embed catalog.yaml
var defaultDocument []byte

// Document is the decoded catalog file.
type Document struct {
	Version       int                        `yaml:"version"`
	WizardSection string                     `yaml:"wizard_section"`
	Sections      []schema.SectionDefinition `yaml:"sections"`
	Steps         []schema.StepDefinition    `yaml:"steps"`
}

// Catalog is the immutable, ordered set of wizard steps and progress sections.
type Catalog struct {
	version       int
	wizardSection string
	steps         []schema.StepDefinition
	sections      []schema.SectionDefinition
	stepIndex     map[string]int
	sectionIndex  map[string]int
}

// Default loads the catalog embedded in the binary.
func Default(v validation.Validator) (*Catalog, error) {
	return Load(defaultDocument, v)
}

// MustDefault is Default for package-level initialisation and tests.
func MustDefault() *Catalog {
	v, err := validation.NewJSONSchemaValidator()
	if err != nil {
		panic(err)
	}
	c, err := Default(v)
	if err != nil {
		panic(err)
	}
	return c
}

// Load decodes and validates a YAML (or JSON) catalog document.
func Load(data []byte, v validation.Validator) (*Catalog, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, schema.NewError(schema.ErrCodeConfig, "catalog is not valid YAML").WithCause(err)
	}
	if v != nil {
		if err := v.ValidateCatalog(raw); err != nil {
			return nil, err
		}
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeConfig, "decode catalog").WithCause(err)
	}
	return New(doc)
}

// New builds a Catalog from an already-decoded document and checks the
// cross references a schema cannot express.
func New(doc Document) (*Catalog, error) {
	c := &Catalog{
		version:       doc.Version,
		wizardSection: doc.WizardSection,
		steps:         make([]schema.StepDefinition, len(doc.Steps)),
		sections:      make([]schema.SectionDefinition, len(doc.Sections)),
		stepIndex:     make(map[string]int, len(doc.Steps)),
		sectionIndex:  make(map[string]int, len(doc.Sections)),
	}
	copy(c.steps, doc.Steps)
	copy(c.sections, doc.Sections)

	problems := schema.NewProblems(schema.ErrCodeConfig)
	for i, sec := range c.sections {
		if _, dup := c.sectionIndex[sec.ID]; dup {
			problems.Addf(fmt.Sprintf("sections[%d].id", i), "duplicate section id %q", sec.ID)
			continue
		}
		c.sectionIndex[sec.ID] = i
	}
	wizardIdx, ok := c.sectionIndex[c.wizardSection]
	if !ok {
		problems.Addf("wizard_section", "wizard section %q is not a declared section", c.wizardSection)
	}

	for i, step := range c.steps {
		path := fmt.Sprintf("steps[%d]", i)
		if _, dup := c.stepIndex[step.ID]; dup {
			problems.Addf(path+".id", "duplicate step id %q", step.ID)
			continue
		}
		if _, clash := c.sectionIndex[step.ID]; clash {
			problems.Addf(path+".id", "step id %q collides with a section id", step.ID)
		}
		if !step.Kind.Valid() {
			problems.Addf(path+".kind", "unknown step kind %q", step.Kind)
		}
		if step.Kind.HasOptions() && len(step.Options) == 0 {
			problems.Addf(path+".options", "%s step %q has no options", step.Kind, step.ID)
		}
		if step.IsConditional && step.VisibleWhen == "" {
			problems.Addf(path+".visible_when", "conditional step %q has no visibility rule", step.ID)
		}
		c.stepIndex[step.ID] = i
	}
	for i, step := range c.steps {
		for _, dep := range step.DependsOn {
			if _, ok := c.stepIndex[dep]; !ok {
				problems.Addf(fmt.Sprintf("steps[%d].depends_on", i), "step %q depends on unknown step %q", step.ID, dep)
			}
		}
	}
	if err := problems.Err(); err != nil {
		return nil, err
	}

	if ok {
		ids := make([]string, len(c.steps))
		for i, s := range c.steps {
			ids[i] = s.ID
		}
		c.sections[wizardIdx].Steps = ids
	}
	return c, nil
}

// Version returns the catalog document version.
func (c *Catalog) Version() int { return c.version }

// WizardSection returns the id of the section whose questions the wizard asks.
func (c *Catalog) WizardSection() string { return c.wizardSection }

// Get returns the step with the given id.
func (c *Catalog) Get(id string) (schema.StepDefinition, bool) {
	i, ok := c.stepIndex[id]
	if !ok {
		return schema.StepDefinition{}, false
	}
	return c.steps[i], true
}

// MustGet is Get for ids known at compile time; it panics on unknown ids.
func (c *Catalog) MustGet(id string) schema.StepDefinition {
	s, ok := c.Get(id)
	if !ok {
		panic(fmt.Sprintf("catalog: unknown step %q", id))
	}
	return s
}

// Position returns the declared position of a step, or -1.
func (c *Catalog) Position(id string) int {
	if i, ok := c.stepIndex[id]; ok {
		return i
	}
	return -1
}

// Steps returns every step in declared order. The slice is a copy.
func (c *Catalog) Steps() []schema.StepDefinition {
	out := make([]schema.StepDefinition, len(c.steps))
	copy(out, c.steps)
	return out
}

// Section returns the section with the given id.
func (c *Catalog) Section(id string) (schema.SectionDefinition, bool) {
	i, ok := c.sectionIndex[id]
	if !ok {
		return schema.SectionDefinition{}, false
	}
	return c.sections[i], true
}

// Sections returns every section in progress order. The slice is a copy.
func (c *Catalog) Sections() []schema.SectionDefinition {
	out := make([]schema.SectionDefinition, len(c.sections))
	copy(out, c.sections)
	return out
}

// SectionOf returns the progress section that asks the given step.
func (c *Catalog) SectionOf(stepID string) (string, bool) {
	if _, ok := c.stepIndex[stepID]; ok {
		return c.wizardSection, true
	}
	return "", false
}

// FirstSection returns the id of the first progress section.
func (c *Catalog) FirstSection() string {
	if len(c.sections) == 0 {
		return ""
	}
	return c.sections[0].ID
}

// Known reports whether id names a step or a section.
func (c *Catalog) Known(id string) bool {
	_, step := c.stepIndex[id]
	_, sec := c.sectionIndex[id]
	return step || sec
}
