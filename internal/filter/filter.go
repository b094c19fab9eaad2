// Package filter computes the ordered list of wizard steps that apply to a
// draft. The result depends only on the catalog and four draft fields.
package filter

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/cel-go/cel"

	"github.com/rendis/listwizard/internal/catalog"
	"github.com/rendis/listwizard/pkg/schema"
)

// Property types that change the step list.
const (
	PropertyTypeLand     = "land"
	PropertyTypeCondo    = "condo"
	PropertyTypeTownhome = "townhome"
)

// landSteps is the complete list for a land parcel.
var landSteps = map[string]bool{
	"address":      true,
	"propertyType": true,
	"lotSize":      true,
	"survey":       true,
	"occupancy":    true,
}

// attachedExcluded are dropped for condos and townhomes.
var attachedExcluded = map[string]bool{
	"lotSize": true,
}

// Inputs are the only draft fields the filter reads.
type Inputs struct {
	PropertyType        string
	CoveredParking      string
	SquareFootageSource string
	OccupancyStatus     string
}

// InputsFrom extracts filter inputs from a draft. Missing fields are "".
func InputsFrom(d *schema.DraftRecord) Inputs {
	return Inputs{
		PropertyType:        d.String("propertySpecs", "propertyType"),
		CoveredParking:      d.String("propertySpecs", "coveredParking"),
		SquareFootageSource: d.String("propertySpecs", "squareFootageSource"),
		OccupancyStatus:     d.String("occupancy", "status"),
	}
}

func (in Inputs) activation() map[string]any {
	return map[string]any{
		"propertyType":        in.PropertyType,
		"coveredParking":      in.CoveredParking,
		"squareFootageSource": in.SquareFootageSource,
		"occupancyStatus":     in.OccupancyStatus,
	}
}

// Filter evaluates visibility over a catalog. Conditional rules are CEL
// programs compiled once at construction; Filter is safe for concurrent use.
type Filter struct {
	catalog *catalog.Catalog
	rules   map[string]cel.Program
	logger  *slog.Logger
}

// New compiles every visible_when rule in the catalog. A rule that does not
// compile, or does not produce a bool, is a configuration error.
func New(c *catalog.Catalog, logger *slog.Logger) (*Filter, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	env, err := cel.NewEnv(
		cel.Variable("propertyType", cel.StringType),
		cel.Variable("coveredParking", cel.StringType),
		cel.Variable("squareFootageSource", cel.StringType),
		cel.Variable("occupancyStatus", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	f := &Filter{
		catalog: c,
		rules:   make(map[string]cel.Program),
		logger:  logger,
	}
	for _, step := range c.Steps() {
		if step.VisibleWhen == "" {
			continue
		}
		ast, issues := env.Compile(step.VisibleWhen)
		if issues != nil && issues.Err() != nil {
			return nil, schema.NewErrorf(schema.ErrCodeConfig,
				"visibility rule %q does not compile: %s", step.VisibleWhen, issues.Err().Error()).
				WithStep(step.ID).WithCause(issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, schema.NewErrorf(schema.ErrCodeConfig,
				"visibility rule %q must be bool, got %s", step.VisibleWhen, ast.OutputType()).
				WithStep(step.ID)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeConfig,
				"visibility rule %q: %s", step.VisibleWhen, err.Error()).
				WithStep(step.ID).WithCause(err)
		}
		f.rules[step.ID] = prg
	}
	return f, nil
}

// Catalog returns the catalog the filter was built over.
func (f *Filter) Catalog() *catalog.Catalog { return f.catalog }

// Visible returns the steps that apply to the draft, in catalog order.
func (f *Filter) Visible(d *schema.DraftRecord) []schema.StepDefinition {
	return f.VisibleFor(InputsFrom(d))
}

// VisibleFor is Visible over explicit inputs.
func (f *Filter) VisibleFor(in Inputs) []schema.StepDefinition {
	all := f.catalog.Steps()
	out := make([]schema.StepDefinition, 0, len(all))
	act := in.activation()
	for _, step := range all {
		if !retainedForPropertyType(step.ID, in.PropertyType) {
			continue
		}
		if !f.ruleAllows(step, act) {
			continue
		}
		out = append(out, step)
	}
	return out
}

// VisibleIDs returns the ids of Visible(d).
func (f *Filter) VisibleIDs(d *schema.DraftRecord) []string {
	steps := f.Visible(d)
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.ID
	}
	return ids
}

// IsVisible reports whether a single step applies to the draft.
func (f *Filter) IsVisible(stepID string, d *schema.DraftRecord) bool {
	step, ok := f.catalog.Get(stepID)
	if !ok {
		return false
	}
	in := InputsFrom(d)
	return retainedForPropertyType(step.ID, in.PropertyType) && f.ruleAllows(step, in.activation())
}

func retainedForPropertyType(stepID, propertyType string) bool {
	switch propertyType {
	case PropertyTypeLand:
		return landSteps[stepID]
	case PropertyTypeCondo, PropertyTypeTownhome:
		return !attachedExcluded[stepID]
	default:
		return true
	}
}

// ruleAllows evaluates the step's CEL rule. Evaluation errors hide the step.
func (f *Filter) ruleAllows(step schema.StepDefinition, act map[string]any) bool {
	prg, ok := f.rules[step.ID]
	if !ok {
		return true
	}
	out, _, err := prg.Eval(act)
	if err != nil {
		f.logger.Warn("visibility rule failed, hiding step",
			slog.String("step_id", step.ID),
			slog.String("error", err.Error()),
		)
		return false
	}
	visible, ok := out.Value().(bool)
	return ok && visible
}
