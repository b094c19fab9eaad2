// Package completion decides, per progress section, whether a draft has
// enough in it for the section to count as done.
package completion

import (
	"log/slog"
	"os"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/listwizard/internal/catalog"
	"github.com/rendis/listwizard/pkg/schema"
)

// Set holds one compiled predicate per section. Compiled programs are
// immutable, so a Set is safe for concurrent use.
type Set struct {
	order      []string
	predicates map[string]*vm.Program
	logger     *slog.Logger
}

// New compiles the predicate of every catalog section.
func New(c *catalog.Catalog, logger *slog.Logger) (*Set, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	s := &Set{
		predicates: make(map[string]*vm.Program),
		logger:     logger,
	}
	for _, sec := range c.Sections() {
		prg, err := expr.Compile(sec.Predicate,
			expr.Env(map[string]any{}),
			expr.AllowUndefinedVariables(),
		)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeConfig,
				"completion predicate for %q does not compile: %s", sec.ID, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"expression": sec.Predicate})
		}
		s.order = append(s.order, sec.ID)
		s.predicates[sec.ID] = prg
	}
	return s, nil
}

// Complete reports whether the section is done. Unknown sections, missing
// draft data, evaluation errors and non-bool results all count as incomplete.
func (s *Set) Complete(sectionID string, d *schema.DraftRecord) bool {
	prg, ok := s.predicates[sectionID]
	if !ok {
		return false
	}
	return s.eval(sectionID, prg, d.Env())
}

// All evaluates every section against one snapshot of the draft.
func (s *Set) All(d *schema.DraftRecord) map[string]bool {
	env := d.Env()
	out := make(map[string]bool, len(s.order))
	for _, id := range s.order {
		out[id] = s.eval(id, s.predicates[id], env)
	}
	return out
}

// CompletedCount returns how many sections are done.
func (s *Set) CompletedCount(d *schema.DraftRecord) int {
	n := 0
	for _, done := range s.All(d) {
		if done {
			n++
		}
	}
	return n
}

func (s *Set) eval(sectionID string, prg *vm.Program, env map[string]any) bool {
	out, err := expr.Run(prg, env)
	if err != nil {
		s.logger.Debug("completion predicate failed, treating as incomplete",
			slog.String("section", sectionID),
			slog.String("error", err.Error()),
		)
		return false
	}
	done, ok := out.(bool)
	return ok && done
}
