// Package legacy keeps drafts saved by earlier product revisions working:
// it maps old step ids onto the current catalog and upgrades old draft
// documents to the current shape.
package legacy

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rendis/listwizard/pkg/schema"
)

//go:embed aliases.yaml
var defaultAliases []byte

// AliasTable is the versioned old-id to canonical-id mapping.
type AliasTable struct {
	Version int               `yaml:"version"`
	Aliases map[string]string `yaml:"aliases"`
}

// KnownFunc reports whether an id exists in the current catalog.
type KnownFunc func(id string) bool

// Resolver translates raw step ids into canonical catalog ids. The table is
// read-only after construction.
type Resolver struct {
	table  AliasTable
	first  string
	known  KnownFunc
	logger *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used to report fallbacks.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithTable replaces the embedded alias table.
func WithTable(t AliasTable) Option {
	return func(r *Resolver) { r.table = t }
}

// NewResolver loads the embedded alias table. first is the id used when a
// raw id cannot be resolved to anything known.
func NewResolver(first string, known KnownFunc, opts ...Option) (*Resolver, error) {
	r := &Resolver{first: first, known: known}
	if err := yaml.Unmarshal(defaultAliases, &r.table); err != nil {
		return nil, schema.NewError(schema.ErrCodeConfig, "decode alias table").WithCause(err)
	}
	for _, o := range opts {
		o(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if known != nil {
		for old, canonical := range r.table.Aliases {
			if !known(canonical) {
				return nil, schema.NewErrorf(schema.ErrCodeConfig,
					"alias %q points at unknown id %q", old, canonical)
			}
		}
	}
	return r, nil
}

// Version returns the alias table version.
func (r *Resolver) Version() int { return r.table.Version }

// Resolve returns the canonical id for raw. Ids without an alias are
// returned unchanged.
func (r *Resolver) Resolve(raw string) string {
	if canonical, ok := r.table.Aliases[raw]; ok {
		return canonical
	}
	return raw
}

// ResolveOrFirst resolves raw and falls back to the first step when the
// result is not a known id. It never fails.
func (r *Resolver) ResolveOrFirst(raw string) string {
	id := r.Resolve(raw)
	if r.known == nil || r.known(id) {
		return id
	}
	if raw != "" {
		r.logger.Warn("unresolvable step id, falling back to first step",
			slog.String("raw_step_id", raw),
			slog.String("fallback", r.first),
		)
	}
	return r.first
}

// Aliases returns the old ids that resolve to canonical.
func (r *Resolver) Aliases(canonical string) []string {
	var out []string
	for old, c := range r.table.Aliases {
		if c == canonical {
			out = append(out, old)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Resolver) String() string {
	return fmt.Sprintf("legacy.Resolver(v%d, %d aliases)", r.table.Version, len(r.table.Aliases))
}
