package legacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/listwizard/internal/catalog"
	"github.com/rendis/listwizard/pkg/schema"
)

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	c := catalog.MustDefault()
	r, err := NewResolver(c.FirstSection(), c.Known)
	require.NoError(t, err)
	return r
}

func TestResolve_KnownAliases(t *testing.T) {
	r := newResolver(t)

	for _, old := range []string{"address", "property-specs", "home-facts"} {
		assert.Equal(t, "basic-info", r.Resolve(old), old)
	}
	assert.Equal(t, "lotSize", r.Resolve("lot-size"))
	assert.Equal(t, "listing-price", r.Resolve("price"))
	assert.Equal(t, "sign-paperwork", r.Resolve("paperwork"))
}

func TestResolve_PassesCanonicalThrough(t *testing.T) {
	r := newResolver(t)
	assert.Equal(t, "coveredParking", r.Resolve("coveredParking"))
	assert.Equal(t, "listing-service", r.Resolve("listing-service"))
	assert.Equal(t, "totally-unknown", r.Resolve("totally-unknown"))
}

func TestResolveOrFirst(t *testing.T) {
	r := newResolver(t)
	assert.Equal(t, "basic-info", r.ResolveOrFirst("home-facts"))
	assert.Equal(t, "survey", r.ResolveOrFirst("survey"))
	assert.Equal(t, "basic-info", r.ResolveOrFirst("totally-unknown"))
	assert.Equal(t, "basic-info", r.ResolveOrFirst(""))
}

func TestResolve_Idempotent(t *testing.T) {
	r := newResolver(t)
	for _, raw := range []string{"home-facts", "lot-size", "survey", "owners", "nope"} {
		once := r.ResolveOrFirst(raw)
		assert.Equal(t, once, r.ResolveOrFirst(once), raw)
	}
}

func TestAliases_CollisionsAllowed(t *testing.T) {
	r := newResolver(t)
	got := r.Aliases("basic-info")
	assert.Subset(t, got, []string{"address", "home-facts", "property-specs"})
	assert.True(t, r.Version() > 0)
}

func TestNewResolver_RejectsDanglingAlias(t *testing.T) {
	c := catalog.MustDefault()
	_, err := NewResolver(c.FirstSection(), c.Known, WithTable(AliasTable{
		Version: 1,
		Aliases: map[string]string{"old": "does-not-exist"},
	}))
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeConfig, schema.CodeOf(err))
}
