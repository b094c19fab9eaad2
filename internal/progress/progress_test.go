package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/listwizard/internal/catalog"
	"github.com/rendis/listwizard/internal/completion"
	"github.com/rendis/listwizard/internal/filter"
	"github.com/rendis/listwizard/internal/legacy"
	"github.com/rendis/listwizard/pkg/schema"
)

type fixture struct {
	cat      *catalog.Catalog
	filter   *filter.Filter
	set      *completion.Set
	resolver *legacy.Resolver
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	cat := catalog.MustDefault()
	f, err := filter.New(cat, nil)
	require.NoError(t, err)
	set, err := completion.New(cat, nil)
	require.NoError(t, err)
	r, err := legacy.NewResolver(cat.FirstSection(), cat.Known)
	require.NoError(t, err)
	return fixture{cat: cat, filter: f, set: set, resolver: r}
}

func (fx fixture) build(d *schema.DraftRecord, raw, current string) View {
	return Build(Input{
		Catalog:       fx.cat,
		Completion:    fx.set,
		Resolver:      fx.resolver,
		Draft:         d,
		Visible:       fx.filter.Visible(d),
		CurrentRaw:    raw,
		CurrentStepID: current,
	})
}

func currentSections(v View) []string {
	var out []string
	for _, s := range v.Sections {
		if s.IsCurrent {
			out = append(out, s.SectionID)
		}
	}
	return out
}

func TestBuild_SectionsFollowCatalogOrder(t *testing.T) {
	fx := newFixture(t)
	v := fx.build(schema.NewDraftRecord(""), "", "")

	require.Len(t, v.Sections, 10)
	assert.Equal(t, "basic-info", v.Sections[0].SectionID)
	assert.Equal(t, "sign-paperwork", v.Sections[9].SectionID)
	assert.Equal(t, 10, v.Total)
	assert.Equal(t, 0, v.Completed)
}

func TestBuild_LegacyIDMarksCanonicalSectionCurrent(t *testing.T) {
	fx := newFixture(t)
	d := schema.NewDraftRecord("")

	assert.Equal(t, []string{"basic-info"}, currentSections(fx.build(d, "home-facts", "")))
	assert.Equal(t, []string{"titleholder"}, currentSections(fx.build(d, "title-holder", "")))
	assert.Equal(t, []string{"basic-info"}, currentSections(fx.build(d, "bedrooms", "")))
}

func TestBuild_UnknownIDMarksFirstSectionCurrent(t *testing.T) {
	fx := newFixture(t)
	v := fx.build(schema.NewDraftRecord(""), "no-such-page", "")

	assert.Equal(t, []string{"basic-info"}, currentSections(v))
	require.NotEmpty(t, v.Steps)
	assert.True(t, v.Steps[0].IsCurrent)
	assert.Equal(t, "address", v.CurrentStep)
}

func TestBuild_CompletionAndAnsweredFlags(t *testing.T) {
	fx := newFixture(t)
	d := schema.NewDraftRecord("")
	d.SetField("propertySpecs", "propertyType", "land")
	d.SetSection("basicInfo", schema.Section{"propertyType": "land"})
	d.SetField("listingService", "serviceType", "full")
	d.SetField("listingService", "termsAccepted", true)

	v := fx.build(d, "", "propertyType")

	assert.Equal(t, 2, v.Completed)
	assert.True(t, v.Sections[0].IsComplete)
	assert.True(t, v.Sections[1].IsComplete)
	assert.False(t, v.Sections[2].IsComplete)

	require.Len(t, v.Steps, 5)
	assert.False(t, v.Steps[0].Answered)
	assert.True(t, v.Steps[1].Answered)
	assert.True(t, v.Steps[1].IsCurrent)
	assert.Equal(t, "propertyType", v.CurrentStep)
}

func TestBuild_HiddenCurrentStepFallsBackToRaw(t *testing.T) {
	fx := newFixture(t)
	d := schema.NewDraftRecord("")
	d.SetField("propertySpecs", "propertyType", "land")

	v := fx.build(d, "survey", "bedrooms")

	assert.Equal(t, "survey", v.CurrentStep)
	n := 0
	for _, s := range v.Steps {
		if s.IsCurrent {
			n++
		}
	}
	assert.Equal(t, 1, n)
}
