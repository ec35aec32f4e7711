package wizard

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceforge/pkg/catalog"
)

func TestEditingContextComplete(t *testing.T) {
	var c EditingContext
	assert.False(t, c.Complete())

	c.Channel = catalog.ChannelOnline
	c.Cycle = catalog.CycleAnnual
	assert.False(t, c.Complete(), "action still missing")

	c.Action = ActionUpdate
	assert.True(t, c.Complete())
}

func TestEditingContextValidateReferenceInvariant(t *testing.T) {
	g1 := &catalog.PriceGroup{ID: uuid.New()}
	g2 := &catalog.PriceGroup{ID: uuid.New()}

	assert.Error(t, EditingContext{Action: ActionUpdate, Existing: g1, CloneFrom: g2}.Validate())
	assert.Error(t, EditingContext{Action: ActionCreate, Existing: g1}.Validate())
	assert.Error(t, EditingContext{Action: ActionUpdate, CloneFrom: g2}.Validate())
	assert.NoError(t, EditingContext{Action: ActionUpdate, Existing: g1}.Validate())
	assert.NoError(t, EditingContext{Action: ActionCreate, CloneFrom: g2}.Validate())
	assert.NoError(t, EditingContext{Action: ActionCreate}.Validate())
}

func TestContextFormResetFiresOnRealChangesOnly(t *testing.T) {
	resets := 0
	f := NewContextForm(func() { resets++ })

	f.SetChannel(catalog.ChannelOnline)
	assert.Equal(t, 1, resets)
	f.SetChannel(catalog.ChannelOnline)
	assert.Equal(t, 1, resets, "setting the same value is not a change")
	f.SetChannel(catalog.ChannelField)
	assert.Equal(t, 2, resets)

	f.SetCycle(catalog.CycleAnnual)
	assert.Equal(t, 3, resets)
	f.SetCycle(catalog.CycleAnnual)
	assert.Equal(t, 3, resets)
}

func TestContextFormSetActionDropsMismatchedReference(t *testing.T) {
	f := NewContextForm(nil)
	g := &catalog.PriceGroup{ID: uuid.New()}

	f.SetExistingGroup(g)
	require.Equal(t, ActionUpdate, f.Context().Action)
	require.Same(t, g, f.Context().Existing)

	f.SetAction(ActionCreate)
	assert.Nil(t, f.Context().Existing, "create cannot keep an update target")
	assert.NoError(t, f.Context().Validate())
}

func TestContextFormExperimentBothOrNeither(t *testing.T) {
	f := NewContextForm(nil)

	f.SetExperiment("pricing.lix", "variant_b")
	require.NotNil(t, f.Context().Experiment)

	f.SetExperiment("pricing.lix", "")
	assert.Nil(t, f.Context().Experiment, "blanking one half clears the pair")

	f.SetExperiment("", "variant_b")
	assert.Nil(t, f.Context().Experiment)
}

func TestSelectCloneSourcePrefillsContext(t *testing.T) {
	resets := 0
	f := NewContextForm(func() { resets++ })
	group := &catalog.PriceGroup{ID: uuid.New()}
	src := catalog.Sku{
		ID:           uuid.New(),
		Channel:      catalog.ChannelReseller,
		Cycle:        catalog.CycleMonthly,
		PriceGroupID: group.ID,
		Experiment:   catalog.NewExperiment("pricing.lix", "variant_a"),
	}

	f.SelectCloneSource(src, group)

	ctx := f.Context()
	assert.Equal(t, ActionCreate, ctx.Action)
	assert.Equal(t, catalog.ChannelReseller, ctx.Channel)
	assert.Equal(t, catalog.CycleMonthly, ctx.Cycle)
	assert.Same(t, group, ctx.CloneFrom)
	assert.Equal(t, "pricing.lix", ctx.Experiment.Key)
	assert.Equal(t, 1, resets)
}

func TestClearCloneSourceResetsEverythingItPrefilled(t *testing.T) {
	resets := 0
	f := NewContextForm(func() { resets++ })
	group := &catalog.PriceGroup{ID: uuid.New()}
	src := catalog.Sku{
		Channel:    catalog.ChannelReseller,
		Cycle:      catalog.CycleMonthly,
		Experiment: catalog.NewExperiment("pricing.lix", "variant_a"),
	}
	f.SelectCloneSource(src, group)
	resets = 0

	f.ClearCloneSource()

	ctx := f.Context()
	assert.Nil(t, ctx.CloneFrom)
	assert.Empty(t, ctx.Channel)
	assert.Empty(t, ctx.Cycle)
	assert.Nil(t, ctx.Experiment)
	assert.Equal(t, 1, resets, "the hook clears downstream state exactly once")

	f.ClearCloneSource()
	assert.Equal(t, 1, resets, "clearing twice is a no-op")
}

func TestFrozenFormIgnoresAllMutation(t *testing.T) {
	f := NewContextForm(nil)
	f.SetChannel(catalog.ChannelOnline)
	f.SetCycle(catalog.CycleAnnual)
	f.SetAction(ActionUpdate)
	f.frozen = true

	f.SetChannel(catalog.ChannelField)
	f.SetCycle(catalog.CycleMonthly)
	f.SetAction(ActionCreate)
	f.SetExperiment("k", "t")
	f.ClearCloneSource()

	ctx := f.Context()
	assert.Equal(t, catalog.ChannelOnline, ctx.Channel)
	assert.Equal(t, catalog.CycleAnnual, ctx.Cycle)
	assert.Equal(t, ActionUpdate, ctx.Action)
	assert.Nil(t, ctx.Experiment)
}

func TestChannelAndCycleOptionsPartition(t *testing.T) {
	p := &catalog.Product{Skus: []catalog.Sku{
		{Channel: catalog.ChannelOnline, Cycle: catalog.CycleAnnual},
		{Channel: catalog.ChannelField, Cycle: catalog.CycleAnnual},
	}}

	channels := ChannelOptions(p)
	require.Len(t, channels, len(catalog.AllChannels))
	byChannel := make(map[catalog.SalesChannel]bool)
	for _, o := range channels {
		byChannel[o.Channel] = o.InUse
	}
	assert.True(t, byChannel[catalog.ChannelOnline])
	assert.True(t, byChannel[catalog.ChannelField])
	assert.False(t, byChannel[catalog.ChannelReseller])

	cycles := CycleOptions(p)
	require.Len(t, cycles, len(catalog.AllCycles))
	for _, o := range cycles {
		assert.Equal(t, o.Cycle == catalog.CycleAnnual, o.InUse)
	}
}

func TestSkuResolution(t *testing.T) {
	var r SkuResolution
	assert.Error(t, r.Valid(), "unset mode blocks")

	r.ChooseNew()
	assert.NoError(t, r.Valid())
	assert.Nil(t, r.Existing)
	_, ok := r.GroupID()
	assert.False(t, ok)

	sku := catalog.Sku{ID: uuid.New(), PriceGroupID: uuid.New()}
	r.ChooseExisting(sku)
	assert.NoError(t, r.Valid())
	id, ok := r.GroupID()
	require.True(t, ok)
	assert.Equal(t, sku.PriceGroupID, id)

	r = SkuResolution{Mode: SkuModeExisting}
	assert.Error(t, r.Valid(), "existing mode needs a selected SKU")
}

func TestSkuCandidates(t *testing.T) {
	match := catalog.Sku{ID: uuid.New(), Channel: catalog.ChannelOnline, Cycle: catalog.CycleAnnual}
	p := &catalog.Product{Skus: []catalog.Sku{
		match,
		{ID: uuid.New(), Channel: catalog.ChannelOnline, Cycle: catalog.CycleMonthly},
	}}

	got := SkuCandidates(p, EditingContext{Channel: catalog.ChannelOnline, Cycle: catalog.CycleAnnual})
	require.Len(t, got, 1)
	assert.Equal(t, match.ID, got[0].ID)

	assert.Nil(t, SkuCandidates(p, EditingContext{Channel: catalog.ChannelOnline}))
	assert.Nil(t, SkuCandidates(nil, EditingContext{}))
}
