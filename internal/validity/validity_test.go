package validity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceforge/pkg/catalog"
)

var now = time.Date(2026, 3, 10, 15, 45, 0, 0, time.UTC)

func fixedNow() time.Time { return now }

func TestDefaultWindowSevenDaysOutOpenEnded(t *testing.T) {
	r := NewResolver(fixedNow)
	w := r.DefaultWindow()

	assert.Equal(t, time.Date(2026, 3, 17, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Nil(t, w.End)
}

func TestWindowValidate(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	assert.NoError(t, Window{Start: start, End: &end}.Validate())
	assert.NoError(t, Window{Start: start}.Validate())

	before := start.AddDate(0, 0, -1)
	assert.Error(t, Window{Start: start, End: &before}.Validate())
}

func TestOverrideAndClear(t *testing.T) {
	r := NewResolver(fixedNow)
	custom := Window{Start: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, r.Override("EUR", custom))
	assert.True(t, r.Overridden("EUR"))

	got := r.Resolve("EUR", false, true, nil)
	assert.Equal(t, SourceOverride, got.Source)
	assert.Equal(t, custom.Start, got.Window.Start)

	r.ClearOverride("EUR")
	assert.False(t, r.Overridden("EUR"))
	got = r.Resolve("EUR", false, true, nil)
	assert.Equal(t, SourceDefault, got.Source)
	assert.Equal(t, r.DefaultWindow().Start, got.Window.Start)
}

func TestOverrideRejectsInvertedWindow(t *testing.T) {
	r := NewResolver(fixedNow)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -2)
	assert.Error(t, r.Override("EUR", Window{Start: start, End: &end}))
	assert.False(t, r.Overridden("EUR"))
}

func TestResolveUnchangedBaselineCurrencyIsReadOnly(t *testing.T) {
	r := NewResolver(fixedNow)
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	points := []catalog.PricePoint{
		{Currency: "USD", Amount: decimal.NewFromInt(10), ValidFrom: older},
		{Currency: "USD", Amount: decimal.NewFromInt(12), ValidFrom: newer, ValidUntil: &until},
		{Currency: "EUR", Amount: decimal.NewFromInt(9), ValidFrom: older},
	}

	got := r.Resolve("USD", true, false, points)
	assert.Equal(t, SourceBaseline, got.Source)
	assert.Equal(t, newer, got.Window.Start, "latest valid-from wins")
	require.NotNil(t, got.Window.End)
	assert.Equal(t, until, *got.Window.End)

	// An override cannot displace an inherited baseline window.
	require.NoError(t, r.Override("USD", Window{Start: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)}))
	got = r.Resolve("USD", true, false, points)
	assert.Equal(t, SourceBaseline, got.Source)
}

func TestResolveChangedBaselineCurrencyTakesDefault(t *testing.T) {
	r := NewResolver(fixedNow)
	points := []catalog.PricePoint{
		{Currency: "USD", Amount: decimal.NewFromInt(10), ValidFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	got := r.Resolve("USD", true, true, points)
	assert.Equal(t, SourceDefault, got.Source)
	assert.Equal(t, r.DefaultWindow().Start, got.Window.Start)
}

func TestResetDropsAllOverrides(t *testing.T) {
	r := NewResolver(fixedNow)
	require.NoError(t, r.Override("USD", Window{Start: now}))
	require.NoError(t, r.Override("EUR", Window{Start: now}))

	r.Reset()

	assert.False(t, r.Overridden("USD"))
	assert.False(t, r.Overridden("EUR"))
}

func TestResolveAll(t *testing.T) {
	r := NewResolver(fixedNow)
	points := []catalog.PricePoint{
		{Currency: "USD", Amount: decimal.NewFromInt(10), ValidFrom: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	baseline := map[string]bool{"USD": true}
	changed := map[string]bool{"EUR": true}

	got := r.ResolveAll([]string{"USD", "EUR"}, baseline, changed, points)

	require.Len(t, got, 2)
	assert.Equal(t, SourceBaseline, got["USD"].Source)
	assert.Equal(t, SourceDefault, got["EUR"].Source)
}
