package matrix

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceforge/pkg/catalog"
)

var today = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func pt(currency, amount string, min int, max *int, tier string, from time.Time, until *time.Time) catalog.PricePoint {
	return catalog.PricePoint{
		Currency:    currency,
		Amount:      decimal.RequireFromString(amount),
		MinQuantity: min,
		MaxQuantity: max,
		Tier:        catalog.NormalizeTier(tier),
		ValidFrom:   from,
		ValidUntil:  until,
		Status:      catalog.StatusActive,
	}
}

func intp(n int) *int { return &n }

func seats(s string) catalog.SeatRange {
	r, err := catalog.ParseSeatRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

func tieredFixture() *Matrix {
	past := today.AddDate(0, -6, 0)
	return NewTiered([]catalog.PricePoint{
		pt("USD", "10.00", 1, intp(5), "", past, nil),
		pt("USD", "9.00", 6, intp(10), "", past, nil),
		pt("USD", "8.00", 11, nil, "", past, nil),
		pt("USD", "7.50", 1, intp(5), "STAFF", past, nil),
		pt("USD", "6.50", 6, intp(10), "STAFF", past, nil),
		pt("EUR", "9.00", 1, intp(5), "", past, nil),
		pt("EUR", "8.00", 6, intp(10), "", past, nil),
	}, today)
}

func TestTieredPivotAxes(t *testing.T) {
	m := tieredFixture()

	assert.Equal(t, []string{"USD", "EUR"}, m.Currencies())

	var got []string
	for _, r := range m.SeatRanges() {
		got = append(got, r.String())
	}
	assert.Equal(t, []string{"1-5", "6-10", "11+"}, got)

	assert.Equal(t, []string{catalog.NullTier, "STAFF"}, m.TiersFor("USD"))
	// EUR has no staff data anywhere, so the column is omitted entirely.
	assert.Equal(t, []string{catalog.NullTier}, m.TiersFor("EUR"))
}

func TestTieredPivotFiltersExpiredPoints(t *testing.T) {
	past := today.AddDate(0, -6, 0)
	gone := today.AddDate(0, -1, 0)
	m := NewTiered([]catalog.PricePoint{
		pt("USD", "10.00", 1, intp(5), "", past, nil),
		pt("GBP", "12.00", 1, intp(5), "", past, &gone),
		pt("CAD", "11.00", 1, intp(5), "", today.AddDate(0, 1, 0), nil),
	}, today)

	assert.Equal(t, []string{"USD"}, m.Currencies())
}

func TestTieredPivotOverlappingWindowsLatestWins(t *testing.T) {
	older := today.AddDate(0, -6, 0)
	newer := today.AddDate(0, -1, 0)
	m := NewTiered([]catalog.PricePoint{
		pt("USD", "10.00", 1, intp(5), "", older, nil),
		pt("USD", "12.00", 1, intp(5), "", newer, nil),
	}, today)

	base, ok := m.BaselineAt(CellKey{Currency: "USD", Seats: seats("1-5"), Tier: catalog.NullTier})
	require.True(t, ok)
	assert.True(t, base.Equal(decimal.RequireFromString("12.00")))
}

func TestSetCellAndDirtyFlag(t *testing.T) {
	m := tieredFixture()
	key := CellKey{Currency: "USD", Seats: seats("1-5"), Tier: catalog.NullTier}

	require.NoError(t, m.SetCell(key, "10.00"))
	assert.False(t, m.Dirty(), "same price is not a change")

	require.NoError(t, m.SetCell(key, "10.005"))
	assert.False(t, m.Dirty(), "difference below epsilon is not a change")

	require.NoError(t, m.SetCell(key, "11.00"))
	assert.True(t, m.Dirty())

	require.NoError(t, m.SetCell(key, "garbage"))
	assert.False(t, m.Dirty(), "unparseable input leaves the cell unset")

	err := m.SetCell(CellKey{Currency: "JPY", Seats: seats("1-5"), Tier: catalog.NullTier}, "5")
	assert.ErrorIs(t, err, ErrUnknownCell)
}

func TestCellAtDerivesDelta(t *testing.T) {
	m := tieredFixture()
	key := CellKey{Currency: "USD", Seats: seats("1-5"), Tier: catalog.NullTier}
	require.NoError(t, m.SetCell(key, "11.00"))

	cell, ok := m.CellAt(key)
	require.True(t, ok)
	require.NotNil(t, cell.Current)
	require.NotNil(t, cell.Delta)
	assert.True(t, cell.Delta.Amount.Equal(decimal.RequireFromString("1")))
	assert.True(t, cell.Delta.Percentage.Equal(decimal.NewFromInt(10)))
}

func TestSnapshotIsImmutable(t *testing.T) {
	m := tieredFixture()
	key := CellKey{Currency: "USD", Seats: seats("1-5"), Tier: catalog.NullTier}
	require.NoError(t, m.SetCell(key, "11.00"))

	snap := m.Snapshot()
	require.NoError(t, m.SetCell(key, "99.00"))

	assert.Equal(t, "11.00", snap.Inputs[key])
}

func TestFlatMatrixCurrencySelection(t *testing.T) {
	m := NewFlat(nil, today)
	require.NoError(t, m.AddCurrency("EUR"))
	require.NoError(t, m.AddCurrency("USD"))
	require.NoError(t, m.AddCurrency("CHF"))
	require.NoError(t, m.AddCurrency("AUD"))

	assert.Equal(t, []string{"USD", "EUR", "AUD", "CHF"}, m.Currencies())

	require.NoError(t, m.SetCell(FlatKey("EUR"), "5.00"))
	assert.True(t, m.Dirty())

	require.NoError(t, m.RemoveCurrency("EUR"))
	assert.False(t, m.Dirty(), "removing a currency clears its input")
	assert.Equal(t, []string{"USD", "AUD", "CHF"}, m.Currencies())
}

func TestFlatMatrixBaselineCurrencyCannotBeRemoved(t *testing.T) {
	past := today.AddDate(0, -6, 0)
	m := NewFlat([]catalog.PricePoint{
		pt("USD", "10.00", 1, nil, "", past, nil),
	}, today)

	assert.Error(t, m.RemoveCurrency("USD"))
}

func TestClearBaselineMakesEveryCellBrandNew(t *testing.T) {
	m := tieredFixture()
	m.ClearBaseline()

	key := CellKey{Currency: "USD", Seats: seats("1-5"), Tier: catalog.NullTier}
	require.NoError(t, m.SetCell(key, "10.00"))
	assert.True(t, m.Dirty(), "same text as the old price is still new after a clone")

	cell, ok := m.CellAt(key)
	require.True(t, ok)
	assert.Nil(t, cell.Current)
}

func TestResetDiscardsInputsKeepsBaseline(t *testing.T) {
	m := tieredFixture()
	key := CellKey{Currency: "USD", Seats: seats("1-5"), Tier: catalog.NullTier}
	require.NoError(t, m.SetCell(key, "11.00"))

	m.Reset()

	assert.False(t, m.Dirty())
	assert.Empty(t, m.InputAt(key))
	_, ok := m.BaselineAt(key)
	assert.True(t, ok)
}
