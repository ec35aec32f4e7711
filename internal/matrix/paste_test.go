package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"priceforge/pkg/catalog"
)

func usdKey(s, tier string) CellKey {
	return CellKey{Currency: "USD", Seats: seats(s), Tier: catalog.NormalizeTier(tier)}
}

func TestPaste2DFillsSeatByTier(t *testing.T) {
	m := tieredFixture()

	// Three rows by two columns anchored at the grid origin: rows advance the
	// seat axis, columns the USD tier axis.
	err := m.Paste(usdKey("1-5", ""), "12.00\t8.50\n11.00\t7.50\n10.00\t6.50\n")
	require.NoError(t, err)

	assert.Equal(t, "12", m.InputAt(usdKey("1-5", "")))
	assert.Equal(t, "8.5", m.InputAt(usdKey("1-5", "STAFF")))
	assert.Equal(t, "11", m.InputAt(usdKey("6-10", "")))
	assert.Equal(t, "7.5", m.InputAt(usdKey("6-10", "STAFF")))
	assert.Equal(t, "10", m.InputAt(usdKey("11+", "")))
	assert.Equal(t, "6.5", m.InputAt(usdKey("11+", "STAFF")))
	assert.True(t, m.Dirty())
}

func TestPasteClampsAtBothAxes(t *testing.T) {
	m := tieredFixture()

	// 4x3 block against a 3-range, 2-tier grid: the extra row and column are
	// dropped, never wrapped into another currency or back to the top.
	block := "1\t2\t3\n4\t5\t6\n7\t8\t9\n10\t11\t12\n"
	require.NoError(t, m.Paste(usdKey("1-5", ""), block))

	assert.Equal(t, "7", m.InputAt(usdKey("11+", "")))
	assert.Equal(t, "8", m.InputAt(usdKey("11+", "STAFF")))
	for _, c := range []string{"EUR"} {
		for _, r := range m.SeatRanges() {
			key := CellKey{Currency: c, Seats: r, Tier: catalog.NullTier}
			assert.Empty(t, m.InputAt(key), "paste must not leak into %s", key)
		}
	}
}

func TestPasteAnchoredMidGrid(t *testing.T) {
	m := tieredFixture()

	require.NoError(t, m.Paste(usdKey("6-10", "STAFF"), "5.00\t9.99\n4.00\n"))

	// The second column falls off the tier axis; the block only covers the
	// STAFF column from the anchor down.
	assert.Equal(t, "5", m.InputAt(usdKey("6-10", "STAFF")))
	assert.Equal(t, "4", m.InputAt(usdKey("11+", "STAFF")))
	assert.Empty(t, m.InputAt(usdKey("1-5", "STAFF")))
	assert.Empty(t, m.InputAt(usdKey("6-10", "")))
}

func TestPaste1DSingleColumnStaysInAnchorTier(t *testing.T) {
	m := tieredFixture()

	require.NoError(t, m.Paste(usdKey("1-5", "STAFF"), "7.00\n6.00\n5.00"))

	assert.Equal(t, "7", m.InputAt(usdKey("1-5", "STAFF")))
	assert.Equal(t, "6", m.InputAt(usdKey("6-10", "STAFF")))
	assert.Equal(t, "5", m.InputAt(usdKey("11+", "STAFF")))
	assert.Empty(t, m.InputAt(usdKey("1-5", "")), "single-column paste must not touch other tiers")
}

func TestPasteUnparseableCellClears(t *testing.T) {
	m := tieredFixture()
	require.NoError(t, m.SetCell(usdKey("1-5", ""), "11.00"))

	require.NoError(t, m.Paste(usdKey("1-5", ""), "n/a\n12.00"))

	assert.Empty(t, m.InputAt(usdKey("1-5", "")), "a failed parse is an explicit clear")
	assert.Equal(t, "12", m.InputAt(usdKey("6-10", "")))
}

func TestPasteNormalizesSeparators(t *testing.T) {
	m := tieredFixture()

	require.NoError(t, m.Paste(usdKey("1-5", ""), "1,250.00\r\n1,000.00\r\n"))

	assert.Equal(t, "1250", m.InputAt(usdKey("1-5", "")))
	assert.Equal(t, "1000", m.InputAt(usdKey("6-10", "")))
}

func TestUndoPasteRestoresWholesale(t *testing.T) {
	m := tieredFixture()
	require.NoError(t, m.SetCell(usdKey("1-5", ""), "11.00"))
	require.NoError(t, m.SetCell(usdKey("6-10", ""), "wip"))

	require.NoError(t, m.Paste(usdKey("1-5", ""), "50\t60\n70\t80\n"))
	require.True(t, m.Dirty())

	restored := m.UndoPaste()
	require.True(t, restored)

	assert.Equal(t, "11.00", m.InputAt(usdKey("1-5", "")), "undo restores the exact typed text")
	assert.Equal(t, "wip", m.InputAt(usdKey("6-10", "")))
	assert.Empty(t, m.InputAt(usdKey("1-5", "STAFF")))
	assert.True(t, m.Dirty(), "the pre-paste 11.00 edit is still a change")

	assert.False(t, m.UndoPaste(), "only one undo level is kept")
}

func TestUndoPasteAfterSecondPasteRestoresFirstResult(t *testing.T) {
	m := tieredFixture()

	require.NoError(t, m.Paste(usdKey("1-5", ""), "20\n"))
	require.NoError(t, m.Paste(usdKey("1-5", ""), "30\n"))

	require.True(t, m.UndoPaste())
	assert.Equal(t, "20", m.InputAt(usdKey("1-5", "")))
}

func TestUndoPasteUnavailableBeforeAnyPaste(t *testing.T) {
	m := tieredFixture()
	require.NoError(t, m.SetCell(usdKey("1-5", ""), "11.00"))

	assert.False(t, m.UndoPaste(), "manual edits do not arm the undo")
	assert.Equal(t, "11.00", m.InputAt(usdKey("1-5", "")))
}

func TestPasteEmptyTextIsNoop(t *testing.T) {
	m := tieredFixture()
	require.NoError(t, m.SetCell(usdKey("1-5", ""), "11.00"))

	require.NoError(t, m.Paste(usdKey("1-5", ""), ""))

	assert.Equal(t, "11.00", m.InputAt(usdKey("1-5", "")))
	assert.False(t, m.UndoPaste(), "a no-op paste does not arm the undo")
}

func TestPasteTrailingEmptyRowIsAnExplicitClear(t *testing.T) {
	m := tieredFixture()
	require.NoError(t, m.SetCell(usdKey("6-10", ""), "11.00"))

	// "12.00\n\n" is a value plus one deliberately empty row; only the final
	// terminator is dropped, so the empty row clears the next cell down.
	require.NoError(t, m.Paste(usdKey("1-5", ""), "12.00\n\n"))

	assert.Equal(t, "12", m.InputAt(usdKey("1-5", "")))
	assert.Empty(t, m.InputAt(usdKey("6-10", "")))
}

func TestPasteUnknownAnchorFails(t *testing.T) {
	m := tieredFixture()
	err := m.Paste(CellKey{Currency: "JPY", Seats: seats("1-5"), Tier: catalog.NullTier}, "10\n")
	assert.ErrorIs(t, err, ErrUnknownCell)
}
