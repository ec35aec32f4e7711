package matrix

import (
	"fmt"
	"strings"

	"priceforge/pkg/catalog"
)

// splitBlock cuts clipboard text into a block of cells: rows on newline,
// cells on tab. Only the single empty row produced by a terminating newline
// is dropped; any empty row before it is a real row of explicit clears.
func splitBlock(text string) [][]string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	block := make([][]string, 0, len(lines))
	for _, line := range lines {
		block = append(block, strings.Split(strings.TrimSuffix(line, "\r"), "\t"))
	}
	return block
}

// Paste applies a clipboard block anchored at the given cell. Blocks where
// every row has a single cell fill consecutive seat ranges within the
// anchor's tier; anything wider is 2D, with rows advancing the seat-range
// axis and columns advancing the tier axis for the anchor's currency. Values
// past either axis are discarded, never wrapped. A cell that fails numeric
// parse is written as an explicit clear.
//
// The full pre-paste input state is captured for a single-level undo.
func (m *Matrix) Paste(anchor CellKey, text string) error {
	if !m.cellExists(anchor) {
		return fmt.Errorf("%w: %s", ErrUnknownCell, anchor)
	}
	block := splitBlock(text)
	if len(block) == 0 {
		return nil
	}

	seatAxis := m.seatAxisFrom(anchor.Seats)
	tierAxis := []string{anchor.Tier}
	if isBlock2D(block) {
		tierAxis = m.tierAxisFrom(anchor.Currency, anchor.Tier)
	}

	m.undo = make(map[CellKey]string, len(m.inputs))
	for k, v := range m.inputs {
		m.undo[k] = v
	}

	for ri, row := range block {
		if ri >= len(seatAxis) {
			break
		}
		for ci, raw := range row {
			if ci >= len(tierAxis) {
				break
			}
			key := CellKey{Currency: anchor.Currency, Seats: seatAxis[ri], Tier: tierAxis[ci]}
			if v, ok := ParseAmount(raw); ok {
				m.inputs[key] = v.String()
			} else {
				m.inputs[key] = ""
			}
			m.refreshChanged(key)
		}
	}
	return nil
}

func isBlock2D(block [][]string) bool {
	for _, row := range block {
		if len(row) > 1 {
			return true
		}
	}
	return false
}

// seatAxisFrom returns the seat-range axis starting at the anchor's band.
func (m *Matrix) seatAxisFrom(start catalog.SeatRange) []catalog.SeatRange {
	for i, r := range m.seatRanges {
		if r == start {
			return m.seatRanges[i:]
		}
	}
	return nil
}

// tierAxisFrom returns the currency's tier axis starting at the anchor tier.
func (m *Matrix) tierAxisFrom(currency, start string) []string {
	tiers := m.tiers[currency]
	for i, t := range tiers {
		if t == start {
			return tiers[i:]
		}
	}
	return nil
}

// UndoPaste restores the input state captured by the last Paste, wholesale.
// Only one level is kept; it reports whether anything was restored.
func (m *Matrix) UndoPaste() bool {
	if m.undo == nil {
		return false
	}
	m.inputs = m.undo
	m.undo = nil
	m.changed = make(map[CellKey]bool)
	for k := range m.inputs {
		m.refreshChanged(k)
	}
	return true
}
