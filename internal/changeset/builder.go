// Package changeset walks a matrix snapshot and produces the atomic change
// records that get attached to a GTM motion. Build is pure: the same
// snapshot always yields the same records.
package changeset

import (
	"sort"

	"github.com/shopspring/decimal"

	"priceforge/internal/matrix"
	"priceforge/internal/validity"
	"priceforge/pkg/catalog"
)

// ChangeRecord is one detected difference between baseline and proposed
// state. SeatRange and Tier are carried only for tiered matrices.
type ChangeRecord struct {
	Currency  string             `json:"currency"`
	SeatRange *catalog.SeatRange `json:"seat_range,omitempty"`
	Tier      string             `json:"tier,omitempty"`
	Current   *decimal.Decimal   `json:"current_price,omitempty"`
	New       decimal.Decimal    `json:"new_price"`
	Delta     matrix.Delta       `json:"delta"`
	Window    validity.Window    `json:"validity_window"`
}

// Build diffs every cell of the snapshot against its baseline. Cells with
// empty or unparseable input never produce a record; neither do cells within
// the change epsilon of their baseline. Records come back in display order
// (currency, seat range, tier) so repeated calls compare equal.
func Build(snap matrix.Snapshot, windows map[string]validity.Resolved) []ChangeRecord {
	var records []ChangeRecord
	for key, text := range snap.Inputs {
		next, ok := matrix.ParseAmount(text)
		if !ok {
			continue
		}
		var current *decimal.Decimal
		if base, has := snap.Baseline[key]; has {
			if !matrix.MeaningfulChange(base, next) {
				continue
			}
			b := base
			current = &b
		}
		rec := ChangeRecord{
			Currency: key.Currency,
			Current:  current,
			New:      next,
			Delta:    matrix.ComputeDelta(current, next),
			Window:   windows[key.Currency].Window,
		}
		if snap.Shape == matrix.ShapeTiered {
			seats := key.Seats
			rec.SeatRange = &seats
			rec.Tier = key.Tier
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if c := catalog.CompareCurrencies(records[i].Currency, records[j].Currency); c != 0 {
			return c < 0
		}
		ri, rj := keySeat(records[i]), keySeat(records[j])
		if c := catalog.CompareSeatRanges(ri, rj); c != 0 {
			return c < 0
		}
		return catalog.CompareTiers(keyTier(records[i]), keyTier(records[j])) < 0
	})
	return records
}

func keySeat(r ChangeRecord) catalog.SeatRange {
	if r.SeatRange != nil {
		return *r.SeatRange
	}
	return matrix.FlatSeatRange
}

func keyTier(r ChangeRecord) string {
	if r.Tier != "" {
		return r.Tier
	}
	return catalog.NullTier
}
