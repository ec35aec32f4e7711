// Package matrix implements the price matrix engine: it pivots a price
// group's active baseline into a dense grid, tracks proposed prices typed
// against it, and exports immutable snapshots for diffing.
package matrix

import (
	"fmt"

	"priceforge/pkg/catalog"
)

// CellKey addresses one cell of the grid. It is a comparable composite of
// currency, seat range, and tier, so it can key maps directly without the
// delimiter-collision risk of concatenated strings.
type CellKey struct {
	Currency string
	Seats    catalog.SeatRange
	Tier     string
}

func (k CellKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Currency, k.Seats, k.Tier)
}

// FlatSeatRange is the implicit quantity band used by flat (currency-only)
// matrices.
var FlatSeatRange = catalog.SeatRange{Min: 1, Open: true}

// FlatKey builds the cell key for a currency in a flat matrix.
func FlatKey(currency string) CellKey {
	return CellKey{Currency: currency, Seats: FlatSeatRange, Tier: catalog.NullTier}
}
