package matrix

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"priceforge/pkg/catalog"
)

// Shape distinguishes the two grid layouts.
type Shape string

const (
	// ShapeFlat keys cells by currency only, with one implicit seat band.
	ShapeFlat Shape = "flat"
	// ShapeTiered keys cells by currency, seat range, and pricing tier.
	ShapeTiered Shape = "tiered"
)

// ErrUnknownCell is returned when an edit addresses a cell outside the grid.
var ErrUnknownCell = fmt.Errorf("cell not in matrix")

// Matrix holds the pivoted baseline and the proposed prices typed against it.
// All mutation is synchronous; one matrix belongs to one wizard session.
type Matrix struct {
	shape      Shape
	currencies []string              // sorted per catalog currency order
	seatRanges []catalog.SeatRange   // sorted by minimum bound
	tiers      map[string][]string   // currency -> tiers with data, sorted
	baseline   map[CellKey]decimal.Decimal
	inputs     map[CellKey]string
	changed    map[CellKey]bool
	undo       map[CellKey]string // pre-paste input state, nil when unavailable
}

// NewTiered pivots a price group's points into a tiered matrix. Only points
// whose validity window covers today are shown as the current baseline; the
// axes are derived from that filtered snapshot.
func NewTiered(points []catalog.PricePoint, today time.Time) *Matrix {
	m := &Matrix{
		shape:    ShapeTiered,
		tiers:    make(map[string][]string),
		baseline: make(map[CellKey]decimal.Decimal),
		inputs:   make(map[CellKey]string),
		changed:  make(map[CellKey]bool),
	}
	active := filterActive(points, today)

	currencySet := make(map[string]bool)
	seatSet := make(map[catalog.SeatRange]bool)
	tierSet := make(map[string]map[string]bool) // currency -> tiers with data
	latest := make(map[CellKey]time.Time)

	for _, p := range active {
		tier := catalog.NormalizeTier(p.Tier)
		key := CellKey{Currency: p.Currency, Seats: p.SeatRange(), Tier: tier}

		currencySet[p.Currency] = true
		seatSet[key.Seats] = true
		if tierSet[p.Currency] == nil {
			tierSet[p.Currency] = make(map[string]bool)
		}
		tierSet[p.Currency][tier] = true

		// Two active points can collide on one cell when windows overlap;
		// the later valid-from wins.
		if prev, ok := latest[key]; !ok || p.ValidFrom.After(prev) {
			m.baseline[key] = p.Amount
			latest[key] = p.ValidFrom
		}
	}

	for c := range currencySet {
		m.currencies = append(m.currencies, c)
	}
	catalog.SortCurrencies(m.currencies)

	for r := range seatSet {
		m.seatRanges = append(m.seatRanges, r)
	}
	sort.SliceStable(m.seatRanges, func(i, j int) bool {
		return catalog.CompareSeatRanges(m.seatRanges[i], m.seatRanges[j]) < 0
	})

	for c, set := range tierSet {
		var tiers []string
		for t := range set {
			tiers = append(tiers, t)
		}
		catalog.SortTiers(tiers)
		m.tiers[c] = tiers
	}
	return m
}

// NewFlat builds a currency-only matrix. Points (possibly none) supply the
// baseline; further currencies come from AddCurrency as the operator picks
// them.
func NewFlat(points []catalog.PricePoint, today time.Time) *Matrix {
	m := &Matrix{
		shape:      ShapeFlat,
		seatRanges: []catalog.SeatRange{FlatSeatRange},
		tiers:      make(map[string][]string),
		baseline:   make(map[CellKey]decimal.Decimal),
		inputs:     make(map[CellKey]string),
		changed:    make(map[CellKey]bool),
	}
	latest := make(map[CellKey]time.Time)
	for _, p := range filterActive(points, today) {
		key := FlatKey(p.Currency)
		if prev, ok := latest[key]; !ok || p.ValidFrom.After(prev) {
			m.baseline[key] = p.Amount
			latest[key] = p.ValidFrom
		}
		if m.tiers[p.Currency] == nil {
			m.currencies = append(m.currencies, p.Currency)
			m.tiers[p.Currency] = []string{catalog.NullTier}
		}
	}
	catalog.SortCurrencies(m.currencies)
	return m
}

func filterActive(points []catalog.PricePoint, today time.Time) []catalog.PricePoint {
	var out []catalog.PricePoint
	for _, p := range points {
		if p.ActiveOn(today) {
			out = append(out, p)
		}
	}
	return out
}

// Shape returns the grid layout.
func (m *Matrix) Shape() Shape { return m.shape }

// AddCurrency extends a flat matrix with an operator-chosen currency.
func (m *Matrix) AddCurrency(code string) error {
	if m.shape != ShapeFlat {
		return fmt.Errorf("currency axis is fixed for tiered matrices")
	}
	if m.tiers[code] != nil {
		return nil
	}
	m.currencies = append(m.currencies, code)
	catalog.SortCurrencies(m.currencies)
	m.tiers[code] = []string{catalog.NullTier}
	return nil
}

// RemoveCurrency drops an operator-chosen currency from a flat matrix and
// clears any input typed into it. Currencies with a baseline cannot be
// removed.
func (m *Matrix) RemoveCurrency(code string) error {
	if m.shape != ShapeFlat {
		return fmt.Errorf("currency axis is fixed for tiered matrices")
	}
	key := FlatKey(code)
	if _, ok := m.baseline[key]; ok {
		return fmt.Errorf("currency %s has existing prices", code)
	}
	delete(m.tiers, code)
	delete(m.inputs, key)
	delete(m.changed, key)
	for i, c := range m.currencies {
		if c == code {
			m.currencies = append(m.currencies[:i], m.currencies[i+1:]...)
			break
		}
	}
	return nil
}

// Currencies returns the currency axis in display order.
func (m *Matrix) Currencies() []string {
	out := make([]string, len(m.currencies))
	copy(out, m.currencies)
	return out
}

// SeatRanges returns the seat-range axis in display order.
func (m *Matrix) SeatRanges() []catalog.SeatRange {
	out := make([]catalog.SeatRange, len(m.seatRanges))
	copy(out, m.seatRanges)
	return out
}

// TiersFor returns the tiers that have data for a currency, in display order.
// Tiers with no data anywhere for the currency are omitted, not shown empty.
func (m *Matrix) TiersFor(currency string) []string {
	tiers := m.tiers[currency]
	out := make([]string, len(tiers))
	copy(out, tiers)
	return out
}

func (m *Matrix) cellExists(key CellKey) bool {
	tiers, ok := m.tiers[key.Currency]
	if !ok {
		return false
	}
	tierOK := false
	for _, t := range tiers {
		if t == key.Tier {
			tierOK = true
			break
		}
	}
	if !tierOK {
		return false
	}
	for _, r := range m.seatRanges {
		if r == key.Seats {
			return true
		}
	}
	return false
}

// SetCell stores raw input text for a cell. No validation happens here; the
// delta is derived lazily, and unparseable text simply leaves the cell unset.
func (m *Matrix) SetCell(key CellKey, text string) error {
	if !m.cellExists(key) {
		return fmt.Errorf("%w: %s", ErrUnknownCell, key)
	}
	m.inputs[key] = text
	m.refreshChanged(key)
	return nil
}

// InputAt returns the raw text held by a cell, "" when untouched.
func (m *Matrix) InputAt(key CellKey) string { return m.inputs[key] }

// refreshChanged keeps the cheap "any changes" flag current without running
// the full diff.
func (m *Matrix) refreshChanged(key CellKey) {
	next, ok := ParseAmount(m.inputs[key])
	if !ok {
		delete(m.changed, key)
		return
	}
	base, hasBase := m.baseline[key]
	if !hasBase || MeaningfulChange(base, next) {
		m.changed[key] = true
		return
	}
	delete(m.changed, key)
}

// Dirty reports whether at least one cell currently holds a real change.
// This is the step gate for leaving the edit step; the authoritative diff is
// still computed by the change-set builder at capture time.
func (m *Matrix) Dirty() bool { return len(m.changed) > 0 }

// Reset discards every typed input and the paste undo state. The baseline and
// axes are untouched.
func (m *Matrix) Reset() {
	m.inputs = make(map[CellKey]string)
	m.changed = make(map[CellKey]bool)
	m.undo = nil
}

// Cell is the display view of one grid position.
type Cell struct {
	Key     CellKey
	Current *decimal.Decimal
	Input   string
	Delta   *Delta
}

// CellAt assembles the display view for a key, deriving the delta from the
// current input text.
func (m *Matrix) CellAt(key CellKey) (Cell, bool) {
	if !m.cellExists(key) {
		return Cell{}, false
	}
	cell := Cell{Key: key, Input: m.inputs[key]}
	if base, ok := m.baseline[key]; ok {
		b := base
		cell.Current = &b
	}
	if next, ok := ParseAmount(cell.Input); ok {
		d := ComputeDelta(cell.Current, next)
		cell.Delta = &d
	}
	return cell, true
}

// Row is one (currency, seat range) line of the grid with its tier cells.
type Row struct {
	Currency string
	Seats    catalog.SeatRange
	Cells    []Cell
}

// Rows walks the grid currency-major, seat ranges within currency, tiers
// within row.
func (m *Matrix) Rows() []Row {
	var rows []Row
	for _, c := range m.currencies {
		for _, r := range m.seatRanges {
			row := Row{Currency: c, Seats: r}
			for _, t := range m.tiers[c] {
				cell, _ := m.CellAt(CellKey{Currency: c, Seats: r, Tier: t})
				row.Cells = append(row.Cells, cell)
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// Snapshot is an immutable copy of the matrix state handed to the change-set
// builder. Mutating the matrix after Snapshot does not affect it.
type Snapshot struct {
	Shape    Shape
	Inputs   map[CellKey]string
	Baseline map[CellKey]decimal.Decimal
}

// Snapshot exports the current state. This is the pull model the step
// orchestrator relies on at the edit -> review transition.
func (m *Matrix) Snapshot() Snapshot {
	snap := Snapshot{
		Shape:    m.shape,
		Inputs:   make(map[CellKey]string, len(m.inputs)),
		Baseline: make(map[CellKey]decimal.Decimal, len(m.baseline)),
	}
	for k, v := range m.inputs {
		snap.Inputs[k] = v
	}
	for k, v := range m.baseline {
		snap.Baseline[k] = v
	}
	return snap
}

// ClearBaseline drops all current prices while keeping the axes. Cloning a
// price group copies its structure, not its prices: every cell in the clone
// is brand new.
func (m *Matrix) ClearBaseline() {
	m.baseline = make(map[CellKey]decimal.Decimal)
	for k := range m.inputs {
		m.refreshChanged(k)
	}
}

// BaselineAt returns the baseline price for a key, if any.
func (m *Matrix) BaselineAt(key CellKey) (decimal.Decimal, bool) {
	v, ok := m.baseline[key]
	return v, ok
}

// ChangedCurrencies lists currencies that currently hold at least one real
// change. The validity resolver uses this to decide which currencies take the
// default window.
func (m *Matrix) ChangedCurrencies() map[string]bool {
	out := make(map[string]bool)
	for k := range m.changed {
		out[k.Currency] = true
	}
	return out
}

// BaselineCurrencies lists currencies that carry baseline prices.
func (m *Matrix) BaselineCurrencies() map[string]bool {
	out := make(map[string]bool)
	for k := range m.baseline {
		out[k.Currency] = true
	}
	return out
}
