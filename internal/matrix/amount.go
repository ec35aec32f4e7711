package matrix

import (
	"strings"

	"github.com/shopspring/decimal"
)

// changeEpsilon is the absolute difference below which a proposed price is
// treated as unchanged. It is applied uniformly in every currency, including
// zero-decimal ones like JPY where it is finer than the currency's own
// granularity; see the matching test before tightening this.
var changeEpsilon = decimal.RequireFromString("0.01")

// ParseAmount interprets user-typed price text. Thousands separators are
// stripped and surrounding whitespace ignored. Unparseable or negative text
// reports ok=false and the cell is treated as unset.
func ParseAmount(text string) (decimal.Decimal, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}

// MeaningfulChange reports whether next differs from current by at least the
// change epsilon.
func MeaningfulChange(current, next decimal.Decimal) bool {
	return next.Sub(current).Abs().GreaterThanOrEqual(changeEpsilon)
}

// Delta is the per-cell difference between a proposed price and the baseline.
type Delta struct {
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

var hundred = decimal.NewFromInt(100)

// ComputeDelta derives the delta for a proposed price against an optional
// baseline. A nil baseline means the price is brand new: the delta amount is
// the full proposed price and the percentage is pinned to 100. A zero
// baseline yields 0% when the proposal is also zero and 100% otherwise.
func ComputeDelta(current *decimal.Decimal, next decimal.Decimal) Delta {
	if current == nil {
		return Delta{Amount: next, Percentage: hundred}
	}
	amount := next.Sub(*current)
	if current.IsZero() {
		if next.IsZero() {
			return Delta{Amount: amount, Percentage: decimal.Zero}
		}
		return Delta{Amount: amount, Percentage: hundred}
	}
	pct := amount.Div(*current).Mul(hundred)
	return Delta{Amount: amount, Percentage: pct}
}
