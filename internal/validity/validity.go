// Package validity resolves the effective-date window for proposed prices:
// a global default, an explicit per-currency override, or the read-only
// window inherited from the baseline when nothing changed.
package validity

import (
	"fmt"
	"time"

	"priceforge/pkg/catalog"
)

// DefaultLeadDays is how far in the future the default window starts.
const DefaultLeadDays = 7

// Source records where a resolved window came from.
type Source string

const (
	SourceDefault  Source = "default"  // start in DefaultLeadDays, open-ended
	SourceOverride Source = "override" // operator-chosen dates
	SourceBaseline Source = "baseline" // inherited from the active price point, read-only
)

// Window is a validity window on the wire: two optional ISO-8601 dates, the
// end absent meaning open-ended.
type Window struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// Validate rejects windows whose end precedes their start. This is a local,
// step-blocking condition, never fatal.
func (w Window) Validate() error {
	if w.End != nil && w.End.Before(w.Start) {
		return fmt.Errorf("end date %s precedes start date %s",
			w.End.Format("2006-01-02"), w.Start.Format("2006-01-02"))
	}
	return nil
}

// Resolved is a window plus its provenance. Baseline-sourced windows are not
// editable.
type Resolved struct {
	Window Window `json:"window"`
	Source Source `json:"source"`
}

// Resolver tracks per-currency overrides for one edit session. For tiered
// matrices validity is global per currency, not per cell.
type Resolver struct {
	now       func() time.Time
	overrides map[string]Window
}

// NewResolver creates a resolver; now is injectable for tests.
func NewResolver(now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{now: now, overrides: make(map[string]Window)}
}

// DefaultWindow is today plus the lead time, open-ended.
func (r *Resolver) DefaultWindow() Window {
	t := r.now().UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, DefaultLeadDays)
	return Window{Start: start}
}

// Override replaces the default window for a currency with explicit dates.
func (r *Resolver) Override(currency string, w Window) error {
	if err := w.Validate(); err != nil {
		return err
	}
	r.overrides[currency] = w
	return nil
}

// ClearOverride reverts a currency to defaults. It does not restore any
// earlier explicit dates.
func (r *Resolver) ClearOverride(currency string) {
	delete(r.overrides, currency)
}

// Overridden reports whether the currency has an explicit window.
func (r *Resolver) Overridden(currency string) bool {
	_, ok := r.overrides[currency]
	return ok
}

// Reset drops every override.
func (r *Resolver) Reset() {
	r.overrides = make(map[string]Window)
}

// Resolve determines the window for one currency.
//
//   - Brand-new currency (no baseline): default unless overridden.
//   - Existing currency with at least one real change: default unless
//     overridden.
//   - Existing currency without changes: the baseline's own window,
//     read-only. The latest valid-from among the currency's active points is
//     authoritative.
func (r *Resolver) Resolve(currency string, hasBaseline, hasChange bool, points []catalog.PricePoint) Resolved {
	if hasBaseline && !hasChange {
		return Resolved{Window: r.baselineWindow(currency, points), Source: SourceBaseline}
	}
	if w, ok := r.overrides[currency]; ok {
		return Resolved{Window: w, Source: SourceOverride}
	}
	return Resolved{Window: r.DefaultWindow(), Source: SourceDefault}
}

// baselineWindow picks the window of the currency's active point with the
// latest valid-from.
func (r *Resolver) baselineWindow(currency string, points []catalog.PricePoint) Window {
	today := r.now()
	var best *catalog.PricePoint
	for i := range points {
		p := &points[i]
		if p.Currency != currency || !p.ActiveOn(today) {
			continue
		}
		if best == nil || p.ValidFrom.After(best.ValidFrom) {
			best = p
		}
	}
	if best == nil {
		return r.DefaultWindow()
	}
	return Window{Start: best.ValidFrom, End: best.ValidUntil}
}

// ResolveAll resolves every currency in a grid in one pass. changed and
// baseline report per-currency state from the matrix.
func (r *Resolver) ResolveAll(currencies []string, baseline, changed map[string]bool, points []catalog.PricePoint) map[string]Resolved {
	out := make(map[string]Resolved, len(currencies))
	for _, c := range currencies {
		out[c] = r.Resolve(c, baseline[c], changed[c], points)
	}
	return out
}
