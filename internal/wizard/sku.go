package wizard

import (
	"fmt"

	"github.com/google/uuid"

	"priceforge/pkg/catalog"
)

// SkuMode is the explicit choice of where edits land.
type SkuMode string

const (
	SkuModeUnset    SkuMode = ""
	SkuModeNew      SkuMode = "new"
	SkuModeExisting SkuMode = "existing"
)

// SkuResolution holds the operator's choice between a new SKU and one of the
// existing SKUs matching the context.
type SkuResolution struct {
	Mode     SkuMode
	Existing *catalog.Sku
}

// Valid reports whether the choice gates past the SKU step: an explicit mode,
// and a selected SKU when targeting an existing one.
func (r SkuResolution) Valid() error {
	switch r.Mode {
	case SkuModeNew:
		return nil
	case SkuModeExisting:
		if r.Existing == nil {
			return fmt.Errorf("updating requires a selected existing SKU")
		}
		return nil
	default:
		return fmt.Errorf("choose a new or an existing SKU")
	}
}

// SkuCandidates lists the product's SKUs matching the context's channel and
// cycle. These are the update targets the operator picks from.
func SkuCandidates(p *catalog.Product, ctx EditingContext) []catalog.Sku {
	if p == nil || ctx.Channel == "" || ctx.Cycle == "" {
		return nil
	}
	return p.SkusMatching(ctx.Channel, ctx.Cycle)
}

// ChooseNew records the new-SKU choice.
func (r *SkuResolution) ChooseNew() {
	r.Mode = SkuModeNew
	r.Existing = nil
}

// ChooseExisting records an existing-SKU choice.
func (r *SkuResolution) ChooseExisting(s catalog.Sku) {
	r.Mode = SkuModeExisting
	r.Existing = &s
}

// GroupID returns the price group the chosen SKU points at, when one exists.
func (r SkuResolution) GroupID() (uuid.UUID, bool) {
	if r.Mode == SkuModeExisting && r.Existing != nil {
		return r.Existing.PriceGroupID, true
	}
	return uuid.UUID{}, false
}
