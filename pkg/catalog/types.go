// Package catalog defines the product catalog schema shared by the pricing
// engines, the stores, and the API: products, SKUs, price groups, and the
// price points they contain.
package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SalesChannel identifies how a SKU is sold.
type SalesChannel string

const (
	ChannelOnline    SalesChannel = "ONLINE"
	ChannelField     SalesChannel = "FIELD"
	ChannelReseller  SalesChannel = "RESELLER"
	ChannelMobileApp SalesChannel = "MOBILE_APP"
)

// AllChannels is the fixed channel enumeration, in display order.
var AllChannels = []SalesChannel{ChannelOnline, ChannelField, ChannelReseller, ChannelMobileApp}

// BillingCycle identifies the billing frequency of a SKU.
type BillingCycle string

const (
	CycleMonthly   BillingCycle = "MONTHLY"
	CycleQuarterly BillingCycle = "QUARTERLY"
	CycleAnnual    BillingCycle = "ANNUAL"
	CycleMultiYear BillingCycle = "MULTIYEAR"
)

// AllCycles is the fixed billing cycle enumeration, in display order.
var AllCycles = []BillingCycle{CycleMonthly, CycleQuarterly, CycleAnnual, CycleMultiYear}

// PricePointStatus marks whether a price point is live or retired.
type PricePointStatus string

const (
	StatusActive  PricePointStatus = "ACTIVE"
	StatusExpired PricePointStatus = "EXPIRED"
)

// Experiment is a LIX key/treatment pair gating a price variant.
// The pair is all-or-nothing: a record with only one half is never emitted.
type Experiment struct {
	Key       string `json:"key"`
	Treatment string `json:"treatment"`
}

// NewExperiment returns the pair, or nil when either half is blank.
func NewExperiment(key, treatment string) *Experiment {
	if key == "" || treatment == "" {
		return nil
	}
	return &Experiment{Key: key, Treatment: treatment}
}

// PricePoint is one currency/quantity-band/tier price with a validity window.
type PricePoint struct {
	Currency    string           `json:"currency"`
	Amount      decimal.Decimal  `json:"amount"`
	MinQuantity int              `json:"min_quantity"`
	MaxQuantity *int             `json:"max_quantity,omitempty"` // nil = open-ended "+"
	Tier        string           `json:"tier"`                   // normalized, never empty (see NullTier)
	ValidFrom   time.Time        `json:"valid_from"`
	ValidUntil  *time.Time       `json:"valid_until,omitempty"` // nil = present
	Status      PricePointStatus `json:"status"`
}

// SeatRange returns the quantity band of the price point as a composite key.
func (p PricePoint) SeatRange() SeatRange {
	if p.MaxQuantity == nil {
		return SeatRange{Min: p.MinQuantity, Open: true}
	}
	return SeatRange{Min: p.MinQuantity, Max: *p.MaxQuantity}
}

// ActiveOn reports whether the price point's validity window covers the given
// date. Comparison is at day granularity.
func (p PricePoint) ActiveOn(t time.Time) bool {
	day := toDay(t)
	if toDay(p.ValidFrom).After(day) {
		return false
	}
	if p.ValidUntil != nil && toDay(*p.ValidUntil).Before(day) {
		return false
	}
	return true
}

func toDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PriceGroup is a named set of price points shared by one or more SKUs.
// Point order carries no meaning.
type PriceGroup struct {
	ID     uuid.UUID    `json:"id"`
	Points []PricePoint `json:"points"`
}

// ActivePoints returns the subset of points whose window covers the given date.
func (g *PriceGroup) ActivePoints(t time.Time) []PricePoint {
	var out []PricePoint
	for _, p := range g.Points {
		if p.ActiveOn(t) {
			out = append(out, p)
		}
	}
	return out
}

// Currencies returns the distinct currencies present in the group, unsorted.
func (g *PriceGroup) Currencies() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range g.Points {
		if !seen[p.Currency] {
			seen[p.Currency] = true
			out = append(out, p.Currency)
		}
	}
	return out
}

// Sku ties a sales channel and billing cycle to one price group. Many SKUs may
// reference the same group.
type Sku struct {
	ID           uuid.UUID    `json:"id"`
	Channel      SalesChannel `json:"channel"`
	Cycle        BillingCycle `json:"cycle"`
	PriceGroupID uuid.UUID    `json:"price_group_id"`
	Experiment   *Experiment  `json:"experiment,omitempty"`
}

// Product is the unit the wizard operates on: its SKUs plus the price groups
// they reference, resolved.
type Product struct {
	ID     uuid.UUID                 `json:"id"`
	Name   string                    `json:"name"`
	Skus   []Sku                     `json:"skus"`
	Groups map[uuid.UUID]*PriceGroup `json:"groups"`
}

// GroupFor resolves the price group a SKU points at, or nil.
func (p *Product) GroupFor(s Sku) *PriceGroup {
	if p.Groups == nil {
		return nil
	}
	return p.Groups[s.PriceGroupID]
}

// UsedChannels returns the channels already carried by this product's SKUs.
// The wizard partitions the channel picker into "in use" and "new" with this.
func (p *Product) UsedChannels() map[SalesChannel]bool {
	used := make(map[SalesChannel]bool)
	for _, s := range p.Skus {
		used[s.Channel] = true
	}
	return used
}

// UsedCycles returns the billing cycles already carried by this product's SKUs.
func (p *Product) UsedCycles() map[BillingCycle]bool {
	used := make(map[BillingCycle]bool)
	for _, s := range p.Skus {
		used[s.Cycle] = true
	}
	return used
}

// SkusMatching returns the product's SKUs selling through the given channel
// and cycle. These are the update candidates for that editing context.
func (p *Product) SkusMatching(ch SalesChannel, cy BillingCycle) []Sku {
	var out []Sku
	for _, s := range p.Skus {
		if s.Channel == ch && s.Cycle == cy {
			out = append(out, s)
		}
	}
	return out
}
