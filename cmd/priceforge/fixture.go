package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"priceforge/internal/wizard"
	"priceforge/pkg/catalog"
)

// fixtureFile is a self-contained baseline for offline preview runs: one
// product, one SKU, one price group.
type fixtureFile struct {
	Product string         `yaml:"product"`
	Channel string         `yaml:"channel"`
	Cycle   string         `yaml:"cycle"`
	Points  []fixturePoint `yaml:"points"`
}

type fixturePoint struct {
	Currency   string     `yaml:"currency"`
	Amount     string     `yaml:"amount"`
	Min        int        `yaml:"min"`
	Max        *int       `yaml:"max"`
	Tier       string     `yaml:"tier"`
	ValidFrom  time.Time  `yaml:"valid_from"`
	ValidUntil *time.Time `yaml:"valid_until"`
}

// loadFixture reads a baseline YAML file into a product plus the direct-edit
// context targeting its group.
func loadFixture(path string) (*catalog.Product, wizard.EditingContext, error) {
	var ectx wizard.EditingContext
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ectx, fmt.Errorf("read baseline %s: %w", path, err)
	}
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, ectx, fmt.Errorf("parse baseline %s: %w", path, err)
	}

	group := &catalog.PriceGroup{ID: uuid.New()}
	for i, fp := range f.Points {
		amount, err := decimal.NewFromString(fp.Amount)
		if err != nil {
			return nil, ectx, fmt.Errorf("point %d: amount %q is not a decimal", i, fp.Amount)
		}
		validFrom := fp.ValidFrom
		if validFrom.IsZero() {
			validFrom = time.Now().UTC().AddDate(0, 0, -30)
		}
		group.Points = append(group.Points, catalog.PricePoint{
			Currency:    fp.Currency,
			Amount:      amount,
			MinQuantity: fp.Min,
			MaxQuantity: fp.Max,
			Tier:        catalog.NormalizeTier(fp.Tier),
			ValidFrom:   validFrom,
			ValidUntil:  fp.ValidUntil,
			Status:      catalog.StatusActive,
		})
	}

	channel := catalog.SalesChannel(f.Channel)
	if channel == "" {
		channel = catalog.ChannelOnline
	}
	cycle := catalog.BillingCycle(f.Cycle)
	if cycle == "" {
		cycle = catalog.CycleAnnual
	}

	sku := catalog.Sku{ID: uuid.New(), Channel: channel, Cycle: cycle, PriceGroupID: group.ID}
	product := &catalog.Product{
		ID:     uuid.New(),
		Name:   f.Product,
		Skus:   []catalog.Sku{sku},
		Groups: map[uuid.UUID]*catalog.PriceGroup{group.ID: group},
	}
	ectx = wizard.EditingContext{
		Channel:  channel,
		Cycle:    cycle,
		Action:   wizard.ActionUpdate,
		Existing: group,
	}
	return product, ectx, nil
}
