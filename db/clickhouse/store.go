// Package clickhouse provides the ClickHouse-backed catalog read store.
// The catalog is written by upstream ingestion; the wizard only ever reads
// products, SKUs, and price points with their validity windows.
package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"priceforge/pkg/catalog"
)

// Config holds ClickHouse connection configuration.
type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultConfig returns default development configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     9000,
		Database: "priceforge",
		Username: "default",
	}
}

// Store implements catalog.Reader against ClickHouse.
type Store struct {
	conn clickhouse.Conn
	cfg  *Config
}

// NewStore connects a catalog store.
func NewStore(cfg *Config) (*Store, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	return &Store{conn: conn, cfg: cfg}, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Product implements catalog.Reader: one product with its SKUs and every
// price group they reference, points included.
func (s *Store) Product(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	product := &catalog.Product{ID: id, Groups: make(map[uuid.UUID]*catalog.PriceGroup)}

	row := s.conn.QueryRow(ctx, `SELECT name FROM products WHERE id = ? LIMIT 1`, id)
	if err := row.Scan(&product.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	skus, err := s.skusFor(ctx, id)
	if err != nil {
		return nil, err
	}
	product.Skus = skus

	for _, sku := range skus {
		if _, done := product.Groups[sku.PriceGroupID]; done {
			continue
		}
		group, err := s.priceGroup(ctx, sku.PriceGroupID)
		if err != nil {
			return nil, err
		}
		product.Groups[sku.PriceGroupID] = group
	}
	return product, nil
}

func (s *Store) skusFor(ctx context.Context, productID uuid.UUID) ([]catalog.Sku, error) {
	query := `
		SELECT id, channel, cycle, price_group_id, experiment_key, experiment_treatment
		FROM skus
		WHERE product_id = ?
		ORDER BY channel, cycle
	`
	rows, err := s.conn.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list skus: %w", err)
	}
	defer rows.Close()

	var skus []catalog.Sku
	for rows.Next() {
		var (
			sku            catalog.Sku
			channel, cycle string
			key, treatment string
		)
		if err := rows.Scan(&sku.ID, &channel, &cycle, &sku.PriceGroupID, &key, &treatment); err != nil {
			return nil, fmt.Errorf("failed to scan sku: %w", err)
		}
		sku.Channel = catalog.SalesChannel(channel)
		sku.Cycle = catalog.BillingCycle(cycle)
		sku.Experiment = catalog.NewExperiment(key, treatment)
		skus = append(skus, sku)
	}
	return skus, rows.Err()
}

func (s *Store) priceGroup(ctx context.Context, groupID uuid.UUID) (*catalog.PriceGroup, error) {
	query := `
		SELECT currency, amount, min_quantity, max_quantity, tier,
			   valid_from, valid_until, status
		FROM price_points
		WHERE group_id = ?
		ORDER BY currency, min_quantity
	`
	rows, err := s.conn.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list price points: %w", err)
	}
	defer rows.Close()

	group := &catalog.PriceGroup{ID: groupID}
	for rows.Next() {
		var (
			p          catalog.PricePoint
			amount     decimal.Decimal
			minQty     int64
			maxQty     *int64
			validUntil *time.Time
			status     string
		)
		if err := rows.Scan(&p.Currency, &amount, &minQty, &maxQty, &p.Tier,
			&p.ValidFrom, &validUntil, &status); err != nil {
			return nil, fmt.Errorf("failed to scan price point: %w", err)
		}
		p.Amount = amount
		p.MinQuantity = int(minQty)
		if maxQty != nil {
			v := int(*maxQty)
			p.MaxQuantity = &v
		}
		p.Tier = catalog.NormalizeTier(p.Tier)
		p.ValidUntil = validUntil
		p.Status = catalog.PricePointStatus(status)
		group.Points = append(group.Points, p)
	}
	return group, rows.Err()
}
