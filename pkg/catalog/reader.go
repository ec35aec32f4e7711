package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Reader is the read-only catalog interface the wizard consumes. The engine
// never writes back through it.
type Reader interface {
	// Product returns a product with its SKUs and their price groups resolved.
	Product(ctx context.Context, id uuid.UUID) (*Product, error)
}

// ErrProductNotFound is returned when a product id is unknown to the catalog.
var ErrProductNotFound = fmt.Errorf("product not found")

// MemoryStore is an in-memory Reader, used by tests and the CLI fixture.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[uuid.UUID]*Product
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{products: make(map[uuid.UUID]*Product)}
}

// AddProduct registers a product. Tier names on its price points are
// normalized so the rest of the system never sees an empty tier.
func (s *MemoryStore) AddProduct(p *Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range p.Groups {
		for i := range g.Points {
			g.Points[i].Tier = NormalizeTier(g.Points[i].Tier)
		}
	}
	s.products[p.ID] = p
}

// Product implements Reader.
func (s *MemoryStore) Product(_ context.Context, id uuid.UUID) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return p, nil
}
