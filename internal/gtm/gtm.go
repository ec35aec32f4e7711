// Package gtm packages a finished change set into a go-to-market motion.
// Motion storage belongs to an external collaborator behind MotionRepository;
// the binder's job ends at producing a well-formed call and surfacing the
// outcome.
package gtm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"priceforge/internal/changeset"
	"priceforge/pkg/catalog"
)

// ChangeContext is the commercial context a change set was authored under,
// flattened for the motion record.
type ChangeContext struct {
	Channel    catalog.SalesChannel `json:"channel"`
	Cycle      catalog.BillingCycle `json:"cycle"`
	Action     string               `json:"action"`
	Experiment *catalog.Experiment  `json:"experiment,omitempty"`
}

// Item is one product's change set inside a motion.
type Item struct {
	ProductID   uuid.UUID                `json:"product_id"`
	ProductName string                   `json:"product_name"`
	Changes     []changeset.ChangeRecord `json:"changes"`
	Context     ChangeContext            `json:"context"`
}

// Motion is a batched release record bundling catalog changes for approval
// and activation.
type Motion struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	ActivationDate time.Time `json:"activation_date"`
	Items          []Item    `json:"items"`
	CreatedAt      time.Time `json:"created_at"`
}

// MotionRepository is the external store. Both calls are atomic,
// all-or-nothing; a failure leaves the motion untouched. Success returns the
// motion as stored, items included.
type MotionRepository interface {
	AppendToMotion(ctx context.Context, motionID uuid.UUID, item Item) (*Motion, error)
	CreateMotion(ctx context.Context, name, description string, activation time.Time, item Item) (*Motion, error)
	Motions(ctx context.Context) ([]Motion, error)
}

// NewMotion describes a motion to be created at commit time.
type NewMotion struct {
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	ActivationDate time.Time `json:"activation_date"`
}

// Selection targets either an existing motion or a new one. Exactly one side
// must be set.
type Selection struct {
	ExistingID *uuid.UUID `json:"existing_id,omitempty"`
	New        *NewMotion `json:"new,omitempty"`
}

// Validate enforces the one-of shape.
func (s Selection) Validate() error {
	if (s.ExistingID == nil) == (s.New == nil) {
		return fmt.Errorf("selection must target exactly one of an existing or a new motion")
	}
	if s.New != nil && s.New.Name == "" {
		return fmt.Errorf("new motion needs a name")
	}
	return nil
}

// Binder commits change sets to motions.
type Binder struct {
	repo   MotionRepository
	logger *zap.Logger
}

// NewBinder wires a binder to a repository.
func NewBinder(repo MotionRepository, logger *zap.Logger) *Binder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binder{repo: repo, logger: logger}
}

// Commit appends the item to the selected motion, creating it first when the
// selection asks for a new one. Failures are recoverable: the caller's
// session state is never touched.
func (b *Binder) Commit(ctx context.Context, item Item, sel Selection) (*Motion, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if len(item.Changes) == 0 {
		return nil, fmt.Errorf("refusing to commit an empty change set")
	}
	if sel.ExistingID != nil {
		motion, err := b.repo.AppendToMotion(ctx, *sel.ExistingID, item)
		if err != nil {
			b.logger.Warn("append to motion failed",
				zap.String("motion_id", sel.ExistingID.String()),
				zap.Error(err))
			return nil, fmt.Errorf("append to motion %s: %w", sel.ExistingID, err)
		}
		b.logger.Info("change set appended",
			zap.String("motion_id", sel.ExistingID.String()),
			zap.Int("changes", len(item.Changes)))
		return motion, nil
	}
	motion, err := b.repo.CreateMotion(ctx, sel.New.Name, sel.New.Description, sel.New.ActivationDate, item)
	if err != nil {
		b.logger.Warn("create motion failed", zap.String("name", sel.New.Name), zap.Error(err))
		return nil, fmt.Errorf("create motion %q: %w", sel.New.Name, err)
	}
	b.logger.Info("motion created",
		zap.String("motion_id", motion.ID.String()),
		zap.Int("changes", len(item.Changes)))
	return motion, nil
}

// MemoryRepository is an in-memory MotionRepository for tests and the CLI.
type MemoryRepository struct {
	mu      sync.Mutex
	motions map[uuid.UUID]*Motion
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{motions: make(map[uuid.UUID]*Motion)}
}

// AppendToMotion implements MotionRepository.
func (r *MemoryRepository) AppendToMotion(_ context.Context, motionID uuid.UUID, item Item) (*Motion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.motions[motionID]
	if !ok {
		return nil, fmt.Errorf("motion %s not found", motionID)
	}
	m.Items = append(m.Items, item)
	out := *m
	return &out, nil
}

// CreateMotion implements MotionRepository.
func (r *MemoryRepository) CreateMotion(_ context.Context, name, description string, activation time.Time, item Item) (*Motion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := &Motion{
		ID:             uuid.New(),
		Name:           name,
		Description:    description,
		ActivationDate: activation,
		Items:          []Item{item},
		CreatedAt:      time.Now().UTC(),
	}
	r.motions[m.ID] = m
	return m, nil
}

// Motions implements MotionRepository.
func (r *MemoryRepository) Motions(_ context.Context) ([]Motion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Motion, 0, len(r.motions))
	for _, m := range r.motions {
		out = append(out, *m)
	}
	return out, nil
}
