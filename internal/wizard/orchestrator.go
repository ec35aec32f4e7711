package wizard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"priceforge/internal/changeset"
	"priceforge/internal/gtm"
	"priceforge/internal/matrix"
	"priceforge/internal/validity"
	"priceforge/pkg/catalog"
)

// Step is one wizard state.
type Step string

const (
	StepContext Step = "context_selection"
	StepSku     Step = "sku_resolution"
	StepMatrix  Step = "matrix_edit"
	StepReview  Step = "review"
	StepGtm     Step = "gtm_assignment"
)

var (
	// ErrStepBlocked wraps a failed validity gate.
	ErrStepBlocked = fmt.Errorf("step gate failed")
	// ErrNoSnapshot means the matrix was unavailable at capture time. This
	// blocks the transition loudly; it never degrades to an empty change set.
	ErrNoSnapshot = fmt.Errorf("matrix snapshot unavailable")
	// ErrCommitInFlight rejects a second commit while one is being saved.
	ErrCommitInFlight = fmt.Errorf("commit already in flight")
	// ErrTerminalStep rejects navigation out of the final step.
	ErrTerminalStep = fmt.Errorf("gtm assignment only commits or cancels")
	// ErrSessionClosed rejects any action after cancel or a successful commit.
	ErrSessionClosed = fmt.Errorf("session closed")
)

// Session owns one wizard run: its context, matrix, validity overrides, and
// the captured change set. All mutation is synchronous; a session is never
// shared across goroutines without external coordination.
type Session struct {
	logger  *zap.Logger
	now     func() time.Time
	product *catalog.Product

	Form *ContextForm
	Sku  SkuResolution

	steps []Step
	idx   int

	mat      *matrix.Matrix
	matGroup *catalog.PriceGroup // group the grid was built from, nil for plain create
	validity *validity.Resolver
	captured []changeset.ChangeRecord

	directEdit bool
	saving     bool
	closed     bool
}

// Option configures a session.
type Option func(*Session)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// NewSession starts the full five-step flow for a product.
func NewSession(product *catalog.Product, opts ...Option) *Session {
	s := &Session{
		logger:  zap.NewNop(),
		now:     time.Now,
		product: product,
		steps:   []Step{StepContext, StepSku, StepMatrix, StepReview, StepGtm},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Form = NewContextForm(s.resetMatrixState)
	s.validity = validity.NewResolver(s.now)
	return s
}

// NewDirectSession starts the three-step direct-edit flow with a pre-resolved,
// immutable context, e.g. "edit this existing price group". The matrix is
// built immediately.
func NewDirectSession(product *catalog.Product, ctx EditingContext, opts ...Option) (*Session, error) {
	if !ctx.Complete() {
		return nil, fmt.Errorf("direct edit needs a complete context")
	}
	if err := ctx.Validate(); err != nil {
		return nil, err
	}
	s := &Session{
		logger:     zap.NewNop(),
		now:        time.Now,
		product:    product,
		steps:      []Step{StepMatrix, StepReview, StepGtm},
		directEdit: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Form = NewContextForm(nil)
	s.Form.ctx = ctx
	s.Form.frozen = true
	s.validity = validity.NewResolver(s.now)
	s.buildMatrix()
	return s, nil
}

// Step returns the current state.
func (s *Session) Step() Step { return s.steps[s.idx] }

// Steps returns the flow's step sequence.
func (s *Session) Steps() []Step {
	out := make([]Step, len(s.steps))
	copy(out, s.steps)
	return out
}

// DirectEdit reports whether the session skipped context and SKU resolution.
func (s *Session) DirectEdit() bool { return s.directEdit }

// Matrix returns the grid, nil before the edit step is reached.
func (s *Session) Matrix() *matrix.Matrix { return s.mat }

// Validity returns the session's validity resolver.
func (s *Session) Validity() *validity.Resolver { return s.validity }

// Captured returns the change set from the last capture, nil before review.
func (s *Session) Captured() []changeset.ChangeRecord { return s.captured }

// resetMatrixState is the full-reset hook: any context change that could
// orphan matrix state clears the grid, the validity overrides, and the
// captured set together.
func (s *Session) resetMatrixState() {
	s.mat = nil
	s.matGroup = nil
	s.validity.Reset()
	s.captured = nil
}

// resolveGroup picks the price group the grid is sourced from: an explicit
// update target, the chosen SKU's group, or a clone source. Nil means a plain
// create starting from an empty flat grid.
func (s *Session) resolveGroup() *catalog.PriceGroup {
	ctx := s.Form.Context()
	switch {
	case ctx.Existing != nil:
		return ctx.Existing
	case ctx.Action == ActionUpdate:
		if id, ok := s.Sku.GroupID(); ok && s.product != nil {
			return s.product.Groups[id]
		}
	case ctx.CloneFrom != nil:
		return ctx.CloneFrom
	}
	return nil
}

// buildMatrix pivots the baseline (update), copies structure (clone), or
// starts empty (plain create). Only update loads current prices.
func (s *Session) buildMatrix() {
	group := s.resolveGroup()
	today := s.now()
	s.matGroup = group

	if group == nil {
		s.mat = matrix.NewFlat(nil, today)
		return
	}
	if groupIsTiered(group) {
		s.mat = matrix.NewTiered(group.Points, today)
	} else {
		s.mat = matrix.NewFlat(group.Points, today)
	}
	if s.Form.Context().Action == ActionCreate {
		// Clone keeps the axes, not the prices.
		s.mat.ClearBaseline()
	}
}

// groupIsTiered decides the grid shape: any real tier, any bounded band, or
// more than one distinct band makes the group tiered.
func groupIsTiered(g *catalog.PriceGroup) bool {
	seen := make(map[catalog.SeatRange]bool)
	for _, p := range g.Points {
		if catalog.NormalizeTier(p.Tier) != catalog.NullTier {
			return true
		}
		r := p.SeatRange()
		seen[r] = true
		if !r.Open {
			return true
		}
	}
	return len(seen) > 1
}

// gate checks the current step's validity condition.
func (s *Session) gate() error {
	switch s.Step() {
	case StepContext:
		if !s.Form.Context().Complete() {
			return fmt.Errorf("%w: channel, billing cycle, and action are required", ErrStepBlocked)
		}
		if err := s.Form.Context().Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrStepBlocked, err)
		}
	case StepSku:
		if err := s.Sku.Valid(); err != nil {
			return fmt.Errorf("%w: %v", ErrStepBlocked, err)
		}
	case StepMatrix:
		if s.mat == nil || !s.mat.Dirty() {
			return fmt.Errorf("%w: no price changes entered", ErrStepBlocked)
		}
	case StepReview:
		if len(s.captured) == 0 {
			return fmt.Errorf("%w: captured change set is empty", ErrStepBlocked)
		}
	case StepGtm:
		return ErrTerminalStep
	}
	return nil
}

// Advance moves one step forward when the current gate passes. Leaving the
// edit step performs the mandatory capture; a capture failure blocks the
// transition.
func (s *Session) Advance() error {
	if s.closed {
		return ErrSessionClosed
	}
	if err := s.gate(); err != nil {
		return err
	}
	switch s.Step() {
	case StepSku:
		// Rebuild only when the grid source changed; a round trip through
		// this step with the same selection keeps every typed input.
		if s.mat == nil || s.resolveGroup() != s.matGroup {
			s.buildMatrix()
		}
	case StepMatrix:
		if err := s.capture(); err != nil {
			return err
		}
	}
	s.idx++
	s.logger.Debug("wizard advanced", zap.String("step", string(s.Step())))
	return nil
}

// Back moves one step backward. Returning to context selection clears all
// price-input state; returning from review invalidates the captured set so
// it must be recaptured on the next advance. The final step never navigates
// back.
func (s *Session) Back() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.Step() == StepGtm {
		return ErrTerminalStep
	}
	if s.idx == 0 {
		return fmt.Errorf("already at the first step")
	}
	from := s.Step()
	s.idx--
	switch {
	case s.Step() == StepContext:
		s.resetMatrixState()
	case from == StepReview:
		s.captured = nil
	}
	s.logger.Debug("wizard stepped back", zap.String("step", string(s.Step())))
	return nil
}

// capture pulls an immutable snapshot, resolves validity windows, and builds
// the change set. An unavailable matrix is a loud, blocking error; silently
// proceeding with an empty set would let a no-op reach commit.
func (s *Session) capture() error {
	if s.mat == nil {
		s.logger.Error("capture failed: no matrix to snapshot")
		return ErrNoSnapshot
	}
	snap := s.mat.Snapshot()
	windows := s.validity.ResolveAll(
		s.mat.Currencies(),
		s.mat.BaselineCurrencies(),
		s.mat.ChangedCurrencies(),
		s.baselinePoints(),
	)
	for c, w := range windows {
		if err := w.Window.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrStepBlocked, c, err)
		}
	}
	s.captured = changeset.Build(snap, windows)
	s.logger.Info("change set captured", zap.Int("records", len(s.captured)))
	return nil
}

// baselinePoints returns the points backing the matrix baseline, for
// baseline-window lookups.
func (s *Session) baselinePoints() []catalog.PricePoint {
	ctx := s.Form.Context()
	if ctx.Action != ActionUpdate {
		return nil
	}
	if ctx.Existing != nil {
		return ctx.Existing.Points
	}
	if id, ok := s.Sku.GroupID(); ok && s.product != nil {
		if g := s.product.Groups[id]; g != nil {
			return g.Points
		}
	}
	return nil
}

// Windows resolves the currently shown validity windows for display.
func (s *Session) Windows() map[string]validity.Resolved {
	if s.mat == nil {
		return nil
	}
	return s.validity.ResolveAll(
		s.mat.Currencies(),
		s.mat.BaselineCurrencies(),
		s.mat.ChangedCurrencies(),
		s.baselinePoints(),
	)
}

// Commit hands the captured change set to the binder. The saving flag keeps
// a second commit from racing the first; a binder failure leaves the session
// open with all state intact so the operator can retry.
func (s *Session) Commit(ctx context.Context, binder *gtm.Binder, sel gtm.Selection) (*gtm.Motion, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.Step() != StepGtm {
		return nil, fmt.Errorf("commit only from the gtm assignment step, at %s", s.Step())
	}
	if s.saving {
		return nil, ErrCommitInFlight
	}
	s.saving = true
	defer func() { s.saving = false }()

	ectx := s.Form.Context()
	item := gtm.Item{
		ProductID: s.product.ID, ProductName: s.product.Name,
		Changes: s.captured,
		Context: gtm.ChangeContext{
			Channel: ectx.Channel, Cycle: ectx.Cycle,
			Action: string(ectx.Action), Experiment: ectx.Experiment,
		},
	}
	motion, err := binder.Commit(ctx, item, sel)
	if err != nil {
		return nil, err
	}
	s.closed = true
	return motion, nil
}

// Cancel discards the session. Nothing was written externally, so there is
// no partial-commit risk.
func (s *Session) Cancel() {
	s.resetMatrixState()
	s.closed = true
}

// Closed reports whether the session ended by commit or cancel.
func (s *Session) Closed() bool { return s.closed }
