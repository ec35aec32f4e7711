package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"priceforge/internal/changeset"
	"priceforge/internal/gtm"
	"priceforge/internal/matrix"
	"priceforge/internal/validity"
	"priceforge/internal/wizard"
	"priceforge/pkg/catalog"
)

// SessionManager keeps live wizard sessions keyed by id. Each session is
// single-threaded by design; the per-session mutex serializes concurrent
// HTTP callers onto that model.
type SessionManager struct {
	mu       sync.Mutex
	catalog  catalog.Reader
	binder   *gtm.Binder
	logger   *zap.Logger
	sessions map[uuid.UUID]*managedSession
	now      func() time.Time
}

type managedSession struct {
	mu      sync.Mutex
	id      uuid.UUID
	session *wizard.Session
	product *catalog.Product
}

// NewSessionManager wires the manager.
func NewSessionManager(reader catalog.Reader, binder *gtm.Binder, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		catalog:  reader,
		binder:   binder,
		logger:   logger,
		sessions: make(map[uuid.UUID]*managedSession),
		now:      time.Now,
	}
}

func (m *SessionManager) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions", m.handleCreate)
	mux.HandleFunc("GET /api/v1/sessions/{id}", m.withSession(m.handleGet))
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", m.withSession(m.handleCancel))
	mux.HandleFunc("POST /api/v1/sessions/{id}/context", m.withSession(m.handleContext))
	mux.HandleFunc("POST /api/v1/sessions/{id}/sku", m.withSession(m.handleSku))
	mux.HandleFunc("POST /api/v1/sessions/{id}/cells", m.withSession(m.handleCells))
	mux.HandleFunc("POST /api/v1/sessions/{id}/paste", m.withSession(m.handlePaste))
	mux.HandleFunc("POST /api/v1/sessions/{id}/undo", m.withSession(m.handleUndo))
	mux.HandleFunc("POST /api/v1/sessions/{id}/validity", m.withSession(m.handleValidity))
	mux.HandleFunc("POST /api/v1/sessions/{id}/advance", m.withSession(m.handleAdvance))
	mux.HandleFunc("POST /api/v1/sessions/{id}/back", m.withSession(m.handleBack))
	mux.HandleFunc("POST /api/v1/sessions/{id}/commit", m.withSession(m.handleCommit))
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, ms *managedSession)

func (m *SessionManager) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		m.mu.Lock()
		ms, ok := m.sessions[id]
		m.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		ms.mu.Lock()
		defer ms.mu.Unlock()
		h(w, r, ms)
	}
}

// CreateSessionRequest starts a wizard run. Direct mode needs a complete
// context referencing one of the product's price groups.
type CreateSessionRequest struct {
	ProductID uuid.UUID `json:"product_id"`
	Direct    bool      `json:"direct"`
	Context   *struct {
		Channel             catalog.SalesChannel `json:"channel"`
		Cycle               catalog.BillingCycle `json:"cycle"`
		GroupID             uuid.UUID            `json:"group_id"`
		ExperimentKey       string               `json:"experiment_key"`
		ExperimentTreatment string               `json:"experiment_treatment"`
	} `json:"context,omitempty"`
}

func (m *SessionManager) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	product, err := m.catalog.Product(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	var session *wizard.Session
	if req.Direct {
		if req.Context == nil {
			writeError(w, http.StatusBadRequest, "direct sessions need a context")
			return
		}
		group := product.Groups[req.Context.GroupID]
		if group == nil {
			writeError(w, http.StatusBadRequest, "context group not found on product")
			return
		}
		ectx := wizard.EditingContext{
			Channel:    req.Context.Channel,
			Cycle:      req.Context.Cycle,
			Action:     wizard.ActionUpdate,
			Existing:   group,
			Experiment: catalog.NewExperiment(req.Context.ExperimentKey, req.Context.ExperimentTreatment),
		}
		session, err = wizard.NewDirectSession(product, ectx,
			wizard.WithLogger(m.logger), wizard.WithClock(m.now))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		session = wizard.NewSession(product,
			wizard.WithLogger(m.logger), wizard.WithClock(m.now))
	}

	ms := &managedSession{id: uuid.New(), session: session, product: product}
	m.mu.Lock()
	m.sessions[ms.id] = ms
	m.mu.Unlock()
	m.logger.Info("session created",
		zap.String("session_id", ms.id.String()),
		zap.String("product", product.Name),
		zap.Bool("direct", req.Direct))
	writeJSON(w, http.StatusCreated, viewOf(ms))
}

func (m *SessionManager) handleGet(w http.ResponseWriter, _ *http.Request, ms *managedSession) {
	writeJSON(w, http.StatusOK, viewOf(ms))
}

func (m *SessionManager) handleCancel(w http.ResponseWriter, _ *http.Request, ms *managedSession) {
	ms.session.Cancel()
	m.mu.Lock()
	delete(m.sessions, ms.id)
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// ContextRequest mutates the editing context through the step-0 actions.
// Fields are applied in the order the form defines them.
type ContextRequest struct {
	Channel             *catalog.SalesChannel `json:"channel,omitempty"`
	Cycle               *catalog.BillingCycle `json:"cycle,omitempty"`
	Action              *wizard.Action        `json:"action,omitempty"`
	ExperimentKey       *string               `json:"experiment_key,omitempty"`
	ExperimentTreatment *string               `json:"experiment_treatment,omitempty"`
	ExistingGroupID     *uuid.UUID            `json:"existing_group_id,omitempty"`
	CloneSkuID          *uuid.UUID            `json:"clone_sku_id,omitempty"`
	ClearClone          bool                  `json:"clear_clone,omitempty"`
}

func (m *SessionManager) handleContext(w http.ResponseWriter, r *http.Request, ms *managedSession) {
	var req ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	form := ms.session.Form
	if req.ClearClone {
		form.ClearCloneSource()
	}
	if req.CloneSkuID != nil {
		sku, ok := findSku(ms.product, *req.CloneSkuID)
		if !ok {
			writeError(w, http.StatusBadRequest, "clone sku not found")
			return
		}
		form.SelectCloneSource(sku, ms.product.GroupFor(sku))
	}
	if req.Channel != nil {
		form.SetChannel(*req.Channel)
	}
	if req.Cycle != nil {
		form.SetCycle(*req.Cycle)
	}
	if req.Action != nil {
		form.SetAction(*req.Action)
	}
	if req.ExistingGroupID != nil {
		group := ms.product.Groups[*req.ExistingGroupID]
		if group == nil {
			writeError(w, http.StatusBadRequest, "price group not found on product")
			return
		}
		form.SetExistingGroup(group)
	}
	if req.ExperimentKey != nil || req.ExperimentTreatment != nil {
		ectx := form.Context()
		key, treatment := "", ""
		if ectx.Experiment != nil {
			key, treatment = ectx.Experiment.Key, ectx.Experiment.Treatment
		}
		if req.ExperimentKey != nil {
			key = *req.ExperimentKey
		}
		if req.ExperimentTreatment != nil {
			treatment = *req.ExperimentTreatment
		}
		form.SetExperiment(key, treatment)
	}
	writeJSON(w, http.StatusOK, viewOf(ms))
}

// SkuRequest records the SKU resolution choice.
type SkuRequest struct {
	Mode  wizard.SkuMode `json:"mode"`
	SkuID *uuid.UUID     `json:"sku_id,omitempty"`
}

func (m *SessionManager) handleSku(w http.ResponseWriter, r *http.Request, ms *managedSession) {
	var req SkuRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Mode {
	case wizard.SkuModeNew:
		ms.session.Sku.ChooseNew()
	case wizard.SkuModeExisting:
		if req.SkuID == nil {
			writeError(w, http.StatusBadRequest, "sku_id required for existing mode")
			return
		}
		sku, ok := findSku(ms.product, *req.SkuID)
		if !ok {
			writeError(w, http.StatusBadRequest, "sku not found")
			return
		}
		ms.session.Sku.ChooseExisting(sku)
	default:
		writeError(w, http.StatusBadRequest, "mode must be new or existing")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ms))
}

// CellRequest edits one cell, or adjusts the currency axis of a flat matrix.
type CellRequest struct {
	Currency       string `json:"currency"`
	SeatRange      string `json:"seat_range,omitempty"`
	Tier           string `json:"tier,omitempty"`
	Text           string `json:"text"`
	AddCurrency    string `json:"add_currency,omitempty"`
	RemoveCurrency string `json:"remove_currency,omitempty"`
}

func (m *SessionManager) handleCells(w http.ResponseWriter, r *http.Request, ms *managedSession) {
	mat := ms.session.Matrix()
	if mat == nil {
		writeError(w, http.StatusConflict, "matrix not built yet")
		return
	}
	var req CellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AddCurrency != "" {
		if err := mat.AddCurrency(req.AddCurrency); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.RemoveCurrency != "" {
		if err := mat.RemoveCurrency(req.RemoveCurrency); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Currency != "" {
		key, err := cellKeyOf(mat, req.Currency, req.SeatRange, req.Tier)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := mat.SetCell(key, req.Text); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, viewOf(ms))
}

// PasteRequest applies clipboard text anchored at a cell.
type PasteRequest struct {
	Currency  string `json:"currency"`
	SeatRange string `json:"seat_range,omitempty"`
	Tier      string `json:"tier,omitempty"`
	Text      string `json:"text"`
}

func (m *SessionManager) handlePaste(w http.ResponseWriter, r *http.Request, ms *managedSession) {
	mat := ms.session.Matrix()
	if mat == nil {
		writeError(w, http.StatusConflict, "matrix not built yet")
		return
	}
	var req PasteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	key, err := cellKeyOf(mat, req.Currency, req.SeatRange, req.Tier)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := mat.Paste(key, req.Text); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ms))
}

func (m *SessionManager) handleUndo(w http.ResponseWriter, _ *http.Request, ms *managedSession) {
	mat := ms.session.Matrix()
	if mat == nil || !mat.UndoPaste() {
		writeError(w, http.StatusConflict, "nothing to undo")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ms))
}

// ValidityRequest overrides or clears a currency's validity window.
type ValidityRequest struct {
	Currency string     `json:"currency"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
	Clear    bool       `json:"clear,omitempty"`
}

func (m *SessionManager) handleValidity(w http.ResponseWriter, r *http.Request, ms *managedSession) {
	var req ValidityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Currency == "" {
		writeError(w, http.StatusBadRequest, "currency required")
		return
	}
	resolver := ms.session.Validity()
	if req.Clear {
		resolver.ClearOverride(req.Currency)
		writeJSON(w, http.StatusOK, viewOf(ms))
		return
	}
	if req.Start == nil {
		writeError(w, http.StatusBadRequest, "start required")
		return
	}
	if err := resolver.Override(req.Currency, validity.Window{Start: *req.Start, End: req.End}); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ms))
}

func (m *SessionManager) handleAdvance(w http.ResponseWriter, _ *http.Request, ms *managedSession) {
	if err := ms.session.Advance(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ms))
}

func (m *SessionManager) handleBack(w http.ResponseWriter, _ *http.Request, ms *managedSession) {
	if err := ms.session.Back(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ms))
}

// CommitRequest targets an existing motion or describes a new one.
type CommitRequest struct {
	ExistingID *uuid.UUID `json:"existing_id,omitempty"`
	New        *struct {
		Name           string    `json:"name"`
		Description    string    `json:"description"`
		ActivationDate time.Time `json:"activation_date"`
	} `json:"new,omitempty"`
}

func (m *SessionManager) handleCommit(w http.ResponseWriter, r *http.Request, ms *managedSession) {
	var req CommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sel := gtm.Selection{ExistingID: req.ExistingID}
	if req.New != nil {
		sel.New = &gtm.NewMotion{
			Name:           req.New.Name,
			Description:    req.New.Description,
			ActivationDate: req.New.ActivationDate,
		}
	}
	motion, err := ms.session.Commit(r.Context(), m.binder, sel)
	if err != nil {
		// The session stays open; the operator can retry.
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	m.mu.Lock()
	delete(m.sessions, ms.id)
	m.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "committed",
		"motion": motion,
	})
}

// cellKeyOf resolves wire fields into a grid key, defaulting flat matrices
// to their implicit band.
func cellKeyOf(mat *matrix.Matrix, currency, seatRange, tier string) (matrix.CellKey, error) {
	if mat.Shape() == matrix.ShapeFlat {
		return matrix.FlatKey(currency), nil
	}
	seats, err := catalog.ParseSeatRange(seatRange)
	if err != nil {
		return matrix.CellKey{}, err
	}
	return matrix.CellKey{Currency: currency, Seats: seats, Tier: catalog.NormalizeTier(tier)}, nil
}

func findSku(p *catalog.Product, id uuid.UUID) (catalog.Sku, bool) {
	for _, s := range p.Skus {
		if s.ID == id {
			return s, true
		}
	}
	return catalog.Sku{}, false
}

// SessionView is the wire representation of a session's state.
type SessionView struct {
	ID         uuid.UUID                    `json:"id"`
	Step       wizard.Step                  `json:"step"`
	Steps      []wizard.Step                `json:"steps"`
	DirectEdit bool                         `json:"direct_edit"`
	Product    string                       `json:"product"`
	Context    ContextView                  `json:"context"`
	Dirty      bool                         `json:"dirty"`
	Rows       []RowView                    `json:"rows,omitempty"`
	Windows    map[string]validity.Resolved `json:"windows,omitempty"`
	Captured   []changeset.ChangeRecord     `json:"captured,omitempty"`
}

// ContextView flattens the editing context.
type ContextView struct {
	Channel    catalog.SalesChannel `json:"channel,omitempty"`
	Cycle      catalog.BillingCycle `json:"cycle,omitempty"`
	Action     wizard.Action        `json:"action,omitempty"`
	Experiment *catalog.Experiment  `json:"experiment,omitempty"`
	HasClone   bool                 `json:"has_clone"`
	HasTarget  bool                 `json:"has_target"`
}

// RowView is one grid row on the wire.
type RowView struct {
	Currency string            `json:"currency"`
	Seats    catalog.SeatRange `json:"seat_range"`
	Cells    []CellView        `json:"cells"`
}

// CellView is one grid cell on the wire.
type CellView struct {
	Tier    string        `json:"tier"`
	Current *string       `json:"current,omitempty"`
	Input   string        `json:"input,omitempty"`
	Delta   *matrix.Delta `json:"delta,omitempty"`
}

func viewOf(ms *managedSession) SessionView {
	s := ms.session
	ectx := s.Form.Context()
	view := SessionView{
		ID:         ms.id,
		Step:       s.Step(),
		Steps:      s.Steps(),
		DirectEdit: s.DirectEdit(),
		Product:    ms.product.Name,
		Context: ContextView{
			Channel:    ectx.Channel,
			Cycle:      ectx.Cycle,
			Action:     ectx.Action,
			Experiment: ectx.Experiment,
			HasClone:   ectx.CloneFrom != nil,
			HasTarget:  ectx.Existing != nil,
		},
		Captured: s.Captured(),
	}
	if mat := s.Matrix(); mat != nil {
		view.Dirty = mat.Dirty()
		view.Windows = s.Windows()
		for _, row := range mat.Rows() {
			rv := RowView{Currency: row.Currency, Seats: row.Seats}
			for _, cell := range row.Cells {
				cv := CellView{Tier: cell.Key.Tier, Input: cell.Input, Delta: cell.Delta}
				if cell.Current != nil {
					cur := cell.Current.String()
					cv.Current = &cur
				}
				rv.Cells = append(rv.Cells, cv)
			}
			view.Rows = append(view.Rows, rv)
		}
	}
	return view
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
