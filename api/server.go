// Package api exposes the price-change wizard over HTTP: a stateless
// change-set preview plus session endpoints driving the step orchestrator.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"priceforge/internal/changeset"
	"priceforge/internal/matrix"
	"priceforge/internal/validity"
	"priceforge/pkg/catalog"
)

// Pinger is implemented by stores that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server configuration.
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestSize int64
	CORSOrigins    []string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024,
		CORSOrigins:    []string{"*"},
	}
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	catalog    catalog.Reader
	sessions   *SessionManager
	stores     []Pinger
	config     *Config
	logger     *zap.Logger
}

// NewServer wires the server. stores are pinged by the readiness probe.
func NewServer(reader catalog.Reader, sessions *SessionManager, config *Config, logger *zap.Logger, stores ...Pinger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		catalog:  reader,
		sessions: sessions,
		stores:   stores,
		config:   config,
		logger:   logger,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("POST /api/v1/changeset/preview", s.handlePreview)
	s.sessions.register(mux)

	handler := s.corsMiddleware(s.loggingMiddleware(mux))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("api server starting", zap.Int("port", s.config.Port))
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts the server and drains on SIGINT/SIGTERM.
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.logger.Info("shutting down api server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("took", time.Since(start)))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		allowed := false
		for _, o := range s.config.CORSOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}
		if allowed {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	for _, store := range s.stores {
		if err := store.Ping(ctx); err != nil {
			s.jsonError(w, http.StatusServiceUnavailable, "store not ready")
			return
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

// PreviewRequest is a matrix snapshot submitted for a stateless diff.
type PreviewRequest struct {
	Shape    matrix.Shape               `json:"shape"`
	Baseline []PreviewBaseline          `json:"baseline"`
	Inputs   []PreviewInput             `json:"inputs"`
	Windows  map[string]validity.Window `json:"windows,omitempty"`
}

// PreviewBaseline is one baseline cell on the wire.
type PreviewBaseline struct {
	Currency  string            `json:"currency"`
	SeatRange catalog.SeatRange `json:"seat_range"`
	Tier      string            `json:"tier"`
	Amount    string            `json:"amount"`
}

// PreviewInput is one proposed cell on the wire.
type PreviewInput struct {
	Currency  string            `json:"currency"`
	SeatRange catalog.SeatRange `json:"seat_range"`
	Tier      string            `json:"tier"`
	Text      string            `json:"text"`
}

// PreviewResponse carries the computed change records.
type PreviewResponse struct {
	Changes []changeset.ChangeRecord `json:"changes"`
	Count   int                      `json:"count"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	snap, err := req.toSnapshot()
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	resolver := validity.NewResolver(nil)
	windows := make(map[string]validity.Resolved)
	for c, win := range req.Windows {
		if err := win.Validate(); err != nil {
			s.jsonError(w, http.StatusBadRequest, fmt.Sprintf("%s: %s", c, err))
			return
		}
		windows[c] = validity.Resolved{Window: win, Source: validity.SourceOverride}
	}
	for key := range snap.Inputs {
		if _, ok := windows[key.Currency]; !ok {
			windows[key.Currency] = validity.Resolved{
				Window: resolver.DefaultWindow(),
				Source: validity.SourceDefault,
			}
		}
	}
	changes := changeset.Build(snap, windows)
	s.jsonResponse(w, http.StatusOK, PreviewResponse{Changes: changes, Count: len(changes)})
}

func (req PreviewRequest) toSnapshot() (matrix.Snapshot, error) {
	shape := req.Shape
	if shape == "" {
		shape = matrix.ShapeTiered
	}
	snap := matrix.Snapshot{
		Shape:    shape,
		Inputs:   make(map[matrix.CellKey]string, len(req.Inputs)),
		Baseline: make(map[matrix.CellKey]decimal.Decimal, len(req.Baseline)),
	}
	key := func(currency string, seats catalog.SeatRange, tier string) matrix.CellKey {
		if shape == matrix.ShapeFlat {
			return matrix.FlatKey(currency)
		}
		return matrix.CellKey{Currency: currency, Seats: seats, Tier: catalog.NormalizeTier(tier)}
	}
	for _, b := range req.Baseline {
		amt, err := decimal.NewFromString(b.Amount)
		if err != nil {
			return snap, fmt.Errorf("baseline amount %q is not a decimal", b.Amount)
		}
		snap.Baseline[key(b.Currency, b.SeatRange, b.Tier)] = amt
	}
	for _, in := range req.Inputs {
		snap.Inputs[key(in.Currency, in.SeatRange, in.Tier)] = in.Text
	}
	return snap, nil
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	writeError(w, status, message)
}
