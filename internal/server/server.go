package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/glimte/skillbridge/bridge"
	"github.com/glimte/skillbridge/health"
	"github.com/glimte/skillbridge/interceptors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxBodyBytes bounds the directive document accepted over HTTP
const DefaultMaxBodyBytes = 1 << 20

// DirectiveHandler is implemented by *bridge.Bridge
type DirectiveHandler interface {
	HandleDirective(ctx context.Context, raw []byte) (json.RawMessage, error)
}

// InvocationFailure is the body written for a directive that produced no response
// document. It has the shape function runtimes report errors in.
type InvocationFailure struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

// Server exposes the bridge over HTTP
type Server struct {
	handler      DirectiveHandler
	registry     *health.Registry
	counters     *interceptors.Counters
	classify     func(error) string
	logger       *slog.Logger
	maxBodyBytes int64
	healthWait   time.Duration
}

// Option configures the Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHealthRegistry serves the registry's checks at /healthz
func WithHealthRegistry(registry *health.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithCounters serves the counters' snapshot at /metrics
func WithCounters(counters *interceptors.Counters) Option {
	return func(s *Server) {
		s.counters = counters
	}
}

// WithErrorClassifier sets the function naming failures in the errorType field
func WithErrorClassifier(classify func(error) string) Option {
	return func(s *Server) {
		s.classify = classify
	}
}

// WithMaxBodyBytes bounds the request body
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBodyBytes = n
	}
}

// New creates a server forwarding POST /directive to handler
func New(handler DirectiveHandler, opts ...Option) *Server {
	s := &Server{
		handler:      handler,
		registry:     health.NewRegistry(),
		counters:     interceptors.NewCounters(),
		classify:     bridge.ErrorKind,
		logger:       slog.Default(),
		maxBodyBytes: DefaultMaxBodyBytes,
		healthWait:   5 * time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Router returns the HTTP routes
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/directive", s.handleDirective)
	r.Method(http.MethodGet, "/healthz", health.NewHandler(s.registry, s.healthWait))
	r.Get("/livez", health.LivenessHandler())
	r.Get("/metrics", s.handleMetrics)

	return r
}

func (s *Server) handleDirective(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, InvocationFailure{
				ErrorType:    bridge.KindMalformedRequest,
				ErrorMessage: fmt.Sprintf("directive exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, InvocationFailure{
			ErrorType:    bridge.KindMalformedRequest,
			ErrorMessage: err.Error(),
		})
		return
	}

	resp, err := s.handler.HandleDirective(r.Context(), body)
	if err != nil {
		kind := s.classify(err)
		writeJSON(w, StatusFor(kind), InvocationFailure{
			ErrorType:    kind,
			ErrorMessage: err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(resp); err != nil {
		s.logger.Debug("failed to write directive response", "error", err)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.counters.Snapshot())
}

// StatusFor maps an error kind to the HTTP status reported for it
func StatusFor(kind string) int {
	switch kind {
	case bridge.KindMalformedRequest:
		return http.StatusBadRequest
	case bridge.KindMissingCredential:
		return http.StatusUnauthorized
	case bridge.KindTransportFailure, bridge.KindResponseUnparseable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ListenAndServe serves until ctx is cancelled, then shuts down within shutdownTimeout
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down", "timeout", shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
