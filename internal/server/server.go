// Package server implements a stub chat backend that speaks the same HTTP
// contract as the real one.
//
// Endpoints:
//   - POST /chat    - answer a query
//   - POST /analyze - answer a query (same contract as /chat)
//   - POST /stream  - answer a query as NDJSON progress events
//   - GET  /health  - health check
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/diogo/querychat/internal/logging"
	"github.com/diogo/querychat/internal/models"
)

const (
	// DefaultAddr is where the stub listens unless told otherwise
	DefaultAddr = ":5000"

	// MaxRequestBodySize caps request bodies (1MB)
	MaxRequestBodySize = 1 * 1024 * 1024

	// Version is reported by /health
	Version = "0.1.0"

	msgNoQuery     = "No query provided"
	msgRateLimited = "rate limit exceeded"
	msgTooLarge    = "request body too large"
)

// Config configures the stub server
type Config struct {
	Addr string
	// RatePerSecond and Burst bound requests per remote host. Zero disables limiting.
	RatePerSecond float64
	Burst         int
	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:            DefaultAddr,
		RatePerSecond:   5,
		Burst:           10,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server is the stub chat backend
type Server struct {
	cfg       Config
	responder Responder
	logger    *zap.Logger
	router    *http.ServeMux
	handler   http.Handler
}

// New creates a server answering with responder
func New(cfg Config, responder Responder, logger *zap.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	if responder == nil {
		responder = EchoResponder{}
	}

	s := &Server{
		cfg:       cfg,
		responder: responder,
		logger:    logging.OrNop(logger),
		router:    http.NewServeMux(),
	}
	s.setupRoutes()

	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger),
	}
	if cfg.RatePerSecond > 0 {
		middlewares = append(middlewares, RateLimitMiddleware(NewHostLimiter(cfg.RatePerSecond, cfg.Burst)))
	}
	s.handler = Chain(middlewares...)(s.router)

	return s
}

// Handler returns the server's root handler, middleware included
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("stub backend listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("POST "+models.EndpointChat, s.handleAnswer(""))
	s.router.HandleFunc("POST "+models.EndpointAnalyze, s.handleAnswer("An error occurred: "))
	s.router.HandleFunc("POST "+models.EndpointStream, s.handleStream)
	s.router.HandleFunc("GET "+models.EndpointHealth, s.handleHealth)
}

// readQuery decodes {"query": "..."}. It writes the error reply itself and
// returns false when the request is unusable.
func (s *Server) readQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return "", false
		}
		s.writeError(w, http.StatusBadRequest, msgNoQuery)
		return "", false
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, msgNoQuery)
		return "", false
	}
	return req.Query, true
}

// handleAnswer serves /chat and /analyze. errPrefix is prepended to responder failures.
func (s *Server) handleAnswer(errPrefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query, ok := s.readQuery(w, r)
		if !ok {
			return
		}

		resp, err := s.responder.Respond(r.Context(), query, nil)
		if err != nil {
			s.logger.Error("responder failed", zap.String("path", r.URL.Path), zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, errPrefix+err.Error())
			return
		}
		if resp == nil {
			s.writeError(w, http.StatusInternalServerError, "No result generated")
			return
		}

		s.writeJSON(w, http.StatusOK, resp)
	}
}

// handleStream serves /stream as newline-delimited JSON events
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	query, ok := s.readQuery(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	emit := func(eventType models.StreamEventType, content any) {
		line, err := json.Marshal(map[string]any{"type": eventType, "content": content})
		if err != nil {
			return
		}
		_, _ = w.Write(append(line, '\n'))
		if flusher != nil {
			flusher.Flush()
		}
	}

	resp, err := s.responder.Respond(r.Context(), query, func(update string) {
		emit(models.StreamUpdate, update)
	})
	switch {
	case err != nil:
		s.logger.Error("responder failed", zap.String("path", r.URL.Path), zap.Error(err))
		emit(models.StreamError, err.Error())
	case resp == nil:
		emit(models.StreamError, "No result generated")
	default:
		emit(models.StreamFinal, resp)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": Version,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
