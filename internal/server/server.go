// Package server exposes the orchestrator over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pramodthe/enterprise-ai-platform/internal/config"
	"github.com/pramodthe/enterprise-ai-platform/internal/observability"
	"github.com/pramodthe/enterprise-ai-platform/pkg/orchestrator"
)

// SecretHeader carries the shared secret when one is configured.
const SecretHeader = "X-EAP-Secret"

// maxBodyBytes bounds chat request bodies.
const maxBodyBytes = 1 << 20

// Server is the API server.
type Server struct {
	app      *orchestrator.App
	cfg      Config
	logger   zerolog.Logger
	limiter  *clientLimiter
	upgrader websocket.Upgrader
	conns    *connRegistry

	server   *http.Server
	listener net.Listener

	shutdownMu     sync.RWMutex
	isShuttingDown bool
	inFlight       sync.WaitGroup
}

// Config holds the server configuration.
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	SharedSecret   string
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         *zerolog.Logger
}

// ConfigFrom converts the server section of the platform config.
func ConfigFrom(sc config.ServerConfig) Config {
	return Config{
		Host:           sc.Host,
		Port:           sc.Port,
		ReadTimeout:    time.Duration(sc.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:   time.Duration(sc.WriteTimeoutSeconds) * time.Second,
		SharedSecret:   sc.SharedSecret,
		RateLimitRPS:   sc.RateLimitRPS,
		RateLimitBurst: sc.RateLimitBurst,
	}
}

// New creates a server for app.
func New(app *orchestrator.App, cfg Config) (*Server, error) {
	if app == nil || app.Orchestrator == nil {
		return nil, errors.New("server requires an initialized app")
	}

	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	observability.EnsureRegistered()

	return &Server{
		app:     app,
		cfg:     cfg,
		logger:  logger.With().Str("component", "server").Logger(),
		limiter: newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: newConnRegistry(),
	}, nil
}

// Handler returns the full route tree with middleware applied.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/chat", s.handleChat)
	api.HandleFunc("GET /api/v1/sessions/{id}", s.handleGetSession)
	api.HandleFunc("GET /api/v1/agents", s.handleListAgents)
	api.HandleFunc("GET /api/v1/routing/stats", s.handleRoutingStats)
	api.HandleFunc("GET /ws", s.handleWebSocket)

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/", s.requireSecret(s.rateLimit(api)))

	return s.withRequestContext(mux)
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting API server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests, closes WebSocket clients and waits for
// in-flight chat requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down API server")

	s.conns.closeAll()

	var errs []error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown server: %w", err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached with requests still in flight")
		errs = append(errs, ctx.Err())
	}

	s.limiter.stop()
	s.logger.Info().Msg("API server stopped")
	return errors.Join(errs...)
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}
