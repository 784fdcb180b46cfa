package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"relayd/internal/domain"
	"relayd/internal/infra/middleware"
)

// Server is the HTTP transport for the relay. It binds the register, relay
// and poll operations plus status and metrics endpoints, and keeps its
// request counters current by subscribing to the event bus.
type Server struct {
	deps      HandlerDeps
	auth      Authenticator
	bus       domain.EventBus
	logger    *slog.Logger
	addr      string
	rateLimit *middleware.RateLimitConfig

	server    *http.Server
	boundAddr string
	startTime time.Time
	metrics   Metrics
	unsubAll  func()

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a gateway server. auth may be nil (register endpoint
// open); rateLimit may be nil (no limiting).
func NewServer(deps HandlerDeps, auth Authenticator, bus domain.EventBus, addr string, rateLimit *middleware.RateLimitConfig, logger *slog.Logger) *Server {
	return &Server{
		deps:      deps,
		auth:      auth,
		bus:       bus,
		logger:    logger,
		addr:      addr,
		rateLimit: rateLimit,
	}
}

// Start begins serving. Non-blocking (serves in a goroutine).
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.startTime = time.Now()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/favicon.ico", s.handleFavicon)
	mux.HandleFunc("/api/v1/register", s.handleRegister)
	mux.HandleFunc("/api/v1/relay", s.handleRelay)
	mux.HandleFunc("/api/v1/poll", s.handlePoll)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/health", s.handleHealth)
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.Handle("/mcp", s.mcpHandler())

	var handler http.Handler = mux
	if s.rateLimit != nil {
		handler = middleware.RateLimit(s.ctx, *s.rateLimit)(handler)
	}
	handler = middleware.SecurityHeaders(handler)

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.boundAddr = ln.Addr().String()

	if s.bus != nil {
		s.unsubAll = s.bus.SubscribeAll(s.observeEvent)
	}

	go func() {
		s.logger.Info("gateway started", "addr", s.boundAddr, "mode", string(s.deps.Dispatcher.Mode()))
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsubAll != nil {
		s.unsubAll()
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// BoundAddr returns the actual address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }

// observeEvent keeps the metrics counters current from relay events.
func (s *Server) observeEvent(_ context.Context, event domain.Event) {
	switch event.Type {
	case domain.EventAgentRegistered:
		s.metrics.AgentsRegistered.Add(1)
	case domain.EventAgentDeregistered:
		s.metrics.AgentsDeregistered.Add(1)
	case domain.EventMessageQueued:
		s.metrics.MessagesQueued.Add(1)
	case domain.EventMessagePushed:
		s.metrics.MessagesPushed.Add(1)
	case domain.EventPushFailed:
		s.metrics.PushFailures.Add(1)
	case domain.EventQueueDrained:
		s.metrics.QueueDrains.Add(1)
	}
}
