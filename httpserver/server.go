package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/isdmx/nbexec/config"
	"github.com/isdmx/nbexec/execution"
	"github.com/isdmx/nbexec/observability"
)

// Route paths
const (
	PathExecuteNotebook = "/execute-notebook"
	PathHealth          = "/healthz"
	PathMetrics         = "/metrics"
)

// Server is the HTTP front end of the execution service
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	service    *execution.Service
	handler    http.Handler
	httpServer *http.Server
}

// New creates a Server and builds its routes
func New(cfg *config.Config, logger *zap.Logger, service *execution.Service) *Server {
	s := &Server{
		config:  cfg,
		logger:  logger.Named("http"),
		service: service,
	}
	s.handler = s.routes()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)
	r.Use(observability.MetricsMiddleware)

	maxBody := s.config.MaxBodyBytes()
	limit := RateLimitMiddleware(s.config.Server.RateLimitRPS, s.config.Server.RateLimitBurst)
	execute := limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		s.handleExecute(w, r)
	}))

	r.Handle(PathExecuteNotebook, execute).Methods(http.MethodPost)
	r.HandleFunc(PathHealth, s.handleHealth).Methods(http.MethodGet)
	r.Handle(PathMetrics, promhttp.Handler()).Methods(http.MethodGet)

	return chain(r,
		RecoveryMiddleware(s.logger),
		RequestIDMiddleware,
		LoggingMiddleware(s.logger),
		CORSMiddleware(s.config.Server.AllowedOrigins),
	)
}

// Handler returns the fully wrapped router
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listener and serves in the background
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}

	s.logger.Info("starting HTTP server",
		zap.String("addr", ln.Addr().String()),
		zap.Bool("debug", s.config.Server.Debug),
		zap.Strings("allowed_origins", s.config.Server.AllowedOrigins))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests within the configured shutdown timeout
func (s *Server) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout())
	defer cancel()

	s.logger.Info("stopping HTTP server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return nil
}

// Register ties the server to the fx application lifecycle
func Register(lc fx.Lifecycle, s *Server) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.Stop,
	})
}
