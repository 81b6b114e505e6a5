package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"

	"github.com/NeutronStarPRO/Proton/metrics"
)

// RouteRegistrar defines the interface for components that register routes
// with the server's router.
type RouteRegistrar interface {
	// RegisterRoutes registers routes with the provided router
	RegisterRoutes(r chi.Router)
}

// HTTPServerConfig contains all configuration parameters for the HTTP server.
type HTTPServerConfig struct {
	// ListenAddr is the address and port the HTTP server will listen on.
	ListenAddr string

	// MetricsAddr is the address and port for the metrics server.
	// If empty, metrics server will not be started.
	MetricsAddr string

	// EnablePprof enables the pprof debugging API when true.
	EnablePprof bool

	// Log is the structured logger for server operations.
	Log *slog.Logger

	// DrainDuration is the time to wait after marking server not ready
	// before shutting down, allowing load balancers to detect the change.
	DrainDuration time.Duration

	// GracefulShutdownDuration is the maximum time to wait for in-flight
	// requests to complete during shutdown.
	GracefulShutdownDuration time.Duration

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of
	// the response.
	WriteTimeout time.Duration

	// Metrics optionally supplies a pre-built metrics server, so callers
	// can register their collectors before constructing the BaseServer.
	// When nil one is created for MetricsAddr.
	Metrics *metrics.MetricsServer
}

// BaseServer provides common HTTP server functionality for Proton
// services: health and drain endpoints, request logging, optional pprof
// and a dedicated metrics listener.
type BaseServer struct {
	cfg     *HTTPServerConfig
	isReady atomic.Bool
	log     *slog.Logger

	srv        *http.Server
	metricsSrv *metrics.MetricsServer
}

// New creates a new BaseServer with the specified configuration.
func New(cfg *HTTPServerConfig, routeRegistrars ...RouteRegistrar) (*BaseServer, error) {
	if cfg.Log == nil {
		return nil, errors.New("config requires a logger")
	}

	metricsSrv := cfg.Metrics
	if metricsSrv == nil {
		metricsSrv = metrics.New(cfg.MetricsAddr)
	}

	srv := &BaseServer{
		cfg:        cfg,
		log:        cfg.Log,
		metricsSrv: metricsSrv,
	}

	router := srv.createRouter(routeRegistrars)
	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Server is ready by default
	srv.isReady.Store(true)

	return srv, nil
}

// Metrics returns the metrics server, whose registry components register
// their collectors with.
func (srv *BaseServer) Metrics() *metrics.MetricsServer {
	return srv.metricsSrv
}

// createRouter creates and configures the HTTP router with middleware and standard endpoints.
func (srv *BaseServer) createRouter(routeRegistrars []RouteRegistrar) http.Handler {
	mux := chi.NewRouter()

	// Add standard middleware
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Recoverer)

	// Register component-specific routes
	for _, registrar := range routeRegistrars {
		registrar.RegisterRoutes(mux)
	}

	// Health and diagnostic endpoints
	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)
	mux.With(srv.httpLogger).Get("/drain", srv.handleDrain)
	mux.With(srv.httpLogger).Get("/undrain", srv.handleUndrain)

	// Add pprof debugging if enabled
	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}

	return mux
}

// httpLogger is a middleware that logs HTTP requests using structured logging.
func (srv *BaseServer) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

// RunInBackground starts the HTTP and metrics servers in separate goroutines.
func (srv *BaseServer) RunInBackground() {
	// Start metrics server if configured
	if srv.cfg.MetricsAddr != "" {
		go func() {
			srv.log.With("metricsAddress", srv.cfg.MetricsAddr).Info("Starting metrics server")
			err := srv.metricsSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				srv.log.Error("Metrics server failed", "err", err)
			}
		}()
	}

	// Start HTTP server
	go func() {
		srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()
}

// Shutdown gracefully stops the HTTP and metrics servers.
func (srv *BaseServer) Shutdown() {
	// Shutdown API server
	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}

	// Shutdown metrics server if started
	if len(srv.cfg.MetricsAddr) != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
		defer cancel()

		if err := srv.metricsSrv.Shutdown(ctx); err != nil {
			srv.log.Error("Graceful metrics server shutdown failed", "err", err)
		} else {
			srv.log.Info("Metrics server gracefully stopped")
		}
	}
}
