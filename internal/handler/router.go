// Package handler provides HTTP handlers for the Luma identity API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/prn-tf/luma-identity/internal/auth"
	"github.com/prn-tf/luma-identity/internal/metrics"
)

// HealthChecker reports whether the backing database is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Router wires the middleware chain and the API routes.
type Router struct {
	userHandler *UserHandler
	sessions    *auth.SessionManager
	cookies     *auth.CookieHelper
	resolver    auth.ActorResolver
	health      HealthChecker
	metrics     *metrics.Metrics
	metricsPath string
	maxBody     int64
	logger      zerolog.Logger
}

// RouterConfig contains configuration for the router.
type RouterConfig struct {
	UserHandler *UserHandler
	Sessions    *auth.SessionManager
	Cookies     *auth.CookieHelper
	Resolver    auth.ActorResolver
	Health      HealthChecker
	Metrics     *metrics.Metrics

	// MetricsPath mounts the Prometheus endpoint on this router when set.
	MetricsPath string

	// MaxBodySize caps request bodies in bytes. Zero disables the cap.
	MaxBodySize int64

	Logger zerolog.Logger
}

// NewRouter creates a new Router.
func NewRouter(config RouterConfig) *Router {
	return &Router{
		userHandler: config.UserHandler,
		sessions:    config.Sessions,
		cookies:     config.Cookies,
		resolver:    config.Resolver,
		health:      config.Health,
		metrics:     config.Metrics,
		metricsPath: config.MetricsPath,
		maxBody:     config.MaxBodySize,
		logger:      config.Logger.With().Str("component", "router").Logger(),
	}
}

// Handler returns the main HTTP handler.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(rt.logger))
	r.Use(Recoverer(rt.logger))
	r.Use(Instrument(rt.metrics))
	if rt.maxBody > 0 {
		r.Use(middleware.RequestSize(rt.maxBody))
	}

	// Health and metrics (no session)
	r.Get("/health", rt.handleHealth)
	if rt.metricsPath != "" {
		r.Method(http.MethodGet, rt.metricsPath, rt.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(rt.sessions, rt.cookies, rt.resolver, rt.logger))
		rt.userHandler.RegisterRoutes(r)
	})

	return r
}

// handleHealth handles health check requests.
func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if rt.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.health.Health(ctx); err != nil {
			rt.logger.Warn().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
