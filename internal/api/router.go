// Package api provides the HTTP surface of the remote: the page, its
// socket, a small REST API, health and metrics.
package api

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"norelock.dev/osmcremote/internal/api/handlers"
	appMiddleware "norelock.dev/osmcremote/internal/api/middleware"
	"norelock.dev/osmcremote/internal/config"
	"norelock.dev/osmcremote/internal/services/system"
	"norelock.dev/osmcremote/internal/utils"
)

// Router is the main HTTP router for the API.
type Router struct {
	*chi.Mux
	logger *utils.Logger
}

// Pages is what the router needs from the page socket server.
type Pages interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
}

// Site is the embedded page.
type Site struct {
	Files  fs.FS
	Assets []string
}

// Version is reported by the health endpoint.
var Version = "dev"

// NewRouter creates a new API router.
func NewRouter(
	ctrl handlers.RemoteController,
	pages Pages,
	site Site,
	healthService *system.HealthService,
	metrics *system.MetricsService,
	cfg *config.Config,
	logger *utils.Logger,
) *Router {
	r := chi.NewRouter()
	apiLogger := logger.Named("api")

	recoveryMiddleware := appMiddleware.NewRecoveryMiddleware(apiLogger)
	loggerMiddleware := appMiddleware.NewLoggerMiddleware(apiLogger)
	corsMiddleware := appMiddleware.NewCORSMiddleware(appMiddleware.DefaultCORSConfig(cfg.Server.AllowedOrigins), apiLogger)
	metricsMiddleware := appMiddleware.NewMetricsMiddleware(metrics)

	healthHandler := handlers.NewHealthHandler(apiLogger, healthService, cfg, Version)
	remoteHandler := handlers.NewRemoteHandler(ctrl, apiLogger)
	pageHandler := handlers.NewPageHandler(site.Files, site.Assets, apiLogger)

	r.Use(recoveryMiddleware.Recovery)
	r.Use(loggerMiddleware.Logger)
	r.Use(metricsMiddleware.Metrics)
	r.Use(corsMiddleware.CORS)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Heartbeat("/ping"))

	// Operational routes
	r.Get("/health", healthHandler.Check)
	r.Get("/health/details", healthHandler.DetailedCheck)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Remote
	r.Get("/ws", pages.HandleWebSocket)
	r.Route("/api", func(r chi.Router) {
		r.Post("/gestures", remoteHandler.PostGesture)
		r.Get("/state", remoteHandler.GetState)
	})

	// Page
	r.Get("/remote.appcache", pageHandler.Manifest)
	r.Get("/*", pageHandler.Files)

	return &Router{
		Mux:    r,
		logger: apiLogger,
	}
}
