package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fjmerc/softvault/internal/handlers"
	"github.com/fjmerc/softvault/internal/metrics"
	"github.com/fjmerc/softvault/internal/middleware"
)

// Route patterns
const (
	RouteUpload        = "/api/admin/software/{productId}/file"
	RouteDownload      = "/api/download/software/*"
	RouteProductImages = "/api/uploads/images/products/*"
	RoutePreviews      = "/api/uploads/previews/*"
	RouteRawSoftware   = "/api/uploads/software/*"
	RouteLogin         = "/api/auth/login"
	RouteLogout        = "/api/auth/logout"
)

// routes builds the handler tree.
// Order: RequestID -> Recovery -> Logging -> Metrics -> Security -> session lookup -> routes
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(metrics.Middleware)
	r.Use(middleware.SecurityHeadersMiddleware)
	r.Use(middleware.OptionalUserAuth(s.repos.Users))

	r.Group(func(r chi.Router) {
		r.Use(middleware.UploadCORS(s.cfg.CORSAllowedOrigin))
		r.Use(chimw.Timeout(s.cfg.UploadTimeout))

		r.Post(RouteUpload, handlers.SoftwareUploadHandler(s.stores.Software, s.repos.Products, s.tracker, s.cfg))
		// Non-preflight OPTIONS requests fall through the CORS handler
		r.Options(RouteUpload, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	auditor := handlers.NewDownloadAuditor(s.repos.Downloads)
	r.Get(RouteDownload, handlers.SoftwareDownloadHandler(s.stores.Software, s.repos.Products, auditor))
	r.Get(RouteProductImages, handlers.ProductImageHandler(s.stores.ProductImages))
	r.Get(RoutePreviews, handlers.PreviewImageHandler(s.stores.Previews))
	r.Get(RouteRawSoftware, handlers.RawSoftwareHandler(s.stores.Software))

	r.With(middleware.RateLimitMiddleware(s.loginLimiter, s.cfg.TrustProxyHeaders, s.cfg.TrustedProxyIPs)).Post(RouteLogin, handlers.LoginHandler(s.repos.Users, s.cfg))
	r.Post(RouteLogout, handlers.LogoutHandler(s.repos.Users, s.cfg))

	r.Get("/health", handlers.HealthHandler(handlers.HealthDeps{
		Health:  s.repos.Health,
		Stores:  s.stores.All(),
		Tracker: s.tracker,
	}, s.cfg, s.startTime))
	r.Get("/health/live", handlers.HealthLivenessHandler(s.repos.Health))

	r.Method(http.MethodGet, "/metrics", s.metricsHandler())

	return r
}

// metricsHandler exposes the process-wide metrics plus this server's
// storage collector, which lives in its own registry.
func (s *Server) metricsHandler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.NewStorageMetricsCollector(s.tracker, s.stores.Software.Dir()))

	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, reg}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{
		Timeout: 10 * time.Second,
	})
}
