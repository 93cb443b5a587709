package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/unmonitarr/internal/api/handlers"
	"github.com/amaumene/unmonitarr/internal/api/middleware"
	"github.com/amaumene/unmonitarr/internal/config"
	"github.com/amaumene/unmonitarr/internal/controllers"
	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Dependencies are the components the HTTP API exposes
type Dependencies struct {
	DB       *models.Database
	Pipeline *controllers.Pipeline
	Retry    *controllers.RetryController
	Bulk     *controllers.BulkSyncController
	Tokens   *controllers.TokenManager
	Resolver *controllers.IdentityResolver
	Services map[string]handlers.Pinger
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, deps Dependencies, logger *logrus.Logger) *Server {
	s := &Server{logger: logger}

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      NewRouter(cfg, deps, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// NewRouter configures all HTTP routes
func NewRouter(cfg *config.Config, deps Dependencies, logger *logrus.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging(logger))

	// Health check
	r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(deps.DB, deps.Services, logger))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Jellyfin webhook
	webhookHandler := handlers.NewWebhookHandler(deps.Pipeline, deps.Tokens, cfg.AutoSyncEnabled, logger)
	r.With(httprate.LimitByIP(cfg.WebhookRateLimit, time.Minute)).
		Method(http.MethodPost, "/webhook/jellyfin", webhookHandler)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/stats", handlers.NewStatsHandler(deps.DB, logger))

		logs := handlers.NewLogsHandler(deps.DB, deps.Retry, logger)
		r.Get("/logs", logs.List)
		r.Get("/logs/recent", logs.Recent)
		r.Post("/logs/retry/bulk", logs.BulkRetry)
		r.Get("/logs/{id}", logs.Get)
		r.Post("/logs/{id}/retry", logs.Retry)

		bulk := handlers.NewBulkSyncHandler(deps.Bulk, logger)
		r.Post("/sync/bulk", bulk.Start(controllers.BulkSyncAll))
		r.Post("/sync/bulk/movies", bulk.Start(controllers.BulkSyncMovies))
		r.Post("/sync/bulk/series", bulk.Start(controllers.BulkSyncSeries))
		r.Get("/sync/bulk/status", bulk.Status)

		media := handlers.NewMediaHandler(deps.DB, logger)
		r.Get("/media", media.List)
		r.Get("/media/{jellyfin_id}", media.Get)

		webhookConfig := handlers.NewWebhookConfigHandler(deps.Tokens, logger)
		r.Get("/config/webhook-details", webhookConfig.Details)
		r.Post("/config/webhook-token/regenerate", webhookConfig.Regenerate)
	})

	r.Method(http.MethodGet, "/debug/match/{title}", handlers.NewDebugMatchHandler(deps.Resolver, logger))

	return r
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
