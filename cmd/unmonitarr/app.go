package main

import (
	"context"
	"fmt"
	"time"

	"github.com/amaumene/unmonitarr/internal/config"
	"github.com/amaumene/unmonitarr/internal/controllers"
	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/amaumene/unmonitarr/internal/services/jellyfin"
	"github.com/amaumene/unmonitarr/internal/services/omdb"
	"github.com/amaumene/unmonitarr/internal/services/radarr"
	"github.com/amaumene/unmonitarr/internal/services/rest"
	"github.com/amaumene/unmonitarr/internal/services/sonarr"
	"github.com/amaumene/unmonitarr/internal/tracing"
	"github.com/amaumene/unmonitarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// app holds every wired component of the service
type app struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *models.Database

	jellyfin *jellyfin.Client
	sonarr   *sonarr.Client
	radarr   *radarr.Client

	dedup    *controllers.DedupCache
	resolver *controllers.IdentityResolver
	pipeline *controllers.Pipeline
	retry    *controllers.RetryController
	bulk     *controllers.BulkSyncController
	tokens   *controllers.TokenManager

	shutdownTracing func(context.Context) error
}

func newApp() (*app, error) {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger and tracing
	logger := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.WithField("config_dir", cfg.ConfigDir).Info("Configuration loaded")
	shutdownTracing := tracing.Setup("unmonitarr", logger)

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info("Database initialized")

	// 4. Initialize services
	jellyfinClient := jellyfin.NewClient(cfg.JellyfinURL, cfg.JellyfinAPIKey, clientOptions(cfg), logger)
	sonarrClient := sonarr.NewClient(cfg.SonarrURL, cfg.SonarrAPIKey, clientOptions(cfg), logger)
	radarrClient := radarr.NewClient(cfg.RadarrURL, cfg.RadarrAPIKey, clientOptions(cfg), logger)

	var enhancer controllers.MetadataEnhancer
	if cfg.EnhancementEnabled() {
		enhancer = omdb.NewClient(cfg.OMDbAPIKey, clientOptions(cfg), logger)
		logger.Info("OMDb metadata enhancement enabled")
	}

	// 5. Initialize controllers
	dedup := controllers.NewDedupCache(cfg.DedupMaxAge, cfg.SyncDelay)
	resolver := controllers.NewIdentityResolver(sonarrClient, radarrClient, enhancer, cfg.EntityCacheTTL, logger)
	mappings := controllers.NewMappingStore(db, resolver, sonarrClient, logger)
	executor := controllers.NewSyncExecutor(db, mappings, sonarrClient, radarrClient, cfg.IgnoreSpecialEpisodes, logger)
	pipeline := controllers.NewPipeline(db, dedup, jellyfinClient, executor, logger)

	tokens, err := controllers.NewTokenManager(db, cfg.WebhookToken, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize webhook token: %w", err)
	}
	logger.Info("Controllers initialized")

	return &app{
		cfg:             cfg,
		logger:          logger,
		db:              db,
		jellyfin:        jellyfinClient,
		sonarr:          sonarrClient,
		radarr:          radarrClient,
		dedup:           dedup,
		resolver:        resolver,
		pipeline:        pipeline,
		retry:           controllers.NewRetryController(db, pipeline, logger),
		bulk:            controllers.NewBulkSyncController(jellyfinClient, pipeline, logger),
		tokens:          tokens,
		shutdownTracing: shutdownTracing,
	}, nil
}

func clientOptions(cfg *config.Config) rest.Options {
	return rest.Options{
		Timeout:           cfg.RequestTimeout,
		RequestsPerMinute: cfg.MaxRequestsPerMinute,
		Retry: utils.RetryPolicy{
			Attempts:        cfg.RetryAttempts,
			InitialInterval: cfg.RetryDelay,
			MaxInterval:     cfg.RetryMaxDelay,
		},
	}
}

// close waits for queued events and releases resources
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.pipeline.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Warn("Pending events cancelled during shutdown")
	}
	if err := a.shutdownTracing(ctx); err != nil {
		a.logger.WithError(err).Warn("Failed to shut down tracing")
	}
	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Failed to close database")
	}
}
