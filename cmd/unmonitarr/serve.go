package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amaumene/unmonitarr/internal/api"
	"github.com/amaumene/unmonitarr/internal/api/handlers"
	"github.com/amaumene/unmonitarr/internal/scheduler"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	logger := a.logger
	logger.Info("Starting Unmonitarr")

	// 6. Initialize scheduler
	sched := scheduler.NewScheduler(a.dedup, a.retry, a.bulk, a.cfg.RetrySchedule, a.cfg.SyncSchedule, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 7. Initialize HTTP server
	server := api.NewServer(a.cfg, api.Dependencies{
		DB:       a.db,
		Pipeline: a.pipeline,
		Retry:    a.retry,
		Bulk:     a.bulk,
		Tokens:   a.tokens,
		Resolver: a.resolver,
		Services: map[string]handlers.Pinger{
			"jellyfin": a.jellyfin,
			"sonarr":   a.sonarr,
			"radarr":   a.radarr,
		},
	}, logger)

	// Start server in goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 8. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Unmonitarr is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("Unmonitarr stopped")
	return nil
}
