package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/amaumene/unmonitarr/internal/controllers"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	dedupSweepSpec = "@every 1m"

	retryHoursBack = 24
	retryLimit     = 10
)

// Sweeper drops expired dedup entries
type Sweeper interface {
	Sweep() int
}

// FailedRetrier re-runs recent failed synchronizations
type FailedRetrier interface {
	RetryFailed(ctx context.Context, hoursBack, limit int) (*controllers.BulkRetryResult, error)
}

// LibrarySyncer starts a background bulk sync
type LibrarySyncer interface {
	Start(ctx context.Context, kind string) error
}

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron          *cron.Cron
	dedup         Sweeper
	retry         FailedRetrier
	bulk          LibrarySyncer
	retrySchedule string
	syncSchedule  string
	logger        *logrus.Logger
}

// NewScheduler creates a new scheduler. Empty schedules disable their job.
func NewScheduler(dedup Sweeper, retry FailedRetrier, bulk LibrarySyncer, retrySchedule, syncSchedule string, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:          cron.New(),
		dedup:         dedup,
		retry:         retry,
		bulk:          bulk,
		retrySchedule: retrySchedule,
		syncSchedule:  syncSchedule,
		logger:        logger,
	}
}

// Start registers the jobs and starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	// Every minute: drop expired dedup entries
	if _, err := s.cron.AddFunc(dedupSweepSpec, s.runDedupSweep); err != nil {
		return fmt.Errorf("failed to add dedup sweep job: %w", err)
	}

	if s.retrySchedule != "" {
		if _, err := s.cron.AddFunc(s.retrySchedule, s.runRetry); err != nil {
			return fmt.Errorf("failed to add retry job: %w", err)
		}
	}

	if s.syncSchedule != "" {
		if _, err := s.cron.AddFunc(s.syncSchedule, s.runBulkSync); err != nil {
			return fmt.Errorf("failed to add bulk sync job: %w", err)
		}
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"jobs":           len(s.cron.Entries()),
		"retry_schedule": s.retrySchedule,
		"sync_schedule":  s.syncSchedule,
	}).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
}

// runDedupSweep executes the dedup sweep job
func (s *Scheduler) runDedupSweep() {
	if removed := s.dedup.Sweep(); removed > 0 {
		s.logger.WithField("removed", removed).Debug("Swept dedup cache")
	}
}

// runRetry executes the failed sync retry job
func (s *Scheduler) runRetry() {
	s.logger.Info("Running scheduled retry of failed syncs")

	result, err := s.retry.RetryFailed(context.Background(), retryHoursBack, retryLimit)
	if err != nil {
		s.logger.WithError(err).Error("Retry job failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"retried":   result.Retried,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("Retry job completed")
}

// runBulkSync executes the bulk sync job
func (s *Scheduler) runBulkSync() {
	s.logger.Info("Running scheduled bulk sync")

	err := s.bulk.Start(context.Background(), controllers.BulkSyncAll)
	switch {
	case errors.Is(err, controllers.ErrBulkSyncRunning):
		s.logger.Warn("Bulk sync already running, skipping scheduled run")
	case err != nil:
		s.logger.WithError(err).Error("Bulk sync job failed")
	}
}
