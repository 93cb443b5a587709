package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	retryUserID     = "retry_user"
	bulkRetryUserID = "bulk_retry_user"

	maxReportedErrors = 5
)

var (
	ErrLogNotFound      = errors.New("sync log not found")
	ErrLogCompleted     = errors.New("sync log already completed, use force to retry")
	ErrLogProcessing    = errors.New("sync log is already being processed")
	ErrMediaItemMissing = errors.New("media item of sync log not found")
)

// BulkRetryResult summarizes a bulk retry run
type BulkRetryResult struct {
	Retried   int      `json:"retried"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`
}

// RetryController re-runs failed synchronizations from their sync logs
type RetryController struct {
	db       *models.Database
	pipeline *Pipeline
	logger   *logrus.Logger
}

// NewRetryController creates a new retry controller
func NewRetryController(db *models.Database, pipeline *Pipeline, logger *logrus.Logger) *RetryController {
	return &RetryController{
		db:       db,
		pipeline: pipeline,
		logger:   logger,
	}
}

// RetryLog validates a sync log, marks it processing and re-runs it in the background
func (c *RetryController) RetryLog(ctx context.Context, id uint64, force bool) (*models.SyncLog, error) {
	log, item, err := c.prepare(id, force)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"sync_log": id,
		"item":     item.JellyfinID,
		"force":    force,
	}).Info("Retrying sync")

	c.pipeline.Enqueue(eventForItem(item, retryUserID), ProcessOptions{
		Force:      true,
		RetryLogID: log.ID,
		SkipSettle: true,
	})
	return log, nil
}

func (c *RetryController) prepare(id uint64, force bool) (*models.SyncLog, *models.MediaItem, error) {
	log, err := c.db.GetSyncLog(id)
	if err != nil {
		if models.IsNotFound(err) {
			return nil, nil, ErrLogNotFound
		}
		return nil, nil, fmt.Errorf("failed to load sync log %d: %w", id, err)
	}

	switch log.Status {
	case models.SyncStatusCompleted:
		if !force {
			return nil, nil, ErrLogCompleted
		}
	case models.SyncStatusProcessing:
		return nil, nil, ErrLogProcessing
	}

	if log.MediaItemID == nil {
		return nil, nil, ErrMediaItemMissing
	}
	item, err := c.db.GetMediaItemByID(*log.MediaItemID)
	if err != nil {
		if models.IsNotFound(err) {
			return nil, nil, ErrMediaItemMissing
		}
		return nil, nil, fmt.Errorf("failed to load media item %d: %w", *log.MediaItemID, err)
	}

	log.Status = models.SyncStatusProcessing
	log.ErrorMessage = ""
	if err := c.db.UpdateSyncLog(log); err != nil {
		return nil, nil, fmt.Errorf("failed to update sync log %d: %w", id, err)
	}

	return log, item, nil
}

// RetryFailed re-runs the failed sync logs of the last hoursBack hours, newest first,
// one at a time. Individual failures are counted, never returned.
func (c *RetryController) RetryFailed(ctx context.Context, hoursBack, limit int) (*BulkRetryResult, error) {
	if hoursBack <= 0 {
		hoursBack = 24
	}
	if limit <= 0 {
		limit = 10
	}

	logs, err := c.db.ListSyncLogs(models.SyncLogFilter{
		Status: models.SyncStatusFailed,
		Since:  time.Now().Add(-time.Duration(hoursBack) * time.Hour),
		Limit:  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list failed sync logs: %w", err)
	}

	result := &BulkRetryResult{Errors: []string{}}
	addError := func(msg string) {
		result.Failed++
		if len(result.Errors) < maxReportedErrors {
			result.Errors = append(result.Errors, msg)
		}
	}

	for _, failed := range logs {
		if ctx.Err() != nil {
			break
		}

		log, item, err := c.prepare(failed.ID, false)
		if err != nil {
			addError(fmt.Sprintf("log %d: %v", failed.ID, err))
			continue
		}
		result.Retried++

		outcome, err := c.pipeline.ProcessEvent(ctx, eventForItem(item, bulkRetryUserID), ProcessOptions{
			Force:      true,
			RetryLogID: log.ID,
			SkipSettle: true,
		})
		switch {
		case err != nil:
			addError(fmt.Sprintf("log %d: %v", log.ID, err))
		case outcome.Status == OutcomeCompleted:
			result.Succeeded++
		default:
			reason := outcome.Reason
			if reason == "" {
				reason = string(outcome.Status)
			}
			addError(fmt.Sprintf("log %d: %s", log.ID, reason))
		}
	}

	c.logger.WithFields(logrus.Fields{
		"retried":   result.Retried,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("Bulk retry finished")

	return result, nil
}

// eventForItem rebuilds a watch event from a stored media item
func eventForItem(item *models.MediaItem, userID string) *models.WatchEvent {
	return &models.WatchEvent{
		EventType:     "UserDataSaved",
		ItemID:        item.JellyfinID,
		UserID:        userID,
		Title:         item.Title,
		MediaType:     item.MediaType,
		Watched:       item.IsWatched,
		WatchedKnown:  true,
		SeriesID:      item.ParentID,
		SeriesName:    item.SeriesName,
		SeasonNumber:  item.SeasonNumber,
		EpisodeNumber: item.EpisodeNumber,
		Year:          item.Year,
		ReceivedAt:    time.Now(),
	}
}
