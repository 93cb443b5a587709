package controllers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/amaumene/unmonitarr/internal/services/radarr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedFailedMovie stores a watched movie item and a failed sync log pointing at it
func seedFailedMovie(t *testing.T, db *models.Database, itemID, title string) *models.SyncLog {
	t.Helper()
	item, _, err := db.GetOrCreateMediaItem(movieEvent(itemID, title, true))
	require.NoError(t, err)
	item.IsWatched = true
	require.NoError(t, db.UpdateMediaItem(item))

	log := &models.SyncLog{
		MediaItemID:  &item.ID,
		SeriesName:   title,
		Action:       models.SyncActionUnmonitor,
		Status:       models.SyncStatusFailed,
		Service:      models.ServiceRadarr,
		ErrorMessage: "API request failed with status 503: unavailable",
	}
	require.NoError(t, db.CreateSyncLog(log))
	return log
}

func TestRetryFailedCountsEachRecord(t *testing.T) {
	var movies []radarr.Movie
	for i := 1; i <= 4; i++ {
		movies = append(movies, radarr.Movie{ID: i, Title: fmt.Sprintf("Movie Number %d", i)})
	}
	rad := newFakeRadarr(movies...)
	env := newTestEnv(t, newFakeSonarr(), rad)
	retry := NewRetryController(env.db, env.pipeline, testLogger())

	for i := 1; i <= 4; i++ {
		seedFailedMovie(t, env.db, fmt.Sprintf("m%d", i), fmt.Sprintf("Movie Number %d", i))
	}
	missing := seedFailedMovie(t, env.db, "m5", "Not In Radarr")

	result, err := retry.RetryFailed(context.Background(), 24, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Retried)
	assert.Equal(t, 4, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "no matching entity")

	logs := syncLogs(t, env.db)
	require.Len(t, logs, 5)
	for _, log := range logs {
		if log.ID == missing.ID {
			assert.Equal(t, models.SyncStatusFailed, log.Status)
			assert.Equal(t, "no matching entity", log.ErrorMessage)
			continue
		}
		assert.Equal(t, models.SyncStatusCompleted, log.Status)
		assert.Empty(t, log.ErrorMessage)
	}
	assert.Len(t, rad.updateList(), 4)
}

func TestRetryFailedHonoursLimit(t *testing.T) {
	env := newTestEnv(t, newFakeSonarr(), newFakeRadarr(radarr.Movie{ID: 1, Title: "Heat"}))
	retry := NewRetryController(env.db, env.pipeline, testLogger())

	for i := 0; i < 3; i++ {
		seedFailedMovie(t, env.db, fmt.Sprintf("m%d", i), "Heat")
	}

	result, err := retry.RetryFailed(context.Background(), 24, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Retried)
}

func TestRetryLogValidation(t *testing.T) {
	env := newTestEnv(t, newFakeSonarr(), newFakeRadarr())
	retry := NewRetryController(env.db, env.pipeline, testLogger())
	ctx := context.Background()

	_, err := retry.RetryLog(ctx, 999, false)
	assert.ErrorIs(t, err, ErrLogNotFound)

	completed := seedFailedMovie(t, env.db, "m1", "Heat")
	completed.Status = models.SyncStatusCompleted
	require.NoError(t, env.db.UpdateSyncLog(completed))
	_, err = retry.RetryLog(ctx, completed.ID, false)
	assert.ErrorIs(t, err, ErrLogCompleted)

	processing := seedFailedMovie(t, env.db, "m2", "Heat")
	processing.Status = models.SyncStatusProcessing
	require.NoError(t, env.db.UpdateSyncLog(processing))
	_, err = retry.RetryLog(ctx, processing.ID, true)
	assert.ErrorIs(t, err, ErrLogProcessing)

	orphan := &models.SyncLog{Status: models.SyncStatusFailed, Service: models.ServiceRadarr}
	require.NoError(t, env.db.CreateSyncLog(orphan))
	_, err = retry.RetryLog(ctx, orphan.ID, false)
	assert.ErrorIs(t, err, ErrMediaItemMissing)
}

func TestRetryLogReusesRecord(t *testing.T) {
	rad := newFakeRadarr(radarr.Movie{ID: 5, Title: "Heat"})
	env := newTestEnv(t, newFakeSonarr(), rad)
	retry := NewRetryController(env.db, env.pipeline, testLogger())

	failed := seedFailedMovie(t, env.db, "m1", "Heat")

	log, err := retry.RetryLog(context.Background(), failed.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusProcessing, log.Status)
	assert.Empty(t, log.ErrorMessage)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, env.pipeline.Shutdown(ctx))

	logs := syncLogs(t, env.db)
	require.Len(t, logs, 1)
	assert.Equal(t, failed.ID, logs[0].ID)
	assert.Equal(t, models.SyncStatusCompleted, logs[0].Status)
	assert.Equal(t, []movieUpdate{{id: 5, monitored: false}}, rad.updateList())
}
