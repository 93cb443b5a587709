package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/amaumene/unmonitarr/internal/controllers"
	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetrier struct {
	err        error
	retriedID  uint64
	force      bool
	bulkResult *controllers.BulkRetryResult
}

func (f *fakeRetrier) RetryLog(_ context.Context, id uint64, force bool) (*models.SyncLog, error) {
	f.retriedID, f.force = id, force
	if f.err != nil {
		return nil, f.err
	}
	return &models.SyncLog{ID: id, Status: models.SyncStatusProcessing}, nil
}

func (f *fakeRetrier) RetryFailed(context.Context, int, int) (*controllers.BulkRetryResult, error) {
	return f.bulkResult, f.err
}

func newTestDB(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func logsRouter(h *LogsHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/logs", h.List)
	r.Get("/api/logs/recent", h.Recent)
	r.Post("/api/logs/retry/bulk", h.BulkRetry)
	r.Get("/api/logs/{id}", h.Get)
	r.Post("/api/logs/{id}/retry", h.Retry)
	return r
}

func serve(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestLogsListJoinsMediaItems(t *testing.T) {
	db := newTestDB(t)
	item, _, err := db.GetOrCreateMediaItem(&models.WatchEvent{
		ItemID:        "ep-1",
		Title:         "Pilot",
		MediaType:     models.MediaTypeEpisode,
		SeriesName:    "Foo",
		SeasonNumber:  intPtr(1),
		EpisodeNumber: intPtr(2),
	})
	require.NoError(t, err)

	require.NoError(t, db.CreateSyncLog(&models.SyncLog{
		MediaItemID: &item.ID,
		SeriesName:  "Foo",
		Action:      models.SyncActionUnmonitor,
		Status:      models.SyncStatusCompleted,
		Service:     models.ServiceSonarr,
	}))
	require.NoError(t, db.CreateSyncLog(&models.SyncLog{
		SeriesName:   "Broken",
		Action:       models.SyncActionMonitor,
		Status:       models.SyncStatusFailed,
		Service:      models.ServiceRadarr,
		ErrorMessage: "boom",
	}))

	router := logsRouter(NewLogsHandler(db, &fakeRetrier{}, quietLogger()))

	rec := serve(router, http.MethodGet, "/api/logs?status=completed")
	require.Equal(t, http.StatusOK, rec.Code)

	var page LogsPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Count)
	entry := page.Logs[0]
	assert.Equal(t, "Pilot", entry.Title)
	assert.Equal(t, "episode", entry.MediaType)
	assert.Equal(t, "ep-1", entry.JellyfinID)
	assert.Equal(t, 2, *entry.EpisodeNumber)
	assert.Equal(t, 50, page.Limit)

	rec = serve(router, http.MethodGet, "/api/logs/recent?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var recent []LogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recent))
	require.Len(t, recent, 1)
	assert.Equal(t, "Broken", recent[0].Title)
	assert.Equal(t, "unknown", recent[0].MediaType)
	assert.Equal(t, "boom", recent[0].ErrorMessage)
}

func TestLogsGet(t *testing.T) {
	db := newTestDB(t)
	log := &models.SyncLog{Status: models.SyncStatusFailed, Service: models.ServiceRadarr, SeriesName: "Heat"}
	require.NoError(t, db.CreateSyncLog(log))
	router := logsRouter(NewLogsHandler(db, &fakeRetrier{}, quietLogger()))

	rec := serve(router, http.MethodGet, fmt.Sprintf("/api/logs/%d", log.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/logs/999").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodGet, "/api/logs/abc").Code)
}

func TestLogsRetryStatusCodes(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{nil, http.StatusAccepted},
		{controllers.ErrLogNotFound, http.StatusNotFound},
		{controllers.ErrLogCompleted, http.StatusBadRequest},
		{controllers.ErrMediaItemMissing, http.StatusBadRequest},
		{controllers.ErrLogProcessing, http.StatusConflict},
		{fmt.Errorf("db: %w", context.DeadlineExceeded), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		retrier := &fakeRetrier{err: tt.err}
		router := logsRouter(NewLogsHandler(newTestDB(t), retrier, quietLogger()))

		rec := serve(router, http.MethodPost, "/api/logs/7/retry?force=true")
		assert.Equal(t, tt.status, rec.Code, "%v", tt.err)
		assert.Equal(t, uint64(7), retrier.retriedID)
		assert.True(t, retrier.force)
	}
}

func TestLogsBulkRetry(t *testing.T) {
	retrier := &fakeRetrier{bulkResult: &controllers.BulkRetryResult{Retried: 5, Succeeded: 4, Failed: 1, Errors: []string{"log 3: no matching entity"}}}
	router := logsRouter(NewLogsHandler(newTestDB(t), retrier, quietLogger()))

	rec := serve(router, http.MethodPost, "/api/logs/retry/bulk")
	require.Equal(t, http.StatusOK, rec.Code)

	var result controllers.BulkRetryResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 4, result.Succeeded)
	assert.Len(t, result.Errors, 1)
}

func intPtr(v int) *int { return &v }
