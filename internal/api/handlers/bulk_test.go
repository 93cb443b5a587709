package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/amaumene/unmonitarr/internal/controllers"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBulk struct {
	running bool
	kinds   []string
}

func (f *fakeBulk) Start(_ context.Context, kind string) error {
	if f.running {
		return controllers.ErrBulkSyncRunning
	}
	f.running = true
	f.kinds = append(f.kinds, kind)
	return nil
}

func (f *fakeBulk) Status() controllers.BulkSyncStatus {
	return controllers.BulkSyncStatus{IsRunning: f.running, SyncType: "movies", Errors: []string{}}
}

func TestBulkSyncStartAndConflict(t *testing.T) {
	bulk := &fakeBulk{}
	h := NewBulkSyncHandler(bulk, quietLogger())
	start := h.Start(controllers.BulkSyncMovies)

	assert.Equal(t, http.StatusAccepted, serve(start, http.MethodPost, "/api/sync/bulk/movies").Code)
	assert.Equal(t, http.StatusConflict, serve(start, http.MethodPost, "/api/sync/bulk/movies").Code)
	assert.Equal(t, []string{controllers.BulkSyncMovies}, bulk.kinds)

	rec := serve(http.HandlerFunc(h.Status), http.MethodGet, "/api/sync/bulk/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status controllers.BulkSyncStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.IsRunning)
	assert.Equal(t, "movies", status.SyncType)
}
