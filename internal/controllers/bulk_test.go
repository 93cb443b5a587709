package controllers

import (
	"context"
	"testing"

	"github.com/amaumene/unmonitarr/internal/services/jellyfin"
	"github.com/amaumene/unmonitarr/internal/services/radarr"
	"github.com/amaumene/unmonitarr/internal/services/sonarr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBulk(env *testEnv) *BulkSyncController {
	c := NewBulkSyncController(env.jellyfin, env.pipeline, testLogger())
	c.pause = 0
	return c
}

func TestBulkSyncRun(t *testing.T) {
	rad := newFakeRadarr(
		radarr.Movie{ID: 1, Title: "Heat"},
		radarr.Movie{ID: 2, Title: "Ronin"},
	)
	son := newFakeSonarr(sonarr.Series{ID: 9, Title: "Foo"})
	env := newTestEnv(t, son, rad)
	env.jellyfin.users = []jellyfin.User{{ID: "u1", Name: "admin"}}
	env.jellyfin.library = []jellyfin.Item{
		{ID: "m1", Name: "Heat", Type: "Movie", UserData: &jellyfin.UserData{Played: true}},
		{ID: "m2", Name: "Ronin", Type: "Movie", UserData: &jellyfin.UserData{Played: false}},
		{ID: "m3", Name: "Unknown Film", Type: "Movie", UserData: &jellyfin.UserData{Played: true}},
		{ID: "m4", Name: "No Data", Type: "Movie"},
		{ID: "e1", Name: "Pilot", Type: "Episode", SeriesName: "Foo", ParentIndexNumber: intPtr(1), IndexNumber: intPtr(1)},
	}
	bulk := newTestBulk(env)

	status, err := bulk.Run(context.Background(), BulkSyncMovies)
	require.NoError(t, err)

	assert.False(t, status.IsRunning)
	assert.True(t, status.Completed)
	assert.True(t, status.Success)
	assert.Equal(t, BulkSyncMovies, status.SyncType)
	assert.Equal(t, 4, status.Total)
	assert.Equal(t, 4, status.Processed)
	assert.Equal(t, 2, status.Synced)
	assert.Equal(t, 100.0, status.Percentage)
	assert.Equal(t, 1, status.ErrorCount)
	assert.Equal(t, []string{"No Data: no user data"}, status.Errors)

	// force applies the current state even for unwatched items
	assert.ElementsMatch(t, []movieUpdate{{id: 1, monitored: false}, {id: 2, monitored: true}}, rad.updateList())
	assert.Zero(t, son.listCalls)
}

func TestBulkSyncRejectsConcurrentRuns(t *testing.T) {
	env := newTestEnv(t, newFakeSonarr(), newFakeRadarr())
	bulk := newTestBulk(env)

	require.NoError(t, bulk.begin(BulkSyncAll))
	assert.ErrorIs(t, bulk.Start(context.Background(), BulkSyncSeries), ErrBulkSyncRunning)
	assert.True(t, bulk.Status().IsRunning)
}

func TestBulkSyncUnknownKind(t *testing.T) {
	env := newTestEnv(t, newFakeSonarr(), newFakeRadarr())
	bulk := newTestBulk(env)

	_, err := bulk.Run(context.Background(), "music")
	assert.ErrorIs(t, err, ErrBulkSyncKind)
	assert.False(t, bulk.Status().IsRunning)
}

func TestBulkSyncWithoutUsersFails(t *testing.T) {
	env := newTestEnv(t, newFakeSonarr(), newFakeRadarr())
	bulk := newTestBulk(env)

	status, err := bulk.Run(context.Background(), BulkSyncAll)
	require.NoError(t, err)
	assert.True(t, status.Completed)
	assert.False(t, status.Success)
	assert.Equal(t, []string{"no Jellyfin users found"}, status.Errors)
}

func TestBulkSyncStatusKeepsLastErrors(t *testing.T) {
	env := newTestEnv(t, newFakeSonarr(), newFakeRadarr())
	env.jellyfin.users = []jellyfin.User{{ID: "u1"}}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		env.jellyfin.library = append(env.jellyfin.library, jellyfin.Item{ID: name, Name: name, Type: "Movie"})
	}
	bulk := newTestBulk(env)

	status, err := bulk.Run(context.Background(), BulkSyncMovies)
	require.NoError(t, err)
	assert.Equal(t, 7, status.ErrorCount)
	assert.Equal(t, []string{"c: no user data", "d: no user data", "e: no user data", "f: no user data", "g: no user data"}, status.Errors)
}
