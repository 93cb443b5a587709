package models

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "unmonitarr.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func intPtr(v int) *int { return &v }

func TestGetOrCreateMediaItem(t *testing.T) {
	db := newTestDatabase(t)
	require.NoError(t, db.Ping())

	ev := &WatchEvent{
		ItemID:        "abc",
		Title:         "Pilot",
		MediaType:     MediaTypeEpisode,
		Watched:       true,
		WatchedKnown:  true,
		SeriesID:      "series-1",
		SeriesName:    "Foo",
		SeasonNumber:  intPtr(1),
		EpisodeNumber: intPtr(1),
	}

	item, created, err := db.GetOrCreateMediaItem(ev)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, item.ID)
	assert.False(t, item.IsWatched, "new items start unwatched")
	assert.Equal(t, "series-1", item.ParentID)
	assert.Equal(t, "Foo", item.DisplayName())

	item.IsWatched = true
	require.NoError(t, db.UpdateMediaItem(item))

	ev.Title = "Pilot (Extended)"
	again, created, err := db.GetOrCreateMediaItem(ev)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, item.ID, again.ID)
	assert.True(t, again.IsWatched)
	assert.Equal(t, "Pilot (Extended)", again.Title)

	byID, err := db.GetMediaItemByID(item.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", byID.JellyfinID)

	_, err = db.GetMediaItemByJellyfinID("missing")
	assert.True(t, IsNotFound(err))
}

func TestListMediaItems(t *testing.T) {
	db := newTestDatabase(t)
	for _, id := range []string{"a", "b", "c"} {
		_, _, err := db.GetOrCreateMediaItem(&WatchEvent{ItemID: id, Title: id, MediaType: MediaTypeMovie})
		require.NoError(t, err)
	}

	all, err := db.GetAllMediaItems()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := db.ListMediaItems(1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].JellyfinID)
}

func TestUpsertMappingsKeepFirst(t *testing.T) {
	db := newTestDatabase(t)

	first, err := db.UpsertSonarrMapping(&SonarrMapping{MediaItemID: 1, SeriesID: 10})
	require.NoError(t, err)
	second, err := db.UpsertSonarrMapping(&SonarrMapping{MediaItemID: 1, SeriesID: 20})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 10, second.SeriesID)

	movie, err := db.UpsertRadarrMapping(&RadarrMapping{MediaItemID: 2, MovieID: 7})
	require.NoError(t, err)
	movie.IsMonitored = true
	require.NoError(t, db.UpdateRadarrMapping(movie))

	stored, err := db.GetRadarrMapping(2)
	require.NoError(t, err)
	assert.True(t, stored.IsMonitored)

	sonarrCount, radarrCount, err := db.CountMappings()
	require.NoError(t, err)
	assert.Equal(t, 1, sonarrCount)
	assert.Equal(t, 1, radarrCount)

	_, err = db.GetSonarrMapping(99)
	assert.True(t, IsNotFound(err))
}

func TestListSyncLogsFilters(t *testing.T) {
	db := newTestDatabase(t)

	logs := []*SyncLog{
		{Status: SyncStatusFailed, Service: ServiceSonarr, Action: SyncActionUnmonitor},
		{Status: SyncStatusCompleted, Service: ServiceRadarr, Action: SyncActionUnmonitor},
		{Status: SyncStatusFailed, Service: ServiceRadarr, Action: SyncActionMonitor},
	}
	for _, log := range logs {
		require.NoError(t, db.CreateSyncLog(log))
	}

	all, err := db.ListSyncLogs(SyncLogFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, logs[2].ID, all[0].ID, "newest first")

	failed, err := db.ListSyncLogs(SyncLogFilter{Status: SyncStatusFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 2)

	radarrFailed, err := db.ListSyncLogs(SyncLogFilter{Status: SyncStatusFailed, Service: ServiceRadarr})
	require.NoError(t, err)
	require.Len(t, radarrFailed, 1)
	assert.Equal(t, SyncActionMonitor, radarrFailed[0].Action)

	unmonitor, err := db.ListSyncLogs(SyncLogFilter{Action: SyncActionUnmonitor, Limit: 1})
	require.NoError(t, err)
	require.Len(t, unmonitor, 1)
	assert.Equal(t, logs[1].ID, unmonitor[0].ID)

	future, err := db.ListSyncLogs(SyncLogFilter{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, future)

	skipped, err := db.ListSyncLogs(SyncLogFilter{Skip: 5})
	require.NoError(t, err)
	assert.Empty(t, skipped)
}

func TestSyncLogUpdate(t *testing.T) {
	db := newTestDatabase(t)

	log := &SyncLog{Status: SyncStatusProcessing, Service: ServiceSonarr}
	require.NoError(t, db.CreateSyncLog(log))

	log.Status = SyncStatusFailed
	log.ErrorMessage = "boom"
	require.NoError(t, db.UpdateSyncLog(log))

	stored, err := db.GetSyncLog(log.ID)
	require.NoError(t, err)
	assert.Equal(t, SyncStatusFailed, stored.Status)
	assert.Equal(t, "boom", stored.ErrorMessage)
	assert.Nil(t, stored.MediaItemID)

	_, err = db.GetSyncLog(12345)
	assert.True(t, IsNotFound(err))
}

func TestSettings(t *testing.T) {
	db := newTestDatabase(t)

	_, err := db.GetSetting("webhook_token")
	assert.True(t, IsNotFound(err))

	require.NoError(t, db.SetSetting("webhook_token", "one", "token"))
	require.NoError(t, db.SetSetting("webhook_token", "two", "token"))

	value, err := db.GetSetting("webhook_token")
	require.NoError(t, err)
	assert.Equal(t, "two", value)
}

func TestParseMediaType(t *testing.T) {
	assert.Equal(t, MediaTypeMovie, ParseMediaType("Movie"))
	assert.Equal(t, MediaTypeSeason, ParseMediaType(" season "))
	assert.Equal(t, MediaTypeSeries, ParseMediaType("Series"))
	assert.Equal(t, MediaTypeEpisode, ParseMediaType(""))
	assert.Equal(t, MediaTypeEpisode, ParseMediaType("Audio"))

	assert.Equal(t, ServiceRadarr, MediaTypeMovie.Service())
	assert.Equal(t, ServiceSonarr, MediaTypeSeason.Service())
	assert.Equal(t, SyncActionMonitor, ActionFor(true))
	assert.Equal(t, SyncActionUnmonitor, ActionFor(false))
}
