package controllers

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/amaumene/unmonitarr/internal/services/jellyfin"
	"github.com/amaumene/unmonitarr/internal/services/omdb"
	"github.com/amaumene/unmonitarr/internal/services/radarr"
	"github.com/amaumene/unmonitarr/internal/services/sonarr"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeSonarr struct {
	mu sync.Mutex

	series   []sonarr.Series
	lookup   []sonarr.Series
	episodes []sonarr.Episode

	listErr    error
	updateErr  error
	bulkErr    error
	listCalls  int
	findCalls  int
	episodeSet map[int]bool
	seriesSet  map[int]bool
	bulkCalls  int
}

func newFakeSonarr(series ...sonarr.Series) *fakeSonarr {
	return &fakeSonarr{
		series:     series,
		episodeSet: map[int]bool{},
		seriesSet:  map[int]bool{},
	}
}

func (f *fakeSonarr) Ping(context.Context) error { return nil }

func (f *fakeSonarr) GetAllSeries(context.Context) ([]sonarr.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]sonarr.Series(nil), f.series...), nil
}

func (f *fakeSonarr) LookupSeries(context.Context, string) ([]sonarr.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookup, nil
}

func (f *fakeSonarr) FindEpisode(_ context.Context, seriesID, season, episode int) (*sonarr.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findCalls++
	for _, ep := range f.episodes {
		if ep.SeriesID == seriesID && ep.SeasonNumber == season && ep.EpisodeNumber == episode {
			found := ep
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeSonarr) SeasonEpisodes(_ context.Context, seriesID, season int) ([]sonarr.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []sonarr.Episode
	for _, ep := range f.episodes {
		if ep.SeriesID == seriesID && ep.SeasonNumber == season {
			result = append(result, ep)
		}
	}
	return result, nil
}

func (f *fakeSonarr) UpdateEpisodeMonitoring(_ context.Context, episodeID int, monitored bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.episodeSet[episodeID] = monitored
	return nil
}

func (f *fakeSonarr) BulkUpdateEpisodeMonitoring(_ context.Context, episodeIDs []int, monitored bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulkCalls++
	if f.bulkErr != nil {
		return f.bulkErr
	}
	for _, id := range episodeIDs {
		f.episodeSet[id] = monitored
	}
	return nil
}

func (f *fakeSonarr) UpdateSeriesMonitoring(_ context.Context, seriesID int, monitored bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.seriesSet[seriesID] = monitored
	return nil
}

func (f *fakeSonarr) episodeMonitored(id int) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.episodeSet[id]
	return v, ok
}

type fakeRadarr struct {
	mu sync.Mutex

	movies    []radarr.Movie
	lookup    []radarr.Movie
	updateErr error
	listCalls int
	updates   []movieUpdate
}

type movieUpdate struct {
	id        int
	monitored bool
}

func newFakeRadarr(movies ...radarr.Movie) *fakeRadarr {
	return &fakeRadarr{movies: movies}
}

func (f *fakeRadarr) Ping(context.Context) error { return nil }

func (f *fakeRadarr) GetAllMovies(context.Context) ([]radarr.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]radarr.Movie(nil), f.movies...), nil
}

func (f *fakeRadarr) LookupMovies(context.Context, string) ([]radarr.Movie, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookup, nil
}

func (f *fakeRadarr) UpdateMovieMonitoring(_ context.Context, movieID int, monitored bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates = append(f.updates, movieUpdate{id: movieID, monitored: monitored})
	return nil
}

func (f *fakeRadarr) updateList() []movieUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]movieUpdate(nil), f.updates...)
}

type fakeEnhancer struct {
	match *omdb.Match
	err   error
	calls int
}

func (f *fakeEnhancer) FindBestMatch(context.Context, string, string, *int, string) (*omdb.Match, error) {
	f.calls++
	return f.match, f.err
}

type fakeJellyfin struct {
	users   []jellyfin.User
	items   map[string]*jellyfin.Item
	library []jellyfin.Item
	itemErr error
}

func (f *fakeJellyfin) Ping(context.Context) error { return nil }

func (f *fakeJellyfin) GetUsers(context.Context) ([]jellyfin.User, error) {
	return f.users, nil
}

func (f *fakeJellyfin) GetItem(_ context.Context, itemID, _ string) (*jellyfin.Item, error) {
	if f.itemErr != nil {
		return nil, f.itemErr
	}
	return f.items[itemID], nil
}

func (f *fakeJellyfin) ListItems(_ context.Context, _ string, itemTypes []string, fn func(items []jellyfin.Item, total int) error) error {
	var matched []jellyfin.Item
	for _, item := range f.library {
		for _, t := range itemTypes {
			if item.Type == t {
				matched = append(matched, item)
			}
		}
	}
	return fn(matched, len(matched))
}

var errRemote = errors.New("API request failed with status 500: boom")

func intPtr(v int) *int { return &v }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newTestDB(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// testEnv wires the full sync path around fakes
type testEnv struct {
	db       *models.Database
	sonarr   *fakeSonarr
	radarr   *fakeRadarr
	jellyfin *fakeJellyfin
	resolver *IdentityResolver
	mappings *MappingStore
	executor *SyncExecutor
	dedup    *DedupCache
	pipeline *Pipeline
}

func newTestEnv(t *testing.T, son *fakeSonarr, rad *fakeRadarr) *testEnv {
	t.Helper()
	logger := testLogger()
	db := newTestDB(t)
	jf := &fakeJellyfin{items: map[string]*jellyfin.Item{}}

	resolver := NewIdentityResolver(son, rad, nil, time.Minute, logger)
	mappings := NewMappingStore(db, resolver, son, logger)
	executor := NewSyncExecutor(db, mappings, son, rad, true, logger)
	dedup := NewDedupCache(time.Minute, 0)
	pipeline := NewPipeline(db, dedup, jf, executor, logger)
	t.Cleanup(func() { _ = pipeline.Shutdown(context.Background()) })

	return &testEnv{
		db:       db,
		sonarr:   son,
		radarr:   rad,
		jellyfin: jf,
		resolver: resolver,
		mappings: mappings,
		executor: executor,
		dedup:    dedup,
		pipeline: pipeline,
	}
}

func movieEvent(itemID, title string, watched bool) *models.WatchEvent {
	return &models.WatchEvent{
		EventType:    "UserDataSaved",
		ItemID:       itemID,
		UserID:       "user-1",
		Title:        title,
		MediaType:    models.MediaTypeMovie,
		Watched:      watched,
		WatchedKnown: true,
	}
}

func episodeEvent(itemID, series string, season, episode int, watched bool) *models.WatchEvent {
	return &models.WatchEvent{
		EventType:     "UserDataSaved",
		ItemID:        itemID,
		UserID:        "user-1",
		Title:         "Some Episode",
		MediaType:     models.MediaTypeEpisode,
		Watched:       watched,
		WatchedKnown:  true,
		SeriesName:    series,
		SeasonNumber:  intPtr(season),
		EpisodeNumber: intPtr(episode),
	}
}
