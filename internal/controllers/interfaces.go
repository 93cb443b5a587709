package controllers

import (
	"context"

	"github.com/amaumene/unmonitarr/internal/services/jellyfin"
	"github.com/amaumene/unmonitarr/internal/services/omdb"
	"github.com/amaumene/unmonitarr/internal/services/radarr"
	"github.com/amaumene/unmonitarr/internal/services/sonarr"
)

// SeriesService is the part of the Sonarr client the controllers use
type SeriesService interface {
	Ping(ctx context.Context) error
	GetAllSeries(ctx context.Context) ([]sonarr.Series, error)
	LookupSeries(ctx context.Context, term string) ([]sonarr.Series, error)
	FindEpisode(ctx context.Context, seriesID, season, episode int) (*sonarr.Episode, error)
	SeasonEpisodes(ctx context.Context, seriesID, season int) ([]sonarr.Episode, error)
	UpdateEpisodeMonitoring(ctx context.Context, episodeID int, monitored bool) error
	BulkUpdateEpisodeMonitoring(ctx context.Context, episodeIDs []int, monitored bool) error
	UpdateSeriesMonitoring(ctx context.Context, seriesID int, monitored bool) error
}

// MovieService is the part of the Radarr client the controllers use
type MovieService interface {
	Ping(ctx context.Context) error
	GetAllMovies(ctx context.Context) ([]radarr.Movie, error)
	LookupMovies(ctx context.Context, term string) ([]radarr.Movie, error)
	UpdateMovieMonitoring(ctx context.Context, movieID int, monitored bool) error
}

// MetadataEnhancer finds external identifiers for a title
type MetadataEnhancer interface {
	FindBestMatch(ctx context.Context, title, kind string, year *int, imdbID string) (*omdb.Match, error)
}

// MediaServer is the part of the Jellyfin client the controllers use
type MediaServer interface {
	Ping(ctx context.Context) error
	GetUsers(ctx context.Context) ([]jellyfin.User, error)
	GetItem(ctx context.Context, itemID, userID string) (*jellyfin.Item, error)
	ListItems(ctx context.Context, userID string, itemTypes []string, fn func(items []jellyfin.Item, total int) error) error
}

var (
	_ SeriesService    = (*sonarr.Client)(nil)
	_ MovieService     = (*radarr.Client)(nil)
	_ MetadataEnhancer = (*omdb.Client)(nil)
	_ MediaServer      = (*jellyfin.Client)(nil)
)
