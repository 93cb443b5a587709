package controllers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/amaumene/unmonitarr/internal/metrics"
	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/amaumene/unmonitarr/internal/services/radarr"
	"github.com/amaumene/unmonitarr/internal/services/sonarr"
	"github.com/amaumene/unmonitarr/internal/utils"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Tier names the resolution step that produced a match
type Tier string

const (
	TierNone     Tier = "none"
	TierCached   Tier = "mapping"
	TierID       Tier = "id"
	TierTitle    Tier = "title"
	TierLookup   Tier = "lookup"
	TierEnhanced Tier = "enhanced"
	TierFallback Tier = "fallback"
)

const (
	seriesCacheKey = "sonarr:series"
	moviesCacheKey = "radarr:movies"
)

// SeriesContext overrides the title and year used to resolve an episode or season
type SeriesContext struct {
	Title string
	Year  *int
}

// ResolveRequest carries everything known about the item being resolved
type ResolveRequest struct {
	Title         string
	MediaType     models.MediaType
	Year          *int
	SeriesName    string
	SeriesYear    *int
	SeasonNumber  *int
	EpisodeNumber *int
	IDs           models.ExternalIDs
	Context       *SeriesContext
}

// RequestFor builds a resolve request from a stored item and the event that touched it
func RequestFor(item *models.MediaItem, ev *models.WatchEvent) ResolveRequest {
	req := ResolveRequest{
		Title:         item.Title,
		MediaType:     item.MediaType,
		Year:          item.Year,
		SeriesName:    item.SeriesName,
		SeasonNumber:  item.SeasonNumber,
		EpisodeNumber: item.EpisodeNumber,
	}
	if ev != nil {
		req.SeriesYear = ev.SeriesYear
		req.IDs = ev.IDs
	}
	return req
}

// subject returns the title and year to match on. Episodes and seasons are matched
// through their series, never through their own title or air year.
func (r ResolveRequest) subject() (string, *int) {
	if r.Context != nil {
		return r.Context.Title, r.Context.Year
	}
	partOfSeries := r.MediaType == models.MediaTypeEpisode || r.MediaType == models.MediaTypeSeason
	if partOfSeries && r.SeriesName != "" && (r.SeasonNumber != nil || r.EpisodeNumber != nil) {
		return r.SeriesName, r.SeriesYear
	}
	return r.Title, r.Year
}

// IdentityResolver finds the Sonarr series or Radarr movie behind a Jellyfin item
type IdentityResolver struct {
	series   SeriesService
	movies   MovieService
	enhancer MetadataEnhancer
	cache    *gocache.Cache
	cacheTTL time.Duration
	logger   *logrus.Logger
}

// NewIdentityResolver creates a resolver. enhancer may be nil to disable external lookups.
func NewIdentityResolver(series SeriesService, movies MovieService, enhancer MetadataEnhancer, cacheTTL time.Duration, logger *logrus.Logger) *IdentityResolver {
	return &IdentityResolver{
		series:   series,
		movies:   movies,
		enhancer: enhancer,
		cache:    gocache.New(cacheTTL, 5*time.Minute),
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// InvalidateCache drops the cached entity lists
func (r *IdentityResolver) InvalidateCache() {
	r.cache.Flush()
}

func (r *IdentityResolver) allSeries(ctx context.Context) ([]sonarr.Series, error) {
	if cached, ok := r.cache.Get(seriesCacheKey); ok {
		return cached.([]sonarr.Series), nil
	}
	series, err := r.series.GetAllSeries(ctx)
	if err != nil {
		return nil, err
	}
	if r.cacheTTL > 0 {
		r.cache.Set(seriesCacheKey, series, r.cacheTTL)
	}
	return series, nil
}

func (r *IdentityResolver) allMovies(ctx context.Context) ([]radarr.Movie, error) {
	if cached, ok := r.cache.Get(moviesCacheKey); ok {
		return cached.([]radarr.Movie), nil
	}
	movies, err := r.movies.GetAllMovies(ctx)
	if err != nil {
		return nil, err
	}
	if r.cacheTTL > 0 {
		r.cache.Set(moviesCacheKey, movies, r.cacheTTL)
	}
	return movies, nil
}

// ResolveSeries finds the Sonarr series for req. A nil series with a nil error is a miss.
func (r *IdentityResolver) ResolveSeries(ctx context.Context, req ResolveRequest) (*sonarr.Series, Tier, error) {
	title, year := req.subject()

	all, err := r.allSeries(ctx)
	if err != nil {
		return nil, TierNone, fmt.Errorf("failed to load series: %w", err)
	}
	candidates := seriesCandidates(all)

	pick := func(idx int, tier Tier) (*sonarr.Series, Tier, error) {
		series := all[idx]
		r.record(models.ServiceSonarr, tier, title, series.Title)
		return &series, tier, nil
	}

	// Tier 1: provider ids
	if idx := matchSeriesByID(candidates, req.IDs); idx >= 0 {
		return pick(idx, TierID)
	}

	// Tier 2: title, then the lookup endpoint
	if idx := matchByTitle(candidates, title, year); idx >= 0 {
		return pick(idx, TierTitle)
	}
	if idx := r.lookupSeries(ctx, candidates, title); idx >= 0 {
		return pick(idx, TierLookup)
	}

	// Tier 3: external metadata
	if enhanced := r.enhance(ctx, title, "series", year, req.IDs); enhanced != nil {
		ids := req.IDs
		if enhanced.ImdbID != "" {
			ids.Imdb = enhanced.ImdbID
		}
		enhancedYear := year
		if enhanced.Year != nil {
			enhancedYear = enhanced.Year
		}
		if idx := matchSeriesByID(candidates, ids); idx >= 0 {
			return pick(idx, TierEnhanced)
		}
		if idx := matchByTitle(candidates, enhanced.Title, enhancedYear); idx >= 0 {
			return pick(idx, TierEnhanced)
		}
	}

	// Tier 4: original title without ids against a refreshed list
	if series := r.fallbackSeries(ctx, title, year); series != nil {
		r.record(models.ServiceSonarr, TierFallback, title, series.Title)
		return series, TierFallback, nil
	}

	r.record(models.ServiceSonarr, TierNone, title, "")
	return nil, TierNone, nil
}

// ResolveMovie finds the Radarr movie for req. A nil movie with a nil error is a miss.
func (r *IdentityResolver) ResolveMovie(ctx context.Context, req ResolveRequest) (*radarr.Movie, Tier, error) {
	title, year := req.subject()

	all, err := r.allMovies(ctx)
	if err != nil {
		return nil, TierNone, fmt.Errorf("failed to load movies: %w", err)
	}
	candidates := movieCandidates(all)

	pick := func(idx int, tier Tier) (*radarr.Movie, Tier, error) {
		movie := all[idx]
		r.record(models.ServiceRadarr, tier, title, movie.Title)
		return &movie, tier, nil
	}

	if idx := matchMovieByID(candidates, req.IDs); idx >= 0 {
		return pick(idx, TierID)
	}

	if idx := matchByTitle(candidates, title, year); idx >= 0 {
		return pick(idx, TierTitle)
	}
	if idx := r.lookupMovie(ctx, candidates, title); idx >= 0 {
		return pick(idx, TierLookup)
	}

	if enhanced := r.enhance(ctx, title, "movie", year, req.IDs); enhanced != nil {
		ids := req.IDs
		if enhanced.ImdbID != "" {
			ids.Imdb = enhanced.ImdbID
		}
		enhancedYear := year
		if enhanced.Year != nil {
			enhancedYear = enhanced.Year
		}
		if idx := matchMovieByID(candidates, ids); idx >= 0 {
			return pick(idx, TierEnhanced)
		}
		if idx := matchByTitle(candidates, enhanced.Title, enhancedYear); idx >= 0 {
			return pick(idx, TierEnhanced)
		}
	}

	if movie := r.fallbackMovie(ctx, title, year); movie != nil {
		r.record(models.ServiceRadarr, TierFallback, title, movie.Title)
		return movie, TierFallback, nil
	}

	r.record(models.ServiceRadarr, TierNone, title, "")
	return nil, TierNone, nil
}

// lookupSeries accepts a lookup result only when it is already in the library
func (r *IdentityResolver) lookupSeries(ctx context.Context, candidates []Candidate, title string) int {
	if title == "" {
		return -1
	}
	results, err := r.series.LookupSeries(ctx, title)
	if err != nil {
		r.logger.WithError(err).WithField("title", title).Warn("Series lookup failed")
		return -1
	}
	for _, result := range results {
		if result.TvdbID == 0 {
			continue
		}
		for _, c := range candidates {
			if c.TvdbID == result.TvdbID {
				return c.Index
			}
		}
	}
	return -1
}

func (r *IdentityResolver) lookupMovie(ctx context.Context, candidates []Candidate, title string) int {
	if title == "" {
		return -1
	}
	results, err := r.movies.LookupMovies(ctx, title)
	if err != nil {
		r.logger.WithError(err).WithField("title", title).Warn("Movie lookup failed")
		return -1
	}
	for _, result := range results {
		if result.TmdbID == 0 {
			continue
		}
		for _, c := range candidates {
			if c.TmdbID == result.TmdbID {
				return c.Index
			}
		}
	}
	return -1
}

type enhancedMatch struct {
	Title  string
	Year   *int
	ImdbID string
}

func (r *IdentityResolver) enhance(ctx context.Context, title, kind string, year *int, ids models.ExternalIDs) *enhancedMatch {
	if r.enhancer == nil || title == "" {
		return nil
	}

	match, err := r.enhancer.FindBestMatch(ctx, title, kind, year, ids.Imdb)
	if err != nil {
		r.logger.WithError(err).WithField("title", title).Warn("External metadata lookup failed")
		return nil
	}
	if match == nil {
		return nil
	}

	r.logger.WithFields(logrus.Fields{
		"title":    title,
		"enhanced": match.Title,
		"imdb_id":  match.ImdbID,
	}).Debug("Enhanced title with external metadata")

	return &enhancedMatch{Title: match.Title, Year: match.Year, ImdbID: match.ImdbID}
}

func (r *IdentityResolver) fallbackSeries(ctx context.Context, title string, year *int) *sonarr.Series {
	r.cache.Delete(seriesCacheKey)
	all, err := r.allSeries(ctx)
	if err != nil {
		return nil
	}
	if idx := matchByTitle(seriesCandidates(all), title, year); idx >= 0 {
		series := all[idx]
		return &series
	}
	return nil
}

func (r *IdentityResolver) fallbackMovie(ctx context.Context, title string, year *int) *radarr.Movie {
	r.cache.Delete(moviesCacheKey)
	all, err := r.allMovies(ctx)
	if err != nil {
		return nil
	}
	if idx := matchByTitle(movieCandidates(all), title, year); idx >= 0 {
		movie := all[idx]
		return &movie
	}
	return nil
}

func (r *IdentityResolver) record(service models.ServiceName, tier Tier, title, matched string) {
	metrics.Resolutions.WithLabelValues(string(service), string(tier)).Inc()

	entry := r.logger.WithFields(logrus.Fields{
		"service": service,
		"tier":    tier,
		"title":   title,
	})
	if tier == TierNone {
		entry.Warn("No matching entity found")
		return
	}
	entry.WithField("matched", matched).Info("Resolved entity")
}

// TitleScore is a diagnostic similarity between a query and a library title
type TitleScore struct {
	ID         int     `json:"id"`
	Title      string  `json:"title"`
	Normalized string  `json:"normalized"`
	Similarity float64 `json:"similarity"`
}

// SeriesScores ranks every library series by title similarity to title, best first
func (r *IdentityResolver) SeriesScores(ctx context.Context, title string, limit int) ([]TitleScore, error) {
	all, err := r.allSeries(ctx)
	if err != nil {
		return nil, err
	}

	scores := make([]TitleScore, 0, len(all))
	for _, s := range all {
		scores = append(scores, TitleScore{
			ID:         s.ID,
			Title:      s.Title,
			Normalized: utils.NormalizeTitle(s.Title),
			Similarity: utils.TitleSimilarity(title, s.Title),
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Similarity > scores[j].Similarity
	})
	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}
