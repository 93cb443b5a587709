package sonarr

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/amaumene/unmonitarr/internal/services/rest"
	"github.com/sirupsen/logrus"
)

const apiBase = "/api/v3"

// Client handles communication with the Sonarr API
type Client struct {
	rest   *rest.Client
	logger *logrus.Logger
}

// AlternateTitle is one of a series' known aliases
type AlternateTitle struct {
	Title string `json:"title"`
}

// Series is a Sonarr series
type Series struct {
	ID              int              `json:"id"`
	Title           string           `json:"title"`
	AlternateTitles []AlternateTitle `json:"alternateTitles,omitempty"`
	Year            int              `json:"year"`
	TvdbID          int              `json:"tvdbId"`
	ImdbID          string           `json:"imdbId,omitempty"`
	TmdbID          int              `json:"tmdbId,omitempty"`
	Monitored       bool             `json:"monitored"`
}

// Episode is a Sonarr episode
type Episode struct {
	ID            int    `json:"id"`
	SeriesID      int    `json:"seriesId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
	Monitored     bool   `json:"monitored"`
}

// NewClient creates a new Sonarr API client
func NewClient(baseURL, apiKey string, opts rest.Options, logger *logrus.Logger) *Client {
	opts.Name = "sonarr"
	opts.BaseURL = baseURL + apiBase
	opts.Headers = map[string]string{"X-Api-Key": apiKey}

	return &Client{
		rest:   rest.NewClient(opts, logger),
		logger: logger,
	}
}

// Ping checks that the server answers
func (c *Client) Ping(ctx context.Context) error {
	var status map[string]interface{}
	if err := c.rest.Get(ctx, "/system/status", nil, &status); err != nil {
		return fmt.Errorf("sonarr unreachable: %w", err)
	}
	return nil
}

// GetAllSeries lists every series in the library
func (c *Client) GetAllSeries(ctx context.Context) ([]Series, error) {
	var series []Series
	if err := c.rest.Get(ctx, "/series", nil, &series); err != nil {
		return nil, fmt.Errorf("failed to get series: %w", err)
	}
	return series, nil
}

// GetSeries fetches one series
func (c *Client) GetSeries(ctx context.Context, id int) (*Series, error) {
	var series Series
	if err := c.rest.Get(ctx, "/series/"+strconv.Itoa(id), nil, &series); err != nil {
		return nil, fmt.Errorf("failed to get series %d: %w", id, err)
	}
	return &series, nil
}

// LookupSeries searches the Sonarr metadata source by term
func (c *Client) LookupSeries(ctx context.Context, term string) ([]Series, error) {
	var series []Series
	if err := c.rest.Get(ctx, "/series/lookup", url.Values{"term": {term}}, &series); err != nil {
		return nil, fmt.Errorf("failed to look up series %q: %w", term, err)
	}
	return series, nil
}

// GetEpisodes lists the episodes of a series
func (c *Client) GetEpisodes(ctx context.Context, seriesID int) ([]Episode, error) {
	var episodes []Episode
	query := url.Values{"seriesId": {strconv.Itoa(seriesID)}}
	if err := c.rest.Get(ctx, "/episode", query, &episodes); err != nil {
		return nil, fmt.Errorf("failed to get episodes of series %d: %w", seriesID, err)
	}
	return episodes, nil
}

// FindEpisode returns the episode at season/episode, or nil when the series has none
func (c *Client) FindEpisode(ctx context.Context, seriesID, season, episode int) (*Episode, error) {
	episodes, err := c.GetEpisodes(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	for i := range episodes {
		if episodes[i].SeasonNumber == season && episodes[i].EpisodeNumber == episode {
			return &episodes[i], nil
		}
	}
	return nil, nil
}

// SeasonEpisodes lists the episodes of one season
func (c *Client) SeasonEpisodes(ctx context.Context, seriesID, season int) ([]Episode, error) {
	episodes, err := c.GetEpisodes(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	var result []Episode
	for _, ep := range episodes {
		if ep.SeasonNumber == season {
			result = append(result, ep)
		}
	}
	return result, nil
}

// UpdateEpisodeMonitoring sets the monitored flag of one episode
func (c *Client) UpdateEpisodeMonitoring(ctx context.Context, episodeID int, monitored bool) error {
	path := "/episode/" + strconv.Itoa(episodeID)

	// round-trip the full resource so fields this client does not model survive
	var episode map[string]interface{}
	if err := c.rest.Get(ctx, path, nil, &episode); err != nil {
		return fmt.Errorf("failed to get episode %d: %w", episodeID, err)
	}
	episode["monitored"] = monitored

	if err := c.rest.Put(ctx, path, episode, nil); err != nil {
		return fmt.Errorf("failed to update episode %d: %w", episodeID, err)
	}

	c.logger.WithFields(logrus.Fields{
		"episode_id": episodeID,
		"monitored":  monitored,
	}).Info("Episode monitoring updated")
	return nil
}

// BulkUpdateEpisodeMonitoring sets the monitored flag of several episodes in one call
func (c *Client) BulkUpdateEpisodeMonitoring(ctx context.Context, episodeIDs []int, monitored bool) error {
	body := map[string]interface{}{
		"episodeIds": episodeIDs,
		"monitored":  monitored,
	}
	if err := c.rest.Put(ctx, "/episode/monitor", body, nil); err != nil {
		return fmt.Errorf("failed to bulk update %d episodes: %w", len(episodeIDs), err)
	}

	c.logger.WithFields(logrus.Fields{
		"episodes":  len(episodeIDs),
		"monitored": monitored,
	}).Info("Bulk episode monitoring updated")
	return nil
}

// UpdateSeriesMonitoring sets the monitored flag of a whole series
func (c *Client) UpdateSeriesMonitoring(ctx context.Context, seriesID int, monitored bool) error {
	path := "/series/" + strconv.Itoa(seriesID)

	var series map[string]interface{}
	if err := c.rest.Get(ctx, path, nil, &series); err != nil {
		return fmt.Errorf("failed to get series %d: %w", seriesID, err)
	}
	series["monitored"] = monitored

	if err := c.rest.Put(ctx, path, series, nil); err != nil {
		return fmt.Errorf("failed to update series %d: %w", seriesID, err)
	}

	c.logger.WithFields(logrus.Fields{
		"series_id": seriesID,
		"monitored": monitored,
	}).Info("Series monitoring updated")
	return nil
}
