package radarr

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/amaumene/unmonitarr/internal/services/rest"
	"github.com/sirupsen/logrus"
)

const apiBase = "/api/v3"

// Client handles communication with the Radarr API
type Client struct {
	rest   *rest.Client
	logger *logrus.Logger
}

// AlternateTitle is one of a movie's known aliases
type AlternateTitle struct {
	Title string `json:"title"`
}

// Movie is a Radarr movie
type Movie struct {
	ID              int              `json:"id"`
	Title           string           `json:"title"`
	AlternateTitles []AlternateTitle `json:"alternateTitles,omitempty"`
	Year            int              `json:"year"`
	TmdbID          int              `json:"tmdbId"`
	ImdbID          string           `json:"imdbId,omitempty"`
	Monitored       bool             `json:"monitored"`
}

// NewClient creates a new Radarr API client
func NewClient(baseURL, apiKey string, opts rest.Options, logger *logrus.Logger) *Client {
	opts.Name = "radarr"
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
		return fmt.Errorf("radarr unreachable: %w", err)
	}
	return nil
}

// GetAllMovies lists every movie in the library
func (c *Client) GetAllMovies(ctx context.Context) ([]Movie, error) {
	var movies []Movie
	if err := c.rest.Get(ctx, "/movie", nil, &movies); err != nil {
		return nil, fmt.Errorf("failed to get movies: %w", err)
	}
	return movies, nil
}

// GetMovie fetches one movie
func (c *Client) GetMovie(ctx context.Context, id int) (*Movie, error) {
	var movie Movie
	if err := c.rest.Get(ctx, "/movie/"+strconv.Itoa(id), nil, &movie); err != nil {
		return nil, fmt.Errorf("failed to get movie %d: %w", id, err)
	}
	return &movie, nil
}

// LookupMovies searches the Radarr metadata source by term
func (c *Client) LookupMovies(ctx context.Context, term string) ([]Movie, error) {
	var movies []Movie
	if err := c.rest.Get(ctx, "/movie/lookup", url.Values{"term": {term}}, &movies); err != nil {
		return nil, fmt.Errorf("failed to look up movie %q: %w", term, err)
	}
	return movies, nil
}

// UpdateMovieMonitoring sets the monitored flag of a movie
func (c *Client) UpdateMovieMonitoring(ctx context.Context, movieID int, monitored bool) error {
	path := "/movie/" + strconv.Itoa(movieID)

	var movie map[string]interface{}
	if err := c.rest.Get(ctx, path, nil, &movie); err != nil {
		return fmt.Errorf("failed to get movie %d: %w", movieID, err)
	}
	movie["monitored"] = monitored

	if err := c.rest.Put(ctx, path, movie, nil); err != nil {
		return fmt.Errorf("failed to update movie %d: %w", movieID, err)
	}

	c.logger.WithFields(logrus.Fields{
		"movie_id":  movieID,
		"monitored": monitored,
	}).Info("Movie monitoring updated")
	return nil
}
