// Package omdb enriches titles with IMDB identifiers from the OMDb API.
package omdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/amaumene/unmonitarr/internal/services/rest"
	"github.com/sirupsen/logrus"
)

// DefaultBaseURL is the public OMDb endpoint
const DefaultBaseURL = "https://www.omdbapi.com"

// searchDetailLimit bounds the detail lookups made per title search
const searchDetailLimit = 5

// Client handles communication with the OMDb API
type Client struct {
	rest   *rest.Client
	apiKey string
	logger *logrus.Logger
}

// Match is an OMDb title with its IMDB id
type Match struct {
	Title  string
	Year   *int
	ImdbID string
	Type   string
}

type titleResponse struct {
	Title    string `json:"Title"`
	Year     string `json:"Year"`
	ImdbID   string `json:"imdbID"`
	Type     string `json:"Type"`
	Response string `json:"Response"`
	Error    string `json:"Error,omitempty"`
}

type searchResponse struct {
	Search   []titleResponse `json:"Search"`
	Response string          `json:"Response"`
	Error    string          `json:"Error,omitempty"`
}

// NewClient creates a new OMDb API client. An empty opts.BaseURL uses DefaultBaseURL.
func NewClient(apiKey string, opts rest.Options, logger *logrus.Logger) *Client {
	opts.Name = "omdb"
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	return &Client{
		rest:   rest.NewClient(opts, logger),
		apiKey: apiKey,
		logger: logger,
	}
}

// FindBestMatch returns the OMDb title that best fits the query, or nil.
// A known IMDB id is looked up directly. Otherwise the title is searched and the
// first exact title match wins, then the last result with a matching year, then
// the first result.
func (c *Client) FindBestMatch(ctx context.Context, title, kind string, year *int, imdbID string) (*Match, error) {
	if imdbID != "" {
		match, err := c.GetByIMDBID(ctx, imdbID)
		if err != nil {
			return nil, err
		}
		if match != nil {
			return match, nil
		}
	}

	results, err := c.Search(ctx, title, kind, year)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		c.logger.WithField("title", title).Debug("No OMDb results")
		return nil, nil
	}

	best := results[0]
	for _, result := range results {
		if strings.EqualFold(result.Title, title) {
			best = result
			break
		}
		if year != nil && result.Year != nil && *result.Year == *year {
			best = result
		}
	}

	c.logger.WithFields(logrus.Fields{
		"title":   title,
		"match":   best.Title,
		"imdb_id": best.ImdbID,
	}).Debug("OMDb best match")

	return &best, nil
}

// GetByIMDBID fetches a title by IMDB id. Unknown ids return nil, nil.
func (c *Client) GetByIMDBID(ctx context.Context, imdbID string) (*Match, error) {
	query := url.Values{}
	query.Set("apikey", c.apiKey)
	query.Set("i", imdbID)

	var resp titleResponse
	if err := c.rest.Get(ctx, "/", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", imdbID, err)
	}
	if resp.Response != "True" {
		return nil, nil
	}

	match := resp.toMatch()
	return &match, nil
}

// Search runs a title search and fetches details of the top results.
// kind is "series" or "movie".
func (c *Client) Search(ctx context.Context, title, kind string, year *int) ([]Match, error) {
	query := url.Values{}
	query.Set("apikey", c.apiKey)
	query.Set("s", title)
	query.Set("type", kind)
	if year != nil {
		query.Set("y", strconv.Itoa(*year))
	}

	var resp searchResponse
	if err := c.rest.Get(ctx, "/", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", title, err)
	}
	if resp.Response != "True" {
		return nil, nil
	}

	hits := resp.Search
	if len(hits) > searchDetailLimit {
		hits = hits[:searchDetailLimit]
	}

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		if hit.ImdbID == "" {
			continue
		}
		detail, err := c.GetByIMDBID(ctx, hit.ImdbID)
		if err != nil {
			c.logger.WithError(err).WithField("imdb_id", hit.ImdbID).Warn("Failed to fetch OMDb details")
			continue
		}
		if detail != nil {
			matches = append(matches, *detail)
		}
	}

	return matches, nil
}

func (r titleResponse) toMatch() Match {
	return Match{
		Title:  r.Title,
		Year:   parseYear(r.Year),
		ImdbID: r.ImdbID,
		Type:   r.Type,
	}
}

// parseYear accepts only all-digit years; ranges like "2008-2013" yield nil
func parseYear(s string) *int {
	if s == "" {
		return nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil
		}
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &year
}
