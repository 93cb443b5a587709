package jellyfin

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/amaumene/unmonitarr/internal/services/rest"
	"github.com/sirupsen/logrus"
)

const pageSize = 1000

// Client handles communication with the Jellyfin API
type Client struct {
	rest   *rest.Client
	logger *logrus.Logger
}

// User is a Jellyfin user account
type User struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// UserData holds the per-user state of an item
type UserData struct {
	Played bool `json:"Played"`
}

// Item is a Jellyfin library item
type Item struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	Type              string            `json:"Type"`
	ParentID          string            `json:"ParentId,omitempty"`
	SeriesID          string            `json:"SeriesId,omitempty"`
	SeriesName        string            `json:"SeriesName,omitempty"`
	ParentIndexNumber *int              `json:"ParentIndexNumber,omitempty"`
	IndexNumber       *int              `json:"IndexNumber,omitempty"`
	ProductionYear    *int              `json:"ProductionYear,omitempty"`
	PremiereDate      string            `json:"PremiereDate,omitempty"`
	ProviderIDs       map[string]string `json:"ProviderIds,omitempty"`
	UserData          *UserData         `json:"UserData,omitempty"`
}

type itemsResponse struct {
	Items            []Item `json:"Items"`
	TotalRecordCount int    `json:"TotalRecordCount"`
}

// NewClient creates a new Jellyfin API client
func NewClient(baseURL, apiKey string, opts rest.Options, logger *logrus.Logger) *Client {
	opts.Name = "jellyfin"
	opts.BaseURL = baseURL
	opts.Headers = map[string]string{"X-MediaBrowser-Token": apiKey}

	return &Client{
		rest:   rest.NewClient(opts, logger),
		logger: logger,
	}
}

// Ping checks that the server answers
func (c *Client) Ping(ctx context.Context) error {
	var info map[string]interface{}
	if err := c.rest.Get(ctx, "/System/Info/Public", nil, &info); err != nil {
		return fmt.Errorf("jellyfin unreachable: %w", err)
	}
	return nil
}

// GetUsers lists the server's users
func (c *Client) GetUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.rest.Get(ctx, "/Users", nil, &users); err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return users, nil
}

// GetItem fetches an item as seen by userID. A missing item returns nil, nil.
func (c *Client) GetItem(ctx context.Context, itemID, userID string) (*Item, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("userId", userID)
	}

	var item Item
	if err := c.rest.Get(ctx, "/Items/"+url.PathEscape(itemID), query, &item); err != nil {
		if rest.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	return &item, nil
}

// ListItems walks every item of the given types in the user's libraries page by page,
// calling fn with each page and the total record count. Returning an error from fn stops the walk.
func (c *Client) ListItems(ctx context.Context, userID string, itemTypes []string, fn func(items []Item, total int) error) error {
	start := 0
	for {
		query := url.Values{}
		query.Set("Recursive", "true")
		query.Set("IncludeItemTypes", strings.Join(itemTypes, ","))
		query.Set("Fields", "ProviderIds,UserData,PremiereDate,ProductionYear")
		query.Set("StartIndex", strconv.Itoa(start))
		query.Set("Limit", strconv.Itoa(pageSize))

		var page itemsResponse
		if err := c.rest.Get(ctx, "/Users/"+url.PathEscape(userID)+"/Items", query, &page); err != nil {
			return fmt.Errorf("failed to list items at %d: %w", start, err)
		}

		c.logger.WithFields(logrus.Fields{
			"start": start,
			"count": len(page.Items),
			"total": page.TotalRecordCount,
		}).Debug("Fetched Jellyfin items page")

		if len(page.Items) > 0 {
			if err := fn(page.Items, page.TotalRecordCount); err != nil {
				return err
			}
		}

		start += len(page.Items)
		if len(page.Items) < pageSize || start >= page.TotalRecordCount {
			return nil
		}
	}
}

// WatchEvent converts the item into the canonical watch event for userID
func (i *Item) WatchEvent(userID string) *models.WatchEvent {
	ev := &models.WatchEvent{
		EventType:    "UserDataSaved",
		ItemID:       i.ID,
		UserID:       userID,
		Title:        i.Name,
		MediaType:    models.ParseMediaType(i.Type),
		WatchedKnown: i.UserData != nil,
		SeriesID:     i.SeriesID,
		SeriesName:   i.SeriesName,
		Year:         i.ProductionYear,
		IDs:          i.ExternalIDs(),
		ReceivedAt:   time.Now(),
	}
	if i.UserData != nil {
		ev.Watched = i.UserData.Played
	}

	switch ev.MediaType {
	case models.MediaTypeEpisode:
		ev.SeasonNumber = i.ParentIndexNumber
		ev.EpisodeNumber = i.IndexNumber
	case models.MediaTypeSeason:
		ev.SeasonNumber = i.IndexNumber
	}

	if ev.Year == nil {
		ev.Year = yearPrefix(i.PremiereDate)
	}

	return ev
}

// ExternalIDs returns the item's provider ids
func (i *Item) ExternalIDs() models.ExternalIDs {
	var ids models.ExternalIDs
	for key, value := range i.ProviderIDs {
		switch strings.ToLower(key) {
		case "tvdb":
			ids.Tvdb = value
		case "imdb":
			ids.Imdb = value
		case "tmdb":
			ids.Tmdb = value
		}
	}
	return ids
}

// Merge copies the item's watched flag and any metadata missing from ev
func (i *Item) Merge(ev *models.WatchEvent) {
	full := i.WatchEvent(ev.UserID)
	if full.WatchedKnown {
		ev.Watched = full.Watched
		ev.WatchedKnown = true
	}
	if ev.Title == "" {
		ev.Title = full.Title
	}
	if i.Type != "" {
		ev.MediaType = full.MediaType
	}
	if ev.SeriesID == "" {
		ev.SeriesID = full.SeriesID
	}
	if ev.SeriesName == "" {
		ev.SeriesName = full.SeriesName
	}
	if ev.SeasonNumber == nil {
		ev.SeasonNumber = full.SeasonNumber
	}
	if ev.EpisodeNumber == nil {
		ev.EpisodeNumber = full.EpisodeNumber
	}
	if ev.Year == nil {
		ev.Year = full.Year
	}
	if ev.IDs.Tvdb == "" {
		ev.IDs.Tvdb = full.IDs.Tvdb
	}
	if ev.IDs.Imdb == "" {
		ev.IDs.Imdb = full.IDs.Imdb
	}
	if ev.IDs.Tmdb == "" {
		ev.IDs.Tmdb = full.IDs.Tmdb
	}
}

// yearPrefix parses the leading four digits of an ISO date
func yearPrefix(date string) *int {
	if len(date) < 4 {
		return nil
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return nil
	}
	return &year
}
