package models

import "time"

// MediaItem is the durable record of a Jellyfin item seen by a watch event
type MediaItem struct {
	ID         uint64 `json:"id" boltholdKey:"ID"`
	JellyfinID string `json:"jellyfin_id" boltholdIndex:"JellyfinID"`

	Title     string    `json:"title"`
	MediaType MediaType `json:"media_type"`
	IsWatched bool      `json:"is_watched"` // starts false so the first real transition is detected

	// Episode context
	ParentID      string `json:"parent_id,omitempty"`
	SeriesName    string `json:"series_name,omitempty"`
	SeasonNumber  *int   `json:"season_number"`
	EpisodeNumber *int   `json:"episode_number"`
	Year          *int   `json:"year"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName returns the series name for episodes and the title otherwise
func (m *MediaItem) DisplayName() string {
	if m.SeriesName != "" {
		return m.SeriesName
	}
	return m.Title
}

// WatchEvent is the normalized form of a watched-status change for one item and one user.
// It is produced per webhook call or bulk item and never persisted.
type WatchEvent struct {
	EventType string
	ItemID    string
	UserID    string
	Username  string

	Title     string
	MediaType MediaType

	Watched bool
	// WatchedKnown is false when the payload did not carry a played flag
	// and the item has to be fetched from Jellyfin.
	WatchedKnown bool

	SeriesID      string
	SeriesName    string
	SeasonNumber  *int
	EpisodeNumber *int
	SeriesYear    *int
	Year          *int

	IDs ExternalIDs

	ReceivedAt time.Time
}

// WatchedLabel renders the watched flag for cache keys and logs
func (e *WatchEvent) WatchedLabel() string {
	if !e.WatchedKnown {
		return "unknown"
	}
	if e.Watched {
		return "true"
	}
	return "false"
}
