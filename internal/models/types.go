package models

import "strings"

// MediaType represents the kind of Jellyfin item a record tracks
type MediaType string

const (
	MediaTypeEpisode MediaType = "episode"
	MediaTypeMovie   MediaType = "movie"
	MediaTypeSeries  MediaType = "series"
	MediaTypeSeason  MediaType = "season"
)

// ParseMediaType maps a Jellyfin item type to a MediaType.
// Unknown or empty values default to episode.
func ParseMediaType(s string) MediaType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie":
		return MediaTypeMovie
	case "series":
		return MediaTypeSeries
	case "season":
		return MediaTypeSeason
	default:
		return MediaTypeEpisode
	}
}

// Service returns the library service that owns this media type
func (t MediaType) Service() ServiceName {
	if t == MediaTypeMovie {
		return ServiceRadarr
	}
	return ServiceSonarr
}

// ServiceName identifies a downstream library-management service
type ServiceName string

const (
	ServiceSonarr ServiceName = "sonarr"
	ServiceRadarr ServiceName = "radarr"
)

// SyncAction is the monitoring change requested from a service
type SyncAction string

const (
	SyncActionMonitor   SyncAction = "monitor"
	SyncActionUnmonitor SyncAction = "unmonitor"
)

// ActionFor returns the action matching a desired monitoring state
func ActionFor(monitored bool) SyncAction {
	if monitored {
		return SyncActionMonitor
	}
	return SyncActionUnmonitor
}

// SyncStatus represents the lifecycle state of a sync attempt
type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusProcessing SyncStatus = "processing"
	SyncStatusCompleted  SyncStatus = "completed"
	SyncStatusFailed     SyncStatus = "failed"
)

// ExternalIDs holds provider identifiers carried by Jellyfin items
type ExternalIDs struct {
	Tvdb string `json:"tvdb_id,omitempty"`
	Imdb string `json:"imdb_id,omitempty"`
	Tmdb string `json:"tmdb_id,omitempty"`
}

// Any reports whether at least one identifier is set
func (ids ExternalIDs) Any() bool {
	return ids.Tvdb != "" || ids.Imdb != "" || ids.Tmdb != ""
}
