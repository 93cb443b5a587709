package models

import "time"

// SonarrMapping links a media item to its Sonarr series (and episode when known)
type SonarrMapping struct {
	ID          uint64 `boltholdKey:"ID"`
	MediaItemID uint64 `boltholdIndex:"MediaItemID"`

	SeriesID     int
	EpisodeID    *int // set for episode-granularity items
	SeasonNumber *int
	IsMonitored  bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RadarrMapping links a media item to its Radarr movie
type RadarrMapping struct {
	ID          uint64 `boltholdKey:"ID"`
	MediaItemID uint64 `boltholdIndex:"MediaItemID"`

	MovieID     int
	IsMonitored bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
