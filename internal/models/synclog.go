package models

import "time"

// SyncLog is the audit record of one synchronization attempt
type SyncLog struct {
	ID          uint64  `boltholdKey:"ID"`
	MediaItemID *uint64 // nil when the attempt failed before a media item existed

	SeriesName string
	Action     SyncAction
	Status     SyncStatus `boltholdIndex:"Status"`
	Service    ServiceName

	ExternalID   *int // Sonarr series id or Radarr movie id
	ErrorMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SyncLogFilter narrows a sync log listing
type SyncLogFilter struct {
	Status  SyncStatus
	Service ServiceName
	Action  SyncAction
	Since   time.Time
	Skip    int
	Limit   int
}

func (f SyncLogFilter) matches(log *SyncLog) bool {
	if f.Status != "" && log.Status != f.Status {
		return false
	}
	if f.Service != "" && log.Service != f.Service {
		return false
	}
	if f.Action != "" && log.Action != f.Action {
		return false
	}
	if !f.Since.IsZero() && log.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// Setting is a persisted key/value configuration entry
type Setting struct {
	Key         string `boltholdKey:"Key"`
	Value       string
	Description string
	UpdatedAt   time.Time
}
