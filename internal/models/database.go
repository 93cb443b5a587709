package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = bolthold.ErrNotFound

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// Ping checks that the underlying bolt file is readable
func (db *Database) Ping() error {
	return db.store.Bolt().View(func(tx *bbolt.Tx) error {
		return nil
	})
}

// Media item operations

// GetOrCreateMediaItem loads the media item for an event or creates it.
// Existing items get their metadata refreshed but keep the stored watched flag,
// new items start unwatched. Both paths run in a single bolt transaction.
func (db *Database) GetOrCreateMediaItem(ev *WatchEvent) (*MediaItem, bool, error) {
	var (
		item    *MediaItem
		created bool
	)

	err := db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var items []*MediaItem
		if err := db.store.TxFind(tx, &items, bolthold.Where("JellyfinID").Eq(ev.ItemID)); err != nil {
			return err
		}

		now := time.Now()
		if len(items) > 0 {
			item = items[0]
			applyEventMetadata(item, ev)
			item.UpdatedAt = now
			return db.store.TxUpdate(tx, item.ID, item)
		}

		item = &MediaItem{
			JellyfinID: ev.ItemID,
			MediaType:  ev.MediaType,
			IsWatched:  false,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		applyEventMetadata(item, ev)
		created = true
		return db.store.TxInsert(tx, bolthold.NextSequence(), item)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to get or create media item %s: %w", ev.ItemID, err)
	}

	return item, created, nil
}

func applyEventMetadata(item *MediaItem, ev *WatchEvent) {
	if ev.Title != "" {
		item.Title = ev.Title
	}
	if ev.MediaType != "" {
		item.MediaType = ev.MediaType
	}
	if ev.SeriesID != "" {
		item.ParentID = ev.SeriesID
	}
	if ev.SeriesName != "" {
		item.SeriesName = ev.SeriesName
	}
	if ev.SeasonNumber != nil {
		item.SeasonNumber = ev.SeasonNumber
	}
	if ev.EpisodeNumber != nil {
		item.EpisodeNumber = ev.EpisodeNumber
	}
	if ev.Year != nil {
		item.Year = ev.Year
	}
}

// UpdateMediaItem updates an existing media item
func (db *Database) UpdateMediaItem(item *MediaItem) error {
	item.UpdatedAt = time.Now()
	return db.store.Update(item.ID, item)
}

// GetMediaItemByID retrieves a media item by ID
func (db *Database) GetMediaItemByID(id uint64) (*MediaItem, error) {
	var item MediaItem
	if err := db.store.Get(id, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetMediaItemByJellyfinID retrieves a media item by its Jellyfin item id
func (db *Database) GetMediaItemByJellyfinID(jellyfinID string) (*MediaItem, error) {
	var item MediaItem
	if err := db.store.FindOne(&item, bolthold.Where("JellyfinID").Eq(jellyfinID)); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetAllMediaItems retrieves all media items
func (db *Database) GetAllMediaItems() ([]*MediaItem, error) {
	var items []*MediaItem
	err := db.store.Find(&items, nil)
	return items, err
}

// ListMediaItems returns a page of media items ordered by ID
func (db *Database) ListMediaItems(skip, limit int) ([]*MediaItem, error) {
	var items []*MediaItem
	query := (&bolthold.Query{}).Skip(skip)
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := db.store.Find(&items, query)
	return items, err
}

// Sonarr mapping operations

// GetSonarrMapping retrieves the Sonarr mapping of a media item
func (db *Database) GetSonarrMapping(mediaItemID uint64) (*SonarrMapping, error) {
	var mapping SonarrMapping
	if err := db.store.FindOne(&mapping, bolthold.Where("MediaItemID").Eq(mediaItemID)); err != nil {
		return nil, err
	}
	return &mapping, nil
}

// UpsertSonarrMapping inserts a mapping unless one already exists for the media item,
// in which case the stored mapping is returned unchanged.
func (db *Database) UpsertSonarrMapping(mapping *SonarrMapping) (*SonarrMapping, error) {
	result := mapping
	err := db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var existing []*SonarrMapping
		if err := db.store.TxFind(tx, &existing, bolthold.Where("MediaItemID").Eq(mapping.MediaItemID)); err != nil {
			return err
		}
		if len(existing) > 0 {
			result = existing[0]
			return nil
		}
		mapping.CreatedAt = time.Now()
		mapping.UpdatedAt = mapping.CreatedAt
		return db.store.TxInsert(tx, bolthold.NextSequence(), mapping)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert sonarr mapping: %w", err)
	}
	return result, nil
}

// UpdateSonarrMapping updates an existing Sonarr mapping
func (db *Database) UpdateSonarrMapping(mapping *SonarrMapping) error {
	mapping.UpdatedAt = time.Now()
	return db.store.Update(mapping.ID, mapping)
}

// Radarr mapping operations

// GetRadarrMapping retrieves the Radarr mapping of a media item
func (db *Database) GetRadarrMapping(mediaItemID uint64) (*RadarrMapping, error) {
	var mapping RadarrMapping
	if err := db.store.FindOne(&mapping, bolthold.Where("MediaItemID").Eq(mediaItemID)); err != nil {
		return nil, err
	}
	return &mapping, nil
}

// UpsertRadarrMapping inserts a mapping unless one already exists for the media item
func (db *Database) UpsertRadarrMapping(mapping *RadarrMapping) (*RadarrMapping, error) {
	result := mapping
	err := db.store.Bolt().Update(func(tx *bbolt.Tx) error {
		var existing []*RadarrMapping
		if err := db.store.TxFind(tx, &existing, bolthold.Where("MediaItemID").Eq(mapping.MediaItemID)); err != nil {
			return err
		}
		if len(existing) > 0 {
			result = existing[0]
			return nil
		}
		mapping.CreatedAt = time.Now()
		mapping.UpdatedAt = mapping.CreatedAt
		return db.store.TxInsert(tx, bolthold.NextSequence(), mapping)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert radarr mapping: %w", err)
	}
	return result, nil
}

// UpdateRadarrMapping updates an existing Radarr mapping
func (db *Database) UpdateRadarrMapping(mapping *RadarrMapping) error {
	mapping.UpdatedAt = time.Now()
	return db.store.Update(mapping.ID, mapping)
}

// CountMappings returns the number of Sonarr and Radarr mappings
func (db *Database) CountMappings() (int, int, error) {
	var sonarr []*SonarrMapping
	if err := db.store.Find(&sonarr, nil); err != nil {
		return 0, 0, err
	}
	var radarr []*RadarrMapping
	if err := db.store.Find(&radarr, nil); err != nil {
		return 0, 0, err
	}
	return len(sonarr), len(radarr), nil
}

// Sync log operations

// CreateSyncLog creates a new sync log entry
func (db *Database) CreateSyncLog(log *SyncLog) error {
	log.CreatedAt = time.Now()
	log.UpdatedAt = log.CreatedAt
	return db.store.Insert(bolthold.NextSequence(), log)
}

// UpdateSyncLog updates an existing sync log entry
func (db *Database) UpdateSyncLog(log *SyncLog) error {
	log.UpdatedAt = time.Now()
	return db.store.Update(log.ID, log)
}

// GetSyncLog retrieves a sync log entry by ID
func (db *Database) GetSyncLog(id uint64) (*SyncLog, error) {
	var log SyncLog
	if err := db.store.Get(id, &log); err != nil {
		return nil, err
	}
	return &log, nil
}

// ListSyncLogs returns sync logs matching the filter, newest first
func (db *Database) ListSyncLogs(filter SyncLogFilter) ([]*SyncLog, error) {
	var query *bolthold.Query
	if filter.Status != "" {
		query = bolthold.Where("Status").Eq(filter.Status)
	}

	var logs []*SyncLog
	if err := db.store.Find(&logs, query); err != nil {
		return nil, err
	}

	matched := logs[:0]
	for _, log := range logs {
		if filter.matches(log) {
			matched = append(matched, log)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Skip > 0 {
		if filter.Skip >= len(matched) {
			return []*SyncLog{}, nil
		}
		matched = matched[filter.Skip:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	return matched, nil
}

// Setting operations

// GetSetting returns the stored value for key or ErrNotFound
func (db *Database) GetSetting(key string) (string, error) {
	var setting Setting
	if err := db.store.Get(key, &setting); err != nil {
		return "", err
	}
	return setting.Value, nil
}

// SetSetting stores value under key, replacing any previous value
func (db *Database) SetSetting(key, value, description string) error {
	setting := &Setting{
		Key:         key,
		Value:       value,
		Description: description,
		UpdatedAt:   time.Now(),
	}
	return db.store.Upsert(key, setting)
}

// IsNotFound reports whether err means the record does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
