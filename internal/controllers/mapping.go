package controllers

import (
	"context"
	"fmt"
	"sync"

	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/sirupsen/logrus"
)

// MappingStore caches resolved identities as persisted mappings.
// Resolutions of the same media item are serialized.
type MappingStore struct {
	db       *models.Database
	resolver *IdentityResolver
	series   SeriesService
	locks    sync.Map // media item id -> *sync.Mutex
	logger   *logrus.Logger
}

// NewMappingStore creates a new mapping store
func NewMappingStore(db *models.Database, resolver *IdentityResolver, series SeriesService, logger *logrus.Logger) *MappingStore {
	return &MappingStore{
		db:       db,
		resolver: resolver,
		series:   series,
		logger:   logger,
	}
}

func (m *MappingStore) lock(mediaItemID uint64) func() {
	value, _ := m.locks.LoadOrStore(mediaItemID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// SonarrMapping returns the stored mapping of item or resolves and stores a new one.
// A nil mapping with a nil error means no series matched.
func (m *MappingStore) SonarrMapping(ctx context.Context, item *models.MediaItem, req ResolveRequest) (*models.SonarrMapping, Tier, error) {
	unlock := m.lock(item.ID)
	defer unlock()

	existing, err := m.db.GetSonarrMapping(item.ID)
	if err == nil {
		return existing, TierCached, nil
	}
	if !models.IsNotFound(err) {
		return nil, TierNone, fmt.Errorf("failed to load sonarr mapping: %w", err)
	}

	series, tier, err := m.resolver.ResolveSeries(ctx, req)
	if err != nil || series == nil {
		return nil, tier, err
	}

	mapping := &models.SonarrMapping{
		MediaItemID:  item.ID,
		SeriesID:     series.ID,
		SeasonNumber: item.SeasonNumber,
		IsMonitored:  series.Monitored,
	}

	if item.MediaType == models.MediaTypeEpisode {
		if item.SeasonNumber == nil || item.EpisodeNumber == nil {
			return mapping, tier, nil
		}
		episode, err := m.series.FindEpisode(ctx, series.ID, *item.SeasonNumber, *item.EpisodeNumber)
		if err != nil {
			return nil, tier, fmt.Errorf("failed to find episode: %w", err)
		}
		if episode == nil {
			// not persisted so the next event looks again
			m.logger.WithFields(logrus.Fields{
				"series_id": series.ID,
				"season":    *item.SeasonNumber,
				"episode":   *item.EpisodeNumber,
			}).Warn("Episode not found in Sonarr")
			return mapping, tier, nil
		}
		episodeID := episode.ID
		mapping.EpisodeID = &episodeID
		mapping.IsMonitored = episode.Monitored
	}

	stored, err := m.db.UpsertSonarrMapping(mapping)
	if err != nil {
		return nil, tier, err
	}
	return stored, tier, nil
}

// RadarrMapping returns the stored mapping of item or resolves and stores a new one.
// A nil mapping with a nil error means no movie matched.
func (m *MappingStore) RadarrMapping(ctx context.Context, item *models.MediaItem, req ResolveRequest) (*models.RadarrMapping, Tier, error) {
	unlock := m.lock(item.ID)
	defer unlock()

	existing, err := m.db.GetRadarrMapping(item.ID)
	if err == nil {
		return existing, TierCached, nil
	}
	if !models.IsNotFound(err) {
		return nil, TierNone, fmt.Errorf("failed to load radarr mapping: %w", err)
	}

	movie, tier, err := m.resolver.ResolveMovie(ctx, req)
	if err != nil || movie == nil {
		return nil, tier, err
	}

	stored, err := m.db.UpsertRadarrMapping(&models.RadarrMapping{
		MediaItemID: item.ID,
		MovieID:     movie.ID,
		IsMonitored: movie.Monitored,
	})
	if err != nil {
		return nil, tier, err
	}
	return stored, tier, nil
}
