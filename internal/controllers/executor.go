package controllers

import (
	"context"
	"errors"
	"fmt"

	"github.com/amaumene/unmonitarr/internal/metrics"
	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	errEpisodeNotFound = errors.New("episode not found in Sonarr")
	errNoMatch         = errors.New("no matching entity")
)

// SyncExecutor applies the monitoring change of one media item and records the attempt
type SyncExecutor struct {
	db             *models.Database
	mappings       *MappingStore
	series         SeriesService
	movies         MovieService
	ignoreSpecials bool
	logger         *logrus.Logger
}

// NewSyncExecutor creates a new sync executor
func NewSyncExecutor(db *models.Database, mappings *MappingStore, series SeriesService, movies MovieService, ignoreSpecials bool, logger *logrus.Logger) *SyncExecutor {
	return &SyncExecutor{
		db:             db,
		mappings:       mappings,
		series:         series,
		movies:         movies,
		ignoreSpecials: ignoreSpecials,
		logger:         logger,
	}
}

// Sync resolves item and sets its monitored flag to the opposite of its watched flag.
// Remote failures end in a failed sync log, only store failures are returned.
// A nil log means nothing matched and nothing was recorded. retryLogID, when not zero,
// names the sync log to reuse.
func (e *SyncExecutor) Sync(ctx context.Context, item *models.MediaItem, req ResolveRequest, retryLogID uint64) (*models.SyncLog, Tier, error) {
	monitored := !item.IsWatched
	service := item.MediaType.Service()
	action := models.ActionFor(monitored)

	logger := e.logger.WithFields(logrus.Fields{
		"media_item": item.ID,
		"title":      item.DisplayName(),
		"type":       item.MediaType,
		"service":    service,
		"action":     action,
	})

	if e.isIgnoredSpecial(item) {
		log, err := e.beginLog(item, service, action, retryLogID)
		if err != nil {
			return nil, TierNone, err
		}
		logger.Info("Skipping special episode")
		return log, TierNone, e.finish(log, models.SyncStatusCompleted, nil, "")
	}

	var (
		externalID int
		tier       Tier
		applyErr   error
		matched    bool
	)

	switch service {
	case models.ServiceRadarr:
		mapping, t, err := e.mappings.RadarrMapping(ctx, item, req)
		tier = t
		switch {
		case err != nil:
			applyErr = err
		case mapping != nil:
			matched = true
			externalID = mapping.MovieID
			applyErr = e.movies.UpdateMovieMonitoring(ctx, mapping.MovieID, monitored)
			if applyErr == nil && mapping.ID != 0 {
				mapping.IsMonitored = monitored
				if err := e.db.UpdateRadarrMapping(mapping); err != nil {
					logger.WithError(err).Warn("Failed to update radarr mapping")
				}
			}
		}
	default:
		mapping, t, err := e.mappings.SonarrMapping(ctx, item, req)
		tier = t
		switch {
		case err != nil:
			applyErr = err
		case mapping != nil:
			matched = true
			externalID = mapping.SeriesID
			applyErr = e.applySonarr(ctx, item, mapping, monitored)
			if applyErr == nil && mapping.ID != 0 {
				mapping.IsMonitored = monitored
				if err := e.db.UpdateSonarrMapping(mapping); err != nil {
					logger.WithError(err).Warn("Failed to update sonarr mapping")
				}
			}
		}
	}

	if !matched && applyErr == nil {
		if retryLogID == 0 {
			logger.Warn("No matching entity, skipping")
			return nil, tier, nil
		}
		applyErr = errNoMatch
	}

	log, err := e.beginLog(item, service, action, retryLogID)
	if err != nil {
		return nil, tier, err
	}

	var extID *int
	if matched {
		extID = &externalID
	}

	if applyErr != nil {
		logger.WithError(applyErr).Error("Monitoring update failed")
		return log, tier, e.finish(log, models.SyncStatusFailed, extID, applyErr.Error())
	}

	logger.WithFields(logrus.Fields{
		"external_id": externalID,
		"tier":        tier,
	}).Info("Monitoring updated")
	return log, tier, e.finish(log, models.SyncStatusCompleted, extID, "")
}

func (e *SyncExecutor) isIgnoredSpecial(item *models.MediaItem) bool {
	if !e.ignoreSpecials || item.SeasonNumber == nil || *item.SeasonNumber != 0 {
		return false
	}
	return item.MediaType == models.MediaTypeEpisode || item.MediaType == models.MediaTypeSeason
}

func (e *SyncExecutor) applySonarr(ctx context.Context, item *models.MediaItem, mapping *models.SonarrMapping, monitored bool) error {
	switch item.MediaType {
	case models.MediaTypeEpisode:
		if mapping.EpisodeID == nil {
			return errEpisodeNotFound
		}
		return e.series.UpdateEpisodeMonitoring(ctx, *mapping.EpisodeID, monitored)
	case models.MediaTypeSeason:
		season := mapping.SeasonNumber
		if season == nil {
			season = item.SeasonNumber
		}
		if season == nil {
			return errors.New("season number unknown")
		}
		return e.updateSeason(ctx, mapping.SeriesID, *season, monitored)
	default:
		return e.series.UpdateSeriesMonitoring(ctx, mapping.SeriesID, monitored)
	}
}

// updateSeason uses the bulk endpoint and falls back to one call per episode.
// It succeeds when at least one episode was updated.
func (e *SyncExecutor) updateSeason(ctx context.Context, seriesID, season int, monitored bool) error {
	episodes, err := e.series.SeasonEpisodes(ctx, seriesID, season)
	if err != nil {
		return err
	}
	if len(episodes) == 0 {
		return fmt.Errorf("no episodes found for season %d", season)
	}

	ids := make([]int, len(episodes))
	for i, ep := range episodes {
		ids[i] = ep.ID
	}

	bulkErr := e.series.BulkUpdateEpisodeMonitoring(ctx, ids, monitored)
	if bulkErr == nil {
		return nil
	}

	e.logger.WithError(bulkErr).WithFields(logrus.Fields{
		"series_id": seriesID,
		"season":    season,
	}).Warn("Bulk season update failed, updating episodes one by one")

	updated := 0
	var lastErr error
	for _, id := range ids {
		if err := e.series.UpdateEpisodeMonitoring(ctx, id, monitored); err != nil {
			lastErr = err
			continue
		}
		updated++
	}
	if updated == 0 {
		return lastErr
	}
	return nil
}

// beginLog reuses the retried log when there is one, otherwise creates a new record
func (e *SyncExecutor) beginLog(item *models.MediaItem, service models.ServiceName, action models.SyncAction, retryLogID uint64) (*models.SyncLog, error) {
	mediaItemID := item.ID

	if retryLogID != 0 {
		log, err := e.db.GetSyncLog(retryLogID)
		if err == nil {
			log.MediaItemID = &mediaItemID
			log.SeriesName = item.DisplayName()
			log.Service = service
			log.Action = action
			log.Status = models.SyncStatusProcessing
			log.ErrorMessage = ""
			if err := e.db.UpdateSyncLog(log); err != nil {
				return nil, fmt.Errorf("failed to reset sync log %d: %w", retryLogID, err)
			}
			return log, nil
		}
		if !models.IsNotFound(err) {
			return nil, fmt.Errorf("failed to load sync log %d: %w", retryLogID, err)
		}
	}

	log := &models.SyncLog{
		MediaItemID: &mediaItemID,
		SeriesName:  item.DisplayName(),
		Action:      action,
		Status:      models.SyncStatusProcessing,
		Service:     service,
	}
	if err := e.db.CreateSyncLog(log); err != nil {
		return nil, fmt.Errorf("failed to create sync log: %w", err)
	}
	return log, nil
}

func (e *SyncExecutor) finish(log *models.SyncLog, status models.SyncStatus, externalID *int, errMsg string) error {
	log.Status = status
	log.ExternalID = externalID
	log.ErrorMessage = errMsg

	metrics.SyncResults.WithLabelValues(string(log.Service), string(log.Action), string(status)).Inc()

	if err := e.db.UpdateSyncLog(log); err != nil {
		return fmt.Errorf("failed to update sync log %d: %w", log.ID, err)
	}
	return nil
}
