package handlers

import (
	"math"
	"net/http"
	"time"

	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/sirupsen/logrus"
)

// StatsHandler handles dashboard statistics requests
type StatsHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(db *models.Database, logger *logrus.Logger) *StatsHandler {
	return &StatsHandler{
		db:     db,
		logger: logger,
	}
}

// StatsResponse represents the stats response
type StatsResponse struct {
	TotalMedia      int            `json:"total_media"`
	WatchedItems    int            `json:"watched_items"`
	UnwatchedItems  int            `json:"unwatched_items"`
	SyncActions     int            `json:"sync_actions"`
	SuccessRate     float64        `json:"success_rate"`
	MediaTypes      map[string]int `json:"media_types"`
	SonarrMappings  int            `json:"sonarr_mappings"`
	RadarrMappings  int            `json:"radarr_mappings"`
	WatchPercentage float64        `json:"watch_percentage"`
}

// ServeHTTP handles the stats endpoint
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	items, err := h.db.GetAllMediaItems()
	if err != nil {
		h.logger.WithError(err).Error("Failed to get media items")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Sync activity over the last 30 days
	logs, err := h.db.ListSyncLogs(models.SyncLogFilter{Since: time.Now().AddDate(0, 0, -30)})
	if err != nil {
		h.logger.WithError(err).Error("Failed to get sync logs")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	sonarrMappings, radarrMappings, err := h.db.CountMappings()
	if err != nil {
		h.logger.WithError(err).Error("Failed to count mappings")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	response := StatsResponse{
		TotalMedia:     len(items),
		SyncActions:    len(logs),
		MediaTypes:     make(map[string]int),
		SonarrMappings: sonarrMappings,
		RadarrMappings: radarrMappings,
	}

	for _, item := range items {
		if item.IsWatched {
			response.WatchedItems++
		}
		response.MediaTypes[string(item.MediaType)]++
	}
	response.UnwatchedItems = response.TotalMedia - response.WatchedItems

	completed := 0
	for _, log := range logs {
		if log.Status == models.SyncStatusCompleted {
			completed++
		}
	}
	response.SuccessRate = percent(completed, len(logs))
	response.WatchPercentage = percent(response.WatchedItems, response.TotalMedia)

	writeJSON(w, http.StatusOK, response)
}

// percent rounds part/total to one decimal, 0 when total is 0
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
