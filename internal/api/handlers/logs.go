package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/amaumene/unmonitarr/internal/controllers"
	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// LogRetrier re-runs sync logs
type LogRetrier interface {
	RetryLog(ctx context.Context, id uint64, force bool) (*models.SyncLog, error)
	RetryFailed(ctx context.Context, hoursBack, limit int) (*controllers.BulkRetryResult, error)
}

// LogsHandler serves the sync audit log
type LogsHandler struct {
	db      *models.Database
	retrier LogRetrier
	logger  *logrus.Logger
}

// NewLogsHandler creates a new logs handler
func NewLogsHandler(db *models.Database, retrier LogRetrier, logger *logrus.Logger) *LogsHandler {
	return &LogsHandler{
		db:      db,
		retrier: retrier,
		logger:  logger,
	}
}

// LogEntry is a sync log joined with its media item
type LogEntry struct {
	ID            uint64    `json:"id"`
	Action        string    `json:"action"`
	Status        string    `json:"status"`
	Service       string    `json:"service"`
	Title         string    `json:"title"`
	MediaType     string    `json:"media_type"`
	JellyfinID    string    `json:"jellyfin_id,omitempty"`
	SeasonNumber  *int      `json:"season_number"`
	EpisodeNumber *int      `json:"episode_number"`
	SeriesName    string    `json:"series_name"`
	ExternalID    *int      `json:"external_id"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LogsPage is a filtered page of log entries
type LogsPage struct {
	Logs  []LogEntry `json:"logs"`
	Count int        `json:"count"`
	Skip  int        `json:"skip"`
	Limit int        `json:"limit"`
}

func (h *LogsHandler) entry(log *models.SyncLog, items map[uint64]*models.MediaItem) LogEntry {
	entry := LogEntry{
		ID:           log.ID,
		Action:       string(log.Action),
		Status:       string(log.Status),
		Service:      string(log.Service),
		Title:        log.SeriesName,
		MediaType:    "unknown",
		SeriesName:   log.SeriesName,
		ExternalID:   log.ExternalID,
		ErrorMessage: log.ErrorMessage,
		CreatedAt:    log.CreatedAt,
		UpdatedAt:    log.UpdatedAt,
	}
	if log.MediaItemID == nil {
		return entry
	}

	item, ok := items[*log.MediaItemID]
	if !ok {
		loaded, err := h.db.GetMediaItemByID(*log.MediaItemID)
		if err != nil {
			items[*log.MediaItemID] = nil
			return entry
		}
		items[*log.MediaItemID] = loaded
		item = loaded
	}
	if item == nil {
		return entry
	}

	entry.Title = item.Title
	entry.MediaType = string(item.MediaType)
	entry.JellyfinID = item.JellyfinID
	entry.SeasonNumber = item.SeasonNumber
	entry.EpisodeNumber = item.EpisodeNumber
	if item.SeriesName != "" {
		entry.SeriesName = item.SeriesName
	}
	return entry
}

func (h *LogsHandler) entries(logs []*models.SyncLog) []LogEntry {
	items := make(map[uint64]*models.MediaItem)
	entries := make([]LogEntry, 0, len(logs))
	for _, log := range logs {
		entries = append(entries, h.entry(log, items))
	}
	return entries
}

// sinceFor maps a date_range value to its lower bound
func sinceFor(dateRange string, now time.Time) time.Time {
	switch dateRange {
	case "today":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	case "week":
		return now.AddDate(0, 0, -7)
	case "month":
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}

// List handles GET /api/logs
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.SyncLogFilter{
		Status:  models.SyncStatus(q.Get("status")),
		Service: models.ServiceName(q.Get("service")),
		Action:  models.SyncAction(q.Get("action")),
		Since:   sinceFor(q.Get("date_range"), time.Now()),
		Skip:    queryInt(r, "skip", 0),
		Limit:   queryInt(r, "limit", 50),
	}

	logs, err := h.db.ListSyncLogs(filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list sync logs")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	entries := h.entries(logs)
	writeJSON(w, http.StatusOK, LogsPage{
		Logs:  entries,
		Count: len(entries),
		Skip:  filter.Skip,
		Limit: filter.Limit,
	})
}

// Recent handles GET /api/logs/recent
func (h *LogsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	logs, err := h.db.ListSyncLogs(models.SyncLogFilter{Limit: queryInt(r, "limit", 10)})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list sync logs")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, h.entries(logs))
}

func logID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

// Get handles GET /api/logs/{id}
func (h *LogsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := logID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid log id")
		return
	}

	log, err := h.db.GetSyncLog(id)
	if err != nil {
		if models.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Sync log not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get sync log")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, h.entry(log, make(map[uint64]*models.MediaItem)))
}

// Retry handles POST /api/logs/{id}/retry
func (h *LogsHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, ok := logID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid log id")
		return
	}

	log, err := h.retrier.RetryLog(r.Context(), id, queryBool(r, "force"))
	if err != nil {
		writeError(w, retryStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Retry started",
		"log_id":  log.ID,
		"status":  log.Status,
	})
}

func retryStatus(err error) int {
	switch {
	case errors.Is(err, controllers.ErrLogNotFound):
		return http.StatusNotFound
	case errors.Is(err, controllers.ErrLogCompleted), errors.Is(err, controllers.ErrMediaItemMissing):
		return http.StatusBadRequest
	case errors.Is(err, controllers.ErrLogProcessing):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// BulkRetry handles POST /api/logs/retry/bulk
func (h *LogsHandler) BulkRetry(w http.ResponseWriter, r *http.Request) {
	result, err := h.retrier.RetryFailed(r.Context(), queryInt(r, "hours_back", 24), queryInt(r, "limit", 10))
	if err != nil {
		h.logger.WithError(err).Error("Bulk retry failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
