package handlers

import (
	"net/http"

	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// MediaHandler serves the recorded media items
type MediaHandler struct {
	db     *models.Database
	logger *logrus.Logger
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(db *models.Database, logger *logrus.Logger) *MediaHandler {
	return &MediaHandler{
		db:     db,
		logger: logger,
	}
}

// List handles GET /api/media
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.db.ListMediaItems(queryInt(r, "skip", 0), queryInt(r, "limit", 100))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list media items")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if items == nil {
		items = []*models.MediaItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// Get handles GET /api/media/{jellyfin_id}
func (h *MediaHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.db.GetMediaItemByJellyfinID(chi.URLParam(r, "jellyfin_id"))
	if err != nil {
		if models.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Media item not found")
			return
		}
		h.logger.WithError(err).Error("Failed to get media item")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, item)
}
