package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/amaumene/unmonitarr/internal/controllers"
	"github.com/sirupsen/logrus"
)

// BulkSyncer runs library-wide reconciliations
type BulkSyncer interface {
	Start(ctx context.Context, kind string) error
	Status() controllers.BulkSyncStatus
}

// BulkSyncHandler starts bulk runs and reports their progress
type BulkSyncHandler struct {
	bulk   BulkSyncer
	logger *logrus.Logger
}

// NewBulkSyncHandler creates a new bulk sync handler
func NewBulkSyncHandler(bulk BulkSyncer, logger *logrus.Logger) *BulkSyncHandler {
	return &BulkSyncHandler{
		bulk:   bulk,
		logger: logger,
	}
}

// Start returns a handler launching a run of the given kind
func (h *BulkSyncHandler) Start(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.bulk.Start(r.Context(), kind); err != nil {
			if errors.Is(err, controllers.ErrBulkSyncRunning) {
				writeError(w, http.StatusConflict, "Bulk sync already in progress")
				return
			}
			h.logger.WithError(err).Error("Failed to start bulk sync")
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"message":   "Bulk sync started",
			"sync_type": kind,
		})
	}
}

// Status handles GET /api/sync/bulk/status
func (h *BulkSyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.bulk.Status())
}
