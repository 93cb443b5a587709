package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/amaumene/unmonitarr/internal/api/middleware"
	"github.com/amaumene/unmonitarr/internal/controllers"
	"github.com/amaumene/unmonitarr/internal/metrics"
	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/amaumene/unmonitarr/internal/services/jellyfin"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const maxWebhookBody = 1 << 20

// EventQueue accepts normalized events for background processing
type EventQueue interface {
	Enqueue(ev *models.WatchEvent, opts controllers.ProcessOptions)
}

// TokenValidator checks webhook authorization headers
type TokenValidator interface {
	ValidateAuthorization(header string) bool
}

// WebhookResponse is the body of every accepted webhook call
type WebhookResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WebhookHandler handles Jellyfin webhook callbacks
type WebhookHandler struct {
	queue    EventQueue
	tokens   TokenValidator
	autoSync bool
	logger   *logrus.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(queue EventQueue, tokens TokenValidator, autoSync bool, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		queue:    queue,
		tokens:   tokens,
		autoSync: autoSync,
		logger:   logger,
	}
}

// ServeHTTP handles the webhook endpoint
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.tokens.ValidateAuthorization(r.Header.Get("Authorization")) {
		metrics.WebhookEvents.WithLabelValues("unauthorized").Inc()
		h.logger.WithField("remote_addr", r.RemoteAddr).Warn("Rejected webhook with invalid token")
		writeError(w, http.StatusUnauthorized, "Invalid or missing webhook token")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhookEvents.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if len(bytes.TrimSpace(body)) == 0 {
		metrics.WebhookEvents.WithLabelValues("empty").Inc()
		h.logger.Debug("Received empty webhook body")
		writeJSON(w, http.StatusOK, WebhookResponse{
			Status:  "accepted",
			Message: "Empty webhook body received, nothing to process",
		})
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		metrics.WebhookEvents.WithLabelValues("invalid").Inc()
		h.logger.WithError(err).Warn("Failed to decode webhook payload")
		writeError(w, http.StatusUnprocessableEntity, "Webhook body must be a JSON object")
		return
	}

	ev, err := jellyfin.NormalizePayload(payload)
	if err != nil {
		if errors.Is(err, jellyfin.ErrNotRelevant) {
			metrics.WebhookEvents.WithLabelValues("ignored").Inc()
			h.logger.WithField("reason", err.Error()).Debug("Ignoring webhook")
			writeJSON(w, http.StatusOK, WebhookResponse{Status: "accepted", Message: "ignored: " + err.Error()})
			return
		}
		metrics.WebhookEvents.WithLabelValues("invalid").Inc()
		h.logger.WithError(err).Warn("Invalid webhook payload")
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if !h.autoSync {
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		writeJSON(w, http.StatusOK, WebhookResponse{Status: "accepted", Message: "ignored: auto sync disabled"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"item_id":    ev.ItemID,
		"user":       ev.Username,
		"title":      ev.Title,
		"type":       ev.MediaType,
		"watched":    ev.WatchedLabel(),
		"request_id": middleware.RequestID(r.Context()),
	}).Info("Received Jellyfin webhook")

	h.queue.Enqueue(ev, controllers.ProcessOptions{})
	metrics.WebhookEvents.WithLabelValues("queued").Inc()

	writeJSON(w, http.StatusAccepted, WebhookResponse{
		Status:  "accepted",
		Message: "Webhook received and queued for processing",
	})
}
