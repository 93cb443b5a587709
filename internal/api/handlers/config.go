package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"
)

// TokenStore exposes and rotates the webhook token
type TokenStore interface {
	Token() string
	Rotate() (string, error)
}

// WebhookConfigHandler tells users how to configure the Jellyfin webhook
type WebhookConfigHandler struct {
	tokens TokenStore
	logger *logrus.Logger
}

// NewWebhookConfigHandler creates a new webhook config handler
func NewWebhookConfigHandler(tokens TokenStore, logger *logrus.Logger) *WebhookConfigHandler {
	return &WebhookConfigHandler{
		tokens: tokens,
		logger: logger,
	}
}

// Details handles GET /api/config/webhook-details
func (h *WebhookConfigHandler) Details(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = forwarded
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"url":                  scheme + "://" + r.Host + "/webhook/jellyfin",
		"authorization_header": "Bearer " + h.tokens.Token(),
	})
}

// Regenerate handles POST /api/config/webhook-token/regenerate
func (h *WebhookConfigHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokens.Rotate()
	if err != nil {
		h.logger.WithError(err).Error("Failed to rotate webhook token")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Webhook token regenerated successfully.",
		"token":   token,
	})
}
