package handlers

import (
	"net/http"

	"github.com/amaumene/unmonitarr/internal/controllers"
	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/amaumene/unmonitarr/internal/utils"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// DebugMatchHandler shows how a title would be matched against the Sonarr library
type DebugMatchHandler struct {
	resolver *controllers.IdentityResolver
	logger   *logrus.Logger
}

// NewDebugMatchHandler creates a new debug match handler
func NewDebugMatchHandler(resolver *controllers.IdentityResolver, logger *logrus.Logger) *DebugMatchHandler {
	return &DebugMatchHandler{
		resolver: resolver,
		logger:   logger,
	}
}

// ServeHTTP handles GET /debug/match/{title}
func (h *DebugMatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	title := chi.URLParam(r, "title")

	scores, err := h.resolver.SeriesScores(r.Context(), title, 10)
	if err != nil {
		h.logger.WithError(err).Error("Failed to score series")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	response := map[string]interface{}{
		"title":      title,
		"normalized": utils.NormalizeTitle(title),
		"candidates": scores,
		"match":      nil,
		"tier":       controllers.TierNone,
	}

	series, tier, err := h.resolver.ResolveSeries(r.Context(), controllers.ResolveRequest{
		Title:     title,
		MediaType: models.MediaTypeSeries,
	})
	if err != nil {
		h.logger.WithError(err).Warn("Debug resolution failed")
	}
	if series != nil {
		response["match"] = series
		response["tier"] = tier
	}

	writeJSON(w, http.StatusOK, response)
}
