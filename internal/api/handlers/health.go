package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/amaumene/unmonitarr/internal/models"
	"github.com/sirupsen/logrus"
)

// Pinger is anything whose reachability can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db       *models.Database
	services map[string]Pinger
	logger   *logrus.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *models.Database, services map[string]Pinger, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{
		db:       db,
		services: services,
		logger:   logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// ServeHTTP handles the health check endpoint
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Services:  make(map[string]string, len(h.services)+1),
	}

	response.Services["database"] = "healthy"
	if err := h.db.Ping(); err != nil {
		h.logger.WithError(err).Warn("Database health check failed")
		response.Services["database"] = "unhealthy"
		response.Status = "unhealthy"
	}

	for name, service := range h.services {
		response.Services[name] = "healthy"
		if err := service.Ping(ctx); err != nil {
			h.logger.WithError(err).WithField("service", name).Warn("Service health check failed")
			response.Services[name] = "unhealthy"
			response.Status = "unhealthy"
		}
	}

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}
