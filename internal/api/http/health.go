package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StorageStatus is the part of the project store the health check needs.
type StorageStatus interface {
	Backend() string
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment"`
	Version     string    `json:"version"`
	Storage     string    `json:"storage"`
	DB          string    `json:"db"`
}

type HealthHandler struct {
	environment string
	version     string
	storage     StorageStatus
}

func NewHealthHandler(environment, version string, storage StorageStatus) *HealthHandler {
	return &HealthHandler{
		environment: environment,
		version:     version,
		storage:     storage,
	}
}

// HealthCheck always answers 200; a failing store only shows up in the db field.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	storage, dbStatus := "none", "disabled"
	if h.storage != nil {
		storage = h.storage.Backend()

		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := h.storage.Ping(pingCtx); err != nil {
			dbStatus = "down"
		} else {
			dbStatus = "up"
		}
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:      "OK",
		Timestamp:   time.Now().UTC(),
		Environment: h.environment,
		Version:     h.version,
		Storage:     storage,
		DB:          dbStatus,
	})
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
}
