package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicsignal/waltham-events/internal/dto"
	"github.com/civicsignal/waltham-events/internal/models"
	"github.com/civicsignal/waltham-events/pkg/response"
)

type ingestService interface {
	TriggerAsync() (time.Time, error)
	LastSummary() *models.RunSummary
	Running() bool
}

// IngestHandler exposes manual control over ingestion cycles.
type IngestHandler struct {
	service ingestService
}

// NewIngestHandler builds a new handler.
func NewIngestHandler(service ingestService) *IngestHandler {
	return &IngestHandler{service: service}
}

// Run serves POST /ingest/run. The cycle executes in the background; the
// caller polls Status for the outcome.
func (h *IngestHandler) Run(c *gin.Context) {
	startedAt, err := h.service.TriggerAsync()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.IngestRunResponse{Status: "started", StartedAt: startedAt})
}

// Status serves GET /ingest/status with the last finished cycle summary.
func (h *IngestHandler) Status(c *gin.Context) {
	meta := map[string]interface{}{"running": h.service.Running()}
	response.JSON(c, http.StatusOK, h.service.LastSummary(), nil, meta)
}
