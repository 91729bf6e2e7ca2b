package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/civicsignal/waltham-events/internal/dto"
	"github.com/civicsignal/waltham-events/internal/models"
	appErrors "github.com/civicsignal/waltham-events/pkg/errors"
	"github.com/civicsignal/waltham-events/pkg/response"
)

type eventService interface {
	List(ctx context.Context, q dto.ListEventsQuery) (*dto.EventPage, error)
	Get(ctx context.Context, id string) (*models.CanonicalEvent, error)
	Stats(ctx context.Context) (*models.EventStats, error)
}

// EventHandler exposes the read API over stored events.
type EventHandler struct {
	service eventService
}

// NewEventHandler builds a new handler.
func NewEventHandler(service eventService) *EventHandler {
	return &EventHandler{service: service}
}

// List serves GET /events with filtering and paging.
func (h *EventHandler) List(c *gin.Context) {
	var q dto.ListEventsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	page, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Events, &page.Pagination)
}

// Get serves GET /events/:id.
func (h *EventHandler) Get(c *gin.Context) {
	ev, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ev, nil)
}

// Stats serves GET /stats.
func (h *EventHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
