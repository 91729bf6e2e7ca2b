package dto

import (
	"time"

	"github.com/civicsignal/waltham-events/internal/models"
)

// ListEventsQuery carries the read API's filter parameters.
type ListEventsQuery struct {
	Search   string `form:"search" validate:"omitempty,max=200"`
	Category string `form:"category" validate:"omitempty"`
	Source   string `form:"source" validate:"omitempty"`
	From     string `form:"from" validate:"omitempty,datetime=2006-01-02"`
	To       string `form:"to" validate:"omitempty,datetime=2006-01-02"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// Filter converts the query into a repository filter in the given timezone.
// Validation of the enum values happens in the service.
func (q ListEventsQuery) Filter(loc *time.Location) models.EventFilter {
	f := models.EventFilter{
		Search:   q.Search,
		Category: models.Category(q.Category),
		Source:   models.SourceName(q.Source),
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	if t, err := time.ParseInLocation("2006-01-02", q.From, loc); err == nil && q.From != "" {
		f.StartDate = &t
	}
	if t, err := time.ParseInLocation("2006-01-02", q.To, loc); err == nil && q.To != "" {
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.EndDate = &end
	}
	return f
}

// EventPage is the list response payload.
type EventPage struct {
	Events     []models.CanonicalEvent `json:"events"`
	Pagination models.Pagination       `json:"pagination"`
}

// IngestRunResponse acknowledges a manually triggered cycle.
type IngestRunResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}
