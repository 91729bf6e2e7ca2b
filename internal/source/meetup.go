package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/civicsignal/waltham-events/internal/models"
)

// Meetup consumes the Meetup upcoming-events API: authenticated, filtered by
// location plus radius and an end-date bound, returning structured fields.
type Meetup struct {
	client      *Client
	baseURL     string
	token       string
	location    string
	radiusMiles int
	horizon     time.Duration
	now         func() time.Time
}

// NewMeetup builds the Meetup platform adapter.
func NewMeetup(client *Client, baseURL, token, location string, radiusMiles, horizonMonths int) *Meetup {
	if radiusMiles <= 0 {
		radiusMiles = 5
	}
	if horizonMonths <= 0 {
		horizonMonths = 6
	}
	return &Meetup{
		client:      client,
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		location:    location,
		radiusMiles: radiusMiles,
		horizon:     time.Duration(horizonMonths) * 30 * 24 * time.Hour,
		now:         time.Now,
	}
}

func (s *Meetup) Name() models.SourceName { return models.SourceMeetup }

type meetupResponse struct {
	Events []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		LocalDate   string `json:"local_date"`
		LocalTime   string `json:"local_time"`
		Link        string `json:"link"`
		Venue       *struct {
			Name     string `json:"name"`
			Address1 string `json:"address_1"`
			City     string `json:"city"`
		} `json:"venue"`
		Group *struct {
			Name string `json:"name"`
		} `json:"group"`
		Fee *struct {
			Description string `json:"description"`
		} `json:"fee"`
	} `json:"events"`
}

func (s *Meetup) Fetch(ctx context.Context) ([]Candidate, error) {
	now := s.now()

	q := url.Values{}
	q.Set("location", s.location)
	q.Set("radius", fmt.Sprintf("%d", s.radiusMiles))
	q.Set("end_date_range", now.Add(s.horizon).Format("2006-01-02T15:04:05"))

	var resp meetupResponse
	if err := s.client.JSON(ctx, s.Name(), s.baseURL+"/find/upcoming_events?"+q.Encode(), s.token, &resp); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(resp.Events))
	for _, ev := range resp.Events {
		c := Candidate{
			Title:       ev.Name,
			Description: ev.Description,
			DateText:    strings.TrimSpace(ev.LocalDate + " " + ev.LocalTime),
			URL:         ev.Link,
		}
		if ev.Venue != nil {
			parts := []string{}
			for _, p := range []string{ev.Venue.Name, ev.Venue.Address1, ev.Venue.City} {
				if p != "" {
					parts = append(parts, p)
				}
			}
			c.LocationText = strings.Join(parts, ", ")
		}
		if ev.Group != nil {
			c.Organizer = ev.Group.Name
		}
		if ev.Fee != nil {
			c.Cost = ev.Fee.Description
		}
		out = append(out, c)
	}
	return out, nil
}
