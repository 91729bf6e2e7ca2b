package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/civicsignal/waltham-events/internal/models"
)

const eventbriteMaxPages = 3

// Eventbrite consumes the Eventbrite v3 search API: authenticated, filtered
// by address plus radius and a date range, returning structured fields with
// no HTML parsing involved.
type Eventbrite struct {
	client      *Client
	baseURL     string
	token       string
	location    string
	radiusMiles int
	horizon     time.Duration
	now         func() time.Time
}

// NewEventbrite builds the Eventbrite platform adapter.
func NewEventbrite(client *Client, baseURL, token, location string, radiusMiles, horizonMonths int) *Eventbrite {
	if radiusMiles <= 0 {
		radiusMiles = 5
	}
	if horizonMonths <= 0 {
		horizonMonths = 6
	}
	return &Eventbrite{
		client:      client,
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		location:    location,
		radiusMiles: radiusMiles,
		horizon:     time.Duration(horizonMonths) * 30 * 24 * time.Hour,
		now:         time.Now,
	}
}

func (s *Eventbrite) Name() models.SourceName { return models.SourceEventbrite }

type eventbritePage struct {
	Events []struct {
		Name        struct{ Text string } `json:"name"`
		Description struct{ Text string } `json:"description"`
		URL         string                `json:"url"`
		Start       struct {
			Local string `json:"local"`
		} `json:"start"`
		End struct {
			Local string `json:"local"`
		} `json:"end"`
		IsFree bool `json:"is_free"`
		Venue  *struct {
			Name    string `json:"name"`
			Address struct {
				LocalizedAddressDisplay string `json:"localized_address_display"`
			} `json:"address"`
		} `json:"venue"`
		Organizer *struct {
			Name string `json:"name"`
		} `json:"organizer"`
	} `json:"events"`
	Pagination struct {
		HasMoreItems bool `json:"has_more_items"`
		PageNumber   int  `json:"page_number"`
	} `json:"pagination"`
}

func (s *Eventbrite) Fetch(ctx context.Context) ([]Candidate, error) {
	now := s.now()
	var out []Candidate

	for page := 1; page <= eventbriteMaxPages; page++ {
		q := url.Values{}
		q.Set("location.address", s.location)
		q.Set("location.within", fmt.Sprintf("%dmi", s.radiusMiles))
		q.Set("start_date.range_start", now.Format("2006-01-02T15:04:05"))
		q.Set("start_date.range_end", now.Add(s.horizon).Format("2006-01-02T15:04:05"))
		q.Set("expand", "venue,organizer")
		q.Set("page", fmt.Sprintf("%d", page))

		var resp eventbritePage
		if err := s.client.JSON(ctx, s.Name(), s.baseURL+"/events/search/?"+q.Encode(), s.token, &resp); err != nil {
			return out, err
		}

		for _, ev := range resp.Events {
			c := Candidate{
				Title:       ev.Name.Text,
				Description: ev.Description.Text,
				DateText:    ev.Start.Local,
				EndText:     ev.End.Local,
				URL:         ev.URL,
			}
			if ev.Venue != nil {
				c.LocationText = ev.Venue.Name
				if addr := ev.Venue.Address.LocalizedAddressDisplay; addr != "" {
					c.LocationText = strings.TrimSpace(strings.TrimPrefix(c.LocationText+", "+addr, ", "))
				}
			}
			if ev.Organizer != nil {
				c.Organizer = ev.Organizer.Name
			}
			if ev.IsFree {
				c.Cost = "Free"
			}
			out = append(out, c)
		}

		if !resp.Pagination.HasMoreItems {
			break
		}
	}
	return out, nil
}
