package source

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/civicsignal/waltham-events/internal/models"
)

// Museum scrapes the industrial museum's events page. The site runs a
// WordPress events-calendar theme, so rows follow the tribe-events markup.
type Museum struct {
	client *Client
	url    string
}

// NewMuseum builds the museum adapter.
func NewMuseum(client *Client, url string) *Museum {
	return &Museum{client: client, url: url}
}

func (s *Museum) Name() models.SourceName { return models.SourceMuseum }

func (s *Museum) Fetch(ctx context.Context) ([]Candidate, error) {
	doc, err := s.client.Document(ctx, s.Name(), s.url)
	if err != nil {
		return nil, err
	}

	list := doc.Find(".tribe-events-calendar-list, .tribe-events-loop, .events").First()
	if list.Length() == 0 {
		return nil, &ParseError{Source: s.Name(), Err: fmt.Errorf("no events list on %s", s.url)}
	}

	var out []Candidate
	list.Find(".tribe-events-calendar-list__event, article.tribe_events, article.event").Each(func(_ int, row *goquery.Selection) {
		c := Candidate{
			Title:       firstText(row, ".tribe-events-calendar-list__event-title a", "h3 a", "h3"),
			Description: firstText(row, ".tribe-events-calendar-list__event-description", ".summary", "p"),
			Cost:        firstText(row, ".tribe-events-cost", ".cost"),
			URL:         s.url,
		}
		if href, ok := row.Find("a").First().Attr("href"); ok {
			c.URL = absoluteURL(s.url, href)
		}

		// The display text carries the start clock; the datetime attr on this
		// theme is date-only, so it is only a fallback.
		c.DateText = firstText(row, ".tribe-event-date-start", "time")
		if c.DateText == "" {
			if dt, ok := row.Find("time").First().Attr("datetime"); ok {
				c.DateText = dt
			}
		}
		c.EndText = firstText(row, ".tribe-event-time", ".end-time")

		c.LocationText = firstText(row, ".tribe-events-venue-details", ".venue", ".location")

		out = append(out, c)
	})
	return out, nil
}
