package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/civicsignal/waltham-events/internal/models"
)

// University scrapes the campus events page. Date and clock live in separate
// elements, so the adapter joins them into one raw date string for the
// normalizer to interpret.
type University struct {
	client *Client
	url    string
}

// NewUniversity builds the university events adapter.
func NewUniversity(client *Client, url string) *University {
	return &University{client: client, url: url}
}

func (s *University) Name() models.SourceName { return models.SourceUniversity }

func (s *University) Fetch(ctx context.Context) ([]Candidate, error) {
	doc, err := s.client.Document(ctx, s.Name(), s.url)
	if err != nil {
		return nil, err
	}

	list := doc.Find(".events-listing, .event-list, main").First()
	if list.Length() == 0 {
		return nil, &ParseError{Source: s.Name(), Err: fmt.Errorf("no events listing on %s", s.url)}
	}

	var out []Candidate
	list.Find("li.event, div.event-item, article.event").Each(func(_ int, row *goquery.Selection) {
		date := firstText(row, ".event-date", ".date")
		clock := firstText(row, ".event-time", ".time")
		raw := date
		if clock != "" {
			raw = strings.TrimSpace(date + " " + clock)
		}

		c := Candidate{
			Title:        firstText(row, ".event-title a", ".event-title", "h3"),
			DateText:     raw,
			Description:  firstText(row, ".event-description", ".summary", "p"),
			LocationText: firstText(row, ".event-location", ".location"),
			Organizer:    firstText(row, ".event-sponsor", ".sponsor"),
			URL:          s.url,
		}
		if href, ok := row.Find("a").First().Attr("href"); ok {
			c.URL = absoluteURL(s.url, href)
		}

		out = append(out, c)
	})
	return out, nil
}
