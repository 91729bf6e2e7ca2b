package source

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/civicsignal/waltham-events/internal/models"
)

// CityCalendar scrapes the municipal calendar. The calendar is a month grid,
// so the adapter walks one page per month across the ingestion horizon.
type CityCalendar struct {
	client  *Client
	baseURL string
	months  int
	now     func() time.Time
}

// NewCityCalendar builds the city calendar adapter.
func NewCityCalendar(client *Client, baseURL string, horizonMonths int) *CityCalendar {
	if horizonMonths <= 0 {
		horizonMonths = 6
	}
	return &CityCalendar{
		client:  client,
		baseURL: baseURL,
		months:  horizonMonths,
		now:     time.Now,
	}
}

func (s *CityCalendar) Name() models.SourceName { return models.SourceCityCalendar }

func (s *CityCalendar) Fetch(ctx context.Context) ([]Candidate, error) {
	var out []Candidate
	start := s.now()

	for m := 0; m < s.months; m++ {
		month := start.AddDate(0, m, 0)
		pageURL := fmt.Sprintf("%s?curm=%d&cury=%d", s.baseURL, int(month.Month()), month.Year())

		doc, err := s.client.Document(ctx, s.Name(), pageURL)
		if err != nil {
			// Keep whatever earlier months produced.
			return out, err
		}
		page, err := s.extract(doc, pageURL)
		if err != nil {
			return out, err
		}
		out = append(out, page...)
	}
	return out, nil
}

func (s *CityCalendar) extract(doc *goquery.Document, pageURL string) ([]Candidate, error) {
	container := doc.Find(".calendar, #calendar, .listing, .calendarList").First()
	if container.Length() == 0 {
		return nil, &ParseError{Source: s.Name(), Err: fmt.Errorf("no calendar container on %s", pageURL)}
	}

	var out []Candidate
	container.Find("li.calendarEvent, .calendarEvent, tr.calendarRow, .listItem").Each(func(_ int, row *goquery.Selection) {
		c := Candidate{
			Title:        firstText(row, "a", "h3", ".itemTitle"),
			Description:  firstText(row, ".description", ".itemDescription", "p"),
			LocationText: firstText(row, ".location", ".itemLocation"),
			URL:          pageURL,
		}
		if href, ok := row.Find("a").First().Attr("href"); ok {
			c.URL = absoluteURL(s.baseURL, href)
		}

		// Machine-readable timestamp wins over display text.
		if dt, ok := row.Find("time").First().Attr("datetime"); ok && dt != "" {
			c.DateText = dt
		} else {
			c.DateText = firstText(row, ".date", ".itemDate", "time")
		}
		if end, ok := row.Find("time").Eq(1).Attr("datetime"); ok {
			c.EndText = end
		}

		out = append(out, c)
	})
	return out, nil
}
