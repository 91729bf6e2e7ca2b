package source

import (
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/civicsignal/waltham-events/internal/models"
)

// Recreation scrapes the recreation department page. Programs are grouped in
// sections; many rows omit a venue entirely, which the normalizer backfills
// with the department's default location.
type Recreation struct {
	client *Client
	url    string
}

// NewRecreation builds the recreation department adapter.
func NewRecreation(client *Client, url string) *Recreation {
	return &Recreation{client: client, url: url}
}

func (s *Recreation) Name() models.SourceName { return models.SourceRecreation }

func (s *Recreation) Fetch(ctx context.Context) ([]Candidate, error) {
	doc, err := s.client.Document(ctx, s.Name(), s.url)
	if err != nil {
		return nil, err
	}

	body := doc.Find(".programs, .content, main").First()
	if body.Length() == 0 {
		return nil, &ParseError{Source: s.Name(), Err: fmt.Errorf("no program content on %s", s.url)}
	}

	var out []Candidate
	body.Find(".program-row, li.program, tr.program, article.program").Each(func(_ int, row *goquery.Selection) {
		c := Candidate{
			Title:        firstText(row, ".program-name a", ".program-name", "h3", "td.name"),
			DateText:     firstText(row, ".program-date", ".date", "td.date"),
			Description:  firstText(row, ".program-details", ".details", "p"),
			LocationText: firstText(row, ".program-venue", ".venue", "td.venue"),
			Cost:         firstText(row, ".program-fee", ".fee", "td.fee"),
			ContactInfo:  firstText(row, ".program-contact", ".contact"),
			URL:          s.url,
		}
		if href, ok := row.Find("a").First().Attr("href"); ok {
			c.URL = absoluteURL(s.url, href)
		}

		out = append(out, c)
	})
	return out, nil
}
