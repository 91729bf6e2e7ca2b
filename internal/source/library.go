package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/civicsignal/waltham-events/internal/models"
)

// Library scrapes the public library program page: one flat list of program
// rows, each with a date line, an age note and an optional registration flag.
type Library struct {
	client *Client
	url    string
}

// NewLibrary builds the library program adapter.
func NewLibrary(client *Client, url string) *Library {
	return &Library{client: client, url: url}
}

func (s *Library) Name() models.SourceName { return models.SourceLibrary }

func (s *Library) Fetch(ctx context.Context) ([]Candidate, error) {
	doc, err := s.client.Document(ctx, s.Name(), s.url)
	if err != nil {
		return nil, err
	}

	list := doc.Find(".programs, .events-list, main").First()
	if list.Length() == 0 {
		return nil, &ParseError{Source: s.Name(), Err: fmt.Errorf("no program list on %s", s.url)}
	}

	var out []Candidate
	list.Find("article.program, li.program, .program-item, article.event").Each(func(_ int, row *goquery.Selection) {
		c := Candidate{
			Title:           firstText(row, "h2 a", "h2", "h3", ".program-title"),
			DateText:        firstText(row, ".program-date", ".date", "time"),
			Description:     firstText(row, ".program-description", ".summary", "p"),
			LocationText:    firstText(row, ".program-location", ".location"),
			AgeRestrictions: firstText(row, ".program-ages", ".ages"),
			URL:             s.url,
		}
		if href, ok := row.Find("a").First().Attr("href"); ok {
			c.URL = absoluteURL(s.url, href)
		}

		// Registration shows up as a badge or as a note in the body text.
		note := strings.ToLower(firstText(row, ".registration", ".program-registration") + " " + c.Description)
		if strings.Contains(note, "registration required") || strings.Contains(note, "sign up required") {
			c.RegistrationRequired = true
		}

		out = append(out, c)
	})
	return out, nil
}
