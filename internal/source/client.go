package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/civicsignal/waltham-events/internal/models"
)

// Client is the outbound HTTP helper shared by all adapters. Every request
// carries the configured User-Agent and is bounded by the client timeout on
// top of whatever deadline the caller's context imposes.
type Client struct {
	http      *http.Client
	userAgent string
}

// NewClient builds the shared fetch client.
func NewClient(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Document fetches url and parses the body as HTML.
func (c *Client) Document(ctx context.Context, src models.SourceName, url string) (*goquery.Document, error) {
	body, err := c.get(ctx, src, url, "")
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &ParseError{Source: src, Err: err}
	}
	return doc, nil
}

// JSON fetches url and decodes the body into out. A bearer token is attached
// when non-empty; the platform sources authenticate this way.
func (c *Client) JSON(ctx context.Context, src models.SourceName, url, token string, out interface{}) error {
	body, err := c.get(ctx, src, url, token)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return &ParseError{Source: src, Err: err}
	}
	return nil
}

func (c *Client) get(ctx context.Context, src models.SourceName, url, token string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Source: src, URL: url, Err: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Source: src, URL: url, Err: err}
	}
	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &FetchError{
			Source: src,
			URL:    url,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", strings.TrimSpace(string(snippet))),
		}
	}
	return resp.Body, nil
}

// cleanText collapses runs of whitespace from scraped markup.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstText returns the cleaned text of the first selector that matches
// anything under sel.
func firstText(sel *goquery.Selection, selectors ...string) string {
	for _, s := range selectors {
		if found := sel.Find(s).First(); found.Length() > 0 {
			if text := cleanText(found.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// absoluteURL resolves href against base when href is relative.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return base
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		if i := strings.Index(base, "://"); i >= 0 {
			if j := strings.Index(base[i+3:], "/"); j >= 0 {
				return base[:i+3+j] + href
			}
		}
		return strings.TrimRight(base, "/") + href
	}
	return strings.TrimRight(base, "/") + "/" + href
}
