// Package normalize maps raw source candidates onto the canonical event
// schema. Every candidate either becomes a fully populated event or an
// explicit rejection with a reason code; nothing is dropped silently.
package normalize

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/lib/pq"

	"github.com/civicsignal/waltham-events/internal/models"
	"github.com/civicsignal/waltham-events/internal/source"
)

// RejectReason codes the ways a candidate can fail normalization.
type RejectReason string

const (
	ReasonDateUnparseable RejectReason = "date_unparseable"
	ReasonDatePast        RejectReason = "date_past"
	ReasonTitleInvalid    RejectReason = "title_invalid"
	ReasonLocationInvalid RejectReason = "location_invalid"
)

// Rejection explains why a candidate was not normalized.
type Rejection struct {
	Reason RejectReason
	Detail string
}

const (
	minTitleLen    = 3
	minLocationLen = 4
)

// dateLayouts is the shared cascade of explicit formats, tried in order. It
// is deliberately source-agnostic: adding a layout here improves coverage for
// every adapter at once. A free-text parser runs after the cascade as the
// last resort.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"Monday, January 2, 2006 3:04 PM",
	"Monday, January 2, 2006 3 PM",
	"January 2, 2006 3:04 PM",
	"January 2, 2006 @ 3:04 PM",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006 @ 3:04 PM",
	"2006-01-02 15:04",
	"01/02/2006 3:04 PM",
	"01/02/2006 15:04",
	"Jan 2 @ 3:04pm",
	"Jan 2 @ 3pm",
	"January 2 @ 3pm",
	"Monday, January 2, 2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02",
	"01/02/2006",
}

// fallbackLocations maps sources whose venue is implied rather than listed
// per event. Platform sources list a venue per event and get no fallback.
var fallbackLocations = map[models.SourceName]string{
	models.SourceCityCalendar: "Waltham City Hall, 610 Main St",
	models.SourceLibrary:      "Waltham Public Library, 735 Main St",
	models.SourceMuseum:       "Charles River Museum, 154 Moody St",
	models.SourceUniversity:   "Brandeis University Campus",
	models.SourceRecreation:   "Waltham Recreation Office",
	models.SourceCommon:       "Waltham Common",
}

// Normalizer converts candidates into canonical events in the municipal
// timezone.
type Normalizer struct {
	loc *time.Location
}

// New builds a normalizer anchored to the municipal timezone.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{loc: loc}
}

// Normalize validates and converts one candidate. Exactly one of the returns
// is non-nil. The produced event has no fingerprint or bookkeeping
// timestamps; the upsert engine owns those.
func (n *Normalizer) Normalize(c source.Candidate, src models.SourceName, now time.Time) (*models.CanonicalEvent, *Rejection) {
	title := strings.TrimSpace(c.Title)
	if len(title) < minTitleLen {
		return nil, &Rejection{Reason: ReasonTitleInvalid, Detail: title}
	}

	start, ok := n.ParseDate(c.DateText, now)
	if !ok {
		return nil, &Rejection{Reason: ReasonDateUnparseable, Detail: c.DateText}
	}
	if !start.After(now) {
		return nil, &Rejection{Reason: ReasonDatePast, Detail: start.Format(time.RFC3339)}
	}

	location := collapse(c.LocationText)
	if len(location) < minLocationLen {
		fallback, hasFallback := fallbackLocations[src]
		if !hasFallback {
			return nil, &Rejection{Reason: ReasonLocationInvalid, Detail: location}
		}
		location = fallback
	}

	ev := &models.CanonicalEvent{
		Name:        title,
		Description: strings.TrimSpace(c.Description),
		DateTime:    start,
		Location:    location,
		SourceName:  src,
		SourceURL:   strings.TrimSpace(c.URL),
		Categories:  pq.StringArray{},

		Cost:                 strings.TrimSpace(c.Cost),
		Organizer:            strings.TrimSpace(c.Organizer),
		ContactInfo:          strings.TrimSpace(c.ContactInfo),
		RegistrationRequired: c.RegistrationRequired,
		AgeRestrictions:      strings.TrimSpace(c.AgeRestrictions),
	}

	// End times are best-effort: an unparseable end never rejects the event.
	if end, ok := n.ParseDate(c.EndText, now); ok && end.After(start) {
		ev.EndTime = &end
	}

	return ev, nil
}

// ParseDate resolves a raw date string against the cascade. Year-less
// layouts resolve to the next occurrence relative to now. The boolean is
// false when no strategy succeeds.
func (n *Normalizer) ParseDate(raw string, now time.Time) (time.Time, bool) {
	raw = collapse(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, raw, n.loc)
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			t = t.AddDate(now.Year(), 0, 0)
			// A year-less date more than a day behind means the next
			// occurrence is next year.
			if t.Before(now.AddDate(0, 0, -1)) {
				t = t.AddDate(1, 0, 0)
			}
		}
		return t, true
	}

	if t, err := dateparse.ParseIn(raw, n.loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
