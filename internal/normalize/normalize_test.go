package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsignal/waltham-events/internal/models"
	"github.com/civicsignal/waltham-events/internal/source"
)

func testNormalizer(t *testing.T) (*Normalizer, time.Time) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return New(loc), time.Date(2026, time.March, 10, 12, 0, 0, 0, loc)
}

func TestParseDateLayouts(t *testing.T) {
	n, now := testNormalizer(t)

	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"rfc3339", "2026-06-20T09:30:00-04:00", time.Date(2026, 6, 20, 9, 30, 0, 0, n.loc)},
		{"long form", "Saturday, June 20, 2026 9:30 AM", time.Date(2026, 6, 20, 9, 30, 0, 0, n.loc)},
		{"medium form", "Jun 20, 2026 9:30 AM", time.Date(2026, 6, 20, 9, 30, 0, 0, n.loc)},
		{"iso minutes", "2026-06-20 09:30", time.Date(2026, 6, 20, 9, 30, 0, 0, n.loc)},
		{"us slash", "06/20/2026 9:30 AM", time.Date(2026, 6, 20, 9, 30, 0, 0, n.loc)},
		{"date only", "June 20, 2026", time.Date(2026, 6, 20, 0, 0, 0, 0, n.loc)},
		{"messy whitespace", "  June   20,  2026  ", time.Date(2026, 6, 20, 0, 0, 0, 0, n.loc)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := n.ParseDate(tc.raw, now)
			require.True(t, ok)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestParseDateYearless(t *testing.T) {
	n, now := testNormalizer(t)

	// A yearless date later in the year stays in the current year.
	got, ok := n.ParseDate("Jun 20 @ 9:30am", now)
	require.True(t, ok)
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, time.June, got.Month())

	// A yearless date already behind resolves to next year.
	got, ok = n.ParseDate("Jan 5 @ 7pm", now)
	require.True(t, ok)
	assert.Equal(t, 2027, got.Year())
}

func TestParseDateFreeText(t *testing.T) {
	n, now := testNormalizer(t)

	// Not in the layout cascade; the free-text parser picks it up.
	got, ok := n.ParseDate("2026-06-20 09:30:00", now)
	require.True(t, ok)
	assert.Equal(t, time.June, got.Month())

	_, ok = n.ParseDate("every other Tuesday probably", now)
	assert.False(t, ok)

	_, ok = n.ParseDate("", now)
	assert.False(t, ok)
}

func TestNormalizeValidCandidate(t *testing.T) {
	n, now := testNormalizer(t)

	ev, rej := n.Normalize(source.Candidate{
		Title:        "  Outdoor Yoga in the Park  ",
		DateText:     "June 20, 2026 9:30 AM",
		EndText:      "June 20, 2026 10:30 AM",
		LocationText: " Waltham   Common  Lawn ",
		Description:  "Bring a mat.",
		URL:          "https://example.org/yoga",
		Cost:         "Free",
	}, models.SourceCityCalendar, now)

	require.Nil(t, rej)
	require.NotNil(t, ev)
	assert.Equal(t, "Outdoor Yoga in the Park", ev.Name)
	assert.Equal(t, "Waltham Common Lawn", ev.Location)
	assert.Equal(t, models.SourceCityCalendar, ev.SourceName)
	assert.Equal(t, "Free", ev.Cost)
	require.NotNil(t, ev.EndTime)
	assert.True(t, ev.EndTime.After(ev.DateTime))
	assert.Empty(t, ev.Fingerprint)
}

func TestNormalizeRejections(t *testing.T) {
	n, now := testNormalizer(t)

	cases := []struct {
		name string
		c    source.Candidate
		src  models.SourceName
		want RejectReason
	}{
		{
			name: "unparseable date",
			c:    source.Candidate{Title: "Concert", DateText: "sometime soon", LocationText: "Bandstand"},
			src:  models.SourceCityCalendar,
			want: ReasonDateUnparseable,
		},
		{
			name: "past date",
			c:    source.Candidate{Title: "Concert", DateText: "June 20, 2020 7:00 PM", LocationText: "Bandstand"},
			src:  models.SourceCityCalendar,
			want: ReasonDatePast,
		},
		{
			name: "short title",
			c:    source.Candidate{Title: " a ", DateText: "June 20, 2026", LocationText: "Bandstand"},
			src:  models.SourceCityCalendar,
			want: ReasonTitleInvalid,
		},
		{
			name: "no venue and no fallback",
			c:    source.Candidate{Title: "Concert", DateText: "June 20, 2026"},
			src:  models.SourceEventbrite,
			want: ReasonLocationInvalid,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ev, rej := n.Normalize(tc.c, tc.src, now)
			assert.Nil(t, ev)
			require.NotNil(t, rej)
			assert.Equal(t, tc.want, rej.Reason)
		})
	}
}

func TestNormalizeLocationFallback(t *testing.T) {
	n, now := testNormalizer(t)

	ev, rej := n.Normalize(source.Candidate{
		Title:    "Summer Reading Kickoff",
		DateText: "June 20, 2026 3:00 PM",
	}, models.SourceLibrary, now)

	require.Nil(t, rej)
	assert.Equal(t, "Waltham Public Library, 735 Main St", ev.Location)
}

func TestNormalizeBadEndTimeIgnored(t *testing.T) {
	n, now := testNormalizer(t)

	ev, rej := n.Normalize(source.Candidate{
		Title:        "Museum Tour",
		DateText:     "June 20, 2026 1:00 PM",
		EndText:      "whenever it ends",
		LocationText: "154 Moody St",
	}, models.SourceMuseum, now)

	require.Nil(t, rej)
	assert.Nil(t, ev.EndTime)
}
