package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommon(t *testing.T, now time.Time, horizonMonths int) *Common {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s := NewCommon("https://www.city.waltham.ma.us/waltham-common", loc, horizonMonths)
	s.now = func() time.Time { return now.In(loc) }
	return s
}

func TestCommonFetchWeeklySeries(t *testing.T) {
	// Mid-June: farmers' market, concerts and zumba are all in season.
	s := newTestCommon(t, time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC), 1)

	candidates, err := s.Fetch(context.Background())
	require.NoError(t, err)

	var markets, concerts int
	for _, c := range candidates {
		switch c.Title {
		case "Waltham Farmers' Market":
			markets++
			assert.Equal(t, "Waltham Common Parking Lot", c.LocationText)
			dt, perr := time.Parse(time.RFC3339, c.DateText)
			require.NoError(t, perr)
			assert.Equal(t, time.Saturday, dt.Weekday())
			assert.Equal(t, 9, dt.Hour())
			assert.Equal(t, 30, dt.Minute())
		case "Free Concert on the Common":
			concerts++
		}
	}
	assert.GreaterOrEqual(t, markets, 4, "a month holds at least four Saturdays")
	assert.GreaterOrEqual(t, concerts, 4)
}

func TestCommonFetchRespectsSeason(t *testing.T) {
	// January: nothing weekly is in season, annual fixtures are months out.
	s := newTestCommon(t, time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC), 1)

	candidates, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestCommonFetchAnnualFixtures(t *testing.T) {
	s := newTestCommon(t, time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC), 2)

	candidates, err := s.Fetch(context.Background())
	require.NoError(t, err)

	titles := make([]string, 0, len(candidates))
	for _, c := range candidates {
		titles = append(titles, c.Title)
	}
	assert.Contains(t, titles, "Fourth of July Celebration")
	assert.NotContains(t, titles, "Winter Holiday Tree Lighting", "outside the horizon")
}

func TestCommonFetchCancelledContext(t *testing.T) {
	s := newTestCommon(t, time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
