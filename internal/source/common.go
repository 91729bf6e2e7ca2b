package source

import (
	"context"
	"fmt"
	"time"

	"github.com/civicsignal/waltham-events/internal/models"
)

// Common expands the fixed Waltham Common schedule into dated candidates.
// The Common has no machine-readable listing; its recurring program (farmers'
// market, summer concerts, outdoor fitness) and annual fixtures are stable
// enough to publish from a static schedule, the same way the city lists them.
type Common struct {
	baseURL string
	loc     *time.Location
	horizon int // months
	now     func() time.Time
}

// NewCommon builds the static Waltham Common adapter.
func NewCommon(baseURL string, loc *time.Location, horizonMonths int) *Common {
	if horizonMonths <= 0 {
		horizonMonths = 6
	}
	return &Common{
		baseURL: baseURL,
		loc:     loc,
		horizon: horizonMonths,
		now:     time.Now,
	}
}

func (s *Common) Name() models.SourceName { return models.SourceCommon }

type commonWeekly struct {
	name        string
	description string
	location    string
	category    string
	weekday     time.Weekday
	hour        int
	minute      int
	firstMonth  time.Month
	lastMonth   time.Month
	slug        string
}

type commonAnnual struct {
	name        string
	description string
	category    string
	month       time.Month
	day         int
	hour        int
	slug        string
}

var commonWeeklySchedule = []commonWeekly{
	{
		name:        "Waltham Farmers' Market",
		description: "Weekly farmers' market featuring local vendors, fresh produce, artisan goods, and live music. Rain or shine.",
		location:    "Waltham Common Parking Lot",
		category:    "community",
		weekday:     time.Saturday,
		hour:        9, minute: 30,
		firstMonth: time.June, lastMonth: time.November,
		slug: "farmers-market",
	},
	{
		name:        "Free Concert on the Common",
		description: "Free outdoor concert at the bandstand. Bring chairs and blankets.",
		location:    "Waltham Common Bandstand",
		category:    "music",
		weekday:     time.Thursday,
		hour:        19,
		firstMonth:  time.June, lastMonth: time.August,
		slug: "summer-concert",
	},
	{
		name:        "Free Outdoor Zumba on the Common",
		description: "Free outdoor Zumba fitness class for all skill levels. No registration required.",
		location:    "Waltham Common Lawn",
		category:    "sports",
		weekday:     time.Wednesday,
		hour:        19,
		firstMonth:  time.April, lastMonth: time.September,
		slug: "zumba",
	},
}

var commonAnnualSchedule = []commonAnnual{
	{
		name:        "Memorial Day Ceremony",
		description: "Annual Memorial Day ceremony honoring fallen veterans. Public invited.",
		category:    "community",
		month:       time.May, day: 25, hour: 10,
		slug: "memorial-day",
	},
	{
		name:        "Fourth of July Celebration",
		description: "Independence Day celebration with food, music, and evening fireworks display.",
		category:    "community",
		month:       time.July, day: 4, hour: 18,
		slug: "fourth-of-july",
	},
	{
		name:        "Harvest Festival",
		description: "Fall community festival with pumpkin carving, crafts, and seasonal activities.",
		category:    "family",
		month:       time.October, day: 18, hour: 11,
		slug: "harvest-festival",
	},
	{
		name:        "Winter Holiday Tree Lighting",
		description: "Annual tree lighting ceremony with hot cocoa, caroling, and visits from Santa.",
		category:    "family",
		month:       time.December, day: 1, hour: 17,
		slug: "tree-lighting",
	},
}

// Fetch never performs I/O; the error return exists only to satisfy the
// adapter contract.
func (s *Common) Fetch(ctx context.Context) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	end := now.AddDate(0, s.horizon, 0)

	var out []Candidate
	for _, w := range commonWeeklySchedule {
		for day := nextWeekday(now, w.weekday); day.Before(end); day = day.AddDate(0, 0, 7) {
			if !monthInSeason(day.Month(), w.firstMonth, w.lastMonth) {
				continue
			}
			start := time.Date(day.Year(), day.Month(), day.Day(), w.hour, w.minute, 0, 0, s.loc)
			out = append(out, Candidate{
				Title:        w.name,
				DateText:     start.Format(time.RFC3339),
				LocationText: w.location,
				Description:  w.description,
				CategoryHint: w.category,
				URL:          fmt.Sprintf("%s#%s", s.baseURL, w.slug),
			})
		}
	}

	for _, a := range commonAnnualSchedule {
		start := time.Date(now.Year(), a.month, a.day, a.hour, 0, 0, 0, s.loc)
		if start.Before(now) {
			start = start.AddDate(1, 0, 0)
		}
		if start.After(end) {
			continue
		}
		out = append(out, Candidate{
			Title:        a.name,
			DateText:     start.Format(time.RFC3339),
			LocationText: "Waltham Common",
			Description:  a.description,
			CategoryHint: a.category,
			URL:          fmt.Sprintf("%s#%s", s.baseURL, a.slug),
		})
	}
	return out, nil
}

func nextWeekday(from time.Time, target time.Weekday) time.Time {
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	offset := (int(target) - int(day.Weekday()) + 7) % 7
	return day.AddDate(0, 0, offset)
}

func monthInSeason(m, first, last time.Month) bool {
	if first <= last {
		return m >= first && m <= last
	}
	// Season wraps the year end.
	return m >= first || m <= last
}
