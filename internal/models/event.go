package models

import (
	"time"

	"github.com/lib/pq"
)

// SourceName identifies the adapter an event originated from.
type SourceName string

const (
	SourceCityCalendar SourceName = "waltham_city"
	SourceLibrary      SourceName = "waltham_library"
	SourceMuseum       SourceName = "charles_river_museum"
	SourceUniversity   SourceName = "brandeis"
	SourceRecreation   SourceName = "waltham_recreation"
	SourceEventbrite   SourceName = "eventbrite"
	SourceMeetup       SourceName = "meetup"
	SourceCommon       SourceName = "waltham_common"
)

// AllSources lists every registered adapter identity.
func AllSources() []SourceName {
	return []SourceName{
		SourceCityCalendar,
		SourceLibrary,
		SourceMuseum,
		SourceUniversity,
		SourceRecreation,
		SourceEventbrite,
		SourceMeetup,
		SourceCommon,
	}
}

// Valid reports whether the name belongs to the fixed adapter enumeration.
func (s SourceName) Valid() bool {
	for _, known := range AllSources() {
		if s == known {
			return true
		}
	}
	return false
}

// Category is a topical tag from the fixed vocabulary.
type Category string

const (
	CategoryGeneral   Category = "general"
	CategoryFamily    Category = "family"
	CategoryMusic     Category = "music"
	CategoryOutdoors  Category = "outdoors"
	CategorySports    Category = "sports"
	CategoryArts      Category = "arts"
	CategoryFood      Category = "food"
	CategoryBusiness  Category = "business"
	CategoryEducation Category = "education"
	CategoryCommunity Category = "community"
)

// AllCategories lists the fixed vocabulary used for filtering.
func AllCategories() []Category {
	return []Category{
		CategoryGeneral,
		CategoryFamily,
		CategoryMusic,
		CategoryOutdoors,
		CategorySports,
		CategoryArts,
		CategoryFood,
		CategoryBusiness,
		CategoryEducation,
		CategoryCommunity,
	}
}

// Valid reports whether the tag belongs to the fixed vocabulary.
func (c Category) Valid() bool {
	for _, known := range AllCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// CanonicalEvent is the unit of storage produced by the ingestion pipeline.
// Fingerprint, FirstSeenAt and LastSeenAt are owned by the upsert engine;
// adapters and the normalizer never set them.
type CanonicalEvent struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description,omitempty"`
	DateTime    time.Time      `db:"date_time" json:"date_time"`
	EndTime     *time.Time     `db:"end_time" json:"end_time,omitempty"`
	Location    string         `db:"location" json:"location"`
	SourceName  SourceName     `db:"source_name" json:"source_name"`
	SourceURL   string         `db:"source_url" json:"source_url"`
	Categories  pq.StringArray `db:"categories" json:"categories"`

	Cost                 string `db:"cost" json:"cost,omitempty"`
	Organizer            string `db:"organizer" json:"organizer,omitempty"`
	ContactInfo          string `db:"contact_info" json:"contact_info,omitempty"`
	RegistrationRequired bool   `db:"registration_required" json:"registration_required"`
	AgeRestrictions      string `db:"age_restrictions" json:"age_restrictions,omitempty"`

	Fingerprint string    `db:"fingerprint" json:"-"`
	FirstSeenAt time.Time `db:"first_seen_at" json:"first_seen_at"`
	LastSeenAt  time.Time `db:"last_seen_at" json:"last_seen_at"`
}

// EventFilter narrows down stored events for the read API.
type EventFilter struct {
	Search    string
	Category  Category
	Source    SourceName
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	PageSize  int
}

// EventStats summarises the store for the read API.
type EventStats struct {
	TotalUpcoming int            `json:"total_upcoming"`
	ByCategory    map[string]int `json:"by_category"`
	BySource      map[string]int `json:"by_source"`
	GeneratedAt   time.Time      `json:"generated_at"`
}

// Pagination describes list response paging metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}
