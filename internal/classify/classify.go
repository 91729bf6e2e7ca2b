// Package classify assigns category tags to events from a fixed keyword
// vocabulary. Matching is intentionally dumb: case-insensitive substring
// checks over the event text, unioned across categories.
package classify

import (
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/civicsignal/waltham-events/internal/models"
)

// keywords maps each category to the terms that imply it. A term matching
// anywhere in the combined title, description and hint tags the event.
// CategoryGeneral has no terms; it is the fallback for events matching
// nothing.
var keywords = map[models.Category][]string{
	models.CategoryMusic: {
		"concert", "music", "band", "orchestra", "choir", "jazz", "singer",
		"open mic", "karaoke", "symphony",
	},
	models.CategorySports: {
		"yoga", "zumba", "fitness", "race", "5k", "basketball", "soccer",
		"swim", "tennis", "pickleball", "hike", "workout", "league",
	},
	models.CategoryArts: {
		"art", "gallery", "exhibit", "painting", "craft", "theater",
		"theatre", "film", "photography", "pottery", "sculpture",
	},
	models.CategoryFamily: {
		"family", "kids", "children", "storytime", "story time", "toddler",
		"teen", "youth", "santa", "pumpkin",
	},
	models.CategoryEducation: {
		"class", "workshop", "lecture", "seminar", "course", "learn",
		"tutoring", "book club", "author talk", "lesson",
	},
	models.CategoryCommunity: {
		"community", "festival", "parade", "ceremony", "volunteer",
		"cleanup", "neighborhood", "fundraiser", "celebration", "town hall",
		"meeting", "veterans", "memorial",
	},
	models.CategoryFood: {
		"food", "dinner", "breakfast", "lunch", "tasting", "cook", "bake",
		"potluck", "bbq", "brewery", "farmers", "market",
	},
	models.CategoryOutdoors: {
		"outdoor", "park", "trail", "garden", "nature", "river", "common",
		"picnic", "camp", "yoga",
	},
	models.CategoryBusiness: {
		"business", "networking", "chamber", "entrepreneur", "career",
		"job fair", "startup",
	},
}

// Classify tags an event with every category whose keywords appear in its
// name, description, or source hint. A hint that names a vocabulary category
// outright tags the event directly; adapters use that for listings whose
// section already states the category. Tags come back sorted so equal events
// classify identically regardless of map iteration order. Events matching
// nothing are tagged general rather than left bare, so the category filter
// can always reach them.
func Classify(name, description, hint string) pq.StringArray {
	haystack := strings.ToLower(name + " " + description + " " + hint)

	set := make(map[string]struct{})
	if direct := models.Category(strings.ToLower(strings.TrimSpace(hint))); direct.Valid() {
		set[string(direct)] = struct{}{}
	}
	for cat, terms := range keywords {
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				set[string(cat)] = struct{}{}
				break
			}
		}
	}
	if len(set) == 0 {
		return pq.StringArray{string(models.CategoryGeneral)}
	}
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return pq.StringArray(tags)
}
