package source

import (
	"context"
	"fmt"

	"github.com/civicsignal/waltham-events/internal/models"
)

// Candidate is the raw, source-native shape of an extracted event. Fields are
// untouched strings; all semantic interpretation (dates, categories,
// validation) happens in the normalizer so a parsing fix never requires
// touching every adapter.
type Candidate struct {
	Title        string
	DateText     string
	EndText      string
	LocationText string
	Description  string
	URL          string
	CategoryHint string

	// Extras some sources expose. Optional everywhere.
	Cost                 string
	Organizer            string
	ContactInfo          string
	AgeRestrictions      string
	RegistrationRequired bool
}

// Source is one adapter for one external listing. Fetch returns whatever
// candidates could be extracted together with an error describing what, if
// anything, went wrong; it never panics. A non-nil error with a non-empty
// slice means partial extraction.
type Source interface {
	Name() models.SourceName
	Fetch(ctx context.Context) ([]Candidate, error)
}

// FetchError reports a failed outbound request: network failure, timeout, or
// a non-success HTTP status.
type FetchError struct {
	Source models.SourceName
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: %s returned %d: %v", e.Source, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError reports source markup or payload the adapter could not make
// sense of at page scope.
type ParseError struct {
	Source models.SourceName
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
