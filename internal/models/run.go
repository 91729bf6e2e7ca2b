package models

import "time"

// UpsertOutcome is the result of reconciling one candidate against the store.
type UpsertOutcome string

const (
	OutcomeCreated   UpsertOutcome = "created"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
)

// SourceReport accumulates per-source counts for a single ingestion cycle.
type SourceReport struct {
	Source      SourceName     `json:"source"`
	Fetched     int            `json:"fetched"`
	Normalized  int            `json:"normalized"`
	Rejected    int            `json:"rejected"`
	Rejections  map[string]int `json:"rejections,omitempty"`
	Created     int            `json:"created"`
	Updated     int            `json:"updated"`
	Unchanged   int            `json:"unchanged"`
	StoreErrors int            `json:"store_errors"`
	Error       string         `json:"error,omitempty"`
	Duration    time.Duration  `json:"duration_ns"`
}

// RecordRejection counts one normalizer rejection by reason.
func (r *SourceReport) RecordRejection(reason string) {
	if r.Rejections == nil {
		r.Rejections = make(map[string]int)
	}
	r.Rejections[reason]++
	r.Rejected++
}

// RecordOutcome counts one upsert outcome.
func (r *SourceReport) RecordOutcome(outcome UpsertOutcome) {
	switch outcome {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeUnchanged:
		r.Unchanged++
	}
}

// RunSummary is the structured result of one orchestrator cycle.
type RunSummary struct {
	StartedAt  time.Time                    `json:"started_at"`
	FinishedAt time.Time                    `json:"finished_at"`
	Sources    map[SourceName]*SourceReport `json:"sources"`
}

// NewRunSummary pre-seeds a summary with one report per source.
func NewRunSummary(sources []SourceName, startedAt time.Time) *RunSummary {
	s := &RunSummary{
		StartedAt: startedAt,
		Sources:   make(map[SourceName]*SourceReport, len(sources)),
	}
	for _, name := range sources {
		s.Sources[name] = &SourceReport{Source: name}
	}
	return s
}

// TotalCreated sums created outcomes across sources.
func (s *RunSummary) TotalCreated() int {
	total := 0
	for _, r := range s.Sources {
		total += r.Created
	}
	return total
}

// TotalErrors counts sources that finished with an error.
func (s *RunSummary) TotalErrors() int {
	total := 0
	for _, r := range s.Sources {
		if r.Error != "" {
			total++
		}
	}
	return total
}
