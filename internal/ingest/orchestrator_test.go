package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/civicsignal/waltham-events/internal/models"
	"github.com/civicsignal/waltham-events/internal/normalize"
	"github.com/civicsignal/waltham-events/internal/source"
)

type stubSource struct {
	name       models.SourceName
	candidates []source.Candidate
	err        error
	panics     bool
	delay      time.Duration
}

func (s *stubSource) Name() models.SourceName { return s.name }

func (s *stubSource) Fetch(context.Context) ([]source.Candidate, error) {
	if s.panics {
		panic("selector went sideways")
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.candidates, s.err
}

// deadlineStore fails lookups once the context is done, the way a real
// database driver would.
type deadlineStore struct {
	*fakeStore
}

func (s *deadlineStore) GetByFingerprint(ctx context.Context, fp string) (*models.CanonicalEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.fakeStore.GetByFingerprint(ctx, fp)
}

type stubPruner struct {
	removed int64
	err     error
	cutoff  time.Time
}

func (p *stubPruner) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoff = cutoff
	return p.removed, p.err
}

func testOrchestrator(t *testing.T, store Store, sources ...source.Source) *Orchestrator {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return NewOrchestrator(
		sources,
		normalize.New(loc),
		NewDeduper(store),
		&stubPruner{},
		nil,
		Options{Concurrency: 2, SourceTimeout: time.Second},
		zaptest.NewLogger(t),
	)
}

func futureCandidate(title string) source.Candidate {
	return source.Candidate{
		Title:        title,
		DateText:     time.Now().AddDate(0, 1, 0).Format("January 2, 2006 3:04 PM"),
		LocationText: "Waltham Common Bandstand",
	}
}

func TestRunCycleHappyPath(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(t, store,
		&stubSource{name: models.SourceCityCalendar, candidates: []source.Candidate{
			futureCandidate("Summer Concert"),
			futureCandidate("Harvest Festival"),
		}},
		&stubSource{name: models.SourceLibrary, candidates: []source.Candidate{
			futureCandidate("Author Talk"),
		}},
	)

	summary, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	city := summary.Sources[models.SourceCityCalendar]
	require.NotNil(t, city)
	assert.Equal(t, 2, city.Fetched)
	assert.Equal(t, 2, city.Normalized)
	assert.Equal(t, 2, city.Created)
	assert.Empty(t, city.Error)

	assert.Equal(t, 3, summary.TotalCreated())
	assert.Equal(t, 0, summary.TotalErrors())
	assert.Len(t, store.events, 3)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))
}

func TestRunCycleIdempotent(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(t, store,
		&stubSource{name: models.SourceCityCalendar, candidates: []source.Candidate{
			futureCandidate("Summer Concert"),
			futureCandidate("Harvest Festival"),
		}},
	)

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, store.events, 2)

	summary, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	report := summary.Sources[models.SourceCityCalendar]
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 2, report.Unchanged)
	assert.Len(t, store.events, 2, "a repeated cycle must not grow the store")
}

func TestRunCycleIsolatesFailingSource(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(t, store,
		&stubSource{name: models.SourceCityCalendar, err: errors.New("503 from city site")},
		&stubSource{name: models.SourceLibrary, candidates: []source.Candidate{
			futureCandidate("Story Time"),
		}},
	)

	summary, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Contains(t, summary.Sources[models.SourceCityCalendar].Error, "503")
	assert.Equal(t, 1, summary.Sources[models.SourceLibrary].Created)
	assert.Equal(t, 1, summary.TotalErrors())
}

func TestRunCycleContainsPanic(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(t, store,
		&stubSource{name: models.SourceMuseum, panics: true},
		&stubSource{name: models.SourceCommon, candidates: []source.Candidate{
			futureCandidate("Tree Lighting"),
		}},
	)

	summary, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Contains(t, summary.Sources[models.SourceMuseum].Error, "panic")
	assert.Equal(t, 1, summary.Sources[models.SourceCommon].Created)
}

func TestRunCycleTimeoutMarksSourceErrored(t *testing.T) {
	store := &deadlineStore{fakeStore: newFakeStore()}
	slow := &stubSource{
		name:       models.SourceLibrary,
		delay:      50 * time.Millisecond,
		candidates: []source.Candidate{futureCandidate("Story Time")},
	}

	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	o := NewOrchestrator(
		[]source.Source{slow},
		normalize.New(loc),
		NewDeduper(store),
		&stubPruner{},
		nil,
		Options{Concurrency: 1, SourceTimeout: 10 * time.Millisecond},
		zaptest.NewLogger(t),
	)

	summary, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	report := summary.Sources[models.SourceLibrary]
	assert.NotEmpty(t, report.Error, "a timed-out source must be reported as errored")
	assert.Equal(t, 1, report.StoreErrors)
	assert.Empty(t, store.events)
}

func TestRunCycleCountsRejections(t *testing.T) {
	store := newFakeStore()
	o := testOrchestrator(t, store,
		&stubSource{name: models.SourceCityCalendar, candidates: []source.Candidate{
			futureCandidate("Valid Event"),
			{Title: "No Date Here", LocationText: "City Hall"},
			{Title: "x", DateText: "June 1, 2030", LocationText: "City Hall"},
		}},
	)

	summary, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	report := summary.Sources[models.SourceCityCalendar]
	assert.Equal(t, 3, report.Fetched)
	assert.Equal(t, 1, report.Normalized)
	assert.Equal(t, 2, report.Rejected)
	assert.Equal(t, 1, report.Rejections[string(normalize.ReasonDateUnparseable)])
	assert.Equal(t, 1, report.Rejections[string(normalize.ReasonTitleInvalid)])
}

func TestPruneStale(t *testing.T) {
	pruner := &stubPruner{removed: 7}
	o := NewOrchestrator(nil, normalize.New(time.UTC), NewDeduper(newFakeStore()),
		pruner, nil, Options{}, zaptest.NewLogger(t))

	removed, err := o.PruneStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
	assert.False(t, pruner.cutoff.IsZero())

	pruner.err = errors.New("db down")
	_, err = o.PruneStale(context.Background())
	assert.Error(t, err)
}
