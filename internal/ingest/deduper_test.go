package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicsignal/waltham-events/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	events  map[string]*models.CanonicalEvent
	inserts int
	updates int
	touches int
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: map[string]*models.CanonicalEvent{}}
}

func (f *fakeStore) GetByFingerprint(_ context.Context, fp string) (*models.CanonicalEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[fp]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *ev
	return &clone, nil
}

func (f *fakeStore) Insert(_ context.Context, ev *models.CanonicalEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *ev
	f.events[ev.Fingerprint] = &clone
	f.inserts++
	return nil
}

func (f *fakeStore) UpdateByFingerprint(_ context.Context, ev *models.CanonicalEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *ev
	f.events[ev.Fingerprint] = &clone
	f.updates++
	return nil
}

func (f *fakeStore) TouchLastSeen(_ context.Context, fp string, seenAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.events[fp]; ok {
		ev.LastSeenAt = seenAt
	}
	f.touches++
	return nil
}

func sampleEvent() *models.CanonicalEvent {
	return &models.CanonicalEvent{
		Name:       "Farmers Market",
		DateTime:   time.Date(2026, 6, 20, 9, 30, 0, 0, time.UTC),
		Location:   "Waltham Common",
		SourceName: models.SourceCommon,
		SourceURL:  "https://example.org/market",
		Categories: pq.StringArray{"community", "food"},
	}
}

func TestFingerprintStability(t *testing.T) {
	day := time.Date(2026, 6, 20, 9, 30, 0, 0, time.UTC)

	a := Fingerprint(models.SourceCommon, "Farmers Market", day)
	b := Fingerprint(models.SourceCommon, "  farmers   MARKET ", day.Add(2*time.Hour))
	assert.Equal(t, a, b, "case, whitespace and intra-day time must not change identity")

	assert.NotEqual(t, a, Fingerprint(models.SourceCityCalendar, "Farmers Market", day))
	assert.NotEqual(t, a, Fingerprint(models.SourceCommon, "Farmers Market", day.AddDate(0, 0, 1)))
}

func TestUpsertCreatesThenTouches(t *testing.T) {
	store := newFakeStore()
	d := NewDeduper(store)
	ctx := context.Background()

	outcome, err := d.Upsert(ctx, sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, outcome)

	outcome, err = d.Upsert(ctx, sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUnchanged, outcome)

	assert.Equal(t, 1, store.inserts)
	assert.Equal(t, 1, store.touches)
	assert.Equal(t, 0, store.updates)
}

func TestStripeUsesAllLocks(t *testing.T) {
	d := NewDeduper(newFakeStore())
	day := time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)

	seen := make(map[chan struct{}]struct{})
	for i := 0; i < 512; i++ {
		fp := Fingerprint(models.SourceCommon, fmt.Sprintf("event %d", i), day)
		seen[d.stripe(fp)] = struct{}{}
	}
	assert.Greater(t, len(seen), 16, "striping must not collapse onto the hex alphabet")
}

func TestUpsertDetectsChanges(t *testing.T) {
	store := newFakeStore()
	d := NewDeduper(store)
	ctx := context.Background()

	_, err := d.Upsert(ctx, sampleEvent())
	require.NoError(t, err)

	changed := sampleEvent()
	changed.Location = "Waltham Common Parking Lot"
	outcome, err := d.Upsert(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUpdated, outcome)

	stored, err := store.GetByFingerprint(ctx, changed.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, "Waltham Common Parking Lot", stored.Location)
	assert.Equal(t, 1, store.updates)
}

func TestUpsertRefreshesDisplayName(t *testing.T) {
	store := newFakeStore()
	d := NewDeduper(store)
	ctx := context.Background()

	_, err := d.Upsert(ctx, sampleEvent())
	require.NoError(t, err)

	// Same fingerprint (case and whitespace are normalized away), different
	// display form.
	relisted := sampleEvent()
	relisted.Name = "FARMERS  Market"
	outcome, err := d.Upsert(ctx, relisted)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeUpdated, outcome)

	stored, err := store.GetByFingerprint(ctx, relisted.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, "FARMERS  Market", stored.Name)
}

func TestUpsertPreservesFirstSeen(t *testing.T) {
	store := newFakeStore()
	d := NewDeduper(store)
	ctx := context.Background()

	first := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return first }
	_, err := d.Upsert(ctx, sampleEvent())
	require.NoError(t, err)

	later := first.Add(12 * time.Hour)
	d.now = func() time.Time { return later }
	changed := sampleEvent()
	changed.Description = "Now with live music."
	_, err = d.Upsert(ctx, changed)
	require.NoError(t, err)

	stored, err := store.GetByFingerprint(ctx, changed.Fingerprint)
	require.NoError(t, err)
	assert.True(t, stored.FirstSeenAt.Equal(first))
	assert.True(t, stored.LastSeenAt.Equal(later))
}

func TestUpsertConcurrentSameFingerprint(t *testing.T) {
	store := newFakeStore()
	d := NewDeduper(store)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.Upsert(ctx, sampleEvent())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.inserts, "only one goroutine may create the row")
	assert.Len(t, store.events, 1)
}
