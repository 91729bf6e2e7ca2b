package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/civicsignal/waltham-events/internal/models"
)

// Store is the persistence surface the upsert engine needs. The repository
// package provides the Postgres implementation.
type Store interface {
	GetByFingerprint(ctx context.Context, fp string) (*models.CanonicalEvent, error)
	Insert(ctx context.Context, ev *models.CanonicalEvent) error
	UpdateByFingerprint(ctx context.Context, ev *models.CanonicalEvent) error
	TouchLastSeen(ctx context.Context, fp string, seenAt time.Time) error
}

// Fingerprint derives the stable identity of an event: source, lowercased
// whitespace-collapsed name, and the calendar day. Two listings of the same
// event on the same day collapse to one row even when the scraped start time
// drifts between runs.
func Fingerprint(src models.SourceName, name string, start time.Time) string {
	norm := strings.ToLower(strings.Join(strings.Fields(name), " "))
	sum := sha256.Sum256([]byte(string(src) + "|" + norm + "|" + start.Format("2006-01-02")))
	return hex.EncodeToString(sum[:])
}

const lockStripes = 64

// Deduper reconciles normalized events against the store. Upserts for the
// same fingerprint are serialized through striped locks so concurrent source
// workers cannot race an insert against an update of the same event.
type Deduper struct {
	store Store
	locks [lockStripes]chan struct{}
	now   func() time.Time
}

// NewDeduper builds the upsert engine over the given store.
func NewDeduper(store Store) *Deduper {
	d := &Deduper{store: store, now: time.Now}
	for i := range d.locks {
		d.locks[i] = make(chan struct{}, 1)
	}
	return d
}

// stripe rehashes the hex fingerprint so all stripes are reachable; indexing
// a hex character directly would only ever touch 16 of them.
func (d *Deduper) stripe(fp string) chan struct{} {
	h := fnv.New32a()
	h.Write([]byte(fp))
	return d.locks[h.Sum32()%lockStripes]
}

// Upsert stores one event and reports whether it was created, updated, or
// already current. The event's fingerprint and bookkeeping timestamps are
// assigned here.
func (d *Deduper) Upsert(ctx context.Context, ev *models.CanonicalEvent) (models.UpsertOutcome, error) {
	ev.Fingerprint = Fingerprint(ev.SourceName, ev.Name, ev.DateTime)
	seenAt := d.now().UTC()

	lock := d.stripe(ev.Fingerprint)
	select {
	case lock <- struct{}{}:
		defer func() { <-lock }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	existing, err := d.store.GetByFingerprint(ctx, ev.Fingerprint)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("lookup fingerprint: %w", err)
	}

	if existing == nil {
		ev.FirstSeenAt = seenAt
		ev.LastSeenAt = seenAt
		if err := d.store.Insert(ctx, ev); err != nil {
			return "", fmt.Errorf("insert event: %w", err)
		}
		return models.OutcomeCreated, nil
	}

	ev.ID = existing.ID
	ev.FirstSeenAt = existing.FirstSeenAt
	ev.LastSeenAt = seenAt

	if mutableEqual(existing, ev) {
		if err := d.store.TouchLastSeen(ctx, ev.Fingerprint, seenAt); err != nil {
			return "", fmt.Errorf("touch event: %w", err)
		}
		return models.OutcomeUnchanged, nil
	}

	if err := d.store.UpdateByFingerprint(ctx, ev); err != nil {
		return "", fmt.Errorf("update event: %w", err)
	}
	return models.OutcomeUpdated, nil
}

// mutableEqual compares the fields a source can legitimately change between
// runs of the same listing.
func mutableEqual(a, b *models.CanonicalEvent) bool {
	if len(a.Categories) != len(b.Categories) {
		return false
	}
	for i := range a.Categories {
		if a.Categories[i] != b.Categories[i] {
			return false
		}
	}
	aEnd, bEnd := time.Time{}, time.Time{}
	if a.EndTime != nil {
		aEnd = *a.EndTime
	}
	if b.EndTime != nil {
		bEnd = *b.EndTime
	}
	// Name participates even though it feeds the fingerprint: the fingerprint
	// normalizes case and whitespace, so the display form can still drift.
	return a.Name == b.Name &&
		a.Description == b.Description &&
		a.DateTime.Equal(b.DateTime) &&
		aEnd.Equal(bEnd) &&
		a.Location == b.Location &&
		a.SourceURL == b.SourceURL &&
		a.Cost == b.Cost &&
		a.Organizer == b.Organizer &&
		a.ContactInfo == b.ContactInfo &&
		a.RegistrationRequired == b.RegistrationRequired &&
		a.AgeRestrictions == b.AgeRestrictions
}
