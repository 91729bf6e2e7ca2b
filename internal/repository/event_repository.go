package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/civicsignal/waltham-events/internal/models"
)

// EventRepository persists canonical events in Postgres.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository instantiates the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, name, description, date_time, end_time, location,
	source_name, source_url, categories, cost, organizer, contact_info,
	registration_required, age_restrictions, fingerprint, first_seen_at, last_seen_at`

// Insert stores a new event row. The ID is assigned here.
func (r *EventRepository) Insert(ctx context.Context, ev *models.CanonicalEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		ev.ID, ev.Name, ev.Description, ev.DateTime, ev.EndTime, ev.Location,
		ev.SourceName, ev.SourceURL, ev.Categories, ev.Cost, ev.Organizer,
		ev.ContactInfo, ev.RegistrationRequired, ev.AgeRestrictions,
		ev.Fingerprint, ev.FirstSeenAt, ev.LastSeenAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// UpdateByFingerprint overwrites the mutable fields of an existing row.
func (r *EventRepository) UpdateByFingerprint(ctx context.Context, ev *models.CanonicalEvent) error {
	_, err := r.db.ExecContext(ctx, `UPDATE events SET
		name = $1, description = $2, date_time = $3, end_time = $4,
		location = $5, source_url = $6, categories = $7, cost = $8,
		organizer = $9, contact_info = $10, registration_required = $11,
		age_restrictions = $12, last_seen_at = $13
		WHERE fingerprint = $14`,
		ev.Name, ev.Description, ev.DateTime, ev.EndTime, ev.Location,
		ev.SourceURL, ev.Categories, ev.Cost, ev.Organizer, ev.ContactInfo,
		ev.RegistrationRequired, ev.AgeRestrictions, ev.LastSeenAt, ev.Fingerprint)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return nil
}

// GetByFingerprint fetches one row by its stable identity. sql.ErrNoRows
// passes through for absent rows.
func (r *EventRepository) GetByFingerprint(ctx context.Context, fp string) (*models.CanonicalEvent, error) {
	var ev models.CanonicalEvent
	err := r.db.GetContext(ctx, &ev, `SELECT `+eventColumns+` FROM events WHERE fingerprint = $1`, fp)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// GetByID fetches one row by primary key. sql.ErrNoRows passes through.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.CanonicalEvent, error) {
	var ev models.CanonicalEvent
	err := r.db.GetContext(ctx, &ev, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// TouchLastSeen refreshes the liveness timestamp without touching content.
func (r *EventRepository) TouchLastSeen(ctx context.Context, fp string, seenAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE events SET last_seen_at = $1 WHERE fingerprint = $2`, seenAt, fp)
	if err != nil {
		return fmt.Errorf("touch event: %w", err)
	}
	return nil
}

// List returns a filtered page of events ordered by start time, plus the
// total match count for paging metadata.
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.CanonicalEvent, int, error) {
	var where strings.Builder
	where.WriteString(" WHERE 1=1")
	var args []interface{}

	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where.WriteString(fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if filter.Category != "" {
		args = append(args, string(filter.Category))
		where.WriteString(fmt.Sprintf(" AND $%d = ANY(categories)", len(args)))
	}
	if filter.Source != "" {
		args = append(args, string(filter.Source))
		where.WriteString(fmt.Sprintf(" AND source_name = $%d", len(args)))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		where.WriteString(fmt.Sprintf(" AND date_time >= $%d", len(args)))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		where.WriteString(fmt.Sprintf(" AND date_time <= $%d", len(args)))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM events"+where.String(), args...); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size < 1 {
		size = 20
	}
	args = append(args, size, (page-1)*size)
	query := "SELECT " + eventColumns + " FROM events" + where.String() +
		fmt.Sprintf(" ORDER BY date_time ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	events := []models.CanonicalEvent{}
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	return events, total, nil
}

// Stats aggregates upcoming-event counts by category and by source.
func (r *EventRepository) Stats(ctx context.Context, now time.Time) (*models.EventStats, error) {
	stats := &models.EventStats{
		ByCategory:  map[string]int{},
		BySource:    map[string]int{},
		GeneratedAt: now,
	}

	if err := r.db.GetContext(ctx, &stats.TotalUpcoming,
		`SELECT COUNT(*) FROM events WHERE date_time >= $1`, now); err != nil {
		return nil, fmt.Errorf("count upcoming events: %w", err)
	}

	catRows := []struct {
		Category string `db:"category"`
		Count    int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &catRows,
		`SELECT UNNEST(categories) AS category, COUNT(*) AS count
		 FROM events WHERE date_time >= $1 GROUP BY category`, now); err != nil {
		return nil, fmt.Errorf("count events by category: %w", err)
	}
	for _, row := range catRows {
		stats.ByCategory[row.Category] = row.Count
	}

	srcRows := []struct {
		Source string `db:"source_name"`
		Count  int    `db:"count"`
	}{}
	if err := r.db.SelectContext(ctx, &srcRows,
		`SELECT source_name, COUNT(*) AS count
		 FROM events WHERE date_time >= $1 GROUP BY source_name`, now); err != nil {
		return nil, fmt.Errorf("count events by source: %w", err)
	}
	for _, row := range srcRows {
		stats.BySource[row.Source] = row.Count
	}
	return stats, nil
}

// DeleteBefore removes rows whose event date is behind the cutoff and
// reports how many went away.
func (r *EventRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE date_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale events: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale event count: %w", err)
	}
	return removed, nil
}
