package service

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/civicsignal/waltham-events/internal/dto"
	"github.com/civicsignal/waltham-events/internal/models"
	appErrors "github.com/civicsignal/waltham-events/pkg/errors"
)

type eventStore interface {
	List(ctx context.Context, filter models.EventFilter) ([]models.CanonicalEvent, int, error)
	GetByID(ctx context.Context, id string) (*models.CanonicalEvent, error)
	Stats(ctx context.Context, now time.Time) (*models.EventStats, error)
}

// EventService serves the read API over the event store, with an optional
// Redis cache in front of list and stats queries. A nil cache client
// disables caching entirely.
type EventService struct {
	repo      eventStore
	cache     *redis.Client
	cacheTTL  time.Duration
	loc       *time.Location
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEventService builds an EventService with sane defaults.
func NewEventService(repo eventStore, cache *redis.Client, cacheTTL time.Duration, loc *time.Location, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &EventService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		loc:       loc,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns a filtered, paginated page of events.
func (s *EventService) List(ctx context.Context, q dto.ListEventsQuery) (*dto.EventPage, error) {
	if err := s.validator.Struct(q); err != nil {
		return nil, appErrors.ErrValidation.WithDetail(err.Error())
	}
	if q.Category != "" && !models.Category(q.Category).Valid() {
		return nil, appErrors.ErrValidation.WithDetail(fmt.Sprintf("unknown category %q", q.Category))
	}
	if q.Source != "" && !models.SourceName(q.Source).Valid() {
		return nil, appErrors.ErrValidation.WithDetail(fmt.Sprintf("unknown source %q", q.Source))
	}

	key := s.listKey(q)
	if page, ok := s.fromCache(ctx, key); ok {
		return page, nil
	}

	filter := q.Filter(s.loc)
	events, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	size := filter.PageSize
	if size < 1 {
		size = 20
	}
	pageNum := filter.Page
	if pageNum < 1 {
		pageNum = 1
	}
	page := &dto.EventPage{
		Events: events,
		Pagination: models.Pagination{
			Page:       pageNum,
			PageSize:   size,
			TotalItems: total,
			TotalPages: (total + size - 1) / size,
		},
	}
	s.toCache(ctx, key, page)
	return page, nil
}

// Get returns one event by ID.
func (s *EventService) Get(ctx context.Context, id string) (*models.CanonicalEvent, error) {
	ev, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.ErrNotFound.WithDetail("event " + id)
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// Stats returns aggregate upcoming-event counts.
func (s *EventService) Stats(ctx context.Context) (*models.EventStats, error) {
	stats, err := s.repo.Stats(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("event stats: %w", err)
	}
	return stats, nil
}

// InvalidateCache drops cached list pages after an ingestion cycle so fresh
// rows show up without waiting out the TTL.
func (s *EventService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	iter := s.cache.Scan(ctx, 0, "events:list:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn("cache invalidation failed", zap.Error(err))
			return
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("cache scan failed", zap.Error(err))
	}
}

func (s *EventService) listKey(q dto.ListEventsQuery) string {
	raw, _ := json.Marshal(q)
	sum := sha1.Sum(raw)
	return "events:list:" + hex.EncodeToString(sum[:])
}

func (s *EventService) fromCache(ctx context.Context, key string) (*dto.EventPage, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Debug("cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var page dto.EventPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, false
	}
	return &page, true
}

func (s *EventService) toCache(ctx context.Context, key string, page *dto.EventPage) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Debug("cache write failed", zap.Error(err))
	}
}
