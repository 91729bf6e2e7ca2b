package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/civicsignal/waltham-events/internal/models"
	appErrors "github.com/civicsignal/waltham-events/pkg/errors"
)

type cycleRunner interface {
	RunCycle(ctx context.Context) (*models.RunSummary, error)
	PruneStale(ctx context.Context) (int64, error)
}

type cacheInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// IngestService owns the lifecycle of ingestion cycles: scheduled runs and
// manual triggers funnel through it, and at most one cycle runs at a time.
type IngestService struct {
	runner       cycleRunner
	invalidator  cacheInvalidator
	cycleTimeout time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	running bool
	last    *models.RunSummary
}

// NewIngestService builds the ingestion front door.
func NewIngestService(runner cycleRunner, invalidator cacheInvalidator, cycleTimeout time.Duration, logger *zap.Logger) *IngestService {
	if cycleTimeout <= 0 {
		cycleTimeout = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		runner:       runner,
		invalidator:  invalidator,
		cycleTimeout: cycleTimeout,
		logger:       logger,
	}
}

// TriggerAsync starts a cycle in the background and returns immediately.
// A cycle already in flight is not joined or queued; the caller gets a
// conflict instead.
func (s *IngestService) TriggerAsync() (time.Time, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return time.Time{}, appErrors.ErrConflict.WithDetail("ingestion cycle already running")
	}
	s.running = true
	s.mu.Unlock()

	startedAt := time.Now()
	go func() {
		defer func() {
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}()
		// Detached from the request context on purpose: the cycle must
		// outlive the HTTP request that triggered it.
		ctx, cancel := context.WithTimeout(context.Background(), s.cycleTimeout)
		defer cancel()
		s.runLocked(ctx)
	}()
	return startedAt, nil
}

// Run executes a cycle synchronously. The scheduler uses this entry point.
func (s *IngestService) Run(ctx context.Context) (*models.RunSummary, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Info("skipping cycle, previous one still running")
		return nil, appErrors.ErrConflict.WithDetail("ingestion cycle already running")
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()
	return s.runLocked(ctx), nil
}

func (s *IngestService) runLocked(ctx context.Context) *models.RunSummary {
	summary, err := s.runner.RunCycle(ctx)
	if err != nil {
		s.logger.Warn("cycle ended early", zap.Error(err))
	}
	if summary != nil {
		s.mu.Lock()
		s.last = summary
		s.mu.Unlock()
		if s.invalidator != nil && summary.TotalCreated() > 0 {
			s.invalidator.InvalidateCache(ctx)
		}
	}
	return summary
}

// Prune removes events whose date has passed.
func (s *IngestService) Prune(ctx context.Context) (int64, error) {
	return s.runner.PruneStale(ctx)
}

// LastSummary exposes the most recent cycle result, or nil before the first
// cycle finishes.
func (s *IngestService) LastSummary() *models.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Running reports whether a cycle is currently in flight.
func (s *IngestService) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
