// Package schedule drives recurring ingestion and pruning via cron.
package schedule

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/civicsignal/waltham-events/pkg/config"
)

// Jobs is the pruning work the scheduler triggers on its weekly entry. The
// ingest service satisfies it.
type Jobs interface {
	Prune(ctx context.Context) (int64, error)
}

// Runner wraps a cron scheduler with the harvester's standing jobs.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

// New builds a runner whose jobs run in the municipal timezone; a 6 AM entry
// fires at 6 AM local, not UTC.
func New(logger *zap.Logger, baseCtx context.Context, loc *time.Location) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Runner{
		cron:    cron.New(cron.WithLocation(loc)),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Register wires the configured ingest and prune entries. Each ingest spec
// gets its own cron entry.
func (r *Runner) Register(cfg config.ScheduleConfig, ingest func(context.Context) error, jobs Jobs) error {
	for _, spec := range cfg.IngestSpecs {
		spec := spec
		_, err := r.cron.AddFunc(spec, func() {
			r.logger.Info("scheduled ingestion firing", zap.String("spec", spec))
			if err := ingest(r.baseCtx); err != nil {
				r.logger.Warn("scheduled ingestion failed", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
	}

	if cfg.PruneSpec != "" {
		_, err := r.cron.AddFunc(cfg.PruneSpec, func() {
			removed, err := jobs.Prune(r.baseCtx)
			if err != nil {
				r.logger.Warn("scheduled prune failed", zap.Error(err))
				return
			}
			r.logger.Info("scheduled prune finished", zap.Int64("removed", removed))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Start begins firing entries.
func (r *Runner) Start() {
	r.logger.Info("cron started", zap.Int("entries", len(r.cron.Entries())))
	r.cron.Start()
}

// Stop halts scheduling and waits for in-flight jobs.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron stopped")
}
