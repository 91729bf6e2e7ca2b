package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/civicsignal/waltham-events/internal/classify"
	"github.com/civicsignal/waltham-events/internal/models"
	"github.com/civicsignal/waltham-events/internal/normalize"
	"github.com/civicsignal/waltham-events/internal/source"
)

// Pruner removes rows whose event date has passed.
type Pruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder receives per-source cycle counters. The metrics service provides
// the Prometheus implementation; a nil recorder disables recording.
type Recorder interface {
	ObserveSource(report *models.SourceReport)
	ObserveCycle(summary *models.RunSummary)
}

// Options bound a cycle's parallelism and per-source patience.
type Options struct {
	Concurrency   int
	SourceTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.SourceTimeout <= 0 {
		o.SourceTimeout = 2 * time.Minute
	}
	return o
}

// Orchestrator runs full ingestion cycles: every registered source is
// fetched concurrently, candidates flow through normalization and
// classification, and survivors are reconciled against the store. A failing
// source never stops the others.
type Orchestrator struct {
	sources    []source.Source
	normalizer *normalize.Normalizer
	deduper    *Deduper
	pruner     Pruner
	recorder   Recorder
	opts       Options
	log        *zap.Logger
	now        func() time.Time
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(sources []source.Source, n *normalize.Normalizer, d *Deduper, p Pruner, rec Recorder, opts Options, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		sources:    sources,
		normalizer: n,
		deduper:    d,
		pruner:     p,
		recorder:   rec,
		opts:       opts.withDefaults(),
		log:        log,
		now:        time.Now,
	}
}

// RunCycle executes one ingestion cycle and returns its summary. The error
// return covers only a cancelled context; per-source failures are reported
// inside the summary.
func (o *Orchestrator) RunCycle(ctx context.Context) (*models.RunSummary, error) {
	started := o.now()
	names := make([]models.SourceName, len(o.sources))
	for i, s := range o.sources {
		names[i] = s.Name()
	}
	summary := models.NewRunSummary(names, started)

	o.log.Info("ingestion cycle starting",
		zap.Int("sources", len(o.sources)),
		zap.Int("concurrency", o.opts.Concurrency))

	sem := make(chan struct{}, o.opts.Concurrency)
	var wg sync.WaitGroup
	for _, src := range o.sources {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			summary.Sources[src.Name()].Error = ctx.Err().Error()
			continue
		}
		wg.Add(1)
		go func(src source.Source) {
			defer wg.Done()
			defer func() { <-sem }()
			o.runSource(ctx, src, summary.Sources[src.Name()])
		}(src)
	}
	wg.Wait()

	summary.FinishedAt = o.now()
	if o.recorder != nil {
		o.recorder.ObserveCycle(summary)
	}
	o.log.Info("ingestion cycle finished",
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
		zap.Int("created", summary.TotalCreated()),
		zap.Int("source_errors", summary.TotalErrors()))

	return summary, ctx.Err()
}

// runSource drives one adapter end to end under its own timeout. A panic in
// adapter code is contained here so one misbehaving parser cannot take down
// the cycle.
func (o *Orchestrator) runSource(ctx context.Context, src source.Source, report *models.SourceReport) {
	started := o.now()
	log := o.log.With(zap.String("source", string(src.Name())))

	defer func() {
		if r := recover(); r != nil {
			report.Error = fmt.Sprintf("panic: %v", r)
			log.Error("source panicked", zap.Any("panic", r))
		}
		report.Duration = o.now().Sub(started)
		if o.recorder != nil {
			o.recorder.ObserveSource(report)
		}
	}()

	srcCtx, cancel := context.WithTimeout(ctx, o.opts.SourceTimeout)
	defer cancel()

	candidates, err := src.Fetch(srcCtx)
	if err != nil {
		report.Error = err.Error()
		log.Warn("fetch failed", zap.Error(err), zap.Int("partial", len(candidates)))
	}
	report.Fetched = len(candidates)

	now := o.now()
	for _, c := range candidates {
		ev, rej := o.normalizer.Normalize(c, src.Name(), now)
		if rej != nil {
			report.RecordRejection(string(rej.Reason))
			log.Debug("candidate rejected",
				zap.String("reason", string(rej.Reason)),
				zap.String("detail", rej.Detail))
			continue
		}
		report.Normalized++

		ev.Categories = classify.Classify(ev.Name, ev.Description, c.CategoryHint)

		outcome, err := o.deduper.Upsert(srcCtx, ev)
		if err != nil {
			report.StoreErrors++
			log.Warn("upsert failed", zap.String("event", ev.Name), zap.Error(err))
			if srcCtx.Err() != nil {
				// Deadline hit mid-batch: the source itself is errored, not
				// just the records left behind.
				report.Error = srcCtx.Err().Error()
				break
			}
			continue
		}
		report.RecordOutcome(outcome)
	}

	log.Info("source done",
		zap.Int("fetched", report.Fetched),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("rejected", report.Rejected))
}

// PruneStale deletes events whose date is already behind.
func (o *Orchestrator) PruneStale(ctx context.Context) (int64, error) {
	removed, err := o.pruner.DeleteBefore(ctx, o.now())
	if err != nil {
		return 0, fmt.Errorf("prune stale events: %w", err)
	}
	o.log.Info("stale events pruned", zap.Int64("removed", removed))
	return removed, nil
}
