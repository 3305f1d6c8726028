// Package poller provides the background loop that feeds pending jobs into
// the dispatch engine.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tolkdirekt/dispatchd/internal/apperrors"
	"github.com/tolkdirekt/dispatchd/internal/core"
	"github.com/tolkdirekt/dispatchd/internal/domain/model"
	"github.com/tolkdirekt/dispatchd/internal/service"
)

const (
	defaultInterval  = 15 * time.Second
	defaultBatchSize = 50
)

// Options holds the dependencies for creating a Poller.
type Options struct {
	Repo      core.JobRepository // Required: job repository
	Engine    *service.Engine    // Required: dispatch engine
	Interval  time.Duration      // Optional: tick interval
	BatchSize int                // Optional: pending jobs per tick
	Logger    *slog.Logger       // Optional: structured logger
}

// Poller periodically offers pending jobs. Each tick picks up a batch of
// pending jobs and runs an offer dispatch for every one. A job that fails to
// dispatch stays pending and is retried on a later tick.
type Poller struct {
	repo      core.JobRepository
	engine    *service.Engine
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

// New creates a Poller.
func New(opts Options) (*Poller, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("Engine is required")
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "dispatch_poller")
	}

	return &Poller{
		repo:      opts.Repo,
		engine:    opts.Engine,
		interval:  interval,
		batchSize: batchSize,
		logger:    logger,
	}, nil
}

// Run executes the dispatch loop until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if p.logger != nil {
		p.logger.InfoContext(ctx, "starting dispatch poller",
			"interval", p.interval,
			"batch_size", p.batchSize,
		)
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick dispatches one batch of pending jobs. Errors are logged per job so one
// bad job never blocks the rest of the batch.
func (p *Poller) tick(ctx context.Context) {
	pending, err := p.repo.ListByStatus(ctx, model.JobStatusPending, p.batchSize)
	if err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "list pending jobs", "error", err)
		}
		return
	}

	for _, job := range pending {
		if ctx.Err() != nil {
			return
		}
		_, report, dispatchErr := p.engine.DispatchOffer(ctx, job.ID)
		if dispatchErr != nil {
			// Another worker may have offered the job between the list and
			// the dispatch; that is not worth a log line.
			if apperrors.IsInvalidState(dispatchErr) {
				continue
			}
			if p.logger != nil {
				p.logger.ErrorContext(ctx, "dispatch offer", "job_id", job.ID, "error", dispatchErr)
			}
			continue
		}
		if p.logger != nil {
			p.logger.DebugContext(ctx, "job offered",
				"job_id", job.ID,
				"delivered", report.Delivered(),
				"failed", report.FailureCount(),
			)
		}
	}
}
