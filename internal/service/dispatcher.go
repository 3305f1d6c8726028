package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tolkdirekt/dispatchd/internal/notify"
	"github.com/tolkdirekt/dispatchd/internal/observability/metrics"
)

const (
	defaultDispatchConcurrency = 8
	defaultPerSendTimeout      = 5 * time.Second
)

// DispatcherConfig tunes the fan-out behaviour.
type DispatcherConfig struct {
	// Concurrency bounds the number of in-flight deliveries per channel.
	Concurrency int
	// PerSendTimeout caps how long a single delivery may take.
	PerSendTimeout time.Duration
}

// DispatcherOptions groups dependencies for Dispatcher.
type DispatcherOptions struct {
	Push   notify.Gateway   // Optional: push channel
	SMS    notify.Gateway   // Optional: sms channel
	Config DispatcherConfig // Optional: fan-out tuning
	Logger *slog.Logger     // Optional: structured logger
}

// Dispatcher fans a message out to a set of translators over the configured
// channels and aggregates the per-recipient outcomes into a Report. One slow
// or dead recipient never blocks the rest, and a whole-channel outage is
// reported as failures, not as an error from the dispatch call.
type Dispatcher struct {
	push           notify.Gateway
	sms            notify.Gateway
	concurrency    int
	perSendTimeout time.Duration
	logger         *slog.Logger
}

// NewDispatcher constructs a Dispatcher. At least one channel gateway is required.
func NewDispatcher(opts DispatcherOptions) (*Dispatcher, error) {
	if opts.Push == nil && opts.SMS == nil {
		return nil, errors.New("at least one notification gateway is required")
	}

	concurrency := opts.Config.Concurrency
	if concurrency <= 0 {
		concurrency = defaultDispatchConcurrency
	}
	perSendTimeout := opts.Config.PerSendTimeout
	if perSendTimeout <= 0 {
		perSendTimeout = defaultPerSendTimeout
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "dispatcher")
	}

	return &Dispatcher{
		push:           opts.Push,
		sms:            opts.SMS,
		concurrency:    concurrency,
		perSendTimeout: perSendTimeout,
		logger:         logger,
	}, nil
}

// MustNewDispatcher constructs a Dispatcher and panics on error.
func MustNewDispatcher(opts DispatcherOptions) *Dispatcher {
	d, err := NewDispatcher(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create Dispatcher: %v", err))
	}
	return d
}

// DispatchPush sends the message to every translator over push only.
func (d *Dispatcher) DispatchPush(
	ctx context.Context,
	translatorIDs []string,
	msg notify.Message,
) *notify.Report {
	report := notify.NewReport(time.Now().UTC())
	d.fanOut(ctx, report, notify.ChannelPush, d.push, translatorIDs, msg)
	d.logOutcome(ctx, msg, report)
	return report
}

// DispatchSMS sends the message to every translator over sms only.
func (d *Dispatcher) DispatchSMS(
	ctx context.Context,
	translatorIDs []string,
	msg notify.Message,
) *notify.Report {
	report := notify.NewReport(time.Now().UTC())
	d.fanOut(ctx, report, notify.ChannelSMS, d.sms, translatorIDs, msg)
	d.logOutcome(ctx, msg, report)
	return report
}

// Dispatch sends the message to every translator over all configured channels.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	translatorIDs []string,
	msg notify.Message,
) *notify.Report {
	report := notify.NewReport(time.Now().UTC())
	d.fanOut(ctx, report, notify.ChannelPush, d.push, translatorIDs, msg)
	d.fanOut(ctx, report, notify.ChannelSMS, d.sms, translatorIDs, msg)
	d.logOutcome(ctx, msg, report)
	return report
}

// fanOut delivers to each recipient concurrently with a per-send timeout and
// records every outcome on the shared report.
func (d *Dispatcher) fanOut(
	ctx context.Context,
	report *notify.Report,
	channel notify.Channel,
	gateway notify.Gateway,
	translatorIDs []string,
	msg notify.Message,
) {
	if gateway == nil || len(translatorIDs) == 0 {
		return
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for _, translatorID := range translatorIDs {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(gctx, d.perSendTimeout)
			defer cancel()

			err := gateway.Send(sendCtx, translatorID, msg)
			metrics.RecordDelivery(string(channel), err)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.RecordFailure(translatorID, channel, err)
			} else {
				report.RecordSuccess(channel)
			}
			// Failures are data on the report, never group errors: one dead
			// recipient must not cancel the siblings.
			return nil
		})
	}

	// Workers never return errors, so Wait only synchronizes.
	_ = g.Wait()
}

func (d *Dispatcher) logOutcome(ctx context.Context, msg notify.Message, report *notify.Report) {
	if d.logger == nil {
		return
	}
	d.logger.InfoContext(ctx, "dispatch completed",
		"job_id", msg.JobID,
		"kind", msg.Kind,
		"delivered", report.Delivered(),
		"failed", report.FailureCount(),
	)
}
