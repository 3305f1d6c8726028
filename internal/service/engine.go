package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tolkdirekt/dispatchd/internal/apperrors"
	"github.com/tolkdirekt/dispatchd/internal/core"
	"github.com/tolkdirekt/dispatchd/internal/data"
	"github.com/tolkdirekt/dispatchd/internal/domain/model"
	"github.com/tolkdirekt/dispatchd/internal/notify"
	"github.com/tolkdirekt/dispatchd/internal/observability/metrics"
)

// EngineOptions groups dependencies for Engine.
type EngineOptions struct {
	Repo       core.JobRepository       // Required: job repository
	Offers     core.OfferRepository     // Required: offer set store
	Directory  core.TranslatorDirectory // Required: candidate matching
	Dispatcher *Dispatcher              // Required: notification fan-out
	Logger     *slog.Logger             // Optional: structured logger
}

// Engine orchestrates offer dispatch: it moves a pending job to offered,
// resolves the candidate pool, installs the offer set, and fans the offer
// out to every candidate. Notification failures are reported, never fatal;
// once the offer set is installed the job is claimable regardless of how
// many messages landed.
type Engine struct {
	repo       core.JobRepository
	offers     core.OfferRepository
	directory  core.TranslatorDirectory
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Offers == nil {
		return nil, errors.New("OfferRepository is required")
	}
	if opts.Directory == nil {
		return nil, errors.New("TranslatorDirectory is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("Dispatcher is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "dispatch_engine")
	}

	return &Engine{
		repo:       opts.Repo,
		offers:     opts.Offers,
		directory:  opts.Directory,
		dispatcher: opts.Dispatcher,
		logger:     logger,
	}, nil
}

// MustNewEngine constructs an Engine and panics on error.
func MustNewEngine(opts EngineOptions) *Engine {
	e, err := NewEngine(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create Engine: %v", err))
	}
	return e
}

// DispatchOffer moves a pending job to offered and notifies every eligible
// candidate. It returns the updated job together with the delivery report.
// A job with no candidates stays offered with an empty offer set; nobody can
// claim it until a redispatch finds candidates.
func (e *Engine) DispatchOffer(ctx context.Context, jobID string) (*model.Job, *notify.Report, error) {
	job, err := e.repo.MarkOffered(ctx, jobID)
	metrics.RecordTransition("offered", err)
	if err != nil {
		return nil, nil, e.mapTransitionError(jobID, "offered", err)
	}

	candidates, err := e.directory.CandidatesForJob(ctx, job)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeInternal, "resolve candidates")
	}

	if err := e.offers.Replace(ctx, job.ID, candidates); err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeInternal, "install offer set")
	}

	metrics.OffersDispatchedTotal.Inc()

	if len(candidates) == 0 {
		if e.logger != nil {
			e.logger.WarnContext(ctx, "no candidates for job", "job_id", job.ID)
		}
		return job, notify.NewReport(job.UpdatedAt), nil
	}

	report := e.dispatcher.Dispatch(ctx, candidates, offerMessage(job))

	if e.logger != nil {
		e.logger.InfoContext(ctx, "offer dispatched",
			"job_id", job.ID,
			"candidates", len(candidates),
			"delivered", report.Delivered(),
			"failed", report.FailureCount(),
		)
	}
	return job, report, nil
}

// Redispatch refreshes the candidate pool of an already-offered job and
// notifies any translators who were not in the previous offer set.
func (e *Engine) Redispatch(ctx context.Context, jobID string) (*notify.Report, error) {
	job, err := e.requireOffered(ctx, jobID)
	if err != nil {
		return nil, err
	}

	members, err := e.offers.Members(ctx, job.ID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "read offer set")
	}
	previous := model.OfferSet{JobID: job.ID, Translators: members}

	candidates, err := e.directory.CandidatesForJob(ctx, job)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "resolve candidates")
	}

	if err := e.offers.Replace(ctx, job.ID, candidates); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "install offer set")
	}

	fresh := newMembers(previous, candidates)
	report := e.dispatcher.Dispatch(ctx, fresh, offerMessage(job))

	if e.logger != nil {
		e.logger.InfoContext(ctx, "offer redispatched",
			"job_id", job.ID,
			"candidates", len(candidates),
			"newly_notified", len(fresh),
		)
	}
	return report, nil
}

// ReopenAndRedispatch returns a cancelled or no-show job to circulation and
// immediately runs a fresh offer dispatch on it.
func (e *Engine) ReopenAndRedispatch(
	ctx context.Context,
	jobID string,
) (*model.Job, *notify.Report, error) {
	if _, err := e.repo.Reopen(ctx, jobID); err != nil {
		metrics.RecordTransition("pending", err)
		return nil, nil, e.mapTransitionError(jobID, "reopened", err)
	}
	metrics.RecordTransition("pending", nil)
	return e.DispatchOffer(ctx, jobID)
}

// ResendOffer re-notifies the current offer set over push. The set itself is
// untouched; this is a nudge, not a re-dispatch.
func (e *Engine) ResendOffer(ctx context.Context, jobID string) (*notify.Report, error) {
	job, members, err := e.offeredMembers(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return e.dispatcher.DispatchPush(ctx, members, offerMessage(job)), nil
}

// ResendSMS re-notifies the current offer set over sms.
func (e *Engine) ResendSMS(ctx context.Context, jobID string) (*notify.Report, error) {
	job, members, err := e.offeredMembers(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return e.dispatcher.DispatchSMS(ctx, members, offerMessage(job)), nil
}

func (e *Engine) offeredMembers(ctx context.Context, jobID string) (*model.Job, []string, error) {
	job, err := e.requireOffered(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}

	members, err := e.offers.Members(ctx, job.ID)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.CodeInternal, "read offer set")
	}
	if len(members) == 0 {
		return nil, nil, apperrors.InvalidStatef("job %s has an empty offer set", jobID)
	}
	return job, members, nil
}

func (e *Engine) requireOffered(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := e.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			return nil, apperrors.NotFoundf("job %s not found", jobID)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "get job")
	}
	if job.Status != model.JobStatusOffered {
		return nil, apperrors.InvalidStatef("job %s is %s, not offered", jobID, job.Status)
	}
	return job, nil
}

func (e *Engine) mapTransitionError(jobID, verb string, err error) error {
	if errors.Is(err, data.ErrJobNotFound) {
		return apperrors.NotFoundf("job %s not found", jobID)
	}
	if sc, ok := data.AsStateConflict(err); ok {
		return apperrors.InvalidStatef("job %s cannot be %s in state %s", jobID, verb, sc.Current)
	}
	return apperrors.Wrapf(err, apperrors.CodeInternal, "job %s could not be %s", jobID, verb)
}

// newMembers returns the candidates not present in the previous offer set.
func newMembers(previous model.OfferSet, candidates []string) []string {
	fresh := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if !previous.Contains(id) {
			fresh = append(fresh, id)
		}
	}
	return fresh
}

// offerMessage builds the canonical offer payload for a job.
func offerMessage(job *model.Job) notify.Message {
	return notify.Message{
		Kind:            notify.KindOffer,
		JobID:           job.ID,
		FromLanguage:    job.FromLanguage,
		ToLanguage:      job.ToLanguage,
		Immediate:       job.Immediate,
		DueAt:           job.DueAt,
		DurationMinutes: job.DurationMinutes,
	}
}
