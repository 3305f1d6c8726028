package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tolkdirekt/dispatchd/internal/apperrors"
	"github.com/tolkdirekt/dispatchd/internal/core"
	"github.com/tolkdirekt/dispatchd/internal/data"
	"github.com/tolkdirekt/dispatchd/internal/domain/model"
	"github.com/tolkdirekt/dispatchd/internal/notify"
	"github.com/tolkdirekt/dispatchd/internal/observability/metrics"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo      core.JobRepository      // Required: job repository
	Offers    core.OfferRepository    // Required: offer set store
	Distances core.DistanceRepository // Required: distance ledger
	Notifier  notify.Gateway          // Optional: status notifications to the assigned translator
	Logger    *slog.Logger            // Optional: structured logger
}

// JobService provides business logic for booking lifecycle operations.
//
// This service manages:
// - creating and updating bookings
// - the acceptance race (exactly one winner per offered job)
// - lifecycle transitions (start, end, cancel, no-show, reopen)
// - the distance ledger and admin annotation feed.
type JobService struct {
	repo      core.JobRepository
	offers    core.OfferRepository
	distances core.DistanceRepository
	notifier  notify.Gateway
	logger    *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Offers == nil {
		return nil, errors.New("OfferRepository is required")
	}
	if opts.Distances == nil {
		return nil, errors.New("DistanceRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "job_service")
	}

	return &JobService{
		repo:      opts.Repo,
		offers:    opts.Offers,
		distances: opts.Distances,
		notifier:  opts.Notifier,
		logger:    logger,
	}, nil
}

// MustNewJobService constructs a new JobService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewJobService(opts JobServiceOptions) *JobService {
	svc, err := NewJobService(opts)
	if err != nil {
		panic(fmt.Sprintf("failed to create JobService: %v", err))
	}
	return svc
}

// Create validates and stores a new booking in the pending state.
func (s *JobService) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "create job")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job created",
			"job_id", job.ID,
			"customer_id", job.CustomerID,
			"immediate", job.Immediate,
		)
	}
	return job, nil
}

// Get returns a booking by id.
func (s *JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			return nil, apperrors.NotFoundf("job %s not found", id)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "get job")
	}
	return job, nil
}

// Update applies admin-editable attributes to a booking without changing its state.
func (s *JobService) Update(
	ctx context.Context,
	id string,
	req *model.UpdateJobRequest,
) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job, err := s.repo.UpdateDetails(ctx, id, req)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			return nil, apperrors.NotFoundf("job %s not found", id)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "update job")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job updated", "job_id", job.ID)
	}
	return job, nil
}

// Accept claims a job on behalf of a translator using a payload. It routes
// through the same acceptance primitive as AcceptByID.
func (s *JobService) Accept(
	ctx context.Context,
	translatorID string,
	req *model.AcceptRequest,
) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.accept(ctx, translatorID, req.JobID)
}

// AcceptByID claims a job on behalf of a translator by job id.
func (s *JobService) AcceptByID(ctx context.Context, translatorID, jobID string) (*model.Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, apperrors.ValidationField("job_id", "job id is required")
	}
	return s.accept(ctx, translatorID, jobID)
}

// accept is the single acceptance primitive. Eligibility is checked against
// the offer set, then the conditional update decides the race: exactly one
// caller transitions offered -> accepted, everyone else observes the conflict.
func (s *JobService) accept(ctx context.Context, translatorID, jobID string) (*model.Job, error) {
	if strings.TrimSpace(translatorID) == "" {
		return nil, apperrors.ValidationField("translator_id", "translator id is required")
	}

	eligible, err := s.offers.Contains(ctx, jobID, translatorID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "check offer eligibility")
	}
	if !eligible {
		return nil, s.rejectIneligible(ctx, jobID)
	}

	job, err := s.repo.MarkAccepted(ctx, jobID, translatorID)
	if err != nil {
		return nil, s.mapAcceptError(ctx, jobID, translatorID, err)
	}

	metrics.RecordAcceptOutcome("won")
	metrics.RecordTransition("accepted", nil)

	// The offer is settled; losers are rejected by state from here on, so a
	// failed cleanup only leaves a stale set behind.
	if _, clearErr := s.offers.Clear(ctx, jobID); clearErr != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to clear offer set after acceptance",
			"job_id", jobID, "error", clearErr)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job accepted",
			"job_id", jobID,
			"translator_id", translatorID,
		)
	}
	return job, nil
}

// rejectIneligible decides what a caller outside the offer set gets told. An
// empty membership check is ambiguous on its own: the winner clears the set
// right after claiming, so a late accept from a translator who was offered
// the job also misses it. The job's observed state disambiguates: an assigned
// job means the race was lost, a terminal or pending job is not claimable,
// and only a still-offered job without this caller in its set means the
// translator was never invited.
func (s *JobService) rejectIneligible(ctx context.Context, jobID string) error {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, data.ErrJobNotFound) {
			metrics.RecordAcceptOutcome("missing")
			return apperrors.NotFoundf("job %s not found", jobID)
		}
		return apperrors.Wrap(err, apperrors.CodeInternal, "check job state")
	}
	if job.Status.Assigned() {
		metrics.RecordAcceptOutcome("lost")
		return apperrors.AlreadyAssigned("job was already taken by another translator")
	}
	if job.Status != model.JobStatusOffered {
		metrics.RecordAcceptOutcome("invalid_state")
		return apperrors.InvalidStatef("job %s cannot be accepted in state %s", jobID, job.Status)
	}
	metrics.RecordAcceptOutcome("ineligible")
	return apperrors.NotEligible("job was not offered to this translator")
}

// mapAcceptError translates storage-level acceptance failures into the app
// taxonomy. A conflict whose observed state already carries a translator means
// the caller lost the race; any other state means the job is not claimable.
func (s *JobService) mapAcceptError(ctx context.Context, jobID, translatorID string, err error) error {
	if errors.Is(err, data.ErrJobNotFound) {
		metrics.RecordAcceptOutcome("missing")
		return apperrors.NotFoundf("job %s not found", jobID)
	}
	if sc, ok := data.AsStateConflict(err); ok {
		if sc.Current.Assigned() {
			metrics.RecordAcceptOutcome("lost")
			if s.logger != nil {
				s.logger.InfoContext(ctx, "acceptance lost to another translator",
					"job_id", jobID,
					"translator_id", translatorID,
					"current_status", sc.Current,
				)
			}
			return apperrors.AlreadyAssigned("job was already taken by another translator")
		}
		metrics.RecordAcceptOutcome("invalid_state")
		return apperrors.InvalidStatef("job %s cannot be accepted in state %s", jobID, sc.Current)
	}
	metrics.RecordTransition("accepted", err)
	return apperrors.Wrap(err, apperrors.CodeInternal, "accept job")
}

// Start marks an accepted job as in progress. Only the assigned translator may start it.
func (s *JobService) Start(ctx context.Context, translatorID, jobID string) (*model.Job, error) {
	if err := s.requireAssignedTranslator(ctx, translatorID, jobID); err != nil {
		return nil, err
	}

	job, err := s.repo.MarkInProgress(ctx, jobID)
	metrics.RecordTransition("in_progress", err)
	if err != nil {
		return nil, s.mapTransitionError(jobID, "started", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job started", "job_id", jobID, "translator_id", translatorID)
	}
	return job, nil
}

// End marks an in-progress job as ended and records the session outcome.
// Only the assigned translator may end it.
func (s *JobService) End(
	ctx context.Context,
	translatorID, jobID string,
	outcome model.EndOutcome,
) (*model.Job, error) {
	if err := s.requireAssignedTranslator(ctx, translatorID, jobID); err != nil {
		return nil, err
	}

	job, err := s.repo.MarkEnded(ctx, jobID, outcome)
	metrics.RecordTransition("ended", err)
	if err != nil {
		return nil, s.mapTransitionError(jobID, "ended", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job ended",
			"job_id", jobID,
			"translator_id", translatorID,
			"session_time", outcome.SessionTime,
		)
	}
	return job, nil
}

// Cancel withdraws a booking. The offer set is cleared so nobody can claim a
// cancelled job, and the assigned translator, if any, is notified.
func (s *JobService) Cancel(ctx context.Context, jobID, reason string) (*model.Job, error) {
	job, err := s.repo.MarkCancelled(ctx, jobID, reason)
	metrics.RecordTransition("cancelled", err)
	if err != nil {
		return nil, s.mapTransitionError(jobID, "cancelled", err)
	}

	if _, clearErr := s.offers.Clear(ctx, jobID); clearErr != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to clear offer set after cancellation",
			"job_id", jobID, "error", clearErr)
	}

	s.notifyStatus(ctx, job, cancellationBody(reason))

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job cancelled", "job_id", jobID, "reason", reason)
	}
	return job, nil
}

// CustomerNoShow marks a job where the customer never called in. The assigned
// translator is notified.
func (s *JobService) CustomerNoShow(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.repo.MarkNoShow(ctx, jobID)
	metrics.RecordTransition("no_show", err)
	if err != nil {
		return nil, s.mapTransitionError(jobID, "marked as no-show", err)
	}

	s.notifyStatus(ctx, job, "The customer did not attend this session.")

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job marked as customer no-show", "job_id", jobID)
	}
	return job, nil
}

// Reopen returns a cancelled or no-show job to the pending state, clearing the
// previous assignment so it can be dispatched again.
func (s *JobService) Reopen(ctx context.Context, jobID string) (*model.Job, error) {
	job, err := s.repo.Reopen(ctx, jobID)
	metrics.RecordTransition("pending", err)
	if err != nil {
		return nil, s.mapTransitionError(jobID, "reopened", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job reopened", "job_id", jobID)
	}
	return job, nil
}

// ApplyAdminOverride applies a distance/annotation feed entry against a job.
// Distance fields go to the distance ledger and annotation fields to the job
// row; the two writes are independent and each is idempotent per job.
func (s *JobService) ApplyAdminOverride(
	ctx context.Context,
	jobID string,
	override *model.AdminOverride,
) error {
	if override == nil {
		return apperrors.Validation("override is required")
	}
	if err := override.Validate(); err != nil {
		return err
	}

	// Resolve the job first so unknown ids fail before any write.
	if _, err := s.Get(ctx, jobID); err != nil {
		return err
	}

	if override.HasDistanceFields() {
		byAdmin := override.ByAdmin != nil && *override.ByAdmin
		err := s.distances.Upsert(ctx, core.UpsertDistanceParams{
			JobID:             jobID,
			DistanceKm:        override.Distance,
			TravelTimeMinutes: override.TravelTimeMinutes,
			ByAdmin:           byAdmin,
		})
		if err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternal, "upsert distance record")
		}
	}

	if override.HasAdminFields() {
		if err := s.repo.ApplyAdminMeta(ctx, jobID, override); err != nil {
			if errors.Is(err, data.ErrJobNotFound) {
				return apperrors.NotFoundf("job %s not found", jobID)
			}
			return apperrors.Wrap(err, apperrors.CodeInternal, "apply admin annotations")
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "admin override applied",
			"job_id", jobID,
			"distance_fields", override.HasDistanceFields(),
			"admin_fields", override.HasAdminFields(),
		)
	}
	return nil
}

// Distance returns the travel record for a job, if any.
func (s *JobService) Distance(ctx context.Context, jobID string) (*model.DistanceRecord, error) {
	rec, err := s.distances.GetByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, data.ErrDistanceNotFound) {
			return nil, apperrors.NotFoundf("no distance record for job %s", jobID)
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "get distance record")
	}
	return rec, nil
}

// PotentialJobs returns the offered jobs whose offer set includes this
// translator, i.e. everything they could claim right now.
func (s *JobService) PotentialJobs(
	ctx context.Context,
	translatorID string,
	limit int,
) ([]*model.Job, error) {
	if strings.TrimSpace(translatorID) == "" {
		return nil, apperrors.ValidationField("translator_id", "translator id is required")
	}

	offered, err := s.repo.ListByStatus(ctx, model.JobStatusOffered, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "list offered jobs")
	}

	potential := make([]*model.Job, 0, len(offered))
	for _, job := range offered {
		ok, containsErr := s.offers.Contains(ctx, job.ID, translatorID)
		if containsErr != nil {
			return nil, apperrors.Wrap(containsErr, apperrors.CodeInternal, "check offer membership")
		}
		if ok {
			potential = append(potential, job)
		}
	}
	return potential, nil
}

// ListForCustomer returns the bookings made by a customer, newest first.
func (s *JobService) ListForCustomer(
	ctx context.Context,
	customerID string,
	limit int,
) ([]*model.Job, error) {
	jobs, err := s.repo.ListForCustomer(ctx, customerID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "list customer jobs")
	}
	return jobs, nil
}

// ListForTranslator returns the jobs assigned to a translator, newest first.
func (s *JobService) ListForTranslator(
	ctx context.Context,
	translatorID string,
	limit int,
) ([]*model.Job, error) {
	jobs, err := s.repo.ListForTranslator(ctx, translatorID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "list translator jobs")
	}
	return jobs, nil
}

// requireAssignedTranslator verifies the caller owns the job before a
// translator-driven transition.
func (s *JobService) requireAssignedTranslator(ctx context.Context, translatorID, jobID string) error {
	if strings.TrimSpace(translatorID) == "" {
		return apperrors.ValidationField("translator_id", "translator id is required")
	}

	job, err := s.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if job.TranslatorID == nil || *job.TranslatorID != translatorID {
		return apperrors.NotEligible("job is not assigned to this translator")
	}
	return nil
}

// mapTransitionError converts data-layer transition failures into the app taxonomy.
func (s *JobService) mapTransitionError(jobID, verb string, err error) error {
	if errors.Is(err, data.ErrJobNotFound) {
		return apperrors.NotFoundf("job %s not found", jobID)
	}
	if sc, ok := data.AsStateConflict(err); ok {
		return apperrors.InvalidStatef("job %s cannot be %s in state %s", jobID, verb, sc.Current)
	}
	return apperrors.Wrapf(err, apperrors.CodeInternal, "job %s could not be %s", jobID, verb)
}

// notifyStatus sends a status message to the job's assigned translator, when
// there is one and a notifier is configured. Delivery failure is logged, never
// returned: the state change has already committed.
func (s *JobService) notifyStatus(ctx context.Context, job *model.Job, body string) {
	if s.notifier == nil || job == nil || job.TranslatorID == nil {
		return
	}

	msg := notify.Message{
		Kind:            notify.KindStatus,
		JobID:           job.ID,
		FromLanguage:    job.FromLanguage,
		ToLanguage:      job.ToLanguage,
		Immediate:       job.Immediate,
		DueAt:           job.DueAt,
		DurationMinutes: job.DurationMinutes,
		Body:            body,
	}
	if err := s.notifier.Send(ctx, *job.TranslatorID, msg); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to notify assigned translator",
			"job_id", job.ID,
			"translator_id", *job.TranslatorID,
			"error", err,
		)
	}
}

func cancellationBody(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return "Your booking has been cancelled."
	}
	return "Your booking has been cancelled: " + reason
}
