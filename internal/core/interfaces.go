// Package core holds the port interfaces between the service layer and its
// collaborators (storage, offer store, translator matching). Services depend
// on these contracts, never on concrete implementations.
package core

import (
	"context"

	"github.com/tolkdirekt/dispatchd/internal/domain/model"
)

// JobRepository is the authority for job state. Every transition method is a
// single conditional update keyed by job id: it succeeds only when the job is
// in a legal predecessor state, and returns a state-conflict error (carrying
// the observed status) otherwise. Concurrent callers on the same job observe
// a strict serialization; different jobs never contend.
type JobRepository interface {
	Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)

	// MarkOffered transitions pending -> offered.
	MarkOffered(ctx context.Context, id string) (*model.Job, error)
	// MarkAccepted transitions offered -> accepted and assigns the translator.
	// This conditional update is the acceptance race lock: the first commit
	// wins and every later attempt observes the conflict.
	MarkAccepted(ctx context.Context, id, translatorID string) (*model.Job, error)
	// MarkInProgress transitions accepted -> in_progress.
	MarkInProgress(ctx context.Context, id string) (*model.Job, error)
	// MarkEnded transitions in_progress -> ended and records the outcome.
	MarkEnded(ctx context.Context, id string, outcome model.EndOutcome) (*model.Job, error)
	// MarkCancelled transitions any non-terminal state -> cancelled.
	MarkCancelled(ctx context.Context, id, reason string) (*model.Job, error)
	// MarkNoShow transitions accepted|in_progress -> no_show.
	MarkNoShow(ctx context.Context, id string) (*model.Job, error)
	// Reopen transitions cancelled|no_show -> pending and clears the translator.
	Reopen(ctx context.Context, id string) (*model.Job, error)

	// UpdateDetails applies admin-editable attributes without a state transition.
	UpdateDetails(ctx context.Context, id string, req *model.UpdateJobRequest) (*model.Job, error)
	// ApplyAdminMeta upserts session-time/flag/comment annotations. Nil fields
	// are left unchanged.
	ApplyAdminMeta(ctx context.Context, id string, meta *model.AdminOverride) error

	ListByStatus(ctx context.Context, status model.JobStatus, limit int) ([]*model.Job, error)
	ListForCustomer(ctx context.Context, customerID string, limit int) ([]*model.Job, error)
	ListForTranslator(ctx context.Context, translatorID string, limit int) ([]*model.Job, error)
}

// OfferRepository stores the transient offer set per job.
type OfferRepository interface {
	// Replace atomically swaps the offer set for a job. An empty candidate
	// list clears the set.
	Replace(ctx context.Context, jobID string, translatorIDs []string) error
	Contains(ctx context.Context, jobID, translatorID string) (bool, error)
	Members(ctx context.Context, jobID string) ([]string, error)
	Clear(ctx context.Context, jobID string) (bool, error)
}

// DistanceRepository is the ledger for travel metadata, independent of job state.
type DistanceRepository interface {
	// Upsert is idempotent per job id; absent fields mean "no change".
	Upsert(ctx context.Context, params UpsertDistanceParams) error
	GetByJobID(ctx context.Context, jobID string) (*model.DistanceRecord, error)
}

// UpsertDistanceParams groups parameters for DistanceRepository.Upsert.
type UpsertDistanceParams struct {
	JobID             string
	DistanceKm        *float64
	TravelTimeMinutes *int
	ByAdmin           bool
}

// TranslatorDirectory is the external matching/search collaborator providing
// candidate pools for a job (language pair, level, availability).
type TranslatorDirectory interface {
	CandidatesForJob(ctx context.Context, job *model.Job) ([]string, error)
}
