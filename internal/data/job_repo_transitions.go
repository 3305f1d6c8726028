package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tolkdirekt/dispatchd/internal/domain/model"
)

// Transition methods. Each one is a single conditional UPDATE guarded by the
// legal predecessor states. Zero rows updated means the job either does not
// exist or sits in another state; the follow-up read tells the two apart and
// surfaces the observed status in a StateConflictError.

// MarkOffered transitions pending -> offered.
func (r *JobRepo) MarkOffered(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `
	  UPDATE jobs
	  SET status = 'offered', updated_at = $2
	  WHERE id = $1 AND status = 'pending'
	  RETURNING `+jobColumns,
		id, r.timeProvider.Now().UTC(),
	)
	return r.resolveTransition(ctx, id, row, "mark offered")
}

// MarkAccepted transitions offered -> accepted and assigns the translator.
// The WHERE clause is the whole acceptance race: exactly one concurrent
// caller observes a row, every other caller falls through to the conflict
// path and learns the state that beat them.
func (r *JobRepo) MarkAccepted(ctx context.Context, id, translatorID string) (*model.Job, error) {
	if translatorID == "" {
		return nil, errors.New("translator id is required")
	}

	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
	  UPDATE jobs
	  SET status = 'accepted', translator_id = $2, accepted_at = $3, updated_at = $3
	  WHERE id = $1 AND status = 'offered'
	  RETURNING `+jobColumns,
		id, translatorID, now,
	)
	return r.resolveTransition(ctx, id, row, "mark accepted")
}

// MarkInProgress transitions accepted -> in_progress.
func (r *JobRepo) MarkInProgress(ctx context.Context, id string) (*model.Job, error) {
	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
	  UPDATE jobs
	  SET status = 'in_progress', started_at = $2, updated_at = $2
	  WHERE id = $1 AND status = 'accepted'
	  RETURNING `+jobColumns,
		id, now,
	)
	return r.resolveTransition(ctx, id, row, "mark in progress")
}

// MarkEnded transitions in_progress -> ended and records the session outcome.
func (r *JobRepo) MarkEnded(
	ctx context.Context,
	id string,
	outcome model.EndOutcome,
) (*model.Job, error) {
	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
	  UPDATE jobs
	  SET status = 'ended',
	      ended_at = $2,
	      updated_at = $2,
	      session_time = CASE WHEN $3 <> '' THEN $3 ELSE session_time END,
	      admin_comments = CASE WHEN $4 <> '' THEN $4 ELSE admin_comments END
	  WHERE id = $1 AND status = 'in_progress'
	  RETURNING `+jobColumns,
		id, now, outcome.SessionTime, outcome.Comments,
	)
	return r.resolveTransition(ctx, id, row, "mark ended")
}

// MarkCancelled transitions any non-terminal state -> cancelled.
func (r *JobRepo) MarkCancelled(ctx context.Context, id, reason string) (*model.Job, error) {
	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
	  UPDATE jobs
	  SET status = 'cancelled', cancel_reason = NULLIF($2, ''), updated_at = $3
	  WHERE id = $1 AND status IN ('pending', 'offered', 'accepted', 'in_progress')
	  RETURNING `+jobColumns,
		id, reason, now,
	)
	return r.resolveTransition(ctx, id, row, "mark cancelled")
}

// MarkNoShow transitions accepted|in_progress -> no_show.
func (r *JobRepo) MarkNoShow(ctx context.Context, id string) (*model.Job, error) {
	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
	  UPDATE jobs
	  SET status = 'no_show', ended_at = $2, updated_at = $2
	  WHERE id = $1 AND status IN ('accepted', 'in_progress')
	  RETURNING `+jobColumns,
		id, now,
	)
	return r.resolveTransition(ctx, id, row, "mark no show")
}

// Reopen transitions cancelled|no_show -> pending and clears the assignment
// so the job can be dispatched again.
func (r *JobRepo) Reopen(ctx context.Context, id string) (*model.Job, error) {
	now := r.timeProvider.Now().UTC()
	row := r.DB.QueryRowContext(ctx, `
	  UPDATE jobs
	  SET status = 'pending',
	      translator_id = NULL,
	      accepted_at = NULL,
	      started_at = NULL,
	      ended_at = NULL,
	      cancel_reason = NULL,
	      updated_at = $2
	  WHERE id = $1 AND status IN ('cancelled', 'no_show')
	  RETURNING `+jobColumns,
		id, now,
	)
	return r.resolveTransition(ctx, id, row, "reopen")
}

// resolveTransition turns the outcome of a conditional update into either the
// updated job, ErrJobNotFound, or a StateConflictError with the observed state.
func (r *JobRepo) resolveTransition(
	ctx context.Context,
	id string,
	row *sql.Row,
	op string,
) (*model.Job, error) {
	job, err := scanJob(row)
	if err == nil {
		return job, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, wrapPgError(op, err)
	}

	current, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		if errors.Is(getErr, ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("%s: re-check job: %w", op, getErr)
	}
	return nil, &StateConflictError{JobID: id, Current: current.Status}
}
