package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tolkdirekt/dispatchd/internal/domain/model"
)

// RepoConfig holds configuration options for the job repository.
type RepoConfig struct {
	Logger       *slog.Logger
	TimeProvider TimeProvider
}

// JobRepo provides Postgres-backed job storage. All state transitions are
// conditional updates ("UPDATE ... WHERE status = X"), which makes the row
// itself the serialization point for concurrent callers.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewJobRepo creates a JobRepo with the given database connection and configuration.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}

	return &JobRepo{
		DB:           db,
		timeProvider: tp,
		logger:       cfg.Logger,
	}
}

const jobColumns = `
  id,
  status,
  customer_id,
  translator_id,
  from_language,
  to_language,
  translator_level,
  immediate,
  due_at,
  duration_minutes,
  session_time,
  admin_comments,
  flagged,
  manually_handled,
  by_admin,
  cancel_reason,
  accepted_at,
  started_at,
  ended_at,
  created_at,
  updated_at
`

// Create inserts a new job in the pending state.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	level := req.TranslatorLevel
	if level == "" {
		level = model.LevelStandard
	}

	now := r.timeProvider.Now().UTC()
	dueAt := now
	if req.DueAt != nil {
		dueAt = req.DueAt.UTC()
	}

	row := r.DB.QueryRowContext(ctx, `
	  INSERT INTO jobs(id, status, customer_id, from_language, to_language, translator_level,
	                   immediate, due_at, duration_minutes, created_at, updated_at)
	  VALUES ($1, 'pending', $2, $3, $4, $5, $6, $7, $8, $9, $9)
	  RETURNING `+jobColumns,
		uuid.NewString(), req.CustomerID, req.FromLanguage, req.ToLanguage, level,
		req.Immediate, dueAt, req.DurationMinutes, now,
	)

	job, err := scanJob(row)
	if err != nil {
		return nil, wrapPgError("insert job", err)
	}
	return job, nil
}

// GetByID retrieves a job by its id.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateDetails applies admin-editable attributes. Nil fields keep their
// stored values; no state transition happens here.
func (r *JobRepo) UpdateDetails(
	ctx context.Context,
	id string,
	req *model.UpdateJobRequest,
) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("update job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	row := r.DB.QueryRowContext(ctx, `
	  UPDATE jobs SET
	    from_language    = COALESCE($2, from_language),
	    to_language      = COALESCE($3, to_language),
	    translator_level = COALESCE($4, translator_level),
	    due_at           = COALESCE($5, due_at),
	    duration_minutes = COALESCE($6, duration_minutes),
	    admin_comments   = COALESCE($7, admin_comments),
	    updated_at       = $8
	  WHERE id = $1
	  RETURNING `+jobColumns,
		id,
		req.FromLanguage,
		req.ToLanguage,
		levelArg(req.TranslatorLevel),
		timeArg(req.DueAt),
		req.DurationMinutes,
		req.AdminComments,
		r.timeProvider.Now().UTC(),
	)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, wrapPgError("update job details", err)
	}
	return job, nil
}

// ApplyAdminMeta upserts session-time/flag/comment annotations on the job row.
// Nil fields are left unchanged; the write is last-write-wins and carries no
// exclusivity relative to state transitions.
func (r *JobRepo) ApplyAdminMeta(ctx context.Context, id string, meta *model.AdminOverride) error {
	if meta == nil || !meta.HasAdminFields() {
		return nil
	}
	if err := meta.Validate(); err != nil {
		return err
	}

	res, err := r.DB.ExecContext(ctx, `
	  UPDATE jobs SET
	    session_time     = COALESCE($2, session_time),
	    flagged          = COALESCE($3, flagged),
	    manually_handled = COALESCE($4, manually_handled),
	    by_admin         = COALESCE($5, by_admin),
	    admin_comments   = COALESCE($6, admin_comments),
	    updated_at       = $7
	  WHERE id = $1
	`,
		id,
		meta.SessionTime,
		meta.Flagged,
		meta.ManuallyHandled,
		meta.ByAdmin,
		meta.AdminComment,
		r.timeProvider.Now().UTC(),
	)
	if err != nil {
		return wrapPgError("apply admin meta", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply admin meta rows affected: %w", err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// ListByStatus returns jobs in the given state, oldest due first.
func (r *JobRepo) ListByStatus(
	ctx context.Context,
	status model.JobStatus,
	limit int,
) ([]*model.Job, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid job status: %s", status)
	}
	return r.list(ctx, `
	  SELECT `+jobColumns+` FROM jobs
	  WHERE status = $1
	  ORDER BY due_at ASC, created_at ASC
	  LIMIT $2`, status, clampLimit(limit))
}

// ListForCustomer returns a customer's jobs, newest first.
func (r *JobRepo) ListForCustomer(
	ctx context.Context,
	customerID string,
	limit int,
) ([]*model.Job, error) {
	return r.list(ctx, `
	  SELECT `+jobColumns+` FROM jobs
	  WHERE customer_id = $1
	  ORDER BY created_at DESC
	  LIMIT $2`, customerID, clampLimit(limit))
}

// ListForTranslator returns jobs assigned to a translator, newest first.
func (r *JobRepo) ListForTranslator(
	ctx context.Context,
	translatorID string,
	limit int,
) ([]*model.Job, error) {
	return r.list(ctx, `
	  SELECT `+jobColumns+` FROM jobs
	  WHERE translator_id = $1
	  ORDER BY created_at DESC
	  LIMIT $2`, translatorID, clampLimit(limit))
}

func (r *JobRepo) list(ctx context.Context, query string, args ...any) ([]*model.Job, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var jobs []*model.Job
	for rows.Next() {
		job, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan job: %w", scanErr)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func levelArg(l *model.TranslatorLevel) any {
	if l == nil {
		return nil
	}
	return string(*l)
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner jobRowScanner) (*model.Job, error) {
	var (
		job                                    model.Job
		translatorID, cancelReason             sql.NullString
		sessionTime, adminComments             sql.NullString
		acceptedAt, startedAt, endedAt         sql.NullTime
	)

	if err := scanner.Scan(
		&job.ID,
		&job.Status,
		&job.CustomerID,
		&translatorID,
		&job.FromLanguage,
		&job.ToLanguage,
		&job.TranslatorLevel,
		&job.Immediate,
		&job.DueAt,
		&job.DurationMinutes,
		&sessionTime,
		&adminComments,
		&job.Flagged,
		&job.ManuallyHandled,
		&job.ByAdmin,
		&cancelReason,
		&acceptedAt,
		&startedAt,
		&endedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}

	job.TranslatorID = nullableString(translatorID)
	job.CancelReason = nullableString(cancelReason)
	job.SessionTime = sessionTime.String
	job.AdminComments = adminComments.String
	job.AcceptedAt = nullableTime(acceptedAt)
	job.StartedAt = nullableTime(startedAt)
	job.EndedAt = nullableTime(endedAt)
	return &job, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
