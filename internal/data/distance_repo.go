package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tolkdirekt/dispatchd/internal/core"
	"github.com/tolkdirekt/dispatchd/internal/domain/model"
)

// DistanceRepo is the Postgres-backed travel-metadata ledger, one row per job.
type DistanceRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// NewDistanceRepo creates a DistanceRepo.
func NewDistanceRepo(db *sql.DB, cfg RepoConfig) *DistanceRepo {
	tp := cfg.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &DistanceRepo{DB: db, timeProvider: tp, logger: cfg.Logger}
}

var _ core.DistanceRepository = (*DistanceRepo)(nil)

// Upsert writes distance and travel time for a job. The call is idempotent:
// repeating it with identical values leaves the ledger unchanged. Absent
// fields keep whatever is already stored.
func (r *DistanceRepo) Upsert(ctx context.Context, params core.UpsertDistanceParams) error {
	if params.JobID == "" {
		return errors.New("job id is required")
	}
	if params.DistanceKm == nil && params.TravelTimeMinutes == nil {
		// Nothing to change; treat an empty feed row as a no-op.
		return nil
	}

	_, err := r.DB.ExecContext(ctx, `
	  INSERT INTO job_distances (job_id, distance_km, travel_time_minutes, by_admin, updated_at)
	  VALUES ($1, $2, $3, $4, $5)
	  ON CONFLICT (job_id) DO UPDATE SET
	    distance_km         = COALESCE(EXCLUDED.distance_km, job_distances.distance_km),
	    travel_time_minutes = COALESCE(EXCLUDED.travel_time_minutes, job_distances.travel_time_minutes),
	    by_admin            = EXCLUDED.by_admin,
	    updated_at          = EXCLUDED.updated_at
	`,
		params.JobID,
		params.DistanceKm,
		params.TravelTimeMinutes,
		params.ByAdmin,
		r.timeProvider.Now().UTC(),
	)
	if err != nil {
		return wrapPgError("upsert distance", err)
	}
	return nil
}

// GetByJobID retrieves the distance record for a job.
func (r *DistanceRepo) GetByJobID(ctx context.Context, jobID string) (*model.DistanceRecord, error) {
	var (
		rec        model.DistanceRecord
		distance   sql.NullFloat64
		travelTime sql.NullInt64
	)
	err := r.DB.QueryRowContext(ctx, `
	  SELECT job_id, distance_km, travel_time_minutes, by_admin, updated_at
	  FROM job_distances
	  WHERE job_id = $1
	`, jobID).Scan(&rec.JobID, &distance, &travelTime, &rec.ByAdmin, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDistanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get distance record: %w", err)
	}

	if distance.Valid {
		v := distance.Float64
		rec.DistanceKm = &v
	}
	if travelTime.Valid {
		v := int(travelTime.Int64)
		rec.TravelTimeMinutes = &v
	}
	return &rec, nil
}
