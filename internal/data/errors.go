package data

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tolkdirekt/dispatchd/internal/domain/model"
)

// Shared sentinel errors for data-layer repositories.
var (
	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")
	// ErrDistanceNotFound is returned when no distance record exists for a job.
	ErrDistanceNotFound = errors.New("distance record not found")
)

// StateConflictError is returned by conditional transition methods when the
// job exists but is not in a legal predecessor state. Current carries the
// status observed after the failed update so the service layer can
// distinguish a lost race from a gone job.
type StateConflictError struct {
	JobID   string
	Current model.JobStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("job %s is in state %s", e.JobID, e.Current)
}

// AsStateConflict unwraps a StateConflictError from err, if present.
func AsStateConflict(err error) (*StateConflictError, bool) {
	var sc *StateConflictError
	if errors.As(err, &sc) {
		return sc, true
	}
	return nil, false
}

// pgErrorHint classifies a Postgres error into a short category for wrapping.
// Unknown errors come back empty and are passed through untouched.
func pgErrorHint(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return "duplicate"
	case pgerrcode.ForeignKeyViolation:
		return "missing referenced row"
	case pgerrcode.CheckViolation:
		return "constraint violation"
	}
	return ""
}

// wrapPgError annotates storage errors with the classified hint.
func wrapPgError(op string, err error) error {
	if err == nil {
		return nil
	}
	if hint := pgErrorHint(err); hint != "" {
		return fmt.Errorf("%s: %s: %w", op, hint, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
