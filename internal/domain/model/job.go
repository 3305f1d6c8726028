// Package model defines the core data types for the translation job dispatch system.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tolkdirekt/dispatchd/internal/apperrors"
)

// JobStatus represents the lifecycle state of a job.
type JobStatus string

const (
	// JobStatusPending indicates a job is stored but not yet offered to anyone.
	JobStatusPending JobStatus = "pending"
	// JobStatusOffered indicates a job has an open offer set and can be claimed.
	JobStatusOffered JobStatus = "offered"
	// JobStatusAccepted indicates exactly one translator has claimed the job.
	JobStatusAccepted JobStatus = "accepted"
	// JobStatusInProgress indicates the interpretation session has started.
	JobStatusInProgress JobStatus = "in_progress"
	// JobStatusEnded indicates the session finished normally. Terminal.
	JobStatusEnded JobStatus = "ended"
	// JobStatusCancelled indicates the job was withdrawn. Terminal unless reopened.
	JobStatusCancelled JobStatus = "cancelled"
	// JobStatusNoShow indicates the customer never called in. Terminal unless reopened.
	JobStatusNoShow JobStatus = "no_show"
)

// Valid returns true if the JobStatus is one of the known lifecycle states.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusOffered, JobStatusAccepted,
		JobStatusInProgress, JobStatusEnded, JobStatusCancelled, JobStatusNoShow:
		return true
	}
	return false
}

// Terminal returns true for states with no automatic successor.
func (s JobStatus) Terminal() bool {
	return s == JobStatusEnded || s == JobStatusCancelled || s == JobStatusNoShow
}

// Assigned returns true for states in which a job must carry a translator.
func (s JobStatus) Assigned() bool {
	return s == JobStatusAccepted || s == JobStatusInProgress || s == JobStatusEnded
}

// UnmarshalText implements encoding.TextUnmarshaler so statuses parse from env and query strings.
func (s *JobStatus) UnmarshalText(text []byte) error {
	v := JobStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid JobStatus: %q", string(text))
	}
	*s = v
	return nil
}

// TranslatorLevel qualifies which translators may take a job.
type TranslatorLevel string

const (
	// LevelStandard is the default qualification tier.
	LevelStandard TranslatorLevel = "standard"
	// LevelCertified requires a state-certified translator.
	LevelCertified TranslatorLevel = "certified"
	// LevelCertifiedHealth requires certification for healthcare settings.
	LevelCertifiedHealth TranslatorLevel = "certified_health"
	// LevelCertifiedLaw requires certification for legal settings.
	LevelCertifiedLaw TranslatorLevel = "certified_law"
)

// Valid returns true if the TranslatorLevel is known.
func (l TranslatorLevel) Valid() bool {
	switch l {
	case LevelStandard, LevelCertified, LevelCertifiedHealth, LevelCertifiedLaw:
		return true
	}
	return false
}

// Job represents a translation booking with its lifecycle state and admin metadata.
// The translator is set in the accepted, in_progress, and ended states, and may
// linger on cancelled or no_show rows for the audit trail.
type Job struct {
	ID              string          `json:"id"                        db:"id"`
	Status          JobStatus       `json:"status"                    db:"status"`
	CustomerID      string          `json:"customer_id"               db:"customer_id"`
	TranslatorID    *string         `json:"translator_id,omitempty"   db:"translator_id"`
	FromLanguage    string          `json:"from_language"             db:"from_language"`
	ToLanguage      string          `json:"to_language"               db:"to_language"`
	TranslatorLevel TranslatorLevel `json:"translator_level"          db:"translator_level"`
	Immediate       bool            `json:"immediate"                 db:"immediate"`
	DueAt           time.Time       `json:"due_at"                    db:"due_at"`
	DurationMinutes int             `json:"duration_minutes"          db:"duration_minutes"`
	SessionTime     string          `json:"session_time,omitempty"    db:"session_time"`
	AdminComments   string          `json:"admin_comments,omitempty"  db:"admin_comments"`
	Flagged         bool            `json:"flagged"                   db:"flagged"`
	ManuallyHandled bool            `json:"manually_handled"          db:"manually_handled"`
	ByAdmin         bool            `json:"by_admin"                  db:"by_admin"`
	CancelReason    *string         `json:"cancel_reason,omitempty"   db:"cancel_reason"`
	AcceptedAt      *time.Time      `json:"accepted_at,omitempty"     db:"accepted_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"      db:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"        db:"ended_at"`
	CreatedAt       time.Time       `json:"created_at"                db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"                db:"updated_at"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateJobRequest carries the fields required to store a new booking.
type CreateJobRequest struct {
	CustomerID      string          `json:"customer_id"       validate:"required,uuid"`
	FromLanguage    string          `json:"from_language"     validate:"required"`
	ToLanguage      string          `json:"to_language"       validate:"required"`
	TranslatorLevel TranslatorLevel `json:"translator_level"`
	Immediate       bool            `json:"immediate"`
	DueAt           *time.Time      `json:"due_at,omitempty"`
	DurationMinutes int             `json:"duration_minutes"  validate:"gte=0,lte=1440"`
}

// Validate checks the request and returns a validation AppError on failure.
// Scheduled (non-immediate) jobs must name a due time.
func (r *CreateJobRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return asValidationError(err)
	}
	if r.FromLanguage == r.ToLanguage {
		return apperrors.ValidationField("to_language", "from and to language must differ")
	}
	if r.TranslatorLevel != "" && !r.TranslatorLevel.Valid() {
		return apperrors.ValidationField("translator_level", "unknown translator level")
	}
	if !r.Immediate && (r.DueAt == nil || r.DueAt.IsZero()) {
		return apperrors.ValidationField("due_at", "scheduled jobs require a due time")
	}
	return nil
}

// UpdateJobRequest carries admin-editable booking attributes. Nil fields are left unchanged.
type UpdateJobRequest struct {
	FromLanguage    *string          `json:"from_language,omitempty"`
	ToLanguage      *string          `json:"to_language,omitempty"`
	TranslatorLevel *TranslatorLevel `json:"translator_level,omitempty"`
	DueAt           *time.Time       `json:"due_at,omitempty"`
	DurationMinutes *int             `json:"duration_minutes,omitempty"`
	AdminComments   *string          `json:"admin_comments,omitempty"`
}

// Validate checks the partial update for internally inconsistent values.
func (r *UpdateJobRequest) Validate() error {
	if r.TranslatorLevel != nil && !r.TranslatorLevel.Valid() {
		return apperrors.ValidationField("translator_level", "unknown translator level")
	}
	if r.DurationMinutes != nil && (*r.DurationMinutes < 0 || *r.DurationMinutes > 1440) {
		return apperrors.ValidationField("duration_minutes", "duration must be between 0 and 1440 minutes")
	}
	if r.FromLanguage != nil && r.ToLanguage != nil && *r.FromLanguage == *r.ToLanguage {
		return apperrors.ValidationField("to_language", "from and to language must differ")
	}
	return nil
}

// AcceptRequest is the payload-based variant of an accept call. It exists as a
// transport convenience: both it and the bare job id route through the same
// acceptance primitive.
type AcceptRequest struct {
	JobID string `json:"job_id" validate:"required,uuid"`
}

// Validate checks the accept payload.
func (r *AcceptRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return asValidationError(err)
	}
	return nil
}

// EndOutcome records how a session finished.
type EndOutcome struct {
	SessionTime string `json:"session_time,omitempty"`
	Comments    string `json:"comments,omitempty"`
}

// AdminOverride carries the distance-feed fields supplied by the admin panel or
// the automated distance tracker. Nil fields mean "no change", mirroring how
// the feed omits values it does not know.
type AdminOverride struct {
	Distance          *float64 `json:"distance,omitempty"`
	TravelTimeMinutes *int     `json:"travel_time_minutes,omitempty"`
	SessionTime       *string  `json:"session_time,omitempty"`
	Flagged           *bool    `json:"flagged,omitempty"`
	ManuallyHandled   *bool    `json:"manually_handled,omitempty"`
	ByAdmin           *bool    `json:"by_admin,omitempty"`
	AdminComment      *string  `json:"admin_comment,omitempty"`
}

// Validate enforces the one hard rule of the feed: flagging requires a comment.
func (o *AdminOverride) Validate() error {
	if o.Flagged != nil && *o.Flagged {
		if o.AdminComment == nil || strings.TrimSpace(*o.AdminComment) == "" {
			return apperrors.ValidationField("admin_comment", "a comment is required when flagging a job")
		}
	}
	if o.Distance != nil && *o.Distance < 0 {
		return apperrors.ValidationField("distance", "distance cannot be negative")
	}
	if o.TravelTimeMinutes != nil && *o.TravelTimeMinutes < 0 {
		return apperrors.ValidationField("travel_time_minutes", "travel time cannot be negative")
	}
	return nil
}

// HasDistanceFields returns true when the override touches the distance ledger.
func (o *AdminOverride) HasDistanceFields() bool {
	return o.Distance != nil || o.TravelTimeMinutes != nil
}

// HasAdminFields returns true when the override touches job admin annotations.
func (o *AdminOverride) HasAdminFields() bool {
	return o.SessionTime != nil || o.Flagged != nil || o.ManuallyHandled != nil ||
		o.ByAdmin != nil || o.AdminComment != nil
}

// asValidationError converts validator.ValidationErrors into the app taxonomy,
// keeping the first offending field.
func asValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.ValidationField(
			strings.ToLower(fe.Field()),
			fmt.Sprintf("field %s failed %s validation", strings.ToLower(fe.Field()), fe.Tag()),
		)
	}
	return apperrors.Wrap(err, apperrors.CodeValidation, "invalid request")
}
