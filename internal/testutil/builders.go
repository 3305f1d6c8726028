// Package testutil provides testing utilities and helpers for the dispatch system.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/tolkdirekt/dispatchd/internal/domain/model"
)

// JobRequestBuilder provides a fluent interface for building CreateJobRequest objects for testing.
type JobRequestBuilder struct {
	req *model.CreateJobRequest
}

// NewJobRequest creates a new JobRequestBuilder with sensible defaults.
func NewJobRequest() *JobRequestBuilder {
	due := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	return &JobRequestBuilder{
		req: &model.CreateJobRequest{
			CustomerID:      uuid.NewString(),
			FromLanguage:    "sv",
			ToLanguage:      "ar",
			TranslatorLevel: model.LevelStandard,
			DueAt:           &due,
			DurationMinutes: 60,
		},
	}
}

// WithCustomer sets the customer id.
func (b *JobRequestBuilder) WithCustomer(customerID string) *JobRequestBuilder {
	b.req.CustomerID = customerID
	return b
}

// WithLanguages sets the language pair.
func (b *JobRequestBuilder) WithLanguages(from, to string) *JobRequestBuilder {
	b.req.FromLanguage = from
	b.req.ToLanguage = to
	return b
}

// WithLevel sets the required translator level.
func (b *JobRequestBuilder) WithLevel(level model.TranslatorLevel) *JobRequestBuilder {
	b.req.TranslatorLevel = level
	return b
}

// Immediate marks the request as an immediate booking with no due time.
func (b *JobRequestBuilder) Immediate() *JobRequestBuilder {
	b.req.Immediate = true
	b.req.DueAt = nil
	return b
}

// WithDueAt sets the due time.
func (b *JobRequestBuilder) WithDueAt(dueAt time.Time) *JobRequestBuilder {
	b.req.DueAt = &dueAt
	return b
}

// WithDuration sets the duration in minutes.
func (b *JobRequestBuilder) WithDuration(minutes int) *JobRequestBuilder {
	b.req.DurationMinutes = minutes
	return b
}

// Build returns the built CreateJobRequest.
func (b *JobRequestBuilder) Build() *model.CreateJobRequest {
	return b.req
}

// JobBuilder provides a fluent interface for building Job objects for testing
// fakes that bypass the repository.
type JobBuilder struct {
	job *model.Job
}

// NewJob creates a new JobBuilder in the pending state with sensible defaults.
func NewJob() *JobBuilder {
	now := time.Now().UTC().Truncate(time.Second)
	return &JobBuilder{
		job: &model.Job{
			ID:              uuid.NewString(),
			Status:          model.JobStatusPending,
			CustomerID:      uuid.NewString(),
			FromLanguage:    "sv",
			ToLanguage:      "ar",
			TranslatorLevel: model.LevelStandard,
			DueAt:           now.Add(24 * time.Hour),
			DurationMinutes: 60,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
	}
}

// WithID sets the job id.
func (b *JobBuilder) WithID(id string) *JobBuilder {
	b.job.ID = id
	return b
}

// WithStatus sets the lifecycle state.
func (b *JobBuilder) WithStatus(status model.JobStatus) *JobBuilder {
	b.job.Status = status
	return b
}

// WithTranslator sets the assigned translator.
func (b *JobBuilder) WithTranslator(translatorID string) *JobBuilder {
	b.job.TranslatorID = &translatorID
	return b
}

// Offered moves the built job into the offered state.
func (b *JobBuilder) Offered() *JobBuilder {
	b.job.Status = model.JobStatusOffered
	return b
}

// AcceptedBy moves the built job into the accepted state with the translator assigned.
func (b *JobBuilder) AcceptedBy(translatorID string) *JobBuilder {
	now := time.Now().UTC().Truncate(time.Second)
	b.job.Status = model.JobStatusAccepted
	b.job.TranslatorID = &translatorID
	b.job.AcceptedAt = &now
	return b
}

// Build returns the built Job.
func (b *JobBuilder) Build() *model.Job {
	return b.job
}
