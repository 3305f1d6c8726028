package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolkdirekt/dispatchd/internal/apperrors"
	"github.com/tolkdirekt/dispatchd/internal/domain/model"
	"github.com/tolkdirekt/dispatchd/internal/testutil"
)

type jobServiceFixture struct {
	svc      *JobService
	repo     *fakeJobRepo
	offers   *fakeOfferRepo
	dist     *fakeDistanceRepo
	notifier *recordingGateway
}

func newJobServiceFixture(t *testing.T) *jobServiceFixture {
	t.Helper()

	repo := newFakeJobRepo()
	offers := newFakeOfferRepo()
	dist := newFakeDistanceRepo()
	notifier := newRecordingGateway()

	svc, err := NewJobService(JobServiceOptions{
		Repo:      repo,
		Offers:    offers,
		Distances: dist,
		Notifier:  notifier,
	})
	require.NoError(t, err)

	return &jobServiceFixture{
		svc:      svc,
		repo:     repo,
		offers:   offers,
		dist:     dist,
		notifier: notifier,
	}
}

// seedOffered installs an offered job with the given candidates.
func (f *jobServiceFixture) seedOffered(t *testing.T, candidates ...string) *model.Job {
	t.Helper()
	job := testutil.NewJob().Offered().Build()
	f.repo.put(job)
	require.NoError(t, f.offers.Replace(context.Background(), job.ID, candidates))
	return job
}

func TestNewJobService(t *testing.T) {
	t.Run("missing repo", func(t *testing.T) {
		_, err := NewJobService(JobServiceOptions{
			Offers:    newFakeOfferRepo(),
			Distances: newFakeDistanceRepo(),
		})
		require.Error(t, err)
	})

	t.Run("missing offers", func(t *testing.T) {
		_, err := NewJobService(JobServiceOptions{
			Repo:      newFakeJobRepo(),
			Distances: newFakeDistanceRepo(),
		})
		require.Error(t, err)
	})

	t.Run("success", func(t *testing.T) {
		svc, err := NewJobService(JobServiceOptions{
			Repo:      newFakeJobRepo(),
			Offers:    newFakeOfferRepo(),
			Distances: newFakeDistanceRepo(),
		})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestJobServiceCreate(t *testing.T) {
	ctx := context.Background()
	f := newJobServiceFixture(t)

	t.Run("stores pending job", func(t *testing.T) {
		job, err := f.svc.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, job.Status)
		assert.NotEmpty(t, job.ID)
		assert.Nil(t, job.TranslatorID)
	})

	t.Run("immediate job needs no due time", func(t *testing.T) {
		job, err := f.svc.Create(ctx, testutil.NewJobRequest().Immediate().Build())
		require.NoError(t, err)
		assert.True(t, job.Immediate)
	})

	t.Run("scheduled job without due time is rejected", func(t *testing.T) {
		req := testutil.NewJobRequest().Build()
		req.DueAt = nil
		_, err := f.svc.Create(ctx, req)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("same language pair is rejected", func(t *testing.T) {
		_, err := f.svc.Create(ctx, testutil.NewJobRequest().WithLanguages("sv", "sv").Build())
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("nil request is rejected", func(t *testing.T) {
		_, err := f.svc.Create(ctx, nil)
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestJobServiceAccept(t *testing.T) {
	ctx := context.Background()

	t.Run("eligible translator wins", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1", "t2")

		got, err := f.svc.AcceptByID(ctx, "t1", job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusAccepted, got.Status)
		require.NotNil(t, got.TranslatorID)
		assert.Equal(t, "t1", *got.TranslatorID)
		assert.NotNil(t, got.AcceptedAt)

		// Winning clears the offer set.
		members, err := f.offers.Members(ctx, job.ID)
		require.NoError(t, err)
		assert.Empty(t, members)
	})

	t.Run("second accept loses with already assigned", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1", "t2")

		// Keep t2 in a still-populated offer set so the loss is decided by
		// job state, not by offer cleanup.
		_, err := f.svc.AcceptByID(ctx, "t1", job.ID)
		require.NoError(t, err)
		require.NoError(t, f.offers.Replace(ctx, job.ID, []string{"t2"}))

		_, err = f.svc.AcceptByID(ctx, "t2", job.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsAlreadyAssigned(err))
	})

	t.Run("uninvited translator is not eligible", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1")

		_, err := f.svc.AcceptByID(ctx, "t9", job.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotEligible(err))
	})

	t.Run("cancelled job is invalid state", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1")
		_, err := f.svc.Cancel(ctx, job.ID, "customer request")
		require.NoError(t, err)

		// Re-install the offer so the eligibility gate passes.
		require.NoError(t, f.offers.Replace(ctx, job.ID, []string{"t1"}))

		_, err = f.svc.AcceptByID(ctx, "t1", job.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidState(err))
	})

	t.Run("late accept after offer cleanup is already assigned", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1", "t2")

		// The winner's cleanup empties the offer set, so t2 fails the
		// membership gate; the answer must still be "already taken".
		_, err := f.svc.AcceptByID(ctx, "t1", job.ID)
		require.NoError(t, err)

		_, err = f.svc.AcceptByID(ctx, "t2", job.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsAlreadyAssigned(err))
	})

	t.Run("sequential losers all see already assigned", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1", "t2", "t3")

		got, err := f.svc.AcceptByID(ctx, "t2", job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusAccepted, got.Status)
		assert.Equal(t, "t2", *got.TranslatorID)

		_, err = f.svc.AcceptByID(ctx, "t1", job.ID)
		assert.True(t, apperrors.IsAlreadyAssigned(err), "t1: %v", err)

		_, err = f.svc.AcceptByID(ctx, "t3", job.ID)
		assert.True(t, apperrors.IsAlreadyAssigned(err), "t3: %v", err)
	})

	t.Run("unknown job is not found", func(t *testing.T) {
		f := newJobServiceFixture(t)
		_, err := f.svc.AcceptByID(ctx, "t1", "3b5b54e5-0000-0000-0000-000000000000")
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("accept on a pending job is invalid state", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job, err := f.svc.Create(ctx, testutil.NewJobRequest().Build())
		require.NoError(t, err)

		_, err = f.svc.AcceptByID(ctx, "t1", job.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidState(err))
	})

	t.Run("payload variant routes through the same primitive", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1")

		got, err := f.svc.Accept(ctx, "t1", &model.AcceptRequest{JobID: job.ID})
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusAccepted, got.Status)
	})

	t.Run("payload without job id is rejected", func(t *testing.T) {
		f := newJobServiceFixture(t)
		_, err := f.svc.Accept(ctx, "t1", &model.AcceptRequest{})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})
}

// TestJobServiceAcceptRace runs N translators against one offered job and
// checks the core guarantee: exactly one winner, everyone else rejected.
func TestJobServiceAcceptRace(t *testing.T) {
	ctx := context.Background()
	const translators = 50

	f := newJobServiceFixture(t)

	candidates := make([]string, translators)
	for i := range candidates {
		candidates[i] = fmt.Sprintf("t%02d", i)
	}
	job := f.seedOffered(t, candidates...)

	var wg sync.WaitGroup
	results := make([]error, translators)
	wg.Add(translators)
	for i := range candidates {
		go func() {
			defer wg.Done()
			_, results[i] = f.svc.AcceptByID(ctx, candidates[i], job.ID)
		}()
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
			continue
		}
		// Every loser was offered the job, so every loser must learn it
		// was taken, whether they hit the state conflict or the emptied
		// offer set.
		assert.True(t, apperrors.IsAlreadyAssigned(err),
			"unexpected loss reason: %v", err)
	}
	assert.Equal(t, 1, winners)

	got, err := f.svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusAccepted, got.Status)
	assert.NotNil(t, got.TranslatorID)
}

func TestJobServiceLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("full happy path pending to ended", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1")

		_, err := f.svc.AcceptByID(ctx, "t1", job.ID)
		require.NoError(t, err)

		started, err := f.svc.Start(ctx, "t1", job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusInProgress, started.Status)
		assert.NotNil(t, started.StartedAt)

		ended, err := f.svc.End(ctx, "t1", job.ID, model.EndOutcome{
			SessionTime: "00:45:00",
			Comments:    "went well",
		})
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusEnded, ended.Status)
		assert.Equal(t, "00:45:00", ended.SessionTime)
		assert.Equal(t, "went well", ended.AdminComments)
	})

	t.Run("only the assigned translator may start", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1")
		_, err := f.svc.AcceptByID(ctx, "t1", job.ID)
		require.NoError(t, err)

		_, err = f.svc.Start(ctx, "t2", job.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotEligible(err))
	})

	t.Run("start before accept is invalid state", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1")
		// Job assigned to nobody yet: ownership check fires first.
		_, err := f.svc.Start(ctx, "t1", job.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsNotEligible(err))
	})

	t.Run("end before start is invalid state", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1")
		_, err := f.svc.AcceptByID(ctx, "t1", job.ID)
		require.NoError(t, err)

		_, err = f.svc.End(ctx, "t1", job.ID, model.EndOutcome{})
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidState(err))
	})

	t.Run("cancel clears offers and notifies assignee", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1")
		_, err := f.svc.AcceptByID(ctx, "t1", job.ID)
		require.NoError(t, err)

		cancelled, err := f.svc.Cancel(ctx, job.ID, "customer request")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCancelled, cancelled.Status)
		require.NotNil(t, cancelled.CancelReason)
		assert.Equal(t, "customer request", *cancelled.CancelReason)
		assert.Contains(t, f.notifier.recipients(), "t1")
	})

	t.Run("cancel ended job is invalid state", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1")
		_, err := f.svc.AcceptByID(ctx, "t1", job.ID)
		require.NoError(t, err)
		_, err = f.svc.Start(ctx, "t1", job.ID)
		require.NoError(t, err)
		_, err = f.svc.End(ctx, "t1", job.ID, model.EndOutcome{})
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, job.ID, "")
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidState(err))
	})

	t.Run("no show then reopen clears assignment", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := f.seedOffered(t, "t1")
		_, err := f.svc.AcceptByID(ctx, "t1", job.ID)
		require.NoError(t, err)

		marked, err := f.svc.CustomerNoShow(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusNoShow, marked.Status)
		assert.Contains(t, f.notifier.recipients(), "t1")

		reopened, err := f.svc.Reopen(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusPending, reopened.Status)
		assert.Nil(t, reopened.TranslatorID)
		assert.Nil(t, reopened.AcceptedAt)
	})

	t.Run("no show on pending job is invalid state", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := testutil.NewJob().Build()
		f.repo.put(job)

		_, err := f.svc.CustomerNoShow(ctx, job.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsInvalidState(err))
	})
}

func TestJobServiceAdminOverride(t *testing.T) {
	ctx := context.Background()

	f64 := func(v float64) *float64 { return &v }
	i := func(v int) *int { return &v }
	s := func(v string) *string { return &v }
	b := func(v bool) *bool { return &v }

	t.Run("distance fields go to the ledger", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := testutil.NewJob().Build()
		f.repo.put(job)

		err := f.svc.ApplyAdminOverride(ctx, job.ID, &model.AdminOverride{
			Distance:          f64(12.5),
			TravelTimeMinutes: i(23),
			ByAdmin:           b(true),
		})
		require.NoError(t, err)

		rec, err := f.svc.Distance(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, rec.DistanceKm)
		assert.InDelta(t, 12.5, *rec.DistanceKm, 0.001)
		require.NotNil(t, rec.TravelTimeMinutes)
		assert.Equal(t, 23, *rec.TravelTimeMinutes)
		assert.True(t, rec.ByAdmin)
	})

	t.Run("partial update keeps previous values", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := testutil.NewJob().Build()
		f.repo.put(job)

		require.NoError(t, f.svc.ApplyAdminOverride(ctx, job.ID, &model.AdminOverride{
			Distance:          f64(8),
			TravelTimeMinutes: i(15),
		}))
		// Second feed only knows the travel time.
		require.NoError(t, f.svc.ApplyAdminOverride(ctx, job.ID, &model.AdminOverride{
			TravelTimeMinutes: i(20),
		}))

		rec, err := f.svc.Distance(ctx, job.ID)
		require.NoError(t, err)
		require.NotNil(t, rec.DistanceKm)
		assert.InDelta(t, 8, *rec.DistanceKm, 0.001)
		assert.Equal(t, 20, *rec.TravelTimeMinutes)
	})

	t.Run("flag without comment is rejected", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := testutil.NewJob().Build()
		f.repo.put(job)

		err := f.svc.ApplyAdminOverride(ctx, job.ID, &model.AdminOverride{Flagged: b(true)})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))

		err = f.svc.ApplyAdminOverride(ctx, job.ID, &model.AdminOverride{
			Flagged: b(true), AdminComment: s("   "),
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("flag with comment lands on the job", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := testutil.NewJob().Build()
		f.repo.put(job)

		err := f.svc.ApplyAdminOverride(ctx, job.ID, &model.AdminOverride{
			Flagged:      b(true),
			AdminComment: s("double booking"),
		})
		require.NoError(t, err)

		got, err := f.svc.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, got.Flagged)
		assert.Equal(t, "double booking", got.AdminComments)
	})

	t.Run("session time and manual handling upsert", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := testutil.NewJob().Build()
		f.repo.put(job)

		err := f.svc.ApplyAdminOverride(ctx, job.ID, &model.AdminOverride{
			SessionTime:     s("01:30:00"),
			ManuallyHandled: b(true),
		})
		require.NoError(t, err)

		got, err := f.svc.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, "01:30:00", got.SessionTime)
		assert.True(t, got.ManuallyHandled)
	})

	t.Run("unknown job is not found", func(t *testing.T) {
		f := newJobServiceFixture(t)
		err := f.svc.ApplyAdminOverride(ctx, "3b5b54e5-0000-0000-0000-000000000001",
			&model.AdminOverride{SessionTime: s("01:00:00")})
		require.Error(t, err)
		assert.True(t, apperrors.IsNotFound(err))
	})

	t.Run("negative distance is rejected", func(t *testing.T) {
		f := newJobServiceFixture(t)
		job := testutil.NewJob().Build()
		f.repo.put(job)

		err := f.svc.ApplyAdminOverride(ctx, job.ID, &model.AdminOverride{Distance: f64(-1)})
		require.Error(t, err)
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestJobServicePotentialJobs(t *testing.T) {
	ctx := context.Background()
	f := newJobServiceFixture(t)

	inSet := f.seedOffered(t, "t1", "t2")
	f.seedOffered(t, "t2", "t3")
	pendingJob := testutil.NewJob().Build()
	f.repo.put(pendingJob)

	jobs, err := f.svc.PotentialJobs(ctx, "t1", 100)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, inSet.ID, jobs[0].ID)

	jobs, err = f.svc.PotentialJobs(ctx, "t2", 100)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	jobs, err = f.svc.PotentialJobs(ctx, "t9", 100)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestJobServiceLists(t *testing.T) {
	ctx := context.Background()
	f := newJobServiceFixture(t)

	job := f.seedOffered(t, "t1")
	_, err := f.svc.AcceptByID(ctx, "t1", job.ID)
	require.NoError(t, err)

	byCustomer, err := f.svc.ListForCustomer(ctx, job.CustomerID, 10)
	require.NoError(t, err)
	require.Len(t, byCustomer, 1)
	assert.Equal(t, job.ID, byCustomer[0].ID)

	byTranslator, err := f.svc.ListForTranslator(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, byTranslator, 1)
	assert.Equal(t, job.ID, byTranslator[0].ID)
}
