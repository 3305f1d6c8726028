package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tolkdirekt/dispatchd/internal/core"
	"github.com/tolkdirekt/dispatchd/internal/data"
	"github.com/tolkdirekt/dispatchd/internal/domain/model"
	"github.com/tolkdirekt/dispatchd/internal/notify"
)

// fakeJobRepo is an in-memory JobRepository reproducing the storage contract:
// every transition happens under one lock and checks the predecessor state, so
// concurrent accepts serialize exactly like the conditional UPDATE does.
type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: make(map[string]*model.Job)}
}

func (f *fakeJobRepo) put(job *model.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.ID] = &cp
}

func (f *fakeJobRepo) Create(_ context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	level := req.TranslatorLevel
	if level == "" {
		level = model.LevelStandard
	}
	dueAt := now
	if req.DueAt != nil {
		dueAt = *req.DueAt
	}
	job := &model.Job{
		ID:              uuid.NewString(),
		Status:          model.JobStatusPending,
		CustomerID:      req.CustomerID,
		FromLanguage:    req.FromLanguage,
		ToLanguage:      req.ToLanguage,
		TranslatorLevel: level,
		Immediate:       req.Immediate,
		DueAt:           dueAt,
		DurationMinutes: req.DurationMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.jobs[job.ID] = job
	cp := *job
	return &cp, nil
}

func (f *fakeJobRepo) GetByID(_ context.Context, id string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, data.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

// transition applies mutate when the job is in one of the allowed states,
// mirroring resolveTransition's not-found / conflict split.
func (f *fakeJobRepo) transition(
	id string,
	allowed []model.JobStatus,
	mutate func(*model.Job),
) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[id]
	if !ok {
		return nil, data.ErrJobNotFound
	}
	legal := false
	for _, s := range allowed {
		if job.Status == s {
			legal = true
			break
		}
	}
	if !legal {
		return nil, &data.StateConflictError{JobID: id, Current: job.Status}
	}
	mutate(job)
	job.UpdatedAt = time.Now().UTC()
	cp := *job
	return &cp, nil
}

func (f *fakeJobRepo) MarkOffered(_ context.Context, id string) (*model.Job, error) {
	return f.transition(id, []model.JobStatus{model.JobStatusPending}, func(j *model.Job) {
		j.Status = model.JobStatusOffered
	})
}

func (f *fakeJobRepo) MarkAccepted(_ context.Context, id, translatorID string) (*model.Job, error) {
	return f.transition(id, []model.JobStatus{model.JobStatusOffered}, func(j *model.Job) {
		now := time.Now().UTC()
		j.Status = model.JobStatusAccepted
		j.TranslatorID = &translatorID
		j.AcceptedAt = &now
	})
}

func (f *fakeJobRepo) MarkInProgress(_ context.Context, id string) (*model.Job, error) {
	return f.transition(id, []model.JobStatus{model.JobStatusAccepted}, func(j *model.Job) {
		now := time.Now().UTC()
		j.Status = model.JobStatusInProgress
		j.StartedAt = &now
	})
}

func (f *fakeJobRepo) MarkEnded(
	_ context.Context,
	id string,
	outcome model.EndOutcome,
) (*model.Job, error) {
	return f.transition(id, []model.JobStatus{model.JobStatusInProgress}, func(j *model.Job) {
		now := time.Now().UTC()
		j.Status = model.JobStatusEnded
		j.EndedAt = &now
		if outcome.SessionTime != "" {
			j.SessionTime = outcome.SessionTime
		}
		if outcome.Comments != "" {
			j.AdminComments = outcome.Comments
		}
	})
}

func (f *fakeJobRepo) MarkCancelled(_ context.Context, id, reason string) (*model.Job, error) {
	allowed := []model.JobStatus{
		model.JobStatusPending, model.JobStatusOffered,
		model.JobStatusAccepted, model.JobStatusInProgress,
	}
	return f.transition(id, allowed, func(j *model.Job) {
		j.Status = model.JobStatusCancelled
		if reason != "" {
			j.CancelReason = &reason
		}
	})
}

func (f *fakeJobRepo) MarkNoShow(_ context.Context, id string) (*model.Job, error) {
	allowed := []model.JobStatus{model.JobStatusAccepted, model.JobStatusInProgress}
	return f.transition(id, allowed, func(j *model.Job) {
		now := time.Now().UTC()
		j.Status = model.JobStatusNoShow
		j.EndedAt = &now
	})
}

func (f *fakeJobRepo) Reopen(_ context.Context, id string) (*model.Job, error) {
	allowed := []model.JobStatus{model.JobStatusCancelled, model.JobStatusNoShow}
	return f.transition(id, allowed, func(j *model.Job) {
		j.Status = model.JobStatusPending
		j.TranslatorID = nil
		j.AcceptedAt = nil
		j.StartedAt = nil
		j.EndedAt = nil
		j.CancelReason = nil
	})
}

func (f *fakeJobRepo) UpdateDetails(
	_ context.Context,
	id string,
	req *model.UpdateJobRequest,
) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[id]
	if !ok {
		return nil, data.ErrJobNotFound
	}
	if req.FromLanguage != nil {
		job.FromLanguage = *req.FromLanguage
	}
	if req.ToLanguage != nil {
		job.ToLanguage = *req.ToLanguage
	}
	if req.TranslatorLevel != nil {
		job.TranslatorLevel = *req.TranslatorLevel
	}
	if req.DueAt != nil {
		job.DueAt = *req.DueAt
	}
	if req.DurationMinutes != nil {
		job.DurationMinutes = *req.DurationMinutes
	}
	if req.AdminComments != nil {
		job.AdminComments = *req.AdminComments
	}
	job.UpdatedAt = time.Now().UTC()
	cp := *job
	return &cp, nil
}

func (f *fakeJobRepo) ApplyAdminMeta(
	_ context.Context,
	id string,
	meta *model.AdminOverride,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[id]
	if !ok {
		return data.ErrJobNotFound
	}
	if meta.SessionTime != nil {
		job.SessionTime = *meta.SessionTime
	}
	if meta.Flagged != nil {
		job.Flagged = *meta.Flagged
	}
	if meta.ManuallyHandled != nil {
		job.ManuallyHandled = *meta.ManuallyHandled
	}
	if meta.ByAdmin != nil {
		job.ByAdmin = *meta.ByAdmin
	}
	if meta.AdminComment != nil {
		job.AdminComments = *meta.AdminComment
	}
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeJobRepo) ListByStatus(
	_ context.Context,
	status model.JobStatus,
	_ int,
) ([]*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*model.Job
	for _, job := range f.jobs {
		if job.Status == status {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) ListForCustomer(
	_ context.Context,
	customerID string,
	_ int,
) ([]*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*model.Job
	for _, job := range f.jobs {
		if job.CustomerID == customerID {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) ListForTranslator(
	_ context.Context,
	translatorID string,
	_ int,
) ([]*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*model.Job
	for _, job := range f.jobs {
		if job.TranslatorID != nil && *job.TranslatorID == translatorID {
			cp := *job
			out = append(out, &cp)
		}
	}
	return out, nil
}

var _ core.JobRepository = (*fakeJobRepo)(nil)

// fakeOfferRepo is an in-memory OfferRepository.
type fakeOfferRepo struct {
	mu   sync.Mutex
	sets map[string]map[string]struct{}
}

func newFakeOfferRepo() *fakeOfferRepo {
	return &fakeOfferRepo{sets: make(map[string]map[string]struct{})}
}

func (f *fakeOfferRepo) Replace(_ context.Context, jobID string, translatorIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(translatorIDs) == 0 {
		delete(f.sets, jobID)
		return nil
	}
	set := make(map[string]struct{}, len(translatorIDs))
	for _, id := range translatorIDs {
		set[id] = struct{}{}
	}
	f.sets[jobID] = set
	return nil
}

func (f *fakeOfferRepo) Contains(_ context.Context, jobID, translatorID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set, ok := f.sets[jobID]
	if !ok {
		return false, nil
	}
	_, member := set[translatorID]
	return member, nil
}

func (f *fakeOfferRepo) Members(_ context.Context, jobID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := f.sets[jobID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeOfferRepo) Clear(_ context.Context, jobID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sets[jobID]
	delete(f.sets, jobID)
	return ok, nil
}

var _ core.OfferRepository = (*fakeOfferRepo)(nil)

// fakeDistanceRepo is an in-memory DistanceRepository with COALESCE upsert semantics.
type fakeDistanceRepo struct {
	mu      sync.Mutex
	records map[string]*model.DistanceRecord
}

func newFakeDistanceRepo() *fakeDistanceRepo {
	return &fakeDistanceRepo{records: make(map[string]*model.DistanceRecord)}
}

func (f *fakeDistanceRepo) Upsert(_ context.Context, params core.UpsertDistanceParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if params.DistanceKm == nil && params.TravelTimeMinutes == nil {
		return nil
	}
	rec, ok := f.records[params.JobID]
	if !ok {
		rec = &model.DistanceRecord{JobID: params.JobID}
		f.records[params.JobID] = rec
	}
	if params.DistanceKm != nil {
		v := *params.DistanceKm
		rec.DistanceKm = &v
	}
	if params.TravelTimeMinutes != nil {
		v := *params.TravelTimeMinutes
		rec.TravelTimeMinutes = &v
	}
	rec.ByAdmin = params.ByAdmin
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeDistanceRepo) GetByJobID(_ context.Context, jobID string) (*model.DistanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[jobID]
	if !ok {
		return nil, data.ErrDistanceNotFound
	}
	cp := *rec
	return &cp, nil
}

var _ core.DistanceRepository = (*fakeDistanceRepo)(nil)

// recordingGateway captures sent messages and can fail or stall per recipient.
type recordingGateway struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]error
	slowFor map[string]time.Duration
}

type sentMessage struct {
	TranslatorID string
	Msg          notify.Message
}

func newRecordingGateway() *recordingGateway {
	return &recordingGateway{
		failFor: make(map[string]error),
		slowFor: make(map[string]time.Duration),
	}
}

func (g *recordingGateway) Send(ctx context.Context, translatorID string, msg notify.Message) error {
	g.mu.Lock()
	delay := g.slowFor[translatorID]
	failErr := g.failFor[translatorID]
	g.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if failErr != nil {
		return failErr
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, sentMessage{TranslatorID: translatorID, Msg: msg})
	return nil
}

func (g *recordingGateway) recipients() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.sent))
	for _, s := range g.sent {
		out = append(out, s.TranslatorID)
	}
	return out
}

var _ notify.Gateway = (*recordingGateway)(nil)
