package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"video-content-factory/internal/domain"
	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/adapter"
	"video-content-factory/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// ---- in-memory job repository ----

type memJobRepo struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*model.Job
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{nextID: 1, jobs: make(map[int64]*model.Job)}
}

func (r *memJobRepo) Save(ctx context.Context, _ repository.Tx, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID == 0 {
		job.ID = r.nextID
		r.nextID++
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) FindByID(ctx context.Context, _ repository.Tx, id int64) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *memJobRepo) List(ctx context.Context, _ repository.Tx, f repository.JobFilter) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Job
	for _, j := range r.jobs {
		if f.AccountID != 0 && j.AccountID != f.AccountID {
			continue
		}
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memJobRepo) Delete(ctx context.Context, _ repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.jobs, id)
	return nil
}

func claimable(j *model.Job) bool {
	if j.Status == model.JobStatusPending {
		return true
	}
	return j.Status == model.JobStatusApproved && j.JobType == model.JobTypePublishExisting
}

func markClaimed(j *model.Job) {
	if j.Status == model.JobStatusApproved {
		j.Status = model.JobStatusPublishing
	} else {
		j.Status = model.JobStatusQueued
	}
	now := time.Now()
	j.StartedAt = &now
}

// ClaimNextImmediate mirrors the SKIP LOCKED claim: the select and the
// status flip happen under one lock, so concurrent claimers never get
// the same job.
func (r *memJobRepo) ClaimNextImmediate(ctx context.Context) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var oldest *model.Job
	for _, j := range r.jobs {
		if !claimable(j) || j.ScheduledAt != nil {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) || (j.CreatedAt.Equal(oldest.CreatedAt) && j.ID < oldest.ID) {
			oldest = j
		}
	}
	if oldest == nil {
		return nil, domain.ErrNotFound
	}
	markClaimed(oldest)
	cp := *oldest
	return &cp, nil
}

func (r *memJobRepo) ClaimNextDue(ctx context.Context, now time.Time) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due *model.Job
	for _, j := range r.jobs {
		if !claimable(j) || j.ScheduledAt == nil || j.ScheduledAt.After(now) {
			continue
		}
		if due == nil || j.ScheduledAt.Before(*due.ScheduledAt) {
			due = j
		}
	}
	if due == nil {
		return nil, domain.ErrNotFound
	}
	markClaimed(due)
	cp := *due
	return &cp, nil
}

func (r *memJobRepo) CountRecentForAccount(ctx context.Context, accountID int64, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.jobs {
		if j.AccountID == accountID && j.CreatedAt.After(since) &&
			j.Status != model.JobStatusFailed && j.Status != model.JobStatusCancelled {
			n++
		}
	}
	return n, nil
}

func (r *memJobRepo) ListScheduledOn(ctx context.Context, accountID int64, day time.Time) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	var out []*model.Job
	for _, j := range r.jobs {
		if j.AccountID != accountID || j.ScheduledAt == nil {
			continue
		}
		if j.ScheduledAt.Before(start) || !j.ScheduledAt.Before(end) {
			continue
		}
		cp := *j
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memJobRepo) get(id int64) *model.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

// ---- in-memory job log repository ----

type memJobLogRepo struct {
	mu      sync.Mutex
	entries map[int64][]*model.JobLogEntry
}

func newMemJobLogRepo() *memJobLogRepo {
	return &memJobLogRepo{entries: make(map[int64][]*model.JobLogEntry)}
}

func (r *memJobLogRepo) Append(ctx context.Context, _ repository.Tx, e *model.JobLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[e.JobID] = append(r.entries[e.JobID], e)
	return nil
}

func (r *memJobLogRepo) ListByJob(ctx context.Context, _ repository.Tx, jobID int64) ([]*model.JobLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.JobLogEntry(nil), r.entries[jobID]...), nil
}

// ---- fake pipeline adapters ----

type fakePipeline struct {
	mu          sync.Mutex
	scriptErr   error
	audioErr    error
	subsErr     error
	renderErr   error
	scriptCalls int
	renderCalls int
}

func (f *fakePipeline) GenerateScript(ctx context.Context, topic string, _ adapter.StyleConfig) (*adapter.Script, error) {
	f.mu.Lock()
	f.scriptCalls++
	f.mu.Unlock()
	if f.scriptErr != nil {
		return nil, f.scriptErr
	}
	return &adapter.Script{Hook: "hook", Body: "body", CTA: "cta", FullText: "hook body cta"}, nil
}

func (f *fakePipeline) SynthesizeAudio(ctx context.Context, text string, _ adapter.VoiceConfig) (string, error) {
	if f.audioErr != nil {
		return "", f.audioErr
	}
	return "/media/audio.mp3", nil
}

func (f *fakePipeline) TranscribeSubtitles(ctx context.Context, audioPath string) (string, error) {
	if f.subsErr != nil {
		return "", f.subsErr
	}
	return "/media/audio.srt", nil
}

func (f *fakePipeline) RenderVideo(ctx context.Context, req adapter.RenderRequest) (*adapter.RenderResult, error) {
	f.mu.Lock()
	f.renderCalls++
	f.mu.Unlock()
	if f.renderErr != nil {
		return nil, f.renderErr
	}
	return &adapter.RenderResult{VideoPath: "/media/video.mp4", ThumbnailPath: "/media/thumb.jpg"}, nil
}

// ---- fake publish protocol ----

type fakeProtocol struct {
	mu       sync.Mutex
	calls    int
	statuses map[model.Platform]model.AttemptStatus
	err      error
}

func (f *fakeProtocol) Execute(ctx context.Context, job *model.Job, platform model.Platform) (*model.PublishAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	a := model.NewPublishAttempt("attempt", job.ID, platform)
	a.Strategy = model.StrategyDirectAPI
	status := model.AttemptStatusPosted
	if f.statuses != nil {
		if s, ok := f.statuses[platform]; ok {
			status = s
		}
	}
	switch status {
	case model.AttemptStatusPosted:
		a.Status = model.AttemptStatusPosted
		a.ResultID = "vid-1"
	case model.AttemptStatusFailed:
		a.FailWith(errors.New("publish failed"))
	default:
		a.Status = status
	}
	return a, nil
}

// ---- spy notifier ----

type spyNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *spyNotifier) Alert(ctx context.Context, message string) error {
	n.mu.Lock()
	n.msgs = append(n.msgs, message)
	n.mu.Unlock()
	return nil
}

func (n *spyNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}
