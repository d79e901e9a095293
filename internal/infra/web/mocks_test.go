package web

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"video-content-factory/internal/domain"
	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type noTxManager struct{}

func (noTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

type fakeWork struct{ inFlight []int64 }

func (f fakeWork) InFlight() []int64 { return f.inFlight }

type fakeLocker struct{}

func (fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "token", nil
}

func (fakeLocker) Unlock(ctx context.Context, key, token string) error { return nil }

type memJobRepo struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]*model.Job
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{jobs: make(map[int64]*model.Job)}
}

func (r *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.ID == 0 {
		r.nextID++
		job.ID = r.nextID
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *job
	return &cp, nil
}

func (r *memJobRepo) List(ctx context.Context, tx repository.Tx, f repository.JobFilter) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Job
	for _, job := range r.jobs {
		if f.AccountID != 0 && job.AccountID != f.AccountID {
			continue
		}
		if f.Status != "" && job.Status != f.Status {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memJobRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.jobs, id)
	return nil
}

func (r *memJobRepo) ClaimNextImmediate(ctx context.Context) (*model.Job, error) {
	return nil, domain.ErrNotFound
}

func (r *memJobRepo) ClaimNextDue(ctx context.Context, now time.Time) (*model.Job, error) {
	return nil, domain.ErrNotFound
}

func (r *memJobRepo) CountRecentForAccount(ctx context.Context, accountID int64, since time.Time) (int, error) {
	return 0, nil
}

func (r *memJobRepo) ListScheduledOn(ctx context.Context, accountID int64, day time.Time) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	var out []*model.Job
	for _, job := range r.jobs {
		if job.AccountID != accountID || job.ScheduledAt == nil {
			continue
		}
		if job.ScheduledAt.Before(start) || !job.ScheduledAt.Before(end) {
			continue
		}
		cp := *job
		out = append(out, &cp)
	}
	return out, nil
}

type memJobLogRepo struct {
	mu      sync.Mutex
	entries []*model.JobLogEntry
}

func (r *memJobLogRepo) Append(ctx context.Context, tx repository.Tx, entry *model.JobLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *entry
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *memJobLogRepo) ListByJob(ctx context.Context, tx repository.Tx, jobID int64) ([]*model.JobLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.JobLogEntry
	for _, e := range r.entries {
		if e.JobID == jobID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memAttemptRepo struct {
	mu    sync.Mutex
	saved []*model.PublishAttempt
}

func (r *memAttemptRepo) SaveTerminal(ctx context.Context, tx repository.Tx, a *model.PublishAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.saved = append(r.saved, &cp)
	return nil
}

func (r *memAttemptRepo) ListByJob(ctx context.Context, tx repository.Tx, jobID int64) ([]*model.PublishAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PublishAttempt
	for _, a := range r.saved {
		if a.JobID == jobID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*model.Account
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{accounts: make(map[int64]*model.Account)}
}

func (r *memAccountRepo) Save(ctx context.Context, tx repository.Tx, acc *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *acc
	r.accounts[acc.ID] = &cp
	return nil
}

func (r *memAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	acc, ok := r.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (r *memAccountRepo) ListAutomated(ctx context.Context, tx repository.Tx) ([]*model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Account
	for _, acc := range r.accounts {
		if acc.Automated {
			cp := *acc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memAccountRepo) TouchLastPost(ctx context.Context, tx repository.Tx, id int64, platform model.Platform, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if acc, ok := r.accounts[id]; ok {
		if acc.LastPostTimes == nil {
			acc.LastPostTimes = make(map[model.Platform]time.Time)
		}
		acc.LastPostTimes[platform] = at
	}
	return nil
}

type memTemplateRepo struct {
	mu        sync.Mutex
	templates map[int64]*model.ContentTemplate
}

func newMemTemplateRepo() *memTemplateRepo {
	return &memTemplateRepo{templates: make(map[int64]*model.ContentTemplate)}
}

func (r *memTemplateRepo) Save(ctx context.Context, tx repository.Tx, tpl *model.ContentTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *tpl
	r.templates[tpl.ID] = &cp
	return nil
}

func (r *memTemplateRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID int64) ([]*model.ContentTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ContentTemplate
	for _, tpl := range r.templates {
		if tpl.AccountID == accountID {
			cp := *tpl
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTemplateRepo) IncrementUse(ctx context.Context, tx repository.Tx, id int64) error {
	return nil
}
