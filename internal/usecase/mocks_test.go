package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"video-content-factory/internal/domain"
	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/repository"
	"video-content-factory/internal/infra/events"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestHub() *events.Hub {
	return events.NewHub(nil, "", newTestLogger())
}

// mockTxManager runs fn directly; the in-memory repos ignore tx handles.
type mockTxManager struct{}

func (mockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

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
	return nil, nil
}

func (r *memJobRepo) has(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[id]
	return ok
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
	return nil, nil
}

func (r *memAccountRepo) TouchLastPost(ctx context.Context, tx repository.Tx, id int64, platform model.Platform, at time.Time) error {
	return nil
}
