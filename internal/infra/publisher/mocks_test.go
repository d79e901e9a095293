package publisher

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

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// --- repositories ---

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*model.Account
	touched  []time.Time
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
	acc, ok := r.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	if acc.LastPostTimes == nil {
		acc.LastPostTimes = make(map[model.Platform]time.Time)
	}
	acc.LastPostTimes[platform] = at
	r.touched = append(r.touched, at)
	return nil
}

func (r *memAccountRepo) touchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.touched)
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

func (r *memAttemptRepo) last() *model.PublishAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return nil
	}
	return r.saved[len(r.saved)-1]
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
	return nil, nil
}

func (r *memJobRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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

// --- adapters ---

type fakePublisher struct {
	mu       sync.Mutex
	platform model.Platform
	err      error
	calls    int
	lastRef  string
}

func (f *fakePublisher) Platform() model.Platform { return f.platform }

func (f *fakePublisher) Publish(ctx context.Context, videoPath string, meta adapter.VideoMetadata, credentialRef string) (*adapter.PublishOutcome, error) {
	f.mu.Lock()
	f.calls++
	f.lastRef = credentialRef
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &adapter.PublishOutcome{PlatformID: "api-123", URL: "https://example.com/api-123"}, nil
}

func (f *fakePublisher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSession struct {
	loggedIn   bool
	uploadErr  error
	confirmErr error

	opened    int
	uploads   int
	confirms  int
	closed    int
	loginOpen int
}

func (s *fakeSession) OpenLogin(ctx context.Context) error { s.loginOpen++; return nil }

func (s *fakeSession) VerifyLogin(ctx context.Context) (bool, error) { return s.loggedIn, nil }

func (s *fakeSession) UploadAndFillMetadata(ctx context.Context, videoPath string, meta adapter.VideoMetadata) error {
	s.uploads++
	return s.uploadErr
}

func (s *fakeSession) ConfirmPublish(ctx context.Context) (*adapter.PublishOutcome, error) {
	s.confirms++
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	return &adapter.PublishOutcome{PlatformID: "browser-456", URL: "https://example.com/browser-456"}, nil
}

func (s *fakeSession) Screenshot(ctx context.Context) (string, error) {
	return "/media/shots/fail.png", nil
}

func (s *fakeSession) Close() { s.closed++ }

type fakeBrowser struct {
	session *fakeSession
	openErr error
	opens   int
}

func (b *fakeBrowser) OpenSession(ctx context.Context, account *model.Account, platform model.Platform) (adapter.BrowserSession, error) {
	b.opens++
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.session.opened++
	return b.session, nil
}

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

// fakeRedis backs the rate limiter with an in-memory counter map.
type fakeRedis struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{counts: make(map[string]int64)}
}

func (f *fakeRedis) Ping(ctx context.Context) error { return nil }

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("not found")
}

func (f *fakeRedis) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error { return nil }

func (f *fakeRedis) Publish(ctx context.Context, channel string, payload []byte) error { return nil }

func (f *fakeRedis) Close() error { return nil }
