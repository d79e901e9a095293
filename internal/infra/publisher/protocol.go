package publisher

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"video-content-factory/internal/domain"
	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/adapter"
	"video-content-factory/internal/domain/ports/repository"
	"video-content-factory/internal/infra/events"
	"video-content-factory/internal/infra/metrics"
	red "video-content-factory/internal/infra/redis"
)

// pendingAttempt is an in-flight attempt parked at the waiting_confirm
// checkpoint. finalize performs the platform-visible publish action;
// cleanup releases the browser session if one is open.
type pendingAttempt struct {
	attempt  *model.PublishAttempt
	finalize func(ctx context.Context) (*adapter.PublishOutcome, error)
	cleanup  func()
}

// Protocol decides how a job is published to one platform and drives the
// attempt through its sub-state machine.
type Protocol struct {
	accounts   repository.AccountRepository
	attempts   repository.PublishAttemptRepository
	jobs       repository.JobRepository
	limiter    *red.RateLimiter
	publishers map[model.Platform]adapter.PlatformPublisher
	browser    adapter.BrowserDriver
	notifier   adapter.AlertNotifier
	hub        *events.Hub
	log        *zerolog.Logger

	mu      sync.Mutex
	waiting map[string]*pendingAttempt
}

func NewProtocol(
	accounts repository.AccountRepository,
	attempts repository.PublishAttemptRepository,
	jobs repository.JobRepository,
	limiter *red.RateLimiter,
	publishers []adapter.PlatformPublisher,
	browser adapter.BrowserDriver,
	notifier adapter.AlertNotifier,
	hub *events.Hub,
	logger *zerolog.Logger,
) *Protocol {
	byPlatform := make(map[model.Platform]adapter.PlatformPublisher, len(publishers))
	for _, p := range publishers {
		byPlatform[p.Platform()] = p
	}
	protoLog := logger.With().Str("component", "PublishProtocol").Logger()
	return &Protocol{
		accounts:   accounts,
		attempts:   attempts,
		jobs:       jobs,
		limiter:    limiter,
		publishers: byPlatform,
		browser:    browser,
		notifier:   notifier,
		hub:        hub,
		log:        &protoLog,
		waiting:    make(map[string]*pendingAttempt),
	}
}

// Execute runs one publish attempt for a job/platform pair. The returned
// attempt is terminal (posted/failed) or parked at waiting_confirm. The
// error return is reserved for storage problems; publish failures are
// recorded on the attempt itself.
func (p *Protocol) Execute(ctx context.Context, job *model.Job, platform model.Platform) (*model.PublishAttempt, error) {
	account, err := p.accounts.FindByID(ctx, nil, job.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load account %d: %w", job.AccountID, err)
	}

	attempt := model.NewPublishAttempt(newAttemptID(), job.ID, platform)

	// Rate limits are checked before any external system is contacted.
	if err := p.checkRateLimits(ctx, account, platform); err != nil {
		metrics.IncPublishRateLimited(string(platform))
		attempt.FailWith(err)
		p.finish(ctx, account, attempt)
		return attempt, nil
	}

	strategy, pinned := p.selectStrategy(account, platform)
	attempt.Strategy = strategy
	attempt.Logf("strategy %s selected (mode=%s)", strategy, account.PublishMode)

	switch strategy {
	case model.StrategyDirectAPI:
		err := p.runDirectAPI(ctx, job, account, attempt)
		if err == nil {
			p.finish(ctx, account, attempt)
			return attempt, nil
		}
		attempt.FailWith(err)
		if pinned {
			p.finish(ctx, account, attempt)
			return attempt, nil
		}
		// One fallback per invocation, never the other direction.
		metrics.IncPublishFallback(string(platform))
		attempt.ResetForFallback()
		fallthrough
	case model.StrategyBrowserAssisted:
		if err := p.runBrowserAssisted(ctx, job, account, attempt); err != nil {
			attempt.FailWith(err)
		}
	}

	p.finish(ctx, account, attempt)
	return attempt, nil
}

// checkRateLimits enforces the minimum gap and daily cap for the
// account's presence on one platform. Platforms do not share a cooldown:
// a multi-platform job posts everywhere its flags say, each platform
// gated on its own last-post timestamp.
func (p *Protocol) checkRateLimits(ctx context.Context, account *model.Account, platform model.Platform) error {
	if account.MinHoursBetweenPosts > 0 {
		if last, ok := account.LastPostOn(platform); ok {
			if elapsed := time.Since(last); elapsed < account.PostCooldown() {
				return fmt.Errorf("%w: %s since last %s post, need %s",
					domain.ErrRateLimited, elapsed.Round(time.Minute), platform, account.PostCooldown())
			}
		}
	}
	if p.limiter != nil && account.MaxPostsPerDay > 0 {
		ok, err := p.limiter.AllowDaily(ctx, account.ID, string(platform), account.MaxPostsPerDay)
		if err != nil {
			p.log.Warn().Err(err).Int64("account_id", account.ID).Msg("daily limit check failed, allowing")
		} else if !ok {
			return domain.ErrDailyLimitReached
		}
	}
	return nil
}

// selectStrategy applies the account's configured mode. pinned=true means
// no fallback is allowed.
func (p *Protocol) selectStrategy(account *model.Account, platform model.Platform) (model.PublishStrategy, bool) {
	switch account.PublishMode {
	case model.PublishModeDirectAPI:
		return model.StrategyDirectAPI, true
	case model.PublishModeBrowserAssisted:
		return model.StrategyBrowserAssisted, true
	default: // auto
		if account.DirectAPIEligible(platform) {
			return model.StrategyDirectAPI, false
		}
		return model.StrategyBrowserAssisted, true
	}
}

func (p *Protocol) runDirectAPI(ctx context.Context, job *model.Job, account *model.Account, attempt *model.PublishAttempt) error {
	if err := attempt.Advance(model.AttemptStatusConnecting); err != nil {
		return err
	}
	pub, ok := p.publishers[attempt.Platform]
	if !ok || !account.HasCredentials(attempt.Platform) {
		p.alert(ctx, fmt.Sprintf("job %d: no API credentials for %s", job.ID, attempt.Platform))
		return domain.ErrConfigMissing
	}

	if err := attempt.Advance(model.AttemptStatusUploading); err != nil {
		return err
	}
	outcome, err := pub.Publish(ctx, job.VideoPath, metadataFor(job, attempt.Platform), account.CredentialRefs[attempt.Platform])
	if err != nil {
		return fmt.Errorf("direct api publish: %w", err)
	}
	attempt.ResultID = outcome.PlatformID
	attempt.ResultURL = outcome.URL
	if err := attempt.Advance(model.AttemptStatusReadyToPost); err != nil {
		return err
	}

	if !account.AutoConfirm {
		p.park(attempt, func(context.Context) (*adapter.PublishOutcome, error) {
			// Upload already finished; confirmation is bookkeeping only.
			return outcome, nil
		}, nil)
		return attempt.Advance(model.AttemptStatusWaitingConfirm)
	}
	return attempt.Advance(model.AttemptStatusPosted)
}

func (p *Protocol) runBrowserAssisted(ctx context.Context, job *model.Job, account *model.Account, attempt *model.PublishAttempt) error {
	if p.browser == nil {
		return domain.ErrConfigMissing
	}
	if err := attempt.Advance(model.AttemptStatusConnecting); err != nil {
		return err
	}
	session, err := p.browser.OpenSession(ctx, account, attempt.Platform)
	if err != nil {
		return fmt.Errorf("open browser session: %w", err)
	}

	loggedIn, err := session.VerifyLogin(ctx)
	if err != nil {
		session.Close()
		return fmt.Errorf("verify login: %w", err)
	}
	if !loggedIn {
		_ = attempt.Advance(model.AttemptStatusNeedsLogin)
		_ = session.OpenLogin(ctx)
		session.Close()
		p.alert(ctx, fmt.Sprintf("job %d: %s browser session expired, manual login required", job.ID, attempt.Platform))
		return fmt.Errorf("%w: browser session for %s requires login", domain.ErrConfigMissing, attempt.Platform)
	}

	if err := attempt.Advance(model.AttemptStatusUploading); err != nil {
		session.Close()
		return err
	}
	if err := session.UploadAndFillMetadata(ctx, job.VideoPath, metadataFor(job, attempt.Platform)); err != nil {
		if shot, serr := session.Screenshot(ctx); serr == nil {
			attempt.Logf("failure screenshot: %s", shot)
		}
		session.Close()
		return fmt.Errorf("browser upload: %w", err)
	}
	if err := attempt.Advance(model.AttemptStatusReadyToPost); err != nil {
		session.Close()
		return err
	}

	if !account.AutoConfirm {
		// Keep the session open until the operator confirms; it belongs
		// to this attempt alone.
		p.park(attempt, session.ConfirmPublish, session.Close)
		return attempt.Advance(model.AttemptStatusWaitingConfirm)
	}

	outcome, err := session.ConfirmPublish(ctx)
	session.Close()
	if err != nil {
		return fmt.Errorf("confirm publish: %w", err)
	}
	attempt.ResultID = outcome.PlatformID
	attempt.ResultURL = outcome.URL
	return attempt.Advance(model.AttemptStatusPosted)
}

// Confirm completes an attempt parked at waiting_confirm.
func (p *Protocol) Confirm(ctx context.Context, attemptID string) (*model.PublishAttempt, error) {
	p.mu.Lock()
	pending, ok := p.waiting[attemptID]
	if ok {
		delete(p.waiting, attemptID)
	}
	p.mu.Unlock()
	if !ok {
		return nil, domain.ErrConfirmNotPending
	}
	attempt := pending.attempt
	if pending.cleanup != nil {
		defer pending.cleanup()
	}

	outcome, err := pending.finalize(ctx)
	if err != nil {
		attempt.FailWith(fmt.Errorf("confirm publish: %w", err))
	} else {
		attempt.ResultID = outcome.PlatformID
		attempt.ResultURL = outcome.URL
		if aerr := attempt.Advance(model.AttemptStatusPosted); aerr != nil {
			return attempt, aerr
		}
	}

	p.finishConfirmed(ctx, attempt)
	return attempt, nil
}

// Cancel aborts an attempt parked at waiting_confirm.
func (p *Protocol) Cancel(ctx context.Context, attemptID string) (*model.PublishAttempt, error) {
	p.mu.Lock()
	pending, ok := p.waiting[attemptID]
	if ok {
		delete(p.waiting, attemptID)
	}
	p.mu.Unlock()
	if !ok {
		return nil, domain.ErrConfirmNotPending
	}
	if pending.cleanup != nil {
		pending.cleanup()
	}
	attempt := pending.attempt
	_ = attempt.Advance(model.AttemptStatusCancelled)
	if err := p.attempts.SaveTerminal(ctx, nil, attempt); err != nil {
		p.log.Error().Err(err).Str("attempt_id", attempt.ID).Msg("persist cancelled attempt")
	}
	metrics.IncPublishAttempt(string(attempt.Platform), string(attempt.Strategy), string(attempt.Status))
	return attempt, nil
}

// Waiting returns a parked attempt by id, for API introspection.
func (p *Protocol) Waiting(attemptID string) (*model.PublishAttempt, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pending, ok := p.waiting[attemptID]
	if !ok {
		return nil, false
	}
	return pending.attempt, true
}

func (p *Protocol) park(attempt *model.PublishAttempt, finalize func(ctx context.Context) (*adapter.PublishOutcome, error), cleanup func()) {
	p.mu.Lock()
	p.waiting[attempt.ID] = &pendingAttempt{attempt: attempt, finalize: finalize, cleanup: cleanup}
	p.mu.Unlock()
	p.alertWaiting(attempt)
}

func (p *Protocol) alertWaiting(attempt *model.PublishAttempt) {
	p.alert(context.Background(), fmt.Sprintf(
		"job %d: %s publish ready, waiting for confirmation (attempt %s)",
		attempt.JobID, attempt.Platform, attempt.ID))
}

func (p *Protocol) alert(ctx context.Context, msg string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Alert(ctx, msg); err != nil {
		p.log.Debug().Err(err).Msg("alert delivery failed")
	}
}

// finish records a terminal or parked attempt: metrics, persistence and
// the account's last-post timestamp on success.
func (p *Protocol) finish(ctx context.Context, account *model.Account, attempt *model.PublishAttempt) {
	metrics.IncPublishAttempt(string(attempt.Platform), string(attempt.Strategy), string(attempt.Status))
	if !attempt.Status.Terminal() {
		return // waiting_confirm: persisted once resolved
	}
	if attempt.Status == model.AttemptStatusPosted {
		if err := p.accounts.TouchLastPost(ctx, nil, account.ID, attempt.Platform, time.Now()); err != nil {
			p.log.Error().Err(err).Int64("account_id", account.ID).Msg("touch last post time")
		}
	}
	if err := p.attempts.SaveTerminal(ctx, nil, attempt); err != nil {
		p.log.Error().Err(err).Str("attempt_id", attempt.ID).Msg("persist attempt")
	}
}

// finishConfirmed persists a confirmed attempt and folds the outcome back
// into the job row.
func (p *Protocol) finishConfirmed(ctx context.Context, attempt *model.PublishAttempt) {
	metrics.IncPublishAttempt(string(attempt.Platform), string(attempt.Strategy), string(attempt.Status))
	if err := p.attempts.SaveTerminal(ctx, nil, attempt); err != nil {
		p.log.Error().Err(err).Str("attempt_id", attempt.ID).Msg("persist attempt")
	}

	job, err := p.jobs.FindByID(ctx, nil, attempt.JobID)
	if err != nil {
		p.log.Error().Err(err).Int64("job_id", attempt.JobID).Msg("load job after confirm")
		return
	}
	if job.PublishResults == nil {
		job.PublishResults = make(map[model.Platform]model.PublishResult)
	}
	job.PublishResults[attempt.Platform] = resultFrom(attempt)

	if attempt.Status == model.AttemptStatusPosted {
		if err := p.accounts.TouchLastPost(ctx, nil, job.AccountID, attempt.Platform, time.Now()); err != nil {
			p.log.Error().Err(err).Int64("account_id", job.AccountID).Msg("touch last post time")
		}
	}

	// The job completes once nothing remains parked for it.
	if job.Status == model.JobStatusPublishing && !p.hasWaitingForJob(job.ID) {
		if anyPosted(job.PublishResults) {
			job.Status = model.JobStatusPublished
			job.SetProgress(100)
			now := time.Now()
			job.CompletedAt = &now
		} else {
			job.Fail("all publish attempts failed")
		}
	}
	if err := p.jobs.Save(ctx, nil, job); err != nil {
		p.log.Error().Err(err).Int64("job_id", job.ID).Msg("save job after confirm")
		return
	}
	if p.hub != nil {
		p.hub.JobUpdate(ctx, job.ID, string(job.Status), job.ProgressPercent)
	}
}

func (p *Protocol) hasWaitingForJob(jobID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, pending := range p.waiting {
		if pending.attempt.JobID == jobID {
			return true
		}
	}
	return false
}

// resultFrom maps a finished attempt onto the job's publish_results entry.
func resultFrom(a *model.PublishAttempt) model.PublishResult {
	switch a.Status {
	case model.AttemptStatusPosted:
		return model.PublishResult{Status: "posted", PlatformID: a.ResultID, URL: a.ResultURL}
	case model.AttemptStatusWaitingConfirm:
		return model.PublishResult{Status: "waiting_confirm", Message: "awaiting manual confirmation"}
	default:
		return model.PublishResult{Status: "failed", Message: a.Error}
	}
}

// ResultFor exposes resultFrom to the stage runner.
func ResultFor(a *model.PublishAttempt) model.PublishResult { return resultFrom(a) }

func metadataFor(job *model.Job, platform model.Platform) adapter.VideoMetadata {
	return adapter.VideoMetadata{
		Title:       job.Topic,
		Description: job.ScriptHook,
		Platform:    platform,
	}
}

func newAttemptID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

func anyPosted(results map[model.Platform]model.PublishResult) bool {
	for _, r := range results {
		if r.Status == "posted" {
			return true
		}
	}
	return false
}
