package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"video-content-factory/internal/domain"
	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/repository"
	"video-content-factory/internal/infra/metrics"
	red "video-content-factory/internal/infra/redis"
)

// Recurring materializes each automated account's posting policy into
// concrete pending jobs. One cron trigger exists per (account, platform,
// time-of-day) tuple; firing is deduplicated by a cooldown window so a
// rapid double-fire cannot create two jobs.
type Recurring struct {
	accounts  repository.AccountRepository
	jobs      repository.JobRepository
	templates repository.TemplateRepository
	locker    red.Locker

	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]cron.EntryID

	cooldown    time.Duration
	provenRatio float64
	rnd         *rand.Rand
	rndMu       sync.Mutex

	log *zerolog.Logger
}

func NewRecurring(
	accounts repository.AccountRepository,
	jobs repository.JobRepository,
	templates repository.TemplateRepository,
	locker red.Locker,
	cooldown time.Duration,
	provenRatio float64,
	loc *time.Location,
	logger *zerolog.Logger,
) *Recurring {
	if cooldown <= 0 {
		cooldown = 4 * time.Hour
	}
	if provenRatio <= 0 || provenRatio > 1 {
		provenRatio = 0.7
	}
	if loc == nil {
		loc = time.UTC
	}
	schedLog := logger.With().Str("component", "RecurringScheduler").Logger()
	return &Recurring{
		accounts:    accounts,
		jobs:        jobs,
		templates:   templates,
		locker:      locker,
		cron:        cron.New(cron.WithLocation(loc)),
		entries:     make(map[string]cron.EntryID),
		cooldown:    cooldown,
		provenRatio: provenRatio,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		log:         &schedLog,
	}
}

func (s *Recurring) Start() { s.cron.Start() }

func (s *Recurring) Stop() {
	<-s.cron.Stop().Done()
}

// Reload recomputes the full trigger set from current account policies
// and swaps it in place. It is idempotent: reloading with unchanged
// policies neither loses nor duplicates triggers.
func (s *Recurring) Reload(ctx context.Context) error {
	accounts, err := s.accounts.ListAutomated(ctx, nil)
	if err != nil {
		return fmt.Errorf("list automated accounts: %w", err)
	}

	type trigger struct {
		accountID int64
		platform  model.Platform
		spec      string
	}
	desired := make(map[string]trigger)
	for _, acc := range accounts {
		for _, entry := range acc.Schedule {
			spec, err := cronSpec(entry.TimeOfDay)
			if err != nil {
				s.log.Warn().Int64("account_id", acc.ID).Str("time", entry.TimeOfDay).Msg("invalid schedule entry, skipped")
				continue
			}
			desired[triggerKey(acc.ID, entry.Platform, entry.TimeOfDay)] = trigger{acc.ID, entry.Platform, spec}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop triggers whose policy entry disappeared.
	for key, id := range s.entries {
		if _, keep := desired[key]; !keep {
			s.cron.Remove(id)
			delete(s.entries, key)
		}
	}
	// Register new ones; existing keys keep their entry untouched.
	for key, d := range desired {
		if _, exists := s.entries[key]; exists {
			continue
		}
		accountID, platform := d.accountID, d.platform
		id, err := s.cron.AddFunc(d.spec, func() { s.fire(accountID, platform) })
		if err != nil {
			return fmt.Errorf("register trigger %s: %w", key, err)
		}
		s.entries[key] = id
	}

	metrics.SetSchedulerTriggers(len(s.entries))
	s.log.Info().Int("triggers", len(s.entries)).Msg("trigger set reloaded")
	return nil
}

func (s *Recurring) fire(accountID int64, platform model.Platform) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Per-account lock: concurrent fires for the same account serialize.
	token, err := s.locker.TryLock(ctx, lockKey(accountID), time.Minute)
	if err != nil {
		s.log.Info().Int64("account_id", accountID).Msg("trigger skipped, lock held")
		return
	}
	defer func() { _ = s.locker.Unlock(ctx, lockKey(accountID), token) }()

	if _, err := s.Materialize(ctx, accountID, platform, model.TopicSourceAutoSchedule, false); err != nil {
		if errors.Is(err, domain.ErrDuplicateSchedule) {
			return // already logged at info level
		}
		s.log.Error().Err(err).Int64("account_id", accountID).Msg("trigger materialization failed")
	}
}

// Materialize creates one pending job for the account unless the cooldown
// guard finds recent work. force bypasses the guard (manual trigger).
func (s *Recurring) Materialize(ctx context.Context, accountID int64, platform model.Platform, source model.TopicSource, force bool) (*model.Job, error) {
	account, err := s.accounts.FindByID(ctx, nil, accountID)
	if err != nil {
		return nil, fmt.Errorf("load account %d: %w", accountID, err)
	}
	if !account.Automated && !force {
		return nil, domain.ErrAutomationDisabled
	}

	if !force {
		count, err := s.jobs.CountRecentForAccount(ctx, accountID, time.Now().Add(-s.cooldown))
		if err != nil {
			return nil, fmt.Errorf("cooldown check: %w", err)
		}
		if count > 0 {
			metrics.IncSchedulerSkipped()
			s.log.Info().Int64("account_id", accountID).Int("recent", count).Msg("materialization skipped, cooldown active")
			return nil, domain.ErrDuplicateSchedule
		}
	}

	topic, tpl := s.pickTopic(ctx, account)
	job := model.NewJob(accountID, model.JobTypeGenerateAndPublish, topic, source)
	setPlatformFlag(job, platform)

	if err := s.jobs.Save(ctx, nil, job); err != nil {
		return nil, fmt.Errorf("save materialized job: %w", err)
	}
	if tpl != nil {
		if err := s.templates.IncrementUse(ctx, nil, tpl.ID); err != nil {
			s.log.Warn().Err(err).Int64("template_id", tpl.ID).Msg("increment template use")
		}
	}
	metrics.IncSchedulerMaterialized(string(source))
	s.log.Info().Int64("account_id", accountID).Int64("job_id", job.ID).
		Str("platform", string(platform)).Str("topic", topic).Msg("job materialized")
	return job, nil
}

// pickTopic applies the proven-vs-experimental template policy: with
// probability provenRatio draw from the top half by weight, otherwise
// from the bottom half.
func (s *Recurring) pickTopic(ctx context.Context, account *model.Account) (string, *model.ContentTemplate) {
	templates, err := s.templates.ListByAccount(ctx, nil, account.ID)
	if err != nil || len(templates) == 0 {
		return fmt.Sprintf("daily %s video", account.Niche), nil
	}

	sort.Slice(templates, func(i, j int) bool { return templates[i].Weight() > templates[j].Weight() })

	half := len(templates) / 2
	if half == 0 {
		half = 1
	}
	proven, experimental := templates[:half], templates[half:]
	if len(experimental) == 0 {
		experimental = proven
	}

	s.rndMu.Lock()
	roll := s.rnd.Float64()
	var pool []*model.ContentTemplate
	if roll < s.provenRatio {
		pool = proven
	} else {
		pool = experimental
	}
	tpl := pool[s.rnd.Intn(len(pool))]
	s.rndMu.Unlock()

	return tpl.DeriveTopic(time.Now()), tpl
}

// TriggerInfo describes one registered trigger for introspection.
type TriggerInfo struct {
	Key      string    `json:"key"`
	NextFire time.Time `json:"next_fire"`
}

// Triggers lists active triggers with their next fire times.
func (s *Recurring) Triggers() []TriggerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TriggerInfo, 0, len(s.entries))
	for key, id := range s.entries {
		entry := s.cron.Entry(id)
		out = append(out, TriggerInfo{Key: key, NextFire: entry.Next})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func setPlatformFlag(job *model.Job, platform model.Platform) {
	switch platform {
	case model.PlatformYouTube:
		job.PublishYouTube = true
	case model.PlatformTikTok:
		job.PublishTikTok = true
	case model.PlatformInstagram:
		job.PublishInstagram = true
	}
}

// cronSpec converts "HH:MM" into a daily cron expression.
func cronSpec(timeOfDay string) (string, error) {
	parts := strings.SplitN(timeOfDay, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("malformed time of day %q", timeOfDay)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("malformed hour in %q", timeOfDay)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("malformed minute in %q", timeOfDay)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func triggerKey(accountID int64, platform model.Platform, timeOfDay string) string {
	return fmt.Sprintf("%d:%s:%s", accountID, platform, timeOfDay)
}

func lockKey(accountID int64) string {
	return fmt.Sprintf("sched_lock:%d", accountID)
}
