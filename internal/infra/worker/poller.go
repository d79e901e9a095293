package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"video-content-factory/internal/domain"
	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/repository"
	"video-content-factory/internal/infra/metrics"
)

// Poller discovers eligible jobs and hands them to the stage runner. Two
// sweeps feed one execution path: a short-interval immediate sweep for
// unscheduled pending jobs and a longer due-schedule sweep for jobs whose
// scheduled_at has passed. The claim (select + flip to queued) happens
// inside one transaction in the repository, so a job is never dispatched
// twice.
type Poller struct {
	jobs   repository.JobRepository
	runner *StageRunner
	pool   *Pool

	pollInterval     time.Duration
	scheduleInterval time.Duration
	concurrency      int

	mu       sync.Mutex
	inFlight map[int64]struct{}

	log *zerolog.Logger
}

func NewPoller(
	jobs repository.JobRepository,
	runner *StageRunner,
	pool *Pool,
	pollInterval, scheduleInterval time.Duration,
	concurrency int,
	logger *zerolog.Logger,
) *Poller {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if scheduleInterval <= 0 {
		scheduleInterval = time.Minute
	}
	if concurrency <= 0 {
		concurrency = 2
	}
	pollLog := logger.With().Str("component", "Poller").Logger()
	return &Poller{
		jobs:             jobs,
		runner:           runner,
		pool:             pool,
		pollInterval:     pollInterval,
		scheduleInterval: scheduleInterval,
		concurrency:      concurrency,
		inFlight:         make(map[int64]struct{}),
		log:              &pollLog,
	}
}

// Start runs both sweep loops until ctx is cancelled. It blocks; run it
// in a goroutine.
func (p *Poller) Start(ctx context.Context) {
	p.log.Info().Dur("poll", p.pollInterval).Dur("schedule", p.scheduleInterval).
		Int("concurrency", p.concurrency).Msg("poller started")

	immediate := time.NewTicker(p.pollInterval)
	due := time.NewTicker(p.scheduleInterval)
	defer immediate.Stop()
	defer due.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("poller stopping")
			return
		case <-immediate.C:
			p.sweep(ctx, func(ctx context.Context) (*model.Job, error) {
				return p.jobs.ClaimNextImmediate(ctx)
			})
		case <-due.C:
			p.sweep(ctx, func(ctx context.Context) (*model.Job, error) {
				return p.jobs.ClaimNextDue(ctx, time.Now())
			})
		}
	}
}

// sweep claims jobs until the concurrency budget is used or nothing is
// eligible. Each claimed job runs as one pool task.
func (p *Poller) sweep(ctx context.Context, claim func(context.Context) (*model.Job, error)) {
	for p.freeSlots() > 0 {
		job, err := claim(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				p.log.Error().Err(err).Msg("claim failed")
			}
			return
		}
		p.track(job.ID)
		p.log.Info().Int64("job_id", job.ID).Str("type", string(job.JobType)).Msg("job claimed")

		jobRef := job
		if err := p.pool.Submit(func(taskCtx context.Context) error {
			defer p.untrack(jobRef.ID)
			// Stage failures land on the job row; never on the loop.
			_ = p.runner.Run(taskCtx, jobRef)
			return nil
		}); err != nil {
			// Queue saturated: release the claim by putting the job back.
			p.untrack(jobRef.ID)
			jobRef.Status = model.JobStatusPending
			jobRef.StartedAt = nil
			if serr := p.jobs.Save(ctx, nil, jobRef); serr != nil {
				p.log.Error().Err(serr).Int64("job_id", jobRef.ID).Msg("unclaim failed")
			}
			return
		}
	}
}

func (p *Poller) freeSlots() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.concurrency - len(p.inFlight)
}

func (p *Poller) track(id int64) {
	p.mu.Lock()
	p.inFlight[id] = struct{}{}
	metrics.SetJobsInFlight(len(p.inFlight))
	p.mu.Unlock()
}

func (p *Poller) untrack(id int64) {
	p.mu.Lock()
	delete(p.inFlight, id)
	metrics.SetJobsInFlight(len(p.inFlight))
	p.mu.Unlock()
}

// InFlight reports the ids currently executing, for health checks.
func (p *Poller) InFlight() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int64, 0, len(p.inFlight))
	for id := range p.inFlight {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
