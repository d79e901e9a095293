// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

type Task func(ctx context.Context) error

// Pool runs submitted tasks on a bounded set of workers. A separate
// heavy-compute gate bounds simultaneous GPU-bound stage invocations
// below the job concurrency, so two rendering jobs cannot exhaust the
// shared compute resource.
type Pool struct {
	wg    sync.WaitGroup
	jobs  chan Task
	quit  chan struct{}
	n     int
	heavy chan struct{}
	// cleanup runs best-effort between heavy-compute invocations.
	cleanup func()
	log     *zerolog.Logger
}

func NewPool(workers, heavySlots int, cleanup func(), logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if heavySlots <= 0 || heavySlots > workers {
		heavySlots = 1
	}
	poolLog := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{
		jobs:    make(chan Task, workers*4),
		quit:    make(chan struct{}),
		n:       workers,
		heavy:   make(chan struct{}, heavySlots),
		cleanup: cleanup,
		log:     &poolLog,
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					if task == nil {
						continue
					}
					if err := task(ctx); err != nil {
						p.log.Error().Err(err).Int("worker", id).Msg("task error")
					}
				}
			}
		}(i)
	}
}

func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		// drop when saturated to avoid back-pressure
		return errors.New("worker queue full")
	}
}

// AcquireHeavy blocks until a heavy-compute slot is free and returns the
// release func. Release also runs the cleanup hook.
func (p *Pool) AcquireHeavy(ctx context.Context) (func(), error) {
	select {
	case p.heavy <- struct{}{}:
		return func() {
			if p.cleanup != nil {
				p.cleanup()
			}
			<-p.heavy
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
