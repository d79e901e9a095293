package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"video-content-factory/internal/domain"
	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/repository"
	"video-content-factory/internal/infra/events"
)

// CreateJobInput carries everything needed to enqueue a new job.
type CreateJobInput struct {
	AccountID   int64
	JobType     model.JobType
	Topic       string
	TopicSource model.TopicSource
	ScheduledAt *time.Time

	PublishYouTube   bool
	PublishTikTok    bool
	PublishInstagram bool
}

// JobUseCase implements the job lifecycle operations exposed to the
// outer surfaces. State changes go through the model methods so the
// transition rules hold no matter which surface asked.
type JobUseCase struct {
	jobs     repository.JobRepository
	logs     repository.JobLogRepository
	attempts repository.PublishAttemptRepository
	accounts repository.AccountRepository
	txm      repository.TransactionManager
	hub      *events.Hub
	log      *zerolog.Logger
}

func NewJobUseCase(
	jobs repository.JobRepository,
	logs repository.JobLogRepository,
	attempts repository.PublishAttemptRepository,
	accounts repository.AccountRepository,
	txm repository.TransactionManager,
	hub *events.Hub,
	logger *zerolog.Logger,
) *JobUseCase {
	ucLog := logger.With().Str("component", "JobUseCase").Logger()
	return &JobUseCase{
		jobs:     jobs,
		logs:     logs,
		attempts: attempts,
		accounts: accounts,
		txm:      txm,
		hub:      hub,
		log:      &ucLog,
	}
}

// Create validates the input and persists a new pending job.
func (uc *JobUseCase) Create(ctx context.Context, in CreateJobInput) (*model.Job, error) {
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return nil, fmt.Errorf("topic is required: %w", domain.ErrInvalidArgument)
	}
	switch in.JobType {
	case model.JobTypeGenerateOnly, model.JobTypeGenerateAndPublish, model.JobTypePublishExisting:
	default:
		return nil, fmt.Errorf("unknown job type %q: %w", in.JobType, domain.ErrInvalidArgument)
	}
	if in.JobType != model.JobTypeGenerateOnly &&
		!in.PublishYouTube && !in.PublishTikTok && !in.PublishInstagram {
		return nil, fmt.Errorf("publish job needs at least one platform: %w", domain.ErrInvalidArgument)
	}
	if _, err := uc.accounts.FindByID(ctx, nil, in.AccountID); err != nil {
		return nil, fmt.Errorf("account %d: %w", in.AccountID, err)
	}

	source := in.TopicSource
	if source == "" {
		source = model.TopicSourceManual
	}
	job := model.NewJob(in.AccountID, in.JobType, topic, source)
	job.ScheduledAt = in.ScheduledAt
	job.PublishYouTube = in.PublishYouTube
	job.PublishTikTok = in.PublishTikTok
	job.PublishInstagram = in.PublishInstagram

	if err := uc.jobs.Save(ctx, nil, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}
	uc.log.Info().Int64("job_id", job.ID).Int64("account_id", job.AccountID).
		Str("type", string(job.JobType)).Msg("job created")
	return job, nil
}

func (uc *JobUseCase) Get(ctx context.Context, id int64) (*model.Job, error) {
	return uc.jobs.FindByID(ctx, nil, id)
}

func (uc *JobUseCase) List(ctx context.Context, f repository.JobFilter) ([]*model.Job, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	return uc.jobs.List(ctx, nil, f)
}

// Delete removes a job that is not actively running. Pending jobs and
// terminal jobs may go; anything mid-pipeline must be cancelled or
// finished first.
func (uc *JobUseCase) Delete(ctx context.Context, id int64) error {
	return uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		job, err := uc.jobs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if job.Status != model.JobStatusPending && !job.Status.Terminal() {
			return fmt.Errorf("job %d is %s: %w", id, job.Status, domain.ErrInvalidTransition)
		}
		return uc.jobs.Delete(ctx, tx, id)
	})
}

// Retry puts a failed job back on the queue.
func (uc *JobUseCase) Retry(ctx context.Context, id int64) (*model.Job, error) {
	var job *model.Job
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		job, err = uc.jobs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := job.ResetForRetry(); err != nil {
			return err
		}
		return uc.jobs.Save(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	uc.hub.JobUpdate(ctx, job.ID, string(job.Status), job.ProgressPercent)
	uc.log.Info().Int64("job_id", id).Msg("job queued for retry")
	return job, nil
}

// Cancel stops a job that has not started running yet.
func (uc *JobUseCase) Cancel(ctx context.Context, id int64) (*model.Job, error) {
	var job *model.Job
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		job, err = uc.jobs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := job.Cancel(); err != nil {
			return err
		}
		return uc.jobs.Save(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	uc.hub.JobUpdate(ctx, job.ID, string(job.Status), job.ProgressPercent)
	uc.log.Info().Int64("job_id", id).Msg("job cancelled")
	return job, nil
}

// Approve releases a reviewed job. When publish is true the job becomes
// a publish-only run and the poll sweeps claim it from approved.
func (uc *JobUseCase) Approve(ctx context.Context, id int64, publish bool) (*model.Job, error) {
	var job *model.Job
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		job, err = uc.jobs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := job.Approve(publish); err != nil {
			return err
		}
		return uc.jobs.Save(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	uc.hub.JobUpdate(ctx, job.ID, string(job.Status), job.ProgressPercent)
	uc.log.Info().Int64("job_id", id).Bool("publish", publish).Msg("job approved")
	return job, nil
}

// RunNow drops the schedule on a pending job so the next immediate
// sweep claims it.
func (uc *JobUseCase) RunNow(ctx context.Context, id int64) (*model.Job, error) {
	var job *model.Job
	err := uc.txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		job, err = uc.jobs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if job.Status != model.JobStatusPending {
			return fmt.Errorf("job %d is %s: %w", id, job.Status, domain.ErrInvalidTransition)
		}
		job.ScheduledAt = nil
		job.UpdatedAt = time.Now()
		return uc.jobs.Save(ctx, tx, job)
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().Int64("job_id", id).Msg("job released to run now")
	return job, nil
}

// Logs returns the job's append-only execution log, oldest first.
func (uc *JobUseCase) Logs(ctx context.Context, jobID int64) ([]*model.JobLogEntry, error) {
	if _, err := uc.jobs.FindByID(ctx, nil, jobID); err != nil {
		return nil, err
	}
	return uc.logs.ListByJob(ctx, nil, jobID)
}

// Attempts returns the persisted publish attempts for a job.
func (uc *JobUseCase) Attempts(ctx context.Context, jobID int64) ([]*model.PublishAttempt, error) {
	if _, err := uc.jobs.FindByID(ctx, nil, jobID); err != nil {
		return nil, err
	}
	return uc.attempts.ListByJob(ctx, nil, jobID)
}
