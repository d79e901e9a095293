package repository

import (
	"context"
	"time"

	"video-content-factory/internal/domain/model"
)

// JobFilter narrows List queries. Zero values mean "no constraint".
type JobFilter struct {
	AccountID int64
	Status    model.JobStatus
	Limit     int
	Offset    int
}

type JobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.Job) error
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Job, error)
	List(ctx context.Context, tx Tx, f JobFilter) ([]*model.Job, error)
	Delete(ctx context.Context, tx Tx, id int64) error

	// ClaimNextImmediate atomically selects the oldest pending job with no
	// schedule and flips it to queued, so concurrent pollers never claim
	// the same row. Returns domain.ErrNotFound when nothing is eligible.
	ClaimNextImmediate(ctx context.Context) (*model.Job, error)

	// ClaimNextDue does the same for pending jobs whose scheduled_at has
	// passed, ordered by scheduled_at.
	ClaimNextDue(ctx context.Context, now time.Time) (*model.Job, error)

	// CountRecentForAccount counts non-terminal jobs created for the
	// account after since; the recurring scheduler's cooldown guard.
	CountRecentForAccount(ctx context.Context, accountID int64, since time.Time) (int, error)

	// ListScheduledOn returns jobs with a scheduled_at inside the given
	// day, used by the planner to avoid clustering slots.
	ListScheduledOn(ctx context.Context, accountID int64, day time.Time) ([]*model.Job, error)
}
