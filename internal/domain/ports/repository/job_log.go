package repository

import (
	"context"

	"video-content-factory/internal/domain/model"
)

type JobLogRepository interface {
	// Append writes one immutable log entry.
	Append(ctx context.Context, tx Tx, entry *model.JobLogEntry) error
	// ListByJob returns entries ordered by created_at ascending.
	ListByJob(ctx context.Context, tx Tx, jobID int64) ([]*model.JobLogEntry, error)
}
