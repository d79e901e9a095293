package repository

import (
	"context"

	"video-content-factory/internal/domain/model"
)

type PublishAttemptRepository interface {
	// SaveTerminal persists an attempt once it reached posted, failed or
	// cancelled. In-flight attempts live only in the protocol's registry.
	SaveTerminal(ctx context.Context, tx Tx, a *model.PublishAttempt) error
	ListByJob(ctx context.Context, tx Tx, jobID int64) ([]*model.PublishAttempt, error)
}
