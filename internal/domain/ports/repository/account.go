package repository

import (
	"context"
	"time"

	"video-content-factory/internal/domain/model"
)

type AccountRepository interface {
	Save(ctx context.Context, tx Tx, acc *model.Account) error
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Account, error)
	// ListAutomated returns accounts with automation enabled, for trigger
	// registration.
	ListAutomated(ctx context.Context, tx Tx) ([]*model.Account, error)
	// TouchLastPost records a successful publish timestamp for one
	// platform.
	TouchLastPost(ctx context.Context, tx Tx, id int64, platform model.Platform, at time.Time) error
}
