package repository

import (
	"context"

	"video-content-factory/internal/domain/model"
)

type TemplateRepository interface {
	Save(ctx context.Context, tx Tx, tpl *model.ContentTemplate) error
	// ListByAccount returns all templates for the account, any order.
	ListByAccount(ctx context.Context, tx Tx, accountID int64) ([]*model.ContentTemplate, error)
	// IncrementUse bumps use_count after a template is materialized.
	IncrementUse(ctx context.Context, tx Tx, id int64) error
}
