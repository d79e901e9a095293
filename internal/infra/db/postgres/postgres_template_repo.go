package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"video-content-factory/internal/domain"
	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/repository"
)

var _ repository.TemplateRepository = (*templateRepo)(nil)

type templateRepo struct {
	pool *pgxpool.Pool
}

func NewTemplateRepo(pool *pgxpool.Pool) *templateRepo {
	return &templateRepo{pool: pool}
}

func (r *templateRepo) Save(ctx context.Context, tx repository.Tx, tpl *model.ContentTemplate) error {
	tpl.UpdatedAt = time.Now()
	if tpl.ID == 0 {
		const q = `
INSERT INTO content_templates (account_id, name, topic_pattern, performance_score,
  recent_engagement, use_count, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id;`
		row, err := pickRow(ctx, r.pool, tx, q,
			tpl.AccountID, tpl.Name, tpl.TopicPattern, tpl.PerformanceScore,
			tpl.RecentEngagement, tpl.UseCount, tpl.CreatedAt, tpl.UpdatedAt)
		if err != nil {
			return err
		}
		return row.Scan(&tpl.ID)
	}

	const q = `
UPDATE content_templates SET
  name = $2, topic_pattern = $3, performance_score = $4,
  recent_engagement = $5, use_count = $6, updated_at = $7
WHERE id = $1;`
	_, err := execSQL(ctx, r.pool, tx, q,
		tpl.ID, tpl.Name, tpl.TopicPattern, tpl.PerformanceScore,
		tpl.RecentEngagement, tpl.UseCount, tpl.UpdatedAt)
	return err
}

func (r *templateRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID int64) ([]*model.ContentTemplate, error) {
	const q = `
SELECT id, account_id, name, topic_pattern, performance_score,
  recent_engagement, use_count, created_at, updated_at
FROM content_templates
WHERE account_id = $1;`
	rows, err := pickRows(ctx, r.pool, tx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ContentTemplate
	for rows.Next() {
		var t model.ContentTemplate
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Name, &t.TopicPattern,
			&t.PerformanceScore, &t.RecentEngagement, &t.UseCount,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, translateScanErr(err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r *templateRepo) IncrementUse(ctx context.Context, tx repository.Tx, id int64) error {
	tag, err := execSQL(ctx, r.pool, tx,
		`UPDATE content_templates SET use_count = use_count + 1, updated_at = now() WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
