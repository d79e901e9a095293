package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"video-content-factory/internal/domain"
	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct {
	pool *pgxpool.Pool
}

func NewAccountRepo(pool *pgxpool.Pool) *accountRepo {
	return &accountRepo{pool: pool}
}

const accountColumns = `
id, name, niche, automated, publish_mode, auto_confirm, api_connected,
credential_refs, max_posts_per_day, min_hours_between_posts, last_post_times,
schedule, created_at, updated_at`

func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, acc *model.Account) error {
	acc.UpdatedAt = time.Now()
	creds, err := json.Marshal(acc.CredentialRefs)
	if err != nil {
		return fmt.Errorf("marshal credential_refs: %w", err)
	}
	schedule, err := json.Marshal(acc.Schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}
	lastPosts, err := json.Marshal(acc.LastPostTimes)
	if err != nil {
		return fmt.Errorf("marshal last_post_times: %w", err)
	}

	if acc.ID == 0 {
		const q = `
INSERT INTO accounts (name, niche, automated, publish_mode, auto_confirm, api_connected,
  credential_refs, max_posts_per_day, min_hours_between_posts, last_post_times,
  schedule, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING id;`
		row, err := pickRow(ctx, r.pool, tx, q,
			acc.Name, acc.Niche, acc.Automated, acc.PublishMode, acc.AutoConfirm, acc.APIConnected,
			creds, acc.MaxPostsPerDay, acc.MinHoursBetweenPosts, lastPosts,
			schedule, acc.CreatedAt, acc.UpdatedAt)
		if err != nil {
			return err
		}
		return row.Scan(&acc.ID)
	}

	const q = `
UPDATE accounts SET
  name = $2, niche = $3, automated = $4, publish_mode = $5, auto_confirm = $6,
  api_connected = $7, credential_refs = $8, max_posts_per_day = $9,
  min_hours_between_posts = $10, last_post_times = $11, schedule = $12, updated_at = $13
WHERE id = $1;`
	_, err = execSQL(ctx, r.pool, tx, q,
		acc.ID, acc.Name, acc.Niche, acc.Automated, acc.PublishMode, acc.AutoConfirm,
		acc.APIConnected, creds, acc.MaxPostsPerDay,
		acc.MinHoursBetweenPosts, lastPosts, schedule, acc.UpdatedAt)
	return err
}

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanAccount(row)
}

func (r *accountRepo) ListAutomated(ctx context.Context, tx repository.Tx) ([]*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE automated ORDER BY id;`
	rows, err := pickRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (r *accountRepo) TouchLastPost(ctx context.Context, tx repository.Tx, id int64, platform model.Platform, at time.Time) error {
	const q = `
UPDATE accounts SET
  last_post_times = COALESCE(last_post_times, '{}'::jsonb) || jsonb_build_object($2::text, to_jsonb($3::timestamptz)),
  updated_at = now()
WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, string(platform), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	var mode string
	var creds, lastPosts, schedule []byte
	err := row.Scan(
		&a.ID, &a.Name, &a.Niche, &a.Automated, &mode, &a.AutoConfirm, &a.APIConnected,
		&creds, &a.MaxPostsPerDay, &a.MinHoursBetweenPosts, &lastPosts,
		&schedule, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, translateScanErr(err)
	}
	a.PublishMode = model.PublishMode(mode)
	if len(creds) > 0 {
		if err := json.Unmarshal(creds, &a.CredentialRefs); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(lastPosts) > 0 {
		if err := json.Unmarshal(lastPosts, &a.LastPostTimes); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(schedule) > 0 {
		if err := json.Unmarshal(schedule, &a.Schedule); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &a, nil
}
