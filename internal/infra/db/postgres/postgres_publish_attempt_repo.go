package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"video-content-factory/internal/domain"
	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/repository"
)

var _ repository.PublishAttemptRepository = (*publishAttemptRepo)(nil)

type publishAttemptRepo struct {
	pool *pgxpool.Pool
}

func NewPublishAttemptRepo(pool *pgxpool.Pool) *publishAttemptRepo {
	return &publishAttemptRepo{pool: pool}
}

func (r *publishAttemptRepo) SaveTerminal(ctx context.Context, tx repository.Tx, a *model.PublishAttempt) error {
	if !a.Status.Terminal() {
		return domain.ErrInvalidArgument
	}
	lines, err := json.Marshal(a.Lines)
	if err != nil {
		return fmt.Errorf("marshal attempt lines: %w", err)
	}
	const q = `
INSERT INTO publish_attempts (id, job_id, platform, strategy, status, lines,
  result_id, result_url, error, created_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  lines = EXCLUDED.lines,
  result_id = EXCLUDED.result_id,
  result_url = EXCLUDED.result_url,
  error = EXCLUDED.error,
  finished_at = EXCLUDED.finished_at;`
	_, err = execSQL(ctx, r.pool, tx, q,
		a.ID, a.JobID, a.Platform, a.Strategy, a.Status, lines,
		a.ResultID, a.ResultURL, a.Error, a.CreatedAt, a.FinishedAt)
	return err
}

func (r *publishAttemptRepo) ListByJob(ctx context.Context, tx repository.Tx, jobID int64) ([]*model.PublishAttempt, error) {
	const q = `
SELECT id, job_id, platform, strategy, status, lines,
  result_id, result_url, error, created_at, finished_at
FROM publish_attempts
WHERE job_id = $1
ORDER BY created_at;`
	rows, err := pickRows(ctx, r.pool, tx, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PublishAttempt
	for rows.Next() {
		var a model.PublishAttempt
		var platform, strategy, status string
		var lines []byte
		if err := rows.Scan(&a.ID, &a.JobID, &platform, &strategy, &status, &lines,
			&a.ResultID, &a.ResultURL, &a.Error, &a.CreatedAt, &a.FinishedAt); err != nil {
			return nil, translateScanErr(err)
		}
		a.Platform = model.Platform(platform)
		a.Strategy = model.PublishStrategy(strategy)
		a.Status = model.AttemptStatus(status)
		if len(lines) > 0 {
			if err := json.Unmarshal(lines, &a.Lines); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
