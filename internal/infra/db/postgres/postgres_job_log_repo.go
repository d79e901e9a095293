package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/repository"
)

var _ repository.JobLogRepository = (*jobLogRepo)(nil)

type jobLogRepo struct {
	pool *pgxpool.Pool
}

func NewJobLogRepo(pool *pgxpool.Pool) *jobLogRepo {
	return &jobLogRepo{pool: pool}
}

func (r *jobLogRepo) Append(ctx context.Context, tx repository.Tx, entry *model.JobLogEntry) error {
	const q = `
INSERT INTO job_logs (job_id, level, stage, message, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id;`
	row, err := pickRow(ctx, r.pool, tx, q, entry.JobID, entry.Level, entry.Stage, entry.Message, entry.CreatedAt)
	if err != nil {
		return err
	}
	return row.Scan(&entry.ID)
}

func (r *jobLogRepo) ListByJob(ctx context.Context, tx repository.Tx, jobID int64) ([]*model.JobLogEntry, error) {
	const q = `
SELECT id, job_id, level, stage, message, created_at
FROM job_logs
WHERE job_id = $1
ORDER BY created_at, id;`
	rows, err := pickRows(ctx, r.pool, tx, q, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.JobLogEntry
	for rows.Next() {
		var e model.JobLogEntry
		var level string
		if err := rows.Scan(&e.ID, &e.JobID, &level, &e.Stage, &e.Message, &e.CreatedAt); err != nil {
			return nil, translateScanErr(err)
		}
		e.Level = model.LogLevel(level)
		out = append(out, &e)
	}
	return out, rows.Err()
}
