package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"video-content-factory/internal/domain"
	"video-content-factory/internal/domain/model"
	"video-content-factory/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

const jobColumns = `
id, account_id, job_type, status, topic, topic_source,
script_hook, script_body, script_cta, script_text,
audio_path, subtitle_path, video_path, thumbnail_path,
progress_percent, error_message, scheduled_at,
publish_youtube, publish_tiktok, publish_instagram, publish_results,
created_at, updated_at, started_at, completed_at`

func (r *jobRepo) Save(ctx context.Context, tx repository.Tx, job *model.Job) error {
	job.UpdatedAt = time.Now()
	results, err := json.Marshal(job.PublishResults)
	if err != nil {
		return fmt.Errorf("marshal publish_results: %w", err)
	}

	if job.ID == 0 {
		const q = `
INSERT INTO jobs (account_id, job_type, status, topic, topic_source,
  script_hook, script_body, script_cta, script_text,
  audio_path, subtitle_path, video_path, thumbnail_path,
  progress_percent, error_message, scheduled_at,
  publish_youtube, publish_tiktok, publish_instagram, publish_results,
  created_at, updated_at, started_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
RETURNING id;`
		row, err := pickRow(ctx, r.pool, tx, q,
			job.AccountID, job.JobType, job.Status, job.Topic, job.TopicSource,
			job.ScriptHook, job.ScriptBody, job.ScriptCTA, job.ScriptText,
			job.AudioPath, job.SubtitlePath, job.VideoPath, job.ThumbnailPath,
			job.ProgressPercent, job.ErrorMessage, job.ScheduledAt,
			job.PublishYouTube, job.PublishTikTok, job.PublishInstagram, results,
			job.CreatedAt, job.UpdatedAt, job.StartedAt, job.CompletedAt)
		if err != nil {
			return err
		}
		return row.Scan(&job.ID)
	}

	const q = `
UPDATE jobs SET
  job_type = $2, status = $3, topic = $4, topic_source = $5,
  script_hook = $6, script_body = $7, script_cta = $8, script_text = $9,
  audio_path = $10, subtitle_path = $11, video_path = $12, thumbnail_path = $13,
  progress_percent = $14, error_message = $15, scheduled_at = $16,
  publish_youtube = $17, publish_tiktok = $18, publish_instagram = $19, publish_results = $20,
  updated_at = $21, started_at = $22, completed_at = $23
WHERE id = $1;`
	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.JobType, job.Status, job.Topic, job.TopicSource,
		job.ScriptHook, job.ScriptBody, job.ScriptCTA, job.ScriptText,
		job.AudioPath, job.SubtitlePath, job.VideoPath, job.ThumbnailPath,
		job.ProgressPercent, job.ErrorMessage, job.ScheduledAt,
		job.PublishYouTube, job.PublishTikTok, job.PublishInstagram, results,
		job.UpdatedAt, job.StartedAt, job.CompletedAt)
	return err
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) List(ctx context.Context, tx repository.Tx, f repository.JobFilter) ([]*model.Job, error) {
	q := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	n := 0
	if f.AccountID != 0 {
		n++
		q += fmt.Sprintf(" AND account_id = $%d", n)
		args = append(args, f.AccountID)
	}
	if f.Status != "" {
		n++
		q += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, f.Status)
	}
	q += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		n++
		q += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, f.Limit)
	}
	if f.Offset > 0 {
		n++
		q += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, f.Offset)
	}

	rows, err := pickRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *jobRepo) Delete(ctx context.Context, tx repository.Tx, id int64) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM jobs WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// claimableStatus matches pending jobs plus approved jobs released for a
// publish-only run. Approved generate jobs without a publish request stay
// parked.
const claimableStatus = `
(status = 'pending' OR (status = 'approved' AND job_type = 'publish_existing'))`

// ClaimNextImmediate selects the oldest claimable, unscheduled job and
// marks it in flight inside one transaction. FOR UPDATE SKIP LOCKED keeps
// concurrent pollers from claiming the same row.
func (r *jobRepo) ClaimNextImmediate(ctx context.Context) (*model.Job, error) {
	const q = `
SELECT ` + jobColumns + `
FROM jobs
WHERE ` + claimableStatus + ` AND scheduled_at IS NULL
ORDER BY created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`
	return r.claim(ctx, q)
}

// ClaimNextDue does the same for scheduled jobs whose time has come.
func (r *jobRepo) ClaimNextDue(ctx context.Context, now time.Time) (*model.Job, error) {
	const q = `
SELECT ` + jobColumns + `
FROM jobs
WHERE ` + claimableStatus + ` AND scheduled_at IS NOT NULL AND scheduled_at <= $1
ORDER BY scheduled_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`
	return r.claim(ctx, q, now)
}

func (r *jobRepo) claim(ctx context.Context, query string, args ...interface{}) (*model.Job, error) {
	var job *model.Job

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		row, err := pickRow(ctx, r.pool, tx, query, args...)
		if err != nil {
			return err
		}
		fetched, err := scanJob(row)
		if err != nil {
			return err
		}

		// Flip forward so no other poll cycle picks it up: pending jobs
		// go to queued, approved jobs straight to publishing.
		if fetched.Status == model.JobStatusApproved {
			fetched.Status = model.JobStatusPublishing
		} else {
			fetched.Status = model.JobStatusQueued
		}
		now := time.Now()
		fetched.StartedAt = &now
		if err := r.Save(ctx, tx, fetched); err != nil {
			return err
		}
		job = fetched
		return nil
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	return job, err
}

func (r *jobRepo) CountRecentForAccount(ctx context.Context, accountID int64, since time.Time) (int, error) {
	const q = `
SELECT COUNT(*) FROM jobs
WHERE account_id = $1
  AND created_at >= $2
  AND status NOT IN ('failed', 'cancelled');`
	row, err := pickRow(ctx, r.pool, nil, q, accountID, since)
	if err != nil {
		return 0, err
	}
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, translateScanErr(err)
	}
	return count, nil
}

func (r *jobRepo) ListScheduledOn(ctx context.Context, accountID int64, day time.Time) ([]*model.Job, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.Add(24 * time.Hour)
	q := `SELECT ` + jobColumns + `
FROM jobs
WHERE account_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3
ORDER BY scheduled_at;`
	rows, err := pickRows(ctx, r.pool, nil, q, accountID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func scanJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var status, jobType, topicSource string
	var results []byte
	err := row.Scan(
		&j.ID, &j.AccountID, &jobType, &status, &j.Topic, &topicSource,
		&j.ScriptHook, &j.ScriptBody, &j.ScriptCTA, &j.ScriptText,
		&j.AudioPath, &j.SubtitlePath, &j.VideoPath, &j.ThumbnailPath,
		&j.ProgressPercent, &j.ErrorMessage, &j.ScheduledAt,
		&j.PublishYouTube, &j.PublishTikTok, &j.PublishInstagram, &results,
		&j.CreatedAt, &j.UpdatedAt, &j.StartedAt, &j.CompletedAt,
	)
	if err != nil {
		return nil, translateScanErr(err)
	}
	j.JobType = model.JobType(jobType)
	j.Status = model.JobStatus(status)
	j.TopicSource = model.TopicSource(topicSource)
	if len(results) > 0 {
		if err := json.Unmarshal(results, &j.PublishResults); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &j, nil
}

func scanJobs(rows pgx.Rows) ([]*model.Job, error) {
	var out []*model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
