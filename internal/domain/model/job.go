package model

import (
	"time"

	"video-content-factory/internal/domain"
)

type JobStatus string

const (
	JobStatusPending             JobStatus = "pending"
	JobStatusQueued              JobStatus = "queued"
	JobStatusGeneratingScript    JobStatus = "generating_script"
	JobStatusGeneratingAudio     JobStatus = "generating_audio"
	JobStatusGeneratingSubtitles JobStatus = "generating_subtitles"
	JobStatusRendering           JobStatus = "rendering"
	JobStatusReadyForReview      JobStatus = "ready_for_review"
	JobStatusApproved            JobStatus = "approved"
	JobStatusPublishing          JobStatus = "publishing"
	JobStatusPublished           JobStatus = "published"
	JobStatusFailed              JobStatus = "failed"
	JobStatusCancelled           JobStatus = "cancelled"
)

// statusOrder defines the forward progression of the pipeline. Terminal
// side-states (failed, cancelled) are reachable from the edges below but
// never part of the forward order.
var statusOrder = map[JobStatus]int{
	JobStatusPending:             0,
	JobStatusQueued:              1,
	JobStatusGeneratingScript:    2,
	JobStatusGeneratingAudio:     3,
	JobStatusGeneratingSubtitles: 4,
	JobStatusRendering:           5,
	JobStatusReadyForReview:      6,
	JobStatusApproved:            7,
	JobStatusPublishing:          8,
	JobStatusPublished:           9,
}

func (s JobStatus) Terminal() bool {
	return s == JobStatusPublished || s == JobStatusFailed || s == JobStatusCancelled
}

type JobType string

const (
	JobTypeGenerateOnly       JobType = "generate_only"
	JobTypeGenerateAndPublish JobType = "generate_and_publish"
	JobTypePublishExisting    JobType = "publish_existing"
)

type TopicSource string

const (
	TopicSourceManual       TopicSource = "manual"
	TopicSourceAuto         TopicSource = "auto"
	TopicSourceBulkAuto     TopicSource = "bulk_auto"
	TopicSourceAutoSchedule TopicSource = "auto_schedule"
)

type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
)

// AllPlatforms returns the closed set of supported platforms.
func AllPlatforms() []Platform {
	return []Platform{PlatformYouTube, PlatformTikTok, PlatformInstagram}
}

// PublishResult records the outcome of one platform's publish stage,
// stored on the job row as jsonb keyed by platform.
type PublishResult struct {
	Status     string `json:"status"` // "posted" | "failed" | "waiting_confirm"
	PlatformID string `json:"platform_id,omitempty"`
	URL        string `json:"url,omitempty"`
	Message    string `json:"message,omitempty"`
}

type Job struct {
	ID          int64
	AccountID   int64
	JobType     JobType
	Status      JobStatus
	Topic       string
	TopicSource TopicSource

	ScriptHook string
	ScriptBody string
	ScriptCTA  string
	ScriptText string

	AudioPath     string
	SubtitlePath  string
	VideoPath     string
	ThumbnailPath string

	ProgressPercent int
	ErrorMessage    string
	ScheduledAt     *time.Time

	PublishYouTube   bool
	PublishTikTok    bool
	PublishInstagram bool
	PublishResults   map[Platform]PublishResult

	CreatedAt   time.Time
	UpdatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

func NewJob(accountID int64, jobType JobType, topic string, source TopicSource) *Job {
	now := time.Now()
	return &Job{
		AccountID:   accountID,
		JobType:     jobType,
		Status:      JobStatusPending,
		Topic:       topic,
		TopicSource: source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TargetPlatforms lists the platforms this job was flagged for.
func (j *Job) TargetPlatforms() []Platform {
	var out []Platform
	if j.PublishYouTube {
		out = append(out, PlatformYouTube)
	}
	if j.PublishTikTok {
		out = append(out, PlatformTikTok)
	}
	if j.PublishInstagram {
		out = append(out, PlatformInstagram)
	}
	return out
}

// CanTransition reports whether moving from the current status to next is a
// legal forward edge. Retry has its own entry point and is not covered here.
func (j *Job) CanTransition(next JobStatus) bool {
	if j.Status.Terminal() {
		return false
	}
	switch next {
	case JobStatusFailed:
		// any non-terminal state may fail
		return true
	case JobStatusCancelled:
		return j.Status == JobStatusPending || j.Status == JobStatusQueued
	}
	cur, ok := statusOrder[j.Status]
	nxt, nok := statusOrder[next]
	if !ok || !nok {
		return false
	}
	return nxt > cur
}

// Transition advances the job status, enforcing the forward-only edges.
func (j *Job) Transition(next JobStatus) error {
	if !j.CanTransition(next) {
		return domain.ErrInvalidTransition
	}
	j.Status = next
	j.UpdatedAt = time.Now()
	return nil
}

// SetProgress clamps and applies a progress value. Progress never moves
// backwards within one execution attempt.
func (j *Job) SetProgress(pct int) {
	if pct < j.ProgressPercent {
		return
	}
	if pct > 100 {
		pct = 100
	}
	j.ProgressPercent = pct
	j.UpdatedAt = time.Now()
}

// Fail marks the job failed and records the cause.
func (j *Job) Fail(msg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = msg
	j.UpdatedAt = time.Now()
}

// ResetForRetry puts a failed job back on the queue. Retrying a job that
// is already reset and waiting is a no-op, so a double retry with no
// intervening run succeeds without changing anything.
func (j *Job) ResetForRetry() error {
	if j.Status == JobStatusPending && j.ErrorMessage == "" &&
		j.ProgressPercent == 0 && j.StartedAt == nil {
		return nil
	}
	if j.Status != JobStatusFailed {
		return domain.ErrJobNotRetryable
	}
	j.Status = JobStatusPending
	j.ErrorMessage = ""
	j.ProgressPercent = 0
	j.StartedAt = nil
	j.CompletedAt = nil
	j.UpdatedAt = time.Now()
	return nil
}

// Cancel is only honored before any stage has started.
func (j *Job) Cancel() error {
	if j.Status != JobStatusPending && j.Status != JobStatusQueued {
		return domain.ErrJobNotCancellable
	}
	j.Status = JobStatusCancelled
	j.UpdatedAt = time.Now()
	return nil
}

// Approve moves a reviewed job forward. When publish is requested the
// job becomes a publish-only run; the poll sweeps claim it straight from
// approved, so the status never moves backwards.
func (j *Job) Approve(publish bool) error {
	if j.Status != JobStatusReadyForReview {
		return domain.ErrJobNotApprovable
	}
	j.Status = JobStatusApproved
	if publish {
		j.JobType = JobTypePublishExisting
	}
	j.UpdatedAt = time.Now()
	return nil
}
