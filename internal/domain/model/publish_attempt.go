package model

import (
	"fmt"
	"time"

	"video-content-factory/internal/domain"
)

type AttemptStatus string

const (
	AttemptStatusPending        AttemptStatus = "pending"
	AttemptStatusConnecting     AttemptStatus = "connecting"
	AttemptStatusNeedsLogin     AttemptStatus = "needs_login"
	AttemptStatusUploading      AttemptStatus = "uploading"
	AttemptStatusReadyToPost    AttemptStatus = "ready_to_post"
	AttemptStatusWaitingConfirm AttemptStatus = "waiting_confirm"
	AttemptStatusPosted         AttemptStatus = "posted"
	AttemptStatusFailed         AttemptStatus = "failed"
	AttemptStatusCancelled      AttemptStatus = "cancelled"
)

func (s AttemptStatus) Terminal() bool {
	return s == AttemptStatusPosted || s == AttemptStatusFailed || s == AttemptStatusCancelled
}

type PublishStrategy string

const (
	StrategyDirectAPI       PublishStrategy = "direct_api"
	StrategyBrowserAssisted PublishStrategy = "browser_assisted"
)

// AttemptLogLine is one timestamped entry in an attempt's audit trail.
type AttemptLogLine struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// PublishAttempt tracks one invocation of the publish protocol for one
// job/platform pair. It lives in memory while in flight and is persisted
// as a terminal record once posted, failed or cancelled.
type PublishAttempt struct {
	ID       string
	JobID    int64
	Platform Platform
	Strategy PublishStrategy
	Status   AttemptStatus

	Lines    []AttemptLogLine
	ResultID string
	// ResultURL is the platform-visible URL once posted.
	ResultURL string
	Error     string

	CreatedAt  time.Time
	FinishedAt *time.Time
}

func NewPublishAttempt(id string, jobID int64, platform Platform) *PublishAttempt {
	a := &PublishAttempt{
		ID:        id,
		JobID:     jobID,
		Platform:  platform,
		Status:    AttemptStatusPending,
		CreatedAt: time.Now(),
	}
	a.Logf("attempt created for %s", platform)
	return a
}

// Logf appends a timestamped line to the attempt's audit log.
func (a *PublishAttempt) Logf(format string, args ...any) {
	a.Lines = append(a.Lines, AttemptLogLine{At: time.Now(), Message: fmt.Sprintf(format, args...)})
}

// Advance moves the attempt to the next sub-state, logging the edge.
// failed/cancelled are reachable from any non-terminal state; everything
// else must follow the protocol order.
func (a *PublishAttempt) Advance(next AttemptStatus) error {
	if a.Status.Terminal() {
		return domain.ErrAttemptTerminal
	}
	if next != AttemptStatusFailed && next != AttemptStatusCancelled && !legalAttemptEdge(a.Status, next) {
		return domain.ErrInvalidTransition
	}
	a.Logf("%s -> %s", a.Status, next)
	a.Status = next
	if next.Terminal() {
		now := time.Now()
		a.FinishedAt = &now
	}
	return nil
}

// FailWith marks the attempt failed with a cause. Always legal on a
// non-terminal attempt.
func (a *PublishAttempt) FailWith(err error) {
	if a.Status.Terminal() {
		return
	}
	a.Error = err.Error()
	_ = a.Advance(AttemptStatusFailed)
}

func legalAttemptEdge(from, to AttemptStatus) bool {
	switch from {
	case AttemptStatusPending:
		return to == AttemptStatusConnecting
	case AttemptStatusConnecting:
		return to == AttemptStatusNeedsLogin || to == AttemptStatusUploading
	case AttemptStatusNeedsLogin:
		// after an out-of-band login the same attempt may resume
		return to == AttemptStatusUploading
	case AttemptStatusUploading:
		return to == AttemptStatusReadyToPost
	case AttemptStatusReadyToPost:
		return to == AttemptStatusWaitingConfirm || to == AttemptStatusPosted
	case AttemptStatusWaitingConfirm:
		return to == AttemptStatusPosted
	default:
		return false
	}
}

// ResetForFallback rewinds a failed direct-API attempt so the browser
// strategy can retry within the same invocation. Only the sub-state and
// error are reset; the audit log is preserved.
func (a *PublishAttempt) ResetForFallback() {
	a.Logf("direct API failed, falling back to browser-assisted")
	a.Status = AttemptStatusPending
	a.Strategy = StrategyBrowserAssisted
	a.Error = ""
	a.FinishedAt = nil
}
