package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Job lifecycle errors
	ErrInvalidTransition = errors.New("illegal job status transition")
	ErrJobNotRetryable   = errors.New("job is not in a retryable state")
	ErrJobNotCancellable = errors.New("job can only be cancelled before execution starts")
	ErrJobNotApprovable  = errors.New("job is not awaiting review")

	// Publishing errors
	ErrRateLimited       = errors.New("publish rate limit not elapsed")
	ErrDailyLimitReached = errors.New("daily post limit reached")
	ErrConfigMissing     = errors.New("publish configuration missing: manual action required")
	ErrAttemptTerminal   = errors.New("publish attempt already finished")
	ErrConfirmNotPending = errors.New("publish attempt is not waiting for confirmation")

	// Scheduling errors
	ErrDuplicateSchedule  = errors.New("recent job already exists for account")
	ErrAutomationDisabled = errors.New("account automation is disabled")

	ErrLockHeld = errors.New("lock is held by another owner")
)
