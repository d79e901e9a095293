package model

import "time"

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelError LogLevel = "error"
)

// JobLogEntry is append-only; rows are never updated once written.
type JobLogEntry struct {
	ID        int64
	JobID     int64
	Level     LogLevel
	Stage     string
	Message   string
	CreatedAt time.Time
}

func NewJobLogEntry(jobID int64, level LogLevel, stage, message string) *JobLogEntry {
	return &JobLogEntry{
		JobID:     jobID,
		Level:     level,
		Stage:     stage,
		Message:   message,
		CreatedAt: time.Now(),
	}
}
