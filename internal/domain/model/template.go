package model

import (
	"strings"
	"time"
)

// ContentTemplate is a reusable topic pattern with tracked performance.
// The recurring scheduler weighs templates when materializing jobs.
type ContentTemplate struct {
	ID        int64
	AccountID int64
	Name      string
	// TopicPattern may contain a {date} placeholder expanded at selection.
	TopicPattern     string
	PerformanceScore float64 // normalized 0..1, from historical analytics
	RecentEngagement float64 // normalized 0..1, rolling window
	UseCount         int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Weight blends long-term performance with recent engagement.
func (t *ContentTemplate) Weight() float64 {
	return 0.7*t.PerformanceScore + 0.3*t.RecentEngagement
}

// DeriveTopic expands the template pattern into a concrete topic.
func (t *ContentTemplate) DeriveTopic(now time.Time) string {
	return strings.ReplaceAll(t.TopicPattern, "{date}", now.Format("January 2"))
}
