package model

import (
	"time"
)

type PublishMode string

const (
	PublishModeDirectAPI       PublishMode = "direct_api"
	PublishModeBrowserAssisted PublishMode = "browser_assisted"
	PublishModeAuto            PublishMode = "auto"
)

// ScheduleEntry is one recurring posting slot from the account's policy.
// Entries are administrative data; the core only reads them.
type ScheduleEntry struct {
	Platform  Platform `json:"platform" yaml:"platform"`
	TimeOfDay string   `json:"time_of_day" yaml:"time_of_day"` // "HH:MM", account-local
}

// Account is a connected niche/channel with its publish configuration.
type Account struct {
	ID        int64
	Name      string
	Niche     string
	Automated bool

	PublishMode  PublishMode
	AutoConfirm  bool
	APIConnected bool

	// Credential references, keyed by platform. Values are opaque secret
	// refs resolved by the publish adapters, never raw tokens.
	CredentialRefs map[Platform]string

	MaxPostsPerDay       int
	MinHoursBetweenPosts int

	// LastPostTimes holds the most recent successful post per platform.
	// Rate limits apply per connected platform, not across the account.
	LastPostTimes map[Platform]time.Time

	Schedule []ScheduleEntry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasCredentials reports whether a credential ref exists for the platform.
func (a *Account) HasCredentials(p Platform) bool {
	if a.CredentialRefs == nil {
		return false
	}
	return a.CredentialRefs[p] != ""
}

// DirectAPIEligible is the precondition for attempting a direct publish.
func (a *Account) DirectAPIEligible(p Platform) bool {
	return a.APIConnected && a.HasCredentials(p)
}

// PostCooldown returns the minimum gap between posts on one platform.
func (a *Account) PostCooldown() time.Duration {
	return time.Duration(a.MinHoursBetweenPosts) * time.Hour
}

// LastPostOn returns the most recent successful post time for the
// platform, if any.
func (a *Account) LastPostOn(p Platform) (time.Time, bool) {
	t, ok := a.LastPostTimes[p]
	return t, ok
}
