package redis

import (
	"context"
	"fmt"
	"time"
)

// RateLimiter tracks daily post counts per account and platform. The
// window key rolls over at UTC midnight; the count is best-effort and
// backed by the authoritative last_post_times column on the account row.
type RateLimiter struct {
	client RedisClient
}

func NewRateLimiter(client RedisClient) *RateLimiter {
	return &RateLimiter{client: client}
}

// AllowDaily increments the platform's daily counter for the account and
// reports whether the post is within limit. limit <= 0 means unlimited.
func (r *RateLimiter) AllowDaily(ctx context.Context, accountID int64, platform string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	key := dailyPostKey(accountID, platform, time.Now().UTC())
	count, err := r.client.Incr(ctx, key)
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, 24*time.Hour); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

func dailyPostKey(accountID int64, platform string, day time.Time) string {
	return fmt.Sprintf("post_count:%d:%s:%s", accountID, platform, day.Format("2006-01-02"))
}
