package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"anoa.com/forumboard/pkg/apperror"
	"anoa.com/forumboard/pkg/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	ActionGlobal  = "global"
	ActionThread  = "thread"
	ActionComment = "comment"
)

// LimitError is returned when a cooldown is still running for the user.
type LimitError struct {
	Action string
	Wait   time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("please wait %s before trying again", e.Wait.Round(time.Second))
}

func (e *LimitError) Unwrap() error { return apperror.ErrRateLimitExceeded }

// RetryAfter lets the HTTP layer set the Retry-After header.
func (e *LimitError) RetryAfter() time.Duration { return e.Wait }

// Limiter keeps one redis key per user and action for the length of the
// action's cooldown. A nil redis client disables limiting.
type Limiter struct {
	rdb       *redis.Client
	cooldowns map[string]time.Duration
	logger    *slog.Logger
}

func New(rdb *redis.Client, cooldowns map[string]time.Duration, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{rdb: rdb, cooldowns: cooldowns, logger: logger}
}

func key(userID uuid.UUID, action string) string {
	return fmt.Sprintf("rate_limit:user:%s:%s", userID.String(), action)
}

// Acquire takes the cooldown for every action in order. If one of them is
// still running, the ones already taken by this call are released again.
func (l *Limiter) Acquire(ctx context.Context, userID uuid.UUID, actions ...string) error {
	if l == nil || l.rdb == nil {
		return nil
	}

	taken := make([]string, 0, len(actions))
	for _, action := range actions {
		limit := l.cooldowns[action]
		if limit <= 0 {
			continue
		}

		wasSet, err := l.rdb.SetNX(ctx, key(userID, action), "locked", limit).Result()
		if err != nil {
			l.Release(ctx, userID, taken...)
			return fmt.Errorf("failed to check rate limit in redis: %w", err)
		}
		if !wasSet {
			l.Release(ctx, userID, taken...)
			ttl, _ := l.rdb.TTL(ctx, key(userID, action)).Result()
			if ttl < 0 {
				ttl = limit
			}
			metrics.RateLimited.WithLabelValues(action).Inc()
			return &LimitError{Action: action, Wait: ttl}
		}
		taken = append(taken, action)
	}
	return nil
}

// Release clears cooldowns, used when the write they guarded did not happen.
func (l *Limiter) Release(ctx context.Context, userID uuid.UUID, actions ...string) {
	if l == nil || l.rdb == nil {
		return
	}
	for _, action := range actions {
		if err := l.rdb.Del(ctx, key(userID, action)).Err(); err != nil {
			l.logger.Warn("failed to clear rate limit", "action", action, "user_id", userID, "error", err)
		}
	}
}
