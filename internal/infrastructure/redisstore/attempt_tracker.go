package redisstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "tokenauth/backend/internal/domain/auth"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps any Redis command failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// recordFailureScript increments the counter and sets its expiry in one step.
// A counter found without a TTL gets one too, so a key can never lock a
// username forever.
var recordFailureScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 or redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// AttemptTracker counts failed logins per username in Redis using
// fixed-window counters that expire after the lockout duration.
type AttemptTracker struct {
	redis       redis.UniversalClient
	prefix      string
	maxFailures int
	window      time.Duration
}

// NewAttemptTracker creates a tracker that locks a username after maxFailures
// failures within window.
func NewAttemptTracker(client redis.UniversalClient, maxFailures int, window time.Duration) *AttemptTracker {
	return &AttemptTracker{
		redis:       client,
		prefix:      "tokenauth:login:",
		maxFailures: maxFailures,
		window:      window,
	}
}

var _ domain.AttemptTracker = (*AttemptTracker)(nil)

// Check returns domain.ErrLoginLocked once the failure budget is spent.
// Missing keys count as zero, so unknown usernames behave like known ones.
func (t *AttemptTracker) Check(ctx context.Context, username string) error {
	count, err := t.redis.Get(ctx, t.key(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= int64(t.maxFailures) {
		return domain.ErrLoginLocked
	}
	return nil
}

// RecordFailure increments the counter, starting the window on the first failure.
func (t *AttemptTracker) RecordFailure(ctx context.Context, username string) error {
	err := recordFailureScript.Run(ctx, t.redis, []string{t.key(username)}, t.window.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Reset clears the counter after a successful login.
func (t *AttemptTracker) Reset(ctx context.Context, username string) error {
	if err := t.redis.Del(ctx, t.key(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (t *AttemptTracker) key(username string) string {
	return t.prefix + username
}
