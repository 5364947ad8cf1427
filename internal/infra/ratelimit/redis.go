package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"merklelog/internal/domain"
)

// allowRunner executes one fixed-window INCR cycle for a key and reports
// the counter value plus the window's remaining lifetime.
type allowRunner interface {
	runAllow(ctx context.Context, key string, windowMillis int64) (count, ttlMillis int64, err error)
}

type redisLimiter struct {
	runner allowRunner
	now    func() time.Time
}

// NewRedisLimiter returns a fixed-window limiter whose per-client counters
// are shared across replicas.
func NewRedisLimiter(addr, password string, db int, now func() time.Time) (domain.RateLimiter, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if now == nil {
		now = time.Now
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisLimiter{runner: scriptRunner{client: client}, now: now}, nil
}

func (r *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	windowMillis := window.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = time.Second.Milliseconds()
	}

	count, ttlMillis, err := r.runner.runAllow(ctx, key, windowMillis)
	if err != nil {
		return domain.RateLimitDecision{}, err
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	resetAt := r.now()
	if ttlMillis > 0 {
		resetAt = resetAt.Add(time.Duration(ttlMillis) * time.Millisecond)
	}
	return domain.RateLimitDecision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

type scriptRunner struct {
	client *redis.Client
}

// The INCR and PEXPIRE must be atomic, otherwise a crash between them
// leaves a counter that never expires.
var allowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

func (s scriptRunner) runAllow(ctx context.Context, key string, windowMillis int64) (int64, int64, error) {
	values, err := allowScript.Run(ctx, s.client, []string{key}, windowMillis).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(values) < 2 {
		return 0, 0, errors.New("unexpected rate limit script response")
	}
	return values[0], values[1], nil
}
