package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limit keys:
//   - ratelimit:{scope}:{subject} with the scope window as TTL
//
// Scopes cover the inbound surfaces that parties can hammer: chat button
// callbacks per chat id and feedback submissions per user.
const (
	ScopeCallback = "callback"
	ScopeFeedback = "feedback"
	ScopeOperator = "operator"
)

type Limit struct {
	Max    int
	Window time.Duration
}

// DefaultLimits returns the limit per scope.
func DefaultLimits() map[string]Limit {
	return map[string]Limit{
		ScopeCallback: {Max: 30, Window: time.Minute},
		ScopeFeedback: {Max: 10, Window: time.Minute},
		ScopeOperator: {Max: 120, Window: time.Minute},
	}
}

// RateLimiter is a fixed window counter kept in Redis
type RateLimiter struct {
	client *goredis.Client
	limits map[string]Limit
}

type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, limits map[string]Limit) *RateLimiter {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &RateLimiter{client: client, limits: limits}
}

// checkScript increments the counter while below the limit and reports
// {allowed, remaining, ttl}.
var checkScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if current == 0 then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	end
	return {0, 0, ttl}
`)

// Allow consumes one unit of scope for subject. Unknown scopes are not
// limited.
func (r *RateLimiter) Allow(ctx context.Context, scope, subject string) (*RateLimitResult, error) {
	limit, ok := r.limits[scope]
	if !ok {
		return &RateLimitResult{Allowed: true, Remaining: -1}, nil
	}
	key := fmt.Sprintf("ratelimit:%s:%s", scope, subject)
	window := int(limit.Window.Seconds())
	if window < 1 {
		window = 1
	}

	result, err := checkScript.Run(ctx, r.client, []string{key}, limit.Max, window).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	ttl, _ := values[2].(int64)

	return &RateLimitResult{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(ttl) * time.Second,
		Limit:     limit.Max,
	}, nil
}

// Reset clears the counter of subject in scope.
func (r *RateLimiter) Reset(ctx context.Context, scope, subject string) error {
	return r.client.Del(ctx, fmt.Sprintf("ratelimit:%s:%s", scope, subject)).Err()
}
