package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key pattern:
// - ratelimit:{user_id}:messages - fixed window, per-minute message limit

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	MessageLimit  int           // Max messages per window
	MessageWindow time.Duration // Message rate limit window
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:  60,
		MessageWindow: 60 * time.Second,
	}
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	if config.MessageLimit <= 0 {
		config.MessageLimit = DefaultRateLimitConfig().MessageLimit
	}
	if config.MessageWindow <= 0 {
		config.MessageWindow = DefaultRateLimitConfig().MessageWindow
	}
	return &RateLimiter{client: client, config: config}
}

var fixedWindowScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	local ttl = redis.call('PTTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		current = redis.call('INCR', key)
		if current == 1 then
			redis.call('PEXPIRE', key, window)
		end
		return {1, limit - current, ttl}
	end
	return {0, 0, ttl}
`)

func messageKey(userID uuid.UUID) string {
	return fmt.Sprintf("ratelimit:%s:messages", userID)
}

// AllowMessage checks and consumes one unit of the sender's message quota.
func (r *RateLimiter) AllowMessage(ctx context.Context, userID uuid.UUID) (*RateLimitResult, error) {
	return r.checkLimit(ctx, messageKey(userID), r.config.MessageLimit, r.config.MessageWindow)
}

// AllowSend satisfies the dispatcher's limiter interface.
func (r *RateLimiter) AllowSend(ctx context.Context, userID uuid.UUID) (bool, error) {
	res, err := r.AllowMessage(ctx, userID)
	if err != nil {
		return false, err
	}
	return res.Allowed, nil
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := fixedWindowScript.Run(ctx, r.client, []string{key}, limit, window.Milliseconds()).Result()
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
		ResetIn:   time.Duration(ttl) * time.Millisecond,
		Limit:     limit,
	}, nil
}
