// Package ratelimit implements fixed window request limits backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is the number of requests allowed per window
type Rule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRules are applied per purpose and client IP
var DefaultRules = map[string]Rule{
	"register": {Limit: 5, Window: 15 * time.Minute},
	"login":    {Limit: 10, Window: 15 * time.Minute},
	"verify":   {Limit: 5, Window: 15 * time.Minute},
}

var fallbackRule = Rule{Limit: 20, Window: 15 * time.Minute}

// Limiter counts requests per purpose and client in Redis
type Limiter struct {
	client *redis.Client
	rules  map[string]Rule
}

func NewLimiter(client *redis.Client, rules map[string]Rule) *Limiter {
	if rules == nil {
		rules = DefaultRules
	}
	return &Limiter{client: client, rules: rules}
}

// Key returns the Redis key counting purpose requests from ip
func Key(purpose, ip string) string {
	return fmt.Sprintf("rate_limit:%s:%s", purpose, ip)
}

// Allow records one request and reports whether it is within the limit
func (l *Limiter) Allow(ctx context.Context, purpose, ip string) (bool, error) {
	rule, ok := l.rules[purpose]
	if !ok {
		rule = fallbackRule
	}

	key := Key(purpose, ip)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// NX keeps the window anchored at the first request
	pipe.ExpireNX(ctx, key, rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to record request: %w", err)
	}

	return incr.Val() <= rule.Limit, nil
}

// Reset forgets the requests counted for purpose and ip
func (l *Limiter) Reset(ctx context.Context, purpose, ip string) error {
	if err := l.client.Del(ctx, Key(purpose, ip)).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}
	return nil
}

// Nop never limits. Used when rate limiting is disabled.
type Nop struct{}

func (Nop) Allow(context.Context, string, string) (bool, error) { return true, nil }
