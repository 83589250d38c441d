package goShield

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goShield/internal/rate"
	"github.com/redis/go-redis/v9"
)

// RedisAttemptLimiter is the Redis-backed AttemptLimiter built from the
// Throttle config section.
type RedisAttemptLimiter struct {
	limiter *rate.Limiter
}

// NewRedisAttemptLimiter returns a limiter storing its counters in client.
func NewRedisAttemptLimiter(client redis.UniversalClient, cfg ThrottleConfig) *RedisAttemptLimiter {
	return &RedisAttemptLimiter{
		limiter: rate.New(client, rate.Config{
			MaxAttempts: cfg.MaxAttempts,
			Cooldown:    cfg.Cooldown.Std(),
			PerHost:     cfg.PerHost,
			Prefix:      cfg.Prefix,
		}),
	}
}

func (l *RedisAttemptLimiter) Check(ctx context.Context, principal, host string) error {
	err := l.limiter.Check(ctx, principal, host)
	if errors.Is(err, rate.ErrRateLimited) {
		return fmt.Errorf("%w: principal %q", ErrLoginThrottled, principal)
	}
	return err
}

func (l *RedisAttemptLimiter) Fail(ctx context.Context, principal, host string) error {
	return l.limiter.Fail(ctx, principal, host)
}

func (l *RedisAttemptLimiter) Reset(ctx context.Context, principal, host string) error {
	return l.limiter.Reset(ctx, principal, host)
}

// Attempts reports the failures recorded for principal in the current window.
func (l *RedisAttemptLimiter) Attempts(ctx context.Context, principal string) (int, error) {
	return l.limiter.Attempts(ctx, principal)
}
