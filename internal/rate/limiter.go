package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds limiter tuning parameters.
type Config struct {
	// MaxAttempts is the number of failures allowed inside one window.
	MaxAttempts int
	// Cooldown is the window length, starting at the first failure.
	Cooldown time.Duration
	// PerHost also counts failures per client host.
	PerHost bool
	Prefix  string
}

// Limiter counts failed login attempts per principal, and optionally per
// host, in fixed Redis windows.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// Check returns ErrRateLimited once the principal, or the host when
// PerHost is set, has used up its attempts in the current window.
func (l *Limiter) Check(ctx context.Context, principal, host string) error {
	if err := l.checkCounter(ctx, l.principalKey(principal)); err != nil {
		return err
	}

	if l.config.PerHost && host != "" {
		if err := l.checkCounter(ctx, l.hostKey(host)); err != nil {
			return err
		}
	}

	return nil
}

// Fail records one failed attempt.
func (l *Limiter) Fail(ctx context.Context, principal, host string) error {
	if _, err := l.incrementWithTTL(ctx, l.principalKey(principal)); err != nil {
		return err
	}

	if l.config.PerHost && host != "" {
		if _, err := l.incrementWithTTL(ctx, l.hostKey(host)); err != nil {
			return err
		}
	}

	return nil
}

// Reset clears the principal's counter after a successful login. The host
// counter is left to expire so one good account cannot clear a host.
func (l *Limiter) Reset(ctx context.Context, principal, _ string) error {
	if err := l.redis.Del(ctx, l.principalKey(principal)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current failure count for principal.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) Attempts(ctx context.Context, principal string) (int, error) {
	count, err := l.redis.Get(ctx, l.principalKey(principal)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: the TTL is set only on the first hit.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func (l *Limiter) principalKey(principal string) string {
	return l.config.Prefix + ":al:" + principal
}

func (l *Limiter) hostKey(host string) string {
	return l.config.Prefix + ":ali:" + host
}
