package rate

import "errors"

var (
	// ErrRateLimited is returned when a counter has reached its limit.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
