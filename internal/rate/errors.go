package rate

import "errors"

var (
	// ErrRateLimited is returned once the failure budget for the window is spent.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps any counter read or write failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
