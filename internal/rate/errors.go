package rate

import "errors"

var (
	// ErrRateLimited is returned by CheckLogin once a counter is exhausted.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps every Redis transport failure.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
