package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when no entry exists for a cache key
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheCorrupt is returned when a persisted cache entry cannot be decoded
	ErrCacheCorrupt = errors.New("cache entry corrupt")

	// ErrRateLimited is returned when the outbound rate limiter refuses to wait
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUpstreamFailure is returned when an upstream source request fails
	ErrUpstreamFailure = errors.New("upstream request failed")

	// ErrParseFailed is returned when an upstream payload yields no usable record
	ErrParseFailed = errors.New("failed to parse upstream content")

	// ErrNoData is returned when a live fetch failed and nothing is cached
	ErrNoData = errors.New("no data available")
)
