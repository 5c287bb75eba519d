package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket limiter used to throttle archive deletes
// during sweeps and mutating requests on the admin API.
//
// It wraps golang.org/x/time/rate:
//  1. Tokens are added at a constant rate (operations per second)
//  2. Each operation consumes one token
//  3. An empty bucket either rejects (Allow) or blocks (Wait)
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter.
//
// perSecond = 0 disables limiting. burst = 0 defaults to perSecond, with a
// minimum of 1 so Wait can make progress.
//
// Example:
//
//	// 50 deletes/s sustained, up to 100 at once
//	limiter := New(50, 100)
func New(perSecond, burst uint) *RateLimiter {
	if perSecond == 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	if burst == 0 {
		burst = perSecond
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(perSecond), int(burst)),
	}
}

// Unlimited reports whether the limiter lets everything through.
func (r *RateLimiter) Unlimited() bool {
	return r.limiter.Limit() == rate.Inf
}

// Allow consumes a token if one is available and reports whether it did.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
//
// Its signature matches snapshot.PruneOptions.BeforeDelete.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
