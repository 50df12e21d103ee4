package refsources

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is the per-source token bucket. External reference APIs
// publish hard request budgets (PubMed allows 3/s without a key, 10/s
// with one) and exceeding them earns long 429 lockouts, so every
// adapter request goes through one of these.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a bucket sustaining ratePerSecond with the
// given burst capacity.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Allow consumes a token without blocking, reporting whether one was
// available.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// SetRate adjusts the sustained rate, keeping the burst size. Used when
// an API key upgrade raises a source's budget at runtime.
func (r *RateLimiter) SetRate(ratePerSecond float64) {
	r.limiter.SetLimit(rate.Limit(ratePerSecond))
}

// Tokens reports the tokens currently in the bucket.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}
