package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter throttles storage operations with a token bucket.
//
// Each operation takes one token. Tokens refill at opsPerSecond and the
// bucket holds at most burst tokens, so short spikes up to burst are served
// immediately while the sustained rate stays bounded.
//
// Thread safety:
// All methods are safe for concurrent use.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a Limiter allowing opsPerSecond sustained operations.
//
// Special cases:
//   - opsPerSecond <= 0: no limit
//   - burst <= 0: burst defaults to ceil(opsPerSecond), at least 1
//
// Example:
//
//	// 50 ops/s sustained, spikes of up to 100
//	limiter := ratelimiter.New(50, 100)
func New(opsPerSecond float64, burst int) *Limiter {
	if opsPerSecond <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}

	if burst <= 0 {
		burst = int(opsPerSecond)
		if float64(burst) < opsPerSecond {
			burst++
		}
		if burst < 1 {
			burst = 1
		}
	}

	return &Limiter{limiter: rate.NewLimiter(rate.Limit(opsPerSecond), burst)}
}

// Wait blocks until a token is available or ctx is done.
//
// It fails immediately, without waiting, when ctx would expire before a
// token becomes available.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Allow takes a token if one is available, without waiting.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Unlimited reports whether the limiter lets every operation through.
func (l *Limiter) Unlimited() bool {
	return l.limiter.Limit() == rate.Inf
}

// Limit returns the sustained rate in operations per second.
func (l *Limiter) Limit() float64 {
	return float64(l.limiter.Limit())
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int {
	return l.limiter.Burst()
}
