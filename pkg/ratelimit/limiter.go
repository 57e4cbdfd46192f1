package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing requests
type Limiter interface {
	// Allow reports whether a request may proceed right now, consuming a token if so
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
}

// PerMinute returns a limiter allowing requestsPerMinute requests per minute with a
// burst of one. A value <= 0 returns Unlimited.
func PerMinute(requestsPerMinute int) Limiter {
	if requestsPerMinute <= 0 {
		return Unlimited{}
	}
	return NewTokenBucket(requestsPerMinute, time.Minute)
}

// TokenBucket implements a token bucket rate limiter on top of x/time/rate.
// capacity tokens are spread evenly over refillPeriod.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	every := refillPeriod / time.Duration(capacity)
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	return tb.limiter.Allow()
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	return tb.limiter.Wait(ctx)
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }
