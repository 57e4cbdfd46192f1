package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "famlysync/pkg/errors"
)

// BackoffStrategy computes the delay before the next attempt
type BackoffStrategy interface {
	// NextDelay returns the delay after the given (1-based) failed attempt
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0 to 1.0
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// ErrorTypeBackoff picks a strategy by the API error type of the last failure
type ErrorTypeBackoff struct {
	RateLimit BackoffStrategy
	Default   BackoffStrategy
	lastType  errs.ErrorType
}

// RateLimitWindow is waited out after a 429 before the next attempt
const RateLimitWindow = time.Minute

// NewErrorTypeBackoff sits out a full rate limit window after 429s and backs
// off exponentially after network or server errors
func NewErrorTypeBackoff() *ErrorTypeBackoff {
	return &ErrorTypeBackoff{
		RateLimit: &ConstantBackoff{Delay: RateLimitWindow},
		Default:   DefaultExponentialBackoff(),
	}
}

// Observe records the error that caused the last failed attempt
func (etb *ErrorTypeBackoff) Observe(err error) {
	etb.lastType = errs.TypeOf(err)
}

// NextDelay delegates to the strategy for the last observed error type
func (etb *ErrorTypeBackoff) NextDelay(attempt int) time.Duration {
	if etb.lastType == errs.ErrorTypeRateLimit {
		return etb.RateLimit.NextDelay(attempt)
	}
	return etb.Default.NextDelay(attempt)
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
