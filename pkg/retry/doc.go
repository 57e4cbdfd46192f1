// Package retry wraps Famly API calls in bounded retries.
//
// Retrying is opt-in: with retry_attempts at its default of 1 every call is
// made exactly once and its error returned unchanged. With more attempts,
// network, server and rate limit errors are retried with exponential backoff,
// waiting longer after a 429:
//
//	cfg := retry.FromAttempts(settings.RetryAttempts, log)
//	page, err := retry.DoWithResult(ctx, cfg, func() ([]famly.Image, error) {
//		return fetch(ctx)
//	})
//
// Auth and not-found errors are never retried.
package retry
