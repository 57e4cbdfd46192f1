// Package ratelimit paces calls to the Famly API.
//
// Pacing is off by default. Setting requests_per_minute in the settings file
// spreads requests evenly over each minute:
//
//	limiter := ratelimit.PerMinute(cfg.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
