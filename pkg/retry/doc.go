// Package retry re-runs API calls that failed for transient reasons.
//
// Only network and server errors are retried by default. Rate limit errors
// are left to the caller: the search quota resets per window, so sleeping a
// few seconds would not help.
//
//	err := retry.Do(ctx, func() error {
//		return client.fetch(ctx)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.DefaultExponentialBackoff(),
//	})
package retry
