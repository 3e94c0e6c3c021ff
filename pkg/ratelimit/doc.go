// Package ratelimit paces requests to the X API on the client side.
//
// The API enforces its quotas per 15 minute window. WindowLimiter converts
// such an allowance into a golang.org/x/time/rate token bucket so that many
// concurrent topic fetchers sharing one client stay under the limit:
//
//	limiter := ratelimit.NewWindowLimiter(450, 15*time.Minute, 10)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//
// Requests that still hit a 429 are not retried.
package ratelimit
