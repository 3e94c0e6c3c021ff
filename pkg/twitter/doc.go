// Package twitter provides a client for the X (Twitter) API v2 endpoints used
// by the collector: recent or full-archive search, user lookup and tweet
// lookup.
//
// Every request carries the bearer token, is paced through a
// ratelimit.Limiter and fails with a typed *errors.Error:
//
//	client := twitter.NewClient(token, log,
//	    twitter.WithLimiter(ratelimit.NewWindowLimiter(450, 15*time.Minute, 10)))
//
//	page, err := client.Search(ctx, twitter.SearchParams{
//	    Query:      "context:65.852262932607926273 lang:en -is:retweet",
//	    MaxResults: 100,
//	    EndTime:    time.Now().Add(-10 * time.Second),
//	})
//	if errors.TypeOf(err) == errors.ErrorTypeRateLimit {
//	    // the request is dropped, not retried
//	}
//
// Lookups accept at most MaxIDsPerLookup ids; use Batches to split larger sets.
package twitter
