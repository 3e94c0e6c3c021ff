package twitter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// BaseURL is the public API host
	BaseURL = "https://api.twitter.com"

	SearchRecentEndpoint = "/2/tweets/search/recent"
	SearchAllEndpoint    = "/2/tweets/search/all"
	UsersEndpoint        = "/2/users"
	TweetsEndpoint       = "/2/tweets"

	// MinResultsPerCall and MaxResultsPerCall bound max_results on search
	MinResultsPerCall = 10
	MaxResultsPerCall = 100

	// MaxIDsPerLookup bounds the ids parameter of user and tweet lookups
	MaxIDsPerLookup = 100

	SearchTweetFields = "id,created_at,text,public_metrics,author_id,entities,possibly_sensitive,source"
	SearchExpansions  = "attachments.media_keys"
	SearchMediaFields = "type,url,preview_image_url"
	LookupUserFields  = "public_metrics,verified"
	LookupTweetFields = "public_metrics"
)

// SearchParams describes one search page request
type SearchParams struct {
	Query      string
	MaxResults int
	// EndTime is exclusive; zero means now
	EndTime   time.Time
	StartTime time.Time
}

// ClampResults keeps max_results inside the range the search endpoint accepts
func ClampResults(n int) int {
	switch {
	case n <= 0:
		return MaxResultsPerCall
	case n < MinResultsPerCall:
		return MinResultsPerCall
	case n > MaxResultsPerCall:
		return MaxResultsPerCall
	default:
		return n
	}
}

// formatTime renders the second-granularity RFC3339 timestamps the API accepts
func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// GetSearchURL constructs the URL of a search page
func GetSearchURL(baseURL, endpoint string, p SearchParams) string {
	params := url.Values{}
	params.Set("query", p.Query)
	params.Set("max_results", strconv.Itoa(ClampResults(p.MaxResults)))
	params.Set("tweet.fields", SearchTweetFields)
	params.Set("expansions", SearchExpansions)
	params.Set("media.fields", SearchMediaFields)
	if !p.EndTime.IsZero() {
		params.Set("end_time", formatTime(p.EndTime))
	}
	if !p.StartTime.IsZero() {
		params.Set("start_time", formatTime(p.StartTime))
	}

	return fmt.Sprintf("%s%s?%s", baseURL, endpoint, params.Encode())
}

// GetUsersURL constructs a user lookup URL
func GetUsersURL(baseURL string, ids []string) string {
	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("user.fields", LookupUserFields)

	return fmt.Sprintf("%s%s?%s", baseURL, UsersEndpoint, params.Encode())
}

// GetTweetsURL constructs a tweet lookup URL
func GetTweetsURL(baseURL string, ids []string) string {
	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("tweet.fields", LookupTweetFields)

	return fmt.Sprintf("%s%s?%s", baseURL, TweetsEndpoint, params.Encode())
}

// Batches splits ids into consecutive slices of at most size elements
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxIDsPerLookup
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
