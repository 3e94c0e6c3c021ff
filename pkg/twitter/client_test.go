package twitter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twdataset/pkg/errors"
	"twdataset/pkg/logger"
	"twdataset/pkg/ratelimit"
	"twdataset/pkg/retry"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client, *logger.TestLogger) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := logger.NewTestLogger()
	client := NewClient("test-token", log, WithBaseURL(server.URL), WithTimeout(5*time.Second))
	return server, client, log
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient("abc", logger.NewNopLogger())

	assert.Equal(t, BaseURL, client.baseURL)
	assert.Equal(t, SearchRecentEndpoint, client.searchEndpoint)
	assert.Equal(t, "Bearer abc", client.headers["Authorization"])
	assert.Equal(t, 30*time.Second, client.httpClient.Timeout)
}

func TestSearchSendsAuthAndDecodes(t *testing.T) {
	_, client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, SearchRecentEndpoint, r.URL.Path)
		assert.Equal(t, "pets lang:en", r.URL.Query().Get("query"))

		writeJSON(w, SearchResponse{
			Data: []Tweet{{
				ID:          "1",
				Text:        "hello",
				AuthorID:    "u1",
				CreatedAt:   "2023-03-01T12:00:00.000Z",
				Attachments: &Attachments{MediaKeys: []string{"3_1"}},
				Entities:    &Entities{Hashtags: []Tag{{Tag: "cats"}}},
				PublicMetrics: &PublicMetrics{
					RetweetCount: 1, LikeCount: 2, ReplyCount: 3, QuoteCount: 4,
				},
			}},
			Includes: &Includes{Media: []Media{{MediaKey: "3_1", Type: "photo", URL: "https://img/1.jpg"}}},
			Meta:     &Meta{ResultCount: 1},
		})
	})

	page, err := client.Search(context.Background(), SearchParams{Query: "pets lang:en", MaxResults: 100})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "u1", page.Data[0].AuthorID)
	assert.Equal(t, 2, page.Data[0].PublicMetrics.LikeCount)
	assert.Equal(t, "cats", page.Data[0].Entities.Hashtags[0].Tag)
	require.NotNil(t, page.Includes)
	assert.Equal(t, "photo", page.Includes.Media[0].Type)
}

func TestFullArchiveEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SearchAllEndpoint, r.URL.Path)
		writeJSON(w, SearchResponse{})
	}))
	defer server.Close()

	client := NewClient("t", logger.NewNopLogger(), WithBaseURL(server.URL), WithSearchEndpoint(SearchAllEndpoint))
	_, err := client.Search(context.Background(), SearchParams{Query: "q"})
	require.NoError(t, err)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status   int
		body     string
		wantType errors.ErrorType
		wantText string
	}{
		{http.StatusUnauthorized, `{"title":"Unauthorized","detail":"Unauthorized"}`, errors.ErrorTypeAuth, "Unauthorized"},
		{http.StatusTooManyRequests, `{"title":"Too Many Requests"}`, errors.ErrorTypeRateLimit, "Too Many Requests"},
		{http.StatusServiceUnavailable, ``, errors.ErrorTypeServerError, "Service Unavailable"},
		{http.StatusNotFound, `not json`, errors.ErrorTypeNotFound, "Not Found"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			_, client, log := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("x-rate-limit-reset", "1700000000")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.LookupUsers(context.Background(), []string{"1"})
			require.Error(t, err)

			var apiErr *errors.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantType, apiErr.Type)
			assert.Equal(t, tt.status, apiErr.Code)
			assert.Contains(t, apiErr.Message, tt.wantText)

			if tt.status == http.StatusTooManyRequests {
				msg, ok := log.FindMessage("Rate limit reached")
				require.True(t, ok)
				assert.Equal(t, "users", msg.Fields["endpoint"])
			}
		})
	}
}

func TestParsingError(t *testing.T) {
	_, client, log := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [`))
	})

	_, err := client.LookupTweets(context.Background(), []string{"1"})
	assert.Equal(t, errors.ErrorTypeParsing, errors.TypeOf(err))
	assert.True(t, log.HasMessage("failed to parse JSON response"))
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient("t", logger.NewNopLogger(), WithBaseURL(url))
	_, err := client.LookupTweets(context.Background(), []string{"1"})
	assert.Equal(t, errors.ErrorTypeNetwork, errors.TypeOf(err))
}

func TestLookupSizeLimits(t *testing.T) {
	client := NewClient("t", logger.NewNopLogger(), WithBaseURL("http://127.0.0.1:1"))

	_, err := client.LookupUsers(context.Background(), nil)
	assert.Error(t, err)

	ids := make([]string, MaxIDsPerLookup+1)
	_, err = client.LookupTweets(context.Background(), ids)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at most 100 ids")
}

func TestLookupPartialErrors(t *testing.T) {
	_, client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		assert.Equal(t, []string{"10", "11"}, ids)
		writeJSON(w, TweetsResponse{
			Data:   []Tweet{{ID: "10", PublicMetrics: &PublicMetrics{LikeCount: 7}}},
			Errors: []APIError{{Title: "Not Found Error", ResourceID: "11", ResourceType: "tweet"}},
		})
	})

	resp, err := client.LookupTweets(context.Background(), []string{"10", "11"})
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, 7, resp.Data[0].PublicMetrics.LikeCount)
	assert.Equal(t, "11", resp.Errors[0].ResourceID)
}

func TestLimiterIsConsulted(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeJSON(w, UsersResponse{})
	}))
	defer server.Close()

	limiter := ratelimit.NewWindowLimiter(1, time.Hour, 1)
	client := NewClient("t", logger.NewNopLogger(), WithBaseURL(server.URL), WithLimiter(limiter))

	_, err := client.LookupUsers(context.Background(), []string{"1"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.LookupUsers(ctx, []string{"1"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second request must not reach the server")
}

func TestRetryTransientServerError(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, UsersResponse{Data: []User{{ID: "1", Username: "a"}}})
	}))
	defer server.Close()

	client := NewClient("t", logger.NewNopLogger(), WithBaseURL(server.URL),
		WithRetry(3, &retry.ExponentialBackoff{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}))

	resp, err := client.LookupUsers(context.Background(), []string{"1"})
	require.NoError(t, err)
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestNoRetryByDefaultOrOnRateLimit(t *testing.T) {
	for _, tt := range []struct {
		name   string
		status int
		opts   []Option
	}{
		{"default policy", http.StatusBadGateway, nil},
		{"rate limit", http.StatusTooManyRequests, []Option{WithRetry(3, &retry.ExponentialBackoff{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1})}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			opts := append([]Option{WithBaseURL(server.URL)}, tt.opts...)
			client := NewClient("t", logger.NewNopLogger(), opts...)

			_, err := client.LookupUsers(context.Background(), []string{"1"})
			require.Error(t, err)
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
		})
	}
}
