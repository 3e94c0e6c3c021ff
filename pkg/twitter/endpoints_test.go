package twitter

import (
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSearchURL(t *testing.T) {
	end := time.Date(2023, 3, 1, 12, 30, 45, 500_000_000, time.UTC)
	raw := GetSearchURL(BaseURL, SearchRecentEndpoint, SearchParams{
		Query:      "context:66.913142676819648512 lang:en -is:retweet",
		MaxResults: 100,
		EndTime:    end,
	})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "api.twitter.com", u.Host)
	assert.Equal(t, SearchRecentEndpoint, u.Path)

	q := u.Query()
	assert.Equal(t, "context:66.913142676819648512 lang:en -is:retweet", q.Get("query"))
	assert.Equal(t, "100", q.Get("max_results"))
	assert.Equal(t, "2023-03-01T12:30:45Z", q.Get("end_time"))
	assert.Equal(t, SearchTweetFields, q.Get("tweet.fields"))
	assert.Equal(t, "attachments.media_keys", q.Get("expansions"))
	assert.Equal(t, "type,url,preview_image_url", q.Get("media.fields"))
	assert.Empty(t, q.Get("start_time"))
}

func TestClampResults(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 100}, {-3, 100}, {5, 10}, {10, 10}, {55, 55}, {100, 100}, {500, 100},
	}
	for _, tt := range tests {
		if got := ClampResults(tt.in); got != tt.want {
			t.Errorf("ClampResults(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLookupURLs(t *testing.T) {
	users, err := url.Parse(GetUsersURL("http://localhost:1", []string{"1", "2", "3"}))
	require.NoError(t, err)
	assert.Equal(t, UsersEndpoint, users.Path)
	assert.Equal(t, "1,2,3", users.Query().Get("ids"))
	assert.Equal(t, "public_metrics,verified", users.Query().Get("user.fields"))

	tweets, err := url.Parse(GetTweetsURL("http://localhost:1", []string{"9"}))
	require.NoError(t, err)
	assert.Equal(t, TweetsEndpoint, tweets.Path)
	assert.Equal(t, "public_metrics", tweets.Query().Get("tweet.fields"))
}

func TestBatches(t *testing.T) {
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = fmt.Sprint(i)
	}

	batches := Batches(ids, MaxIDsPerLookup)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 100)
	assert.Len(t, batches[1], 100)
	assert.Len(t, batches[2], 50)
	assert.Equal(t, "249", batches[2][49])

	assert.Empty(t, Batches(nil, 100))
	assert.Len(t, Batches(ids[:7], 0), 1)
}

func TestTweetCreated(t *testing.T) {
	tw := Tweet{CreatedAt: "2023-03-01T12:00:00.000Z"}
	ts, err := tw.Created()
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2023, 3, 1, 12, 0, 0, 0, time.UTC)))

	_, err = Tweet{CreatedAt: "yesterday"}.Created()
	assert.Error(t, err)
	assert.False(t, strings.Contains(SearchTweetFields, " "))
}
