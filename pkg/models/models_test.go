package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrip(t *testing.T) {
	p := Post{
		ID:         "42",
		Text:       "hello",
		AuthorID:   "7",
		CreatedAt:  "2023-03-01T12:00:00.000Z",
		Followers:  10,
		Verified:   true,
		Engagement: Engagement{Retweets: 1, Likes: 2, Replies: 3, Quotes: 4},
	}
	p.Strip()

	assert.Equal(t, Post{ID: "42", Engagement: Engagement{Retweets: 1, Likes: 2, Replies: 3, Quotes: 4}}, p)
}

func TestSnapshotKeepsOrder(t *testing.T) {
	posts := []Post{
		{ID: "3", Engagement: Engagement{Likes: 30}},
		{ID: "1", Engagement: Engagement{Likes: 10}},
	}
	rows := Snapshot(posts)
	require.Len(t, rows, 2)
	assert.Equal(t, "3", rows[0].PostID)
	assert.Equal(t, 10, rows[1].Likes)
	assert.Empty(t, Snapshot(nil))
}

func TestCreated(t *testing.T) {
	p := Post{CreatedAt: "2023-03-01T12:00:05.000Z"}
	ts, err := p.Created()
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2023, 3, 1, 12, 0, 5, 0, time.UTC)))
}
