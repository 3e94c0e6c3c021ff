// Package models holds the records the collector keeps in memory and writes
// to the dataset files.
package models

import "time"

// Post is one collected tweet with its author's public profile counters
type Post struct {
	ID           string
	Text         string
	AuthorID     string
	CreatedAt    string
	HashtagCount int
	MentionCount int
	Source       string
	Followers    int
	Following    int
	Verified     bool
	Engagement   Engagement
}

// Engagement holds a post's public counters at one point in time
type Engagement struct {
	Retweets int
	Likes    int
	Replies  int
	Quotes   int
}

// SnapshotRow is one line of an engagement snapshot file
type SnapshotRow struct {
	PostID string
	Engagement
}

// MediaItem is an attachment linked to a post; ID is the owning post's id
type MediaItem struct {
	ID         string
	MediaKey   string
	Type       string
	URL        string
	PreviewURL string
}

// Created parses CreatedAt
func (p *Post) Created() (time.Time, error) {
	return time.Parse(time.RFC3339, p.CreatedAt)
}

// Strip drops everything but the id and counters once the post files are
// written; refresh cycles need nothing else.
func (p *Post) Strip() {
	*p = Post{ID: p.ID, Engagement: p.Engagement}
}

// Snapshot returns the snapshot rows for posts in order
func Snapshot(posts []Post) []SnapshotRow {
	rows := make([]SnapshotRow, len(posts))
	for i := range posts {
		rows[i] = SnapshotRow{PostID: posts[i].ID, Engagement: posts[i].Engagement}
	}
	return rows
}
