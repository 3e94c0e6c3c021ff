package twitter

import "time"

// Tweet is the subset of the v2 tweet object the collector requests
type Tweet struct {
	ID                string         `json:"id"`
	Text              string         `json:"text"`
	AuthorID          string         `json:"author_id,omitempty"`
	CreatedAt         string         `json:"created_at,omitempty"`
	Source            string         `json:"source,omitempty"`
	PossiblySensitive bool           `json:"possibly_sensitive,omitempty"`
	Attachments       *Attachments   `json:"attachments,omitempty"`
	Entities          *Entities      `json:"entities,omitempty"`
	PublicMetrics     *PublicMetrics `json:"public_metrics,omitempty"`
}

// Attachments lists expansion keys attached to a tweet
type Attachments struct {
	MediaKeys []string `json:"media_keys,omitempty"`
}

// Entities holds the parsed entities of a tweet's text
type Entities struct {
	Hashtags []Tag     `json:"hashtags,omitempty"`
	Cashtags []Tag     `json:"cashtags,omitempty"`
	Mentions []Mention `json:"mentions,omitempty"`
}

type Tag struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Tag   string `json:"tag"`
}

type Mention struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Username string `json:"username"`
	ID       string `json:"id,omitempty"`
}

// PublicMetrics are a tweet's engagement counters
type PublicMetrics struct {
	RetweetCount int `json:"retweet_count"`
	ReplyCount   int `json:"reply_count"`
	LikeCount    int `json:"like_count"`
	QuoteCount   int `json:"quote_count"`
}

// User is the subset of the v2 user object returned for user.fields=public_metrics,verified
type User struct {
	ID            string       `json:"id"`
	Name          string       `json:"name,omitempty"`
	Username      string       `json:"username,omitempty"`
	Verified      bool         `json:"verified"`
	PublicMetrics *UserMetrics `json:"public_metrics,omitempty"`
}

type UserMetrics struct {
	FollowersCount int `json:"followers_count"`
	FollowingCount int `json:"following_count"`
	TweetCount     int `json:"tweet_count"`
	ListedCount    int `json:"listed_count"`
}

// Media is an expanded attachment
type Media struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url,omitempty"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
}

// Includes carries expanded objects referenced from Data
type Includes struct {
	Media []Media `json:"media,omitempty"`
	Users []User  `json:"users,omitempty"`
}

// Meta describes a search page
type Meta struct {
	NewestID    string `json:"newest_id,omitempty"`
	OldestID    string `json:"oldest_id,omitempty"`
	ResultCount int    `json:"result_count"`
	NextToken   string `json:"next_token,omitempty"`
}

// APIError is a per-resource problem reported next to partial data, e.g. a
// deleted tweet in a lookup batch.
type APIError struct {
	Title        string `json:"title"`
	Detail       string `json:"detail"`
	Type         string `json:"type"`
	Value        string `json:"value,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
}

// SearchResponse is one page of /2/tweets/search/*
type SearchResponse struct {
	Data     []Tweet    `json:"data"`
	Includes *Includes  `json:"includes,omitempty"`
	Meta     *Meta      `json:"meta,omitempty"`
	Errors   []APIError `json:"errors,omitempty"`
}

// UsersResponse is the result of /2/users?ids=
type UsersResponse struct {
	Data   []User     `json:"data"`
	Errors []APIError `json:"errors,omitempty"`
}

// TweetsResponse is the result of /2/tweets?ids=
type TweetsResponse struct {
	Data   []Tweet    `json:"data"`
	Errors []APIError `json:"errors,omitempty"`
}

// Created parses CreatedAt
func (t Tweet) Created() (time.Time, error) {
	return time.Parse(time.RFC3339, t.CreatedAt)
}
