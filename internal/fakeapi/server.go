// Package fakeapi is an in-process stand-in for the X API v2 endpoints the
// collector calls. Tests load it with tweets, users and media and then point
// a twitter.Client at URL().
package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"twdataset/pkg/twitter"
)

// Server simulates search, user lookup and tweet lookup
type Server struct {
	server *httptest.Server

	mu            sync.Mutex
	corpus        map[string][]twitter.Tweet // by query; "" matches any query
	media         map[string]twitter.Media
	users         map[string]twitter.User
	metrics       map[string]twitter.PublicMetrics
	deleted       map[string]bool
	reverseUsers  bool
	failures      map[string]failure
	requestCounts map[string]int
	searches      []url.Values
	lookups       map[string][][]string
}

type failure struct {
	after int // successful requests allowed before failing
	code  int
}

// New starts a fake API server; callers must Close it
func New() *Server {
	s := &Server{
		corpus:        make(map[string][]twitter.Tweet),
		media:         make(map[string]twitter.Media),
		users:         make(map[string]twitter.User),
		metrics:       make(map[string]twitter.PublicMetrics),
		deleted:       make(map[string]bool),
		failures:      make(map[string]failure),
		requestCounts: make(map[string]int),
		lookups:       make(map[string][][]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(twitter.SearchRecentEndpoint, s.handleSearch)
	mux.HandleFunc(twitter.SearchAllEndpoint, s.handleSearch)
	mux.HandleFunc(twitter.UsersEndpoint, s.handleUsers)
	mux.HandleFunc(twitter.TweetsEndpoint, s.handleTweets)

	s.server = httptest.NewServer(mux)
	return s
}

// URL returns the base URL to pass to twitter.WithBaseURL
func (s *Server) URL() string {
	return s.server.URL
}

// Close shuts the server down
func (s *Server) Close() {
	s.server.Close()
}

// AddTweets adds tweets returned for any query without its own corpus
func (s *Server) AddTweets(tweets ...twitter.Tweet) {
	s.AddTweetsForQuery("", tweets...)
}

// AddTweetsForQuery adds tweets returned only for an exact query string
func (s *Server) AddTweetsForQuery(query string, tweets ...twitter.Tweet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corpus[query] = append(s.corpus[query], tweets...)
	for _, t := range tweets {
		if t.PublicMetrics != nil {
			s.metrics[t.ID] = *t.PublicMetrics
		}
	}
}

// AddMedia registers expandable media
func (s *Server) AddMedia(media ...twitter.Media) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range media {
		s.media[m.MediaKey] = m
	}
}

// AddUsers registers users for lookup
func (s *Server) AddUsers(users ...twitter.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u.ID] = u
	}
}

// SetMetrics changes the counters tweet lookups report for id
func (s *Server) SetMetrics(id string, m twitter.PublicMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[id] = m
}

// DeleteTweet makes lookups report id as not found
func (s *Server) DeleteTweet(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted[id] = true
}

// ReverseUsers returns user lookups in the reverse of the requested order
func (s *Server) ReverseUsers(reverse bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reverseUsers = reverse
}

// FailAfter makes path answer code once it has served successes requests
func (s *Server) FailAfter(path string, successes, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = failure{after: successes, code: code}
}

// ClearFailure removes a configured failure
func (s *Server) ClearFailure(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, path)
}

// RequestCount returns how many requests path received
func (s *Server) RequestCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestCounts[path]
}

// Searches returns the query parameters of every search request
func (s *Server) Searches() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]url.Values, len(s.searches))
	copy(out, s.searches)
	return out
}

// Lookups returns the id batches requested from path
func (s *Server) Lookups(path string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.lookups[path]))
	copy(out, s.lookups[path])
	return out
}

// begin counts the request and reports a configured failure status
func (s *Server) begin(r *http.Request) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := r.URL.Path
	s.requestCounts[path]++
	if f, ok := s.failures[path]; ok && s.requestCounts[path] > f.after {
		return f.code
	}
	return 0
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if code := s.begin(r); code != 0 {
		sendError(w, code)
		return
	}

	q := r.URL.Query()
	max, err := strconv.Atoi(q.Get("max_results"))
	if err != nil || max < twitter.MinResultsPerCall || max > twitter.MaxResultsPerCall {
		sendError(w, http.StatusBadRequest)
		return
	}
	var endTime time.Time
	if v := q.Get("end_time"); v != "" {
		if endTime, err = time.Parse(time.RFC3339, v); err != nil {
			sendError(w, http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	s.searches = append(s.searches, q)
	candidates, ok := s.corpus[q.Get("query")]
	if !ok {
		candidates = s.corpus[""]
	}

	var page []twitter.Tweet
	for _, t := range sortedNewestFirst(candidates) {
		created, err := t.Created()
		if err != nil {
			continue
		}
		if !endTime.IsZero() && !created.Before(endTime) {
			continue
		}
		page = append(page, t)
		if len(page) == max {
			break
		}
	}

	resp := twitter.SearchResponse{Data: page, Meta: &twitter.Meta{ResultCount: len(page)}}
	var media []twitter.Media
	for _, t := range page {
		if t.Attachments == nil {
			continue
		}
		for _, key := range t.Attachments.MediaKeys {
			if m, ok := s.media[key]; ok {
				media = append(media, m)
			}
		}
	}
	if len(media) > 0 {
		resp.Includes = &twitter.Includes{Media: media}
	}
	if len(page) > 0 {
		resp.Meta.NewestID = page[0].ID
		resp.Meta.OldestID = page[len(page)-1].ID
	}
	s.mu.Unlock()

	writeJSON(w, resp)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	if code := s.begin(r); code != 0 {
		sendError(w, code)
		return
	}
	ids := s.recordLookup(r)

	s.mu.Lock()
	var resp twitter.UsersResponse
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			resp.Data = append(resp.Data, u)
		} else {
			resp.Errors = append(resp.Errors, notFound(id, "user"))
		}
	}
	if s.reverseUsers {
		for i, j := 0, len(resp.Data)-1; i < j; i, j = i+1, j-1 {
			resp.Data[i], resp.Data[j] = resp.Data[j], resp.Data[i]
		}
	}
	s.mu.Unlock()

	writeJSON(w, resp)
}

func (s *Server) handleTweets(w http.ResponseWriter, r *http.Request) {
	if code := s.begin(r); code != 0 {
		sendError(w, code)
		return
	}
	ids := s.recordLookup(r)

	s.mu.Lock()
	var resp twitter.TweetsResponse
	for _, id := range ids {
		m, ok := s.metrics[id]
		if !ok || s.deleted[id] {
			resp.Errors = append(resp.Errors, notFound(id, "tweet"))
			continue
		}
		metrics := m
		resp.Data = append(resp.Data, twitter.Tweet{ID: id, PublicMetrics: &metrics})
	}
	s.mu.Unlock()

	writeJSON(w, resp)
}

func (s *Server) recordLookup(r *http.Request) []string {
	ids := strings.Split(r.URL.Query().Get("ids"), ",")
	s.mu.Lock()
	s.lookups[r.URL.Path] = append(s.lookups[r.URL.Path], ids)
	s.mu.Unlock()
	return ids
}

func sortedNewestFirst(tweets []twitter.Tweet) []twitter.Tweet {
	out := make([]twitter.Tweet, len(tweets))
	copy(out, tweets)
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := out[i].Created()
		b, _ := out[j].Created()
		return a.After(b)
	})
	return out
}

func notFound(id, resourceType string) twitter.APIError {
	return twitter.APIError{
		Title:        "Not Found Error",
		Detail:       fmt.Sprintf("Could not find %s with ids: [%s].", resourceType, id),
		Type:         "https://api.twitter.com/2/problems/resource-not-found",
		Value:        id,
		ResourceID:   id,
		ResourceType: resourceType,
	}
}

func sendError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/problem+json")
	if code == http.StatusTooManyRequests {
		w.Header().Set("x-rate-limit-reset", strconv.FormatInt(time.Now().Add(15*time.Minute).Unix(), 10))
	}
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"title":  http.StatusText(code),
		"detail": http.StatusText(code),
		"status": code,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// Corpus builds n tweets with ids prefix0..prefix(n-1), newest first, one
// step apart going back from newest. Authors cycle through authors ids
// ("a0", "a1", ...).
func Corpus(prefix string, n int, newest time.Time, step time.Duration, authors int) []twitter.Tweet {
	if authors <= 0 {
		authors = 1
	}
	tweets := make([]twitter.Tweet, n)
	for i := range tweets {
		tweets[i] = twitter.Tweet{
			ID:            fmt.Sprintf("%s%d", prefix, i),
			Text:          fmt.Sprintf("post %d from %s", i, prefix),
			AuthorID:      fmt.Sprintf("a%d", i%authors),
			CreatedAt:     newest.Add(-time.Duration(i) * step).UTC().Format("2006-01-02T15:04:05.000Z"),
			Source:        "Twitter Web App",
			PublicMetrics: &twitter.PublicMetrics{RetweetCount: i, LikeCount: 10 * i, ReplyCount: 1, QuoteCount: 0},
		}
	}
	return tweets
}
