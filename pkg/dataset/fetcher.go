package dataset

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"twdataset/pkg/config"
	"twdataset/pkg/errors"
	"twdataset/pkg/logger"
	"twdataset/pkg/metadata"
	"twdataset/pkg/metrics"
	"twdataset/pkg/models"
	"twdataset/pkg/storage"
	"twdataset/pkg/topics"
	"twdataset/pkg/twitter"
)

// API is the part of the X API a Fetcher needs
type API interface {
	Search(ctx context.Context, p twitter.SearchParams) (*twitter.SearchResponse, error)
	LookupUsers(ctx context.Context, ids []string) (*twitter.UsersResponse, error)
	LookupTweets(ctx context.Context, ids []string) (*twitter.TweetsResponse, error)
}

// Options tune a Fetcher
type Options struct {
	PageSize      int
	QuerySuffix   string
	EndTimeOffset time.Duration
	// Interval is how far the logical time advances on each Refresh
	Interval      time.Duration
	WriteManifest bool
	RunID         string
	Now           func() time.Time
}

// OptionsFromConfig builds Options from the fetch, schedule and output sections
func OptionsFromConfig(cfg *config.Config, runID string) Options {
	return Options{
		PageSize:      cfg.Fetch.ResultsPerCall,
		QuerySuffix:   cfg.Fetch.QuerySuffix,
		EndTimeOffset: cfg.Fetch.EndTimeOffset,
		Interval:      cfg.Schedule.Interval,
		WriteManifest: cfg.Output.WriteManifest,
		RunID:         runID,
	}
}

// Fetcher collects and refreshes the posts of a single topic. A Fetcher is
// not safe for concurrent use; the scheduler gives each topic its own.
type Fetcher struct {
	topic  topics.Topic
	api    API
	store  *storage.Manager
	opts   Options
	logger logger.Logger

	posts       []models.Post
	index       map[string]int
	logicalTime time.Time
	manifest    *metadata.Manifest
}

// NewFetcher creates a fetcher for topic writing below store
func NewFetcher(topic topics.Topic, api API, store *storage.Manager, opts Options, log logger.Logger) *Fetcher {
	opts.PageSize = twitter.ClampResults(opts.PageSize)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Fetcher{
		topic:  topic,
		api:    api,
		store:  store,
		opts:   opts,
		logger: log.WithField("topic", topic.Label),
		index:  make(map[string]int),
	}
}

// Topic returns the fetcher's topic
func (f *Fetcher) Topic() topics.Topic {
	return f.topic
}

// LogicalTime is the timestamp of the latest snapshot
func (f *Fetcher) LogicalTime() time.Time {
	return f.logicalTime
}

// Posts returns a copy of the posts in memory
func (f *Fetcher) Posts() []models.Post {
	out := make([]models.Post, len(f.posts))
	copy(out, f.posts)
	return out
}

// PostIDs returns the ids of the posts in memory, in fetch order
func (f *Fetcher) PostIDs() []string {
	ids := make([]string, len(f.posts))
	for i := range f.posts {
		ids[i] = f.posts[i].ID
	}
	return ids
}

func (f *Fetcher) query() string {
	if f.opts.QuerySuffix == "" {
		return f.topic.Query
	}
	return f.topic.Query + " " + f.opts.QuerySuffix
}

// Fetch pages through search results until target posts have been requested,
// enriches them and writes tweets.csv, media.csv and the first snapshot.
// API failures end up in the report; only storage failures and context
// cancellation are returned as errors.
func (f *Fetcher) Fetch(ctx context.Context, target int) (*FetchReport, error) {
	start := f.opts.Now()
	f.logicalTime = start
	f.posts = nil
	f.index = make(map[string]int)

	report := &FetchReport{Topic: f.topic.Label, Target: target}
	media := make(map[string]twitter.Media)
	attachments := make(map[string][]string)

	pages := (target + f.opts.PageSize - 1) / f.opts.PageSize
	endTime := start.Add(-f.opts.EndTimeOffset)
	query := f.query()

	for page := 1; page <= pages; page++ {
		resp, err := f.api.Search(ctx, twitter.SearchParams{
			Query:      query,
			MaxResults: f.opts.PageSize,
			EndTime:    endTime,
		})
		if err != nil {
			report.SearchErr = err
			f.logger.WithError(err).WarnWithFields("Search failed, keeping collected posts", map[string]interface{}{
				"page":      page,
				"collected": len(f.posts),
			})
			break
		}
		report.Pages++

		if len(resp.Data) == 0 {
			f.logger.DebugWithFields("Search exhausted", map[string]interface{}{"page": page})
			break
		}
		if resp.Includes != nil {
			for _, m := range resp.Includes.Media {
				media[m.MediaKey] = m
			}
		}

		oldest := endTime
		kept := 0
		for _, tw := range resp.Data {
			if created, err := tw.Created(); err == nil && created.Before(oldest) {
				oldest = created
			}
			if tw.PossiblySensitive {
				report.SensitiveDropped++
				continue
			}
			if _, dup := f.index[tw.ID]; dup {
				report.Duplicates++
				continue
			}
			f.index[tw.ID] = len(f.posts)
			f.posts = append(f.posts, postFromTweet(tw))
			if tw.Attachments != nil && len(tw.Attachments.MediaKeys) > 0 {
				attachments[tw.ID] = tw.Attachments.MediaKeys
			}
			kept++
		}
		metrics.PostsFetched.WithLabelValues(f.topic.Label).Add(float64(kept))
		logger.LogFetchProgress(f.logger, f.topic.Label, len(f.posts), target, page)

		// a page with no datable tweet cannot move the cursor
		if !oldest.Before(endTime) {
			break
		}
		endTime = oldest
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}

	authors := f.enrichAuthors(ctx)
	items, mediaResult := f.linkMedia(attachments, media)
	report.Enrichment = []EnrichmentResult{authors, mediaResult}
	for _, res := range report.Enrichment {
		f.observe(res)
	}
	report.Posts = len(f.posts)
	report.Media = len(items)

	if _, err := f.store.WritePosts(f.topic.Label, f.posts); err != nil {
		return report, err
	}
	if _, err := f.store.WriteMedia(f.topic.Label, items); err != nil {
		return report, err
	}
	path, err := f.writeSnapshot()
	if err != nil {
		return report, err
	}
	report.SnapshotPath = path

	// refresh cycles only need ids and counters
	for i := range f.posts {
		f.posts[i].Strip()
	}

	if f.opts.WriteManifest {
		f.manifest = &metadata.Manifest{
			Label:            f.topic.Label,
			Query:            query,
			RunID:            f.opts.RunID,
			Target:           target,
			Pages:            report.Pages,
			PostsKept:        report.Posts,
			SensitiveDropped: report.SensitiveDropped,
			MediaLinked:      report.Media,
			FetchedAt:        start,
		}
		if report.SearchErr != nil {
			f.manifest.SearchError = report.SearchErr.Error()
		}
		for _, res := range report.Enrichment {
			f.manifest.AddStage(res.record(start))
		}
		f.manifest.AddSnapshot(storage.SnapshotName(f.logicalTime))
		if err := f.saveManifest(); err != nil {
			return report, err
		}
	}

	fields := map[string]interface{}{
		"target":            target,
		"pages":             report.Pages,
		"posts":             report.Posts,
		"sensitive_dropped": report.SensitiveDropped,
		"media":             report.Media,
		"authors":           string(authors.Status),
	}
	if f.manifest != nil {
		fields["kept_ratio"] = f.manifest.KeptRatio()
	}
	f.logger.InfoWithFields("Topic fetched", fields)
	return report, nil
}

// Refresh advances the logical time by one interval, re-reads the counters of
// every known post and appends a new snapshot. Posts the API does not return
// keep their previous counters.
func (f *Fetcher) Refresh(ctx context.Context) (*RefreshReport, error) {
	if f.logicalTime.IsZero() {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, "topic %s: refresh before fetch", f.topic.Label)
	}
	f.logicalTime = f.logicalTime.Add(f.opts.Interval)

	ids := f.PostIDs()
	resolved := 0
	var lookupErr error
	for _, batch := range twitter.Batches(ids, twitter.MaxIDsPerLookup) {
		resp, err := f.api.LookupTweets(ctx, batch)
		if err != nil {
			lookupErr = err
			break
		}
		for _, tw := range resp.Data {
			i, ok := f.index[tw.ID]
			if !ok || tw.PublicMetrics == nil {
				continue
			}
			f.posts[i].Engagement = engagementOf(tw.PublicMetrics)
			resolved++
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := newResult(StageRefresh, len(ids), resolved, lookupErr)
	f.observe(result)

	path, err := f.writeSnapshot()
	if err != nil {
		return nil, err
	}

	if f.manifest != nil {
		f.manifest.AddStage(result.record(f.logicalTime))
		f.manifest.AddSnapshot(storage.SnapshotName(f.logicalTime))
		if err := f.saveManifest(); err != nil {
			return nil, err
		}
	}

	return &RefreshReport{
		Topic:        f.topic.Label,
		At:           f.logicalTime,
		Result:       result,
		SnapshotPath: path,
	}, nil
}

// Restore rebuilds the in-memory state from the topic's latest snapshot so
// refresh cycles can continue after a restart.
func (f *Fetcher) Restore() error {
	names, err := f.store.ListSnapshots(f.topic.Label)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return errors.New(errors.ErrorTypeNotFound, 0, "topic %s has no snapshot to resume from", f.topic.Label)
	}

	latest := names[len(names)-1]
	at, err := storage.ParseSnapshotName(latest)
	if err != nil {
		return err
	}
	rows, err := storage.ReadSnapshot(filepath.Join(f.store.TopicDir(f.topic.Label), latest))
	if err != nil {
		return err
	}

	f.posts = make([]models.Post, len(rows))
	f.index = make(map[string]int, len(rows))
	for i, r := range rows {
		f.posts[i] = models.Post{ID: r.PostID, Engagement: r.Engagement}
		f.index[r.PostID] = i
	}
	f.logicalTime = at

	dir := f.store.TopicDir(f.topic.Label)
	if f.opts.WriteManifest && metadata.Exists(dir) {
		m, err := metadata.Load(dir)
		if err != nil {
			return err
		}
		f.manifest = m
	} else if f.opts.WriteManifest {
		f.logger.Warn("No manifest to resume, continuing without")
	}

	f.logger.InfoWithFields("Topic restored", map[string]interface{}{
		"posts":    len(rows),
		"snapshot": latest,
	})
	return nil
}

// enrichAuthors looks up every distinct author and copies the profile
// counters onto their posts by author id.
func (f *Fetcher) enrichAuthors(ctx context.Context) EnrichmentResult {
	var ids []string
	seen := make(map[string]bool)
	for _, p := range f.posts {
		if p.AuthorID == "" || seen[p.AuthorID] {
			continue
		}
		seen[p.AuthorID] = true
		ids = append(ids, p.AuthorID)
	}

	users := make(map[string]twitter.User, len(ids))
	var lookupErr error
	for _, batch := range twitter.Batches(ids, twitter.MaxIDsPerLookup) {
		resp, err := f.api.LookupUsers(ctx, batch)
		if err != nil {
			lookupErr = err
			break
		}
		for _, u := range resp.Data {
			if seen[u.ID] {
				users[u.ID] = u
			}
		}
	}

	for i := range f.posts {
		u, ok := users[f.posts[i].AuthorID]
		if !ok {
			continue
		}
		f.posts[i].Verified = u.Verified
		if u.PublicMetrics != nil {
			f.posts[i].Followers = u.PublicMetrics.FollowersCount
			f.posts[i].Following = u.PublicMetrics.FollowingCount
		}
	}

	result := newResult(StageAuthors, len(ids), len(users), lookupErr)
	if result.Status != StatusSuccess && result.Status != StatusSkipped {
		f.logger.WithError(lookupErr).WarnWithFields("Author enrichment incomplete", map[string]interface{}{
			"status":  string(result.Status),
			"missing": result.Missing(),
		})
	}
	return result
}

// linkMedia resolves each post's attachment keys against the collected media
func (f *Fetcher) linkMedia(attachments map[string][]string, media map[string]twitter.Media) ([]models.MediaItem, EnrichmentResult) {
	var items []models.MediaItem
	requested := 0
	for _, p := range f.posts {
		for _, key := range attachments[p.ID] {
			requested++
			m, ok := media[key]
			if !ok {
				continue
			}
			items = append(items, models.MediaItem{
				ID:         p.ID,
				MediaKey:   m.MediaKey,
				Type:       m.Type,
				URL:        m.URL,
				PreviewURL: m.PreviewImageURL,
			})
		}
	}

	result := newResult(StageMedia, requested, len(items), nil)
	if result.Status == StatusPartial {
		f.logger.WarnWithFields("Some attachments had no media", map[string]interface{}{
			"missing": result.Missing(),
		})
	}
	return items, result
}

func (f *Fetcher) writeSnapshot() (string, error) {
	path, err := f.store.WriteSnapshot(f.topic.Label, f.logicalTime, models.Snapshot(f.posts))
	if err != nil {
		return "", err
	}
	metrics.SnapshotsWritten.WithLabelValues(f.topic.Label).Inc()
	logger.LogSnapshot(f.logger, f.topic.Label, path, len(f.posts))
	return path, nil
}

func (f *Fetcher) saveManifest() error {
	if err := f.manifest.Save(f.store.TopicDir(f.topic.Label)); err != nil {
		return errors.Wrap(errors.ErrorTypeStorage, err, "topic %s", f.topic.Label)
	}
	return nil
}

func (f *Fetcher) observe(res EnrichmentResult) {
	metrics.Enrichment.WithLabelValues(res.Stage, string(res.Status)).Inc()
}

func postFromTweet(tw twitter.Tweet) models.Post {
	p := models.Post{
		ID:        tw.ID,
		Text:      tw.Text,
		AuthorID:  tw.AuthorID,
		CreatedAt: tw.CreatedAt,
		Source:    strings.TrimSpace(tw.Source),
	}
	if tw.Entities != nil {
		p.HashtagCount = len(tw.Entities.Hashtags)
		p.MentionCount = len(tw.Entities.Mentions)
	}
	if tw.PublicMetrics != nil {
		p.Engagement = engagementOf(tw.PublicMetrics)
	}
	return p
}

func engagementOf(m *twitter.PublicMetrics) models.Engagement {
	return models.Engagement{
		Retweets: m.RetweetCount,
		Likes:    m.LikeCount,
		Replies:  m.ReplyCount,
		Quotes:   m.QuoteCount,
	}
}
