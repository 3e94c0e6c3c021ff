package storage

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"twdataset/pkg/errors"
	"twdataset/pkg/models"
)

const (
	TweetsFile = "tweets.csv"
	MediaFile  = "media.csv"

	// SnapshotLayout is ISO 8601 to the second in UTC with ':' replaced by '_'
	SnapshotLayout = "2006-01-02T15_04_05"
)

var (
	TweetFields    = []string{"id", "text", "author_id", "created_at", "hashtags", "mentions", "source", "followers", "following", "verified"}
	ViralityFields = []string{"id", "retweets", "likes", "replies", "quotes"}
	MediaFields    = []string{"id", "media_key", "type", "url", "preview_image_url"}
)

// Manager writes the per-topic files of one dataset generation
type Manager struct {
	outputDir string
}

// NewManager creates a new storage manager rooted at outputDir
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrorTypeStorage, err, "failed to create output directory")
	}
	return &Manager{outputDir: outputDir}, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// TopicDir returns the directory holding a topic's files
func (m *Manager) TopicDir(label string) string {
	return filepath.Join(m.outputDir, label)
}

// SnapshotName returns the file name of a snapshot taken at t. Names are in
// UTC so they stay distinct and sortable across daylight saving changes.
func SnapshotName(t time.Time) string {
	return t.UTC().Format(SnapshotLayout) + ".csv"
}

// ParseSnapshotName recovers the timestamp of a snapshot file name
func ParseSnapshotName(name string) (time.Time, error) {
	t, err := time.ParseInLocation(SnapshotLayout, strings.TrimSuffix(filepath.Base(name), ".csv"), time.UTC)
	if err != nil {
		return time.Time{}, errors.Wrap(errors.ErrorTypeParsing, err, "bad snapshot name %s", name)
	}
	return t, nil
}

// Sanitize makes text safe for the unquoted CSV output: newlines become
// spaces, commas and double quotes are dropped. Other whitespace is kept.
func Sanitize(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ", ",", "", `"`, "").Replace(s)
}

// WritePosts writes tweets.csv for label, replacing any previous file
func (m *Manager) WritePosts(label string, posts []models.Post) (string, error) {
	rows := make([][]string, 0, len(posts))
	for _, p := range posts {
		rows = append(rows, []string{
			p.ID,
			Sanitize(p.Text),
			orZero(p.AuthorID),
			orZero(p.CreatedAt),
			strconv.Itoa(p.HashtagCount),
			strconv.Itoa(p.MentionCount),
			orZero(Sanitize(p.Source)),
			strconv.Itoa(p.Followers),
			strconv.Itoa(p.Following),
			strconv.FormatBool(p.Verified),
		})
	}
	return m.writeTopicFile(label, TweetsFile, TweetFields, rows, true)
}

// WriteMedia writes media.csv for label, replacing any previous file
func (m *Manager) WriteMedia(label string, items []models.MediaItem) (string, error) {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.ID,
			it.MediaKey,
			orZero(it.Type),
			orZero(Sanitize(it.URL)),
			orZero(Sanitize(it.PreviewURL)),
		})
	}
	return m.writeTopicFile(label, MediaFile, MediaFields, rows, true)
}

// WriteSnapshot appends a new snapshot file stamped at. Snapshots are never
// overwritten; a second snapshot with the same stamp is an error.
func (m *Manager) WriteSnapshot(label string, at time.Time, rows []models.SnapshotRow) (string, error) {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.PostID,
			strconv.Itoa(r.Retweets),
			strconv.Itoa(r.Likes),
			strconv.Itoa(r.Replies),
			strconv.Itoa(r.Quotes),
		})
	}
	return m.writeTopicFile(label, SnapshotName(at), ViralityFields, records, false)
}

// writeTopicFile writes header and rows atomically via a temporary file
func (m *Manager) writeTopicFile(label, name string, header []string, rows [][]string, overwrite bool) (string, error) {
	dir := m.TopicDir(label)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(errors.ErrorTypeStorage, err, "failed to create topic directory")
	}

	path := filepath.Join(dir, name)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", errors.New(errors.ErrorTypeStorage, 0, "snapshot %s already exists", path)
		}
	}

	tempFile := path + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return "", errors.Wrap(errors.ErrorTypeStorage, err, "failed to create temporary file")
	}

	w := csv.NewWriter(out)
	writeErr := w.Write(header)
	if writeErr == nil {
		writeErr = w.WriteAll(rows)
	}
	closeErr := out.Close()

	if writeErr != nil {
		os.Remove(tempFile)
		return "", errors.Wrap(errors.ErrorTypeStorage, writeErr, "failed to write %s", name)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return "", errors.Wrap(errors.ErrorTypeStorage, closeErr, "failed to close %s", name)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return "", errors.Wrap(errors.ErrorTypeStorage, err, "failed to rename temporary file")
	}
	return path, nil
}

// ReadSnapshot parses a snapshot file back into rows, in file order
func ReadSnapshot(path string) ([]models.SnapshotRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeStorage, err, "failed to open snapshot")
	}
	defer f.Close()

	return parseSnapshot(f)
}

func parseSnapshot(r io.Reader) ([]models.SnapshotRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(ViralityFields)

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeParsing, err, "failed to read snapshot header")
	}
	if strings.Join(header, ",") != strings.Join(ViralityFields, ",") {
		return nil, errors.New(errors.ErrorTypeParsing, 0, "unexpected snapshot header %v", header)
	}

	rows := []models.SnapshotRow{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrorTypeParsing, err, "failed to read snapshot row")
		}

		counts := make([]int, 4)
		for i := range counts {
			counts[i], err = strconv.Atoi(rec[i+1])
			if err != nil {
				return nil, errors.Wrap(errors.ErrorTypeParsing, err, "post %s: bad %s count", rec[0], ViralityFields[i+1])
			}
		}
		rows = append(rows, models.SnapshotRow{
			PostID: rec[0],
			Engagement: models.Engagement{
				Retweets: counts[0],
				Likes:    counts[1],
				Replies:  counts[2],
				Quotes:   counts[3],
			},
		})
	}
	return rows, nil
}

// ListSnapshots returns the snapshot files of label, oldest first
func (m *Manager) ListSnapshots(label string) ([]string, error) {
	entries, err := os.ReadDir(m.TopicDir(label))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrorTypeStorage, err, "failed to read topic directory")
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".csv" {
			continue
		}
		if _, err := ParseSnapshotName(name); err != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// RemoveSnapshots deletes every snapshot file of label and returns how many
// were removed
func (m *Manager) RemoveSnapshots(label string) (int, error) {
	names, err := m.ListSnapshots(label)
	if err != nil {
		return 0, err
	}
	for i, name := range names {
		if err := os.Remove(filepath.Join(m.TopicDir(label), name)); err != nil && !os.IsNotExist(err) {
			return i, errors.Wrap(errors.ErrorTypeStorage, err, "failed to remove snapshot %s", name)
		}
	}
	return len(names), nil
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}
