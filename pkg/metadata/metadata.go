package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestFile is the manifest's name inside a topic directory
const ManifestFile = "manifest.json"

// Manifest describes how one topic directory of a dataset generation was built
type Manifest struct {
	// Identity
	Label string `json:"label"`
	Query string `json:"query"`
	RunID string `json:"run_id,omitempty"`

	// Fetch outcome
	Target           int       `json:"target"`
	Pages            int       `json:"pages"`
	PostsKept        int       `json:"posts_kept"`
	SensitiveDropped int       `json:"sensitive_dropped"`
	MediaLinked      int       `json:"media_linked"`
	FetchedAt        time.Time `json:"fetched_at"`
	SearchError      string    `json:"search_error,omitempty"`

	Enrichment []Stage `json:"enrichment,omitempty"`

	// Snapshot files in the order they were written
	Snapshots []string `json:"snapshots"`
}

// Stage records the result of one enrichment or refresh step
type Stage struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Requested int       `json:"requested"`
	Resolved  int       `json:"resolved"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at,omitempty"`
}

// AddSnapshot appends a snapshot file name
func (m *Manifest) AddSnapshot(name string) {
	m.Snapshots = append(m.Snapshots, name)
}

// AddStage appends a stage record
func (m *Manifest) AddStage(s Stage) {
	m.Enrichment = append(m.Enrichment, s)
}

// Save writes the manifest into dir
func (m *Manifest) Save(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestFile)
	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename manifest file: %w", err)
	}

	return nil
}

// Load reads the manifest in dir
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}

	return &m, nil
}

// Exists checks if dir holds a manifest
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ManifestFile))
	return err == nil
}

// KeptRatio returns the share of fetched posts that survived the sensitive
// filter, or 0 when nothing was fetched.
func (m *Manifest) KeptRatio() float64 {
	total := m.PostsKept + m.SensitiveDropped
	if total == 0 {
		return 0
	}
	return float64(m.PostsKept) / float64(total)
}
