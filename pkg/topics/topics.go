// Package topics defines the labelled search queries the collector tracks.
package topics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
)

// Topic is one independently collected search stream
type Topic struct {
	Label string `json:"label" yaml:"label"`
	Query string `json:"query" yaml:"query"`
}

// labelPattern keeps labels usable as directory names
var labelPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Default returns the built-in topic table. The queries are context
// annotation filters (domain.entity).
func Default() []Topic {
	return []Topic{
		{Label: "crypto", Query: "context:66.913142676819648512"},
		{Label: "tv_movie", Query: "context:46.781974597105094656"},
		{Label: "pets", Query: "context:65.852262932607926273"},
		{Label: "video_games", Query: "context:46.781974597218340864"},
		{Label: "cell_phones", Query: "context:66.848920700073123840"},
		{Label: "covid", Query: "context:123.1220701888179359745"},
		{Label: "football", Query: "context:11.733756536430809088"},
		{Label: "kpop", Query: "context:55.888105153038958593"},
	}
}

// Load returns the topics in path, or the default table when path is empty
func Load(path string) ([]Topic, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open topic file: %w", err)
	}
	defer f.Close()

	list, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("topic file %s: %w", path, err)
	}
	return list, nil
}

// Parse reads a JSON object mapping label to query. Topics are returned in
// file order so chunking is stable across runs.
func Parse(r io.Reader) ([]Topic, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse topics: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("topics must be a JSON object of label to query")
	}

	var list []Topic
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse topics: %w", err)
		}
		label := tok.(string)

		var query string
		if err := dec.Decode(&query); err != nil {
			return nil, fmt.Errorf("topic %q: query must be a string: %w", label, err)
		}

		t := Topic{Label: label, Query: query}
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if seen[label] {
			return nil, fmt.Errorf("duplicate topic label %q", label)
		}
		seen[label] = true
		list = append(list, t)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("failed to parse topics: %w", err)
	}
	return list, nil
}

// Validate checks the label is a safe directory name and the query is set
func (t Topic) Validate() error {
	if !labelPattern.MatchString(t.Label) {
		return fmt.Errorf("invalid topic label %q", t.Label)
	}
	if t.Query == "" {
		return fmt.Errorf("topic %q has an empty query", t.Label)
	}
	return nil
}
