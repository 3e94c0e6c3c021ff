package metadata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Exists(dir))

	fetched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &Manifest{
		Label:            "kpop",
		Query:            "context:65.1",
		RunID:            "run-1",
		Target:           2000,
		Pages:            20,
		PostsKept:        1990,
		SensitiveDropped: 10,
		FetchedAt:        fetched,
	}
	m.AddStage(Stage{Name: "authors", Status: "partial", Requested: 10, Resolved: 9})
	m.AddSnapshot("2026-03-01T12_00_00.csv")
	m.AddSnapshot("2026-03-01T13_00_00.csv")

	require.NoError(t, m.Save(dir))
	assert.True(t, Exists(dir))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "kpop", loaded.Label)
	assert.True(t, loaded.FetchedAt.Equal(fetched))
	assert.Equal(t, []string{"2026-03-01T12_00_00.csv", "2026-03-01T13_00_00.csv"}, loaded.Snapshots)
	require.Len(t, loaded.Enrichment, 1)
	assert.Equal(t, "partial", loaded.Enrichment[0].Status)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestKeptRatio(t *testing.T) {
	m := &Manifest{}
	if got := m.KeptRatio(); got != 0 {
		t.Errorf("KeptRatio() = %v, want 0", got)
	}

	m.PostsKept, m.SensitiveDropped = 3, 1
	if got := m.KeptRatio(); got != 0.75 {
		t.Errorf("KeptRatio() = %v, want 0.75", got)
	}
}
