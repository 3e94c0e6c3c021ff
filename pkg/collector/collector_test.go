package collector

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twdataset/internal/fakeapi"
	"twdataset/pkg/checkpoint"
	"twdataset/pkg/config"
	"twdataset/pkg/logger"
	"twdataset/pkg/metadata"
	"twdataset/pkg/storage"
	"twdataset/pkg/topics"
	"twdataset/pkg/twitter"
	"twdataset/pkg/ui"
)

var clockStart = time.Date(2026, 3, 2, 8, 0, 0, 0, time.Local)

// stepClock advances on every sleep and cancels the run on sleep number
// cancelAt when set
type stepClock struct {
	mu       sync.Mutex
	now      time.Time
	sleeps   int
	cancelAt int
	cancel   context.CancelFunc
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps++
	if c.cancelAt > 0 && c.sleeps == c.cancelAt {
		c.cancel()
		return context.Canceled
	}
	c.now = c.now.Add(d)
	return nil
}

type fixture struct {
	api    *fakeapi.Server
	cfg    *config.Config
	topics []topics.Topic
	client *twitter.Client
	out    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	api := fakeapi.New()
	t.Cleanup(api.Close)

	list := []topics.Topic{
		{Label: "crypto", Query: "context:66.913142676819648512"},
		{Label: "pets", Query: "context:65.852262932607926273"},
	}
	for _, topic := range list {
		api.AddTweetsForQuery(topic.Query+" lang:en -is:retweet",
			fakeapi.Corpus(topic.Label+"-", 20, clockStart.Add(-time.Minute), time.Minute, 3)...)
	}

	cfg := config.DefaultConfig()
	cfg.Schedule.Interval = 15 * time.Minute
	cfg.Schedule.Window = 15 * time.Minute
	cfg.Schedule.WindowQuota = 2000
	cfg.Schedule.Generations = 2
	cfg.Schedule.RefreshCycles = 2
	cfg.Output.DatasetPattern = filepath.Join(t.TempDir(), "dataset%d")

	out := &bytes.Buffer{}
	ui.SetOutput(out)
	t.Cleanup(func() { ui.SetOutput(os.Stdout) })

	return &fixture{
		api:    api,
		cfg:    cfg,
		topics: list,
		client: twitter.NewClient("test-token", logger.NewNopLogger(), twitter.WithBaseURL(api.URL())),
		out:    out,
	}
}

func (f *fixture) snapshots(t *testing.T, gen int, label string) []string {
	t.Helper()
	store, err := storage.NewManager(f.cfg.DatasetDir(gen))
	require.NoError(t, err)
	names, err := store.ListSnapshots(label)
	require.NoError(t, err)
	return names
}

func TestRunGenerations(t *testing.T) {
	f := newFixture(t)
	clock := &stepClock{now: clockStart}

	c := New(f.cfg, f.client, f.topics, WithClock(clock), WithLogger(logger.NewNopLogger()))
	require.NoError(t, c.Run(context.Background(), false, false))

	// one fetch and two refresh cycles per generation, one window each
	assert.Equal(t, 6, clock.sleeps)

	gen2Start := clockStart.Add(45 * time.Minute)
	expected := map[int]time.Time{1: clockStart, 2: gen2Start}
	for gen, start := range expected {
		for _, topic := range f.topics {
			assert.Equal(t, []string{
				storage.SnapshotName(start),
				storage.SnapshotName(start.Add(15 * time.Minute)),
				storage.SnapshotName(start.Add(30 * time.Minute)),
			}, f.snapshots(t, gen, topic.Label), "generation %d %s", gen, topic.Label)
		}
	}

	m1, err := metadata.Load(filepath.Join(f.cfg.DatasetDir(1), "crypto"))
	require.NoError(t, err)
	m2, err := metadata.Load(filepath.Join(f.cfg.DatasetDir(2), "crypto"))
	require.NoError(t, err)
	assert.NotEmpty(t, m1.RunID)
	assert.NotEqual(t, m1.RunID, m2.RunID)
	assert.Equal(t, 1000, m1.Target)
	assert.Equal(t, 20, m1.PostsKept)

	assert.Contains(t, f.out.String(), "[GENERATION 1 COMPLETE]")
	assert.Contains(t, f.out.String(), "[GENERATION 2 COMPLETE]")
}

func TestRunFirstGeneration(t *testing.T) {
	f := newFixture(t)
	f.cfg.Schedule.FirstGen = 4
	f.cfg.Schedule.Generations = 1
	f.cfg.Schedule.RefreshCycles = 0

	c := New(f.cfg, f.client, f.topics, WithClock(&stepClock{now: clockStart}), WithLogger(logger.NewNopLogger()))
	require.NoError(t, c.Run(context.Background(), false, false))

	_, err := os.Stat(f.cfg.DatasetDir(4))
	assert.NoError(t, err)
	_, err = os.Stat(f.cfg.DatasetDir(1))
	assert.True(t, os.IsNotExist(err))
	assert.Len(t, f.snapshots(t, 4, "pets"), 1)
}

func TestResumeInterruptedGeneration(t *testing.T) {
	f := newFixture(t)
	f.cfg.Schedule.Generations = 1

	mgr, err := checkpoint.NewManager("collector-test")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// fetch sleep, first refresh sleep, then cancel during the second refresh
	clock := &stepClock{now: clockStart, cancelAt: 3, cancel: cancel}

	c := New(f.cfg, f.client, f.topics, WithClock(clock), WithCheckpoints(mgr), WithLogger(logger.NewNopLogger()))
	err = c.Run(ctx, false, false)
	require.ErrorIs(t, err, context.Canceled)

	cp, err := mgr.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.True(t, cp.Fetched)
	assert.Equal(t, 1, cp.RefreshesDone)
	assert.Equal(t, f.cfg.DatasetDir(1), cp.DatasetDir)
	searches := len(f.api.Searches())

	resumed := &stepClock{now: clockStart.Add(time.Hour)}
	c = New(f.cfg, f.client, f.topics, WithClock(resumed), WithCheckpoints(mgr), WithLogger(logger.NewNopLogger()))
	require.NoError(t, c.Run(context.Background(), true, false))

	assert.Equal(t, searches, len(f.api.Searches()), "resume must not search again")
	assert.False(t, mgr.Exists())

	// the interrupted cycle had written its snapshot before the cancel
	names := f.snapshots(t, 1, "crypto")
	require.Len(t, names, 4)
	assert.Equal(t, storage.SnapshotName(clockStart.Add(45*time.Minute)), names[3])

	m, err := metadata.Load(filepath.Join(f.cfg.DatasetDir(1), "crypto"))
	require.NoError(t, err)
	assert.Equal(t, cp.RunID, m.RunID)
	assert.Len(t, m.Snapshots, 4)
}

func TestResumeInterruptedInitialFetch(t *testing.T) {
	f := newFixture(t)
	f.cfg.Schedule.Generations = 1
	f.cfg.Schedule.RefreshCycles = 1

	mgr, err := checkpoint.NewManager("collector-refetch")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// snapshots are written, then the run stops in the window sleep
	clock := &stepClock{now: clockStart, cancelAt: 1, cancel: cancel}

	c := New(f.cfg, f.client, f.topics, WithClock(clock), WithCheckpoints(mgr), WithLogger(logger.NewNopLogger()))
	require.ErrorIs(t, c.Run(ctx, false, false), context.Canceled)

	cp, err := mgr.Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.False(t, cp.Fetched)
	assert.Equal(t, []string{storage.SnapshotName(clockStart)}, f.snapshots(t, 1, "crypto"))

	restart := clockStart.Add(time.Hour)
	c = New(f.cfg, f.client, f.topics, WithClock(&stepClock{now: restart}), WithCheckpoints(mgr), WithLogger(logger.NewNopLogger()))
	require.NoError(t, c.Run(context.Background(), true, false))

	expected := []string{
		storage.SnapshotName(restart),
		storage.SnapshotName(restart.Add(15 * time.Minute)),
	}
	for _, topic := range f.topics {
		assert.Equal(t, expected, f.snapshots(t, 1, topic.Label), topic.Label)
	}

	m, err := metadata.Load(filepath.Join(f.cfg.DatasetDir(1), "pets"))
	require.NoError(t, err)
	assert.Equal(t, cp.RunID, m.RunID)
	assert.Equal(t, expected, m.Snapshots)
}

func TestResumeRejectsOtherTopics(t *testing.T) {
	f := newFixture(t)

	mgr, err := checkpoint.NewManager("collector-topics")
	require.NoError(t, err)
	_, err = mgr.Create(1, f.cfg.DatasetDir(1), []string{"kpop"})
	require.NoError(t, err)

	c := New(f.cfg, f.client, f.topics, WithCheckpoints(mgr), WithLogger(logger.NewNopLogger()))
	err = c.Run(context.Background(), true, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kpop")
}

func TestForceRestartDropsCheckpoint(t *testing.T) {
	f := newFixture(t)
	f.cfg.Schedule.Generations = 1
	f.cfg.Schedule.RefreshCycles = 0

	mgr, err := checkpoint.NewManager("collector-force")
	require.NoError(t, err)
	old, err := mgr.Create(1, f.cfg.DatasetDir(1), []string{"kpop"})
	require.NoError(t, err)

	c := New(f.cfg, f.client, f.topics, WithClock(&stepClock{now: clockStart}), WithCheckpoints(mgr), WithLogger(logger.NewNopLogger()))
	require.NoError(t, c.Run(context.Background(), true, true))

	m, err := metadata.Load(filepath.Join(f.cfg.DatasetDir(1), "pets"))
	require.NoError(t, err)
	assert.NotEqual(t, old.RunID, m.RunID)
	assert.Contains(t, f.out.String(), "Force restart")

	backup, err := os.ReadFile(mgr.Path() + ".backup")
	require.NoError(t, err)
	assert.Contains(t, string(backup), old.RunID)
}

func TestCheckpointWithoutResumeStartsOver(t *testing.T) {
	f := newFixture(t)
	f.cfg.Schedule.Generations = 1
	f.cfg.Schedule.RefreshCycles = 0

	mgr, err := checkpoint.NewManager("collector-noresume")
	require.NoError(t, err)
	_, err = mgr.Create(1, f.cfg.DatasetDir(1), []string{"crypto", "pets"})
	require.NoError(t, err)

	c := New(f.cfg, f.client, f.topics, WithClock(&stepClock{now: clockStart}), WithCheckpoints(mgr), WithLogger(logger.NewNopLogger()))
	require.NoError(t, c.Run(context.Background(), false, false))

	assert.Contains(t, f.out.String(), "Checkpoint found: generation 1, 0 refreshes done")
	assert.NotEmpty(t, f.api.Searches())
	assert.False(t, mgr.Exists())
}

func TestPlanAndLabels(t *testing.T) {
	f := newFixture(t)
	f.cfg.Schedule.Interval = time.Hour

	c := New(f.cfg, f.client, f.topics)
	plan := c.Plan()
	assert.Equal(t, 4, plan.Windows)
	assert.Equal(t, 1, plan.TopicsPerWindow)
	assert.Equal(t, 2000, plan.PostsPerTopic)
	assert.Equal(t, []string{"crypto", "pets"}, c.Labels())
}
