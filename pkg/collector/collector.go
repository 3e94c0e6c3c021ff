package collector

import (
	"context"
	"fmt"
	"time"

	"twdataset/pkg/checkpoint"
	"twdataset/pkg/config"
	"twdataset/pkg/dataset"
	"twdataset/pkg/errors"
	"twdataset/pkg/logger"
	"twdataset/pkg/scheduler"
	"twdataset/pkg/storage"
	"twdataset/pkg/topics"
	"twdataset/pkg/ui"
)

// Collector runs dataset generations: an initial fetch of every topic into a
// fresh directory followed by a fixed number of refresh cycles.
type Collector struct {
	api           dataset.API
	config        *config.Config
	topics        []topics.Topic
	clock         scheduler.Clock
	checkpointMgr *checkpoint.Manager
	tracker       *ui.RunTracker
	logger        logger.Logger
}

// Option configures a Collector
type Option func(*Collector)

// WithClock replaces the wall clock used for logical time and window sleeps
func WithClock(clock scheduler.Clock) Option {
	return func(c *Collector) { c.clock = clock }
}

// WithCheckpoints enables resume support through mgr
func WithCheckpoints(mgr *checkpoint.Manager) Option {
	return func(c *Collector) { c.checkpointMgr = mgr }
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(c *Collector) { c.logger = log }
}

// WithTracker prints generation progress through tracker
func WithTracker(tracker *ui.RunTracker) Option {
	return func(c *Collector) { c.tracker = tracker }
}

// New creates a collector for topicList talking to api
func New(cfg *config.Config, api dataset.API, topicList []topics.Topic, opts ...Option) *Collector {
	c := &Collector{
		api:    api,
		config: cfg,
		topics: topicList,
		clock:  scheduler.RealClock(),
		logger: logger.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithField("component", "collector")
	return c
}

// Plan returns the window allocation every generation uses
func (c *Collector) Plan() scheduler.Plan {
	return scheduler.PlanFromConfig(c.config.Schedule, len(c.topics))
}

// Labels returns the topic labels in scheduling order
func (c *Collector) Labels() []string {
	labels := make([]string, len(c.topics))
	for i, t := range c.topics {
		labels[i] = t.Label
	}
	return labels
}

// Run collects every configured generation. With resume set, an existing
// checkpoint continues its generation where it stopped; forceRestart drops
// the checkpoint first.
func (c *Collector) Run(ctx context.Context, resume, forceRestart bool) error {
	first := c.config.Schedule.FirstGen
	last := first + c.config.Schedule.Generations - 1

	cp, err := c.loadCheckpoint(resume, forceRestart)
	if err != nil {
		return err
	}
	if cp != nil {
		if cp.Generation < first || cp.Generation > last {
			return errors.New(errors.ErrorTypeUnknown, 0, "checkpoint generation %d is outside %d..%d", cp.Generation, first, last)
		}
		first = cp.Generation
		ui.PrintInfo("Resuming generation", fmt.Sprintf("%d (%d refreshes done)", cp.Generation, cp.RefreshesDone))
	}

	logger.LogComponentStart(c.logger, "collector", map[string]interface{}{
		"first_generation": first,
		"last_generation":  last,
		"topics":           len(c.topics),
		"refreshes":        c.config.Schedule.RefreshCycles,
	})

	for gen := first; gen <= last; gen++ {
		if err := c.runGeneration(ctx, gen, cp); err != nil {
			logger.LogComponentStop(c.logger, "collector", err.Error())
			return err
		}
		cp = nil
	}

	logger.LogComponentStop(c.logger, "collector", "completed")
	return nil
}

func (c *Collector) loadCheckpoint(resume, forceRestart bool) (*checkpoint.Checkpoint, error) {
	if c.checkpointMgr == nil || !c.checkpointMgr.Exists() {
		return nil, nil
	}

	if forceRestart {
		if err := c.checkpointMgr.BackupCheckpoint(); err != nil {
			c.logger.WithError(err).Warn("Failed to back up existing checkpoint")
		}
		if err := c.checkpointMgr.Delete(); err != nil {
			c.logger.WithError(err).Warn("Failed to delete existing checkpoint")
		}
		ui.PrintInfo("Force restart", "Ignoring existing checkpoint")
		return nil, nil
	}
	if !resume {
		detail := "use --resume to continue or --force-restart to start over"
		if info, err := c.checkpointMgr.GetCheckpointInfo(); err == nil && info != nil {
			detail = fmt.Sprintf("generation %v, %v refreshes done; %s", info["generation"], info["refreshes_done"], detail)
		}
		ui.PrintWarning("Checkpoint found", detail)
		return nil, nil
	}

	cp, err := c.checkpointMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp != nil && !cp.Matches(c.Labels()) {
		return nil, errors.New(errors.ErrorTypeUnknown, 0, "checkpoint was taken for topics %v", cp.Topics)
	}
	return cp, nil
}

// runGeneration fetches or restores every topic of generation gen and runs
// the remaining refresh cycles. cp is non-nil when resuming gen.
func (c *Collector) runGeneration(ctx context.Context, gen int, cp *checkpoint.Checkpoint) error {
	resumed := cp != nil
	dir := c.config.DatasetDir(gen)
	if cp != nil && cp.DatasetDir != "" {
		dir = cp.DatasetDir
	}

	store, err := storage.NewManager(dir)
	if err != nil {
		return errors.Wrap(errors.ErrorTypeStorage, err, "dataset directory %s", dir)
	}

	if cp == nil {
		if cp, err = c.newCheckpoint(gen, dir); err != nil {
			return err
		}
	}

	log := c.logger.WithFields(map[string]interface{}{
		"generation": gen,
		"dir":        dir,
		"run_id":     cp.RunID,
	})

	opts := dataset.OptionsFromConfig(c.config, cp.RunID)
	opts.Now = c.clock.Now

	fetchers := make([]*dataset.Fetcher, len(c.topics))
	collectors := make([]scheduler.Collector, len(c.topics))
	for i, t := range c.topics {
		fetchers[i] = dataset.NewFetcher(t, c.api, store, opts, log)
		collectors[i] = fetchers[i]
	}

	sched := scheduler.New(collectors, c.Plan(), c.config.Schedule.Threads, c.clock, log)
	if c.tracker != nil {
		c.tracker.StartGeneration(gen)
		c.tracker.RefreshesDone = cp.RefreshesDone
	}

	start := time.Now()
	if cp.Fetched {
		for _, f := range fetchers {
			if err := f.Restore(); err != nil {
				return fmt.Errorf("failed to restore topic %s: %w", f.Topic().Label, err)
			}
		}
	} else {
		if resumed {
			if err := c.clearSnapshots(store, log); err != nil {
				return err
			}
		}
		log.InfoWithFields("Initial fetch", map[string]interface{}{
			"posts_per_topic": sched.Plan().PostsPerTopic,
		})
		if err := sched.RunInitialFetch(ctx); err != nil {
			return err
		}
		if err := c.recordFetch(cp); err != nil {
			return err
		}
	}

	for cp.RefreshesDone < c.config.Schedule.RefreshCycles {
		if err := sched.RunRefreshCycle(ctx); err != nil {
			return err
		}
		if err := c.recordRefresh(cp); err != nil {
			return err
		}
		if c.tracker != nil {
			c.tracker.CompleteRefresh()
			c.tracker.PrintProgress()
		}
	}

	if c.checkpointMgr != nil {
		if err := c.checkpointMgr.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	log.InfoWithFields("Generation complete", map[string]interface{}{
		"refreshes": cp.RefreshesDone,
		"elapsed":   time.Since(start).String(),
	})
	ui.PrintSuccess(fmt.Sprintf("[GENERATION %d COMPLETE] %s", gen, dir))
	return nil
}

// clearSnapshots drops the snapshots an interrupted initial fetch left
// behind so the fetch starts from an empty topic history
func (c *Collector) clearSnapshots(store *storage.Manager, log logger.Logger) error {
	for _, t := range c.topics {
		removed, err := store.RemoveSnapshots(t.Label)
		if err != nil {
			return err
		}
		if removed > 0 {
			log.InfoWithFields("Removed snapshots of interrupted fetch", map[string]interface{}{
				"topic":   t.Label,
				"removed": removed,
			})
		}
	}
	return nil
}

func (c *Collector) newCheckpoint(gen int, dir string) (*checkpoint.Checkpoint, error) {
	if c.checkpointMgr == nil {
		return checkpoint.New(gen, dir, c.Labels()), nil
	}

	cp, err := c.checkpointMgr.Create(gen, dir, c.Labels())
	if err != nil {
		return nil, errors.Wrap(errors.ErrorTypeStorage, err, "checkpoint")
	}
	return cp, nil
}

func (c *Collector) recordFetch(cp *checkpoint.Checkpoint) error {
	if c.checkpointMgr == nil {
		cp.Fetched = true
		return nil
	}
	if err := c.checkpointMgr.RecordFetch(cp); err != nil {
		return errors.Wrap(errors.ErrorTypeStorage, err, "checkpoint")
	}
	return nil
}

func (c *Collector) recordRefresh(cp *checkpoint.Checkpoint) error {
	if c.checkpointMgr == nil {
		cp.RefreshesDone++
		return nil
	}
	if err := c.checkpointMgr.RecordRefresh(cp); err != nil {
		return errors.Wrap(errors.ErrorTypeStorage, err, "checkpoint")
	}
	return nil
}
