package scheduler

import (
	"context"
	stderrors "errors"
	"time"

	"twdataset/internal/workerpool"
	"twdataset/pkg/dataset"
	"twdataset/pkg/errors"
	"twdataset/pkg/logger"
	"twdataset/pkg/metrics"
	"twdataset/pkg/topics"
)

// Collector is the per-topic work the scheduler drives
type Collector interface {
	Topic() topics.Topic
	Fetch(ctx context.Context, target int) (*dataset.FetchReport, error)
	Refresh(ctx context.Context) (*dataset.RefreshReport, error)
}

const (
	cycleFetch   = "fetch"
	cycleRefresh = "refresh"
)

// Scheduler runs fetch and refresh cycles over a fixed set of topics, one
// chunk of topics per quota window.
type Scheduler struct {
	collectors []Collector
	plan       Plan
	threads    int
	clock      Clock
	logger     logger.Logger
}

// New creates a scheduler for collectors. threads bounds the workers of each
// chunk's pool.
func New(collectors []Collector, plan Plan, threads int, clock Clock, log logger.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	if log == nil {
		log = logger.GetLogger()
	}
	if threads <= 0 {
		threads = 1
	}
	if plan.Topics != len(collectors) {
		plan = NewPlan(plan.Interval, plan.Window, plan.Quota, len(collectors))
	}

	return &Scheduler{
		collectors: collectors,
		plan:       plan,
		threads:    threads,
		clock:      clock,
		logger:     log.WithField("component", "scheduler"),
	}
}

// Plan returns the window allocation
func (s *Scheduler) Plan() Plan {
	return s.plan
}

// RunInitialFetch fetches PostsPerTopic posts for every topic
func (s *Scheduler) RunInitialFetch(ctx context.Context) error {
	return s.runCycle(ctx, cycleFetch, func(c Collector) workerpool.Job {
		return workerpool.Job{
			Label: c.Topic().Label,
			Run: func(ctx context.Context) error {
				_, err := c.Fetch(ctx, s.plan.PostsPerTopic)
				return err
			},
		}
	})
}

// RunRefreshCycle appends one engagement snapshot for every topic
func (s *Scheduler) RunRefreshCycle(ctx context.Context) error {
	return s.runCycle(ctx, cycleRefresh, func(c Collector) workerpool.Job {
		return workerpool.Job{
			Label: c.Topic().Label,
			Run: func(ctx context.Context) error {
				report, err := c.Refresh(ctx)
				if err != nil {
					return err
				}
				if report.Result.Status == dataset.StatusFailed {
					s.logger.WithError(report.Result.Err).WarnWithFields("Refresh kept previous counters", map[string]interface{}{
						"topic": report.Topic,
					})
				}
				return nil
			},
		}
	})
}

func (s *Scheduler) runCycle(ctx context.Context, kind string, job func(Collector) workerpool.Job) error {
	start := s.clock.Now()
	chunks := split(s.collectors, s.plan.TopicsPerWindow)

	logger.LogComponentStart(s.logger, kind+" cycle", map[string]interface{}{
		"topics":            len(s.collectors),
		"chunks":            len(chunks),
		"topics_per_window": s.plan.TopicsPerWindow,
		"posts_per_topic":   s.plan.PostsPerTopic,
	})

	for i, chunk := range chunks {
		windowStart := s.clock.Now()

		labels := make([]string, len(chunk))
		jobs := make([]workerpool.Job, len(chunk))
		for j, c := range chunk {
			labels[j] = c.Topic().Label
			jobs[j] = job(c)
		}
		s.logger.InfoWithFields("Window started", map[string]interface{}{
			"cycle":  kind,
			"window": i + 1,
			"topics": labels,
		})

		pool := workerpool.NewWorkerPool(ctx, s.threads, s.logger)
		if err := s.checkResults(pool.RunAll(jobs)); err != nil {
			logger.LogComponentStop(s.logger, kind+" cycle", "storage failure")
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.sleep(ctx, windowStart.Add(s.plan.Window).Sub(s.clock.Now())); err != nil {
			return err
		}
	}

	if err := s.sleep(ctx, s.plan.Leftover()); err != nil {
		return err
	}

	metrics.ObserveCycle(kind, s.clock.Now().Sub(start))
	logger.LogComponentStop(s.logger, kind+" cycle", "completed")
	return nil
}

// checkResults returns the storage failures among results. Other failures
// were already logged by the pool and do not stop the cycle.
func (s *Scheduler) checkResults(results []workerpool.Result) error {
	var fatal []error
	for _, r := range results {
		if r.Err == nil {
			continue
		}
		if errors.IsFatal(r.Err) {
			fatal = append(fatal, r.Err)
		}
	}
	return stderrors.Join(fatal...)
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	s.logger.DebugWithFields("Waiting for next window", map[string]interface{}{
		"duration": d.String(),
	})
	metrics.WindowSleep.Observe(d.Seconds())
	return s.clock.Sleep(ctx, d)
}
