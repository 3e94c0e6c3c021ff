// Package collector drives whole dataset runs.
//
// A run is a sequence of generations. Each generation gets its own dataset
// directory and run id, fetches every topic once through the scheduler and
// then performs the configured number of refresh cycles. Progress is saved
// to a checkpoint after the fetch and after each refresh cycle so an
// interrupted generation resumes from its latest snapshots instead of
// fetching again:
//
//	c := collector.New(cfg, client, topicList,
//		collector.WithCheckpoints(mgr),
//		collector.WithTracker(ui.NewRunTracker(cfg.Schedule.Generations, cfg.Schedule.RefreshCycles)),
//	)
//	err := c.Run(ctx, resume, forceRestart)
package collector
