package scheduler

import (
	"time"

	"twdataset/pkg/config"
)

// Plan is the static per-window budget for one interval
type Plan struct {
	Interval        time.Duration
	Window          time.Duration
	Quota           int
	Topics          int
	Windows         int
	TopicsPerWindow int
	PostsPerTopic   int
}

// NewPlan splits interval into quota windows and spreads topicCount topics
// over them. PostsPerTopic is the quota share of each topic in a window,
// rounded down to a multiple of 1000.
func NewPlan(interval, window time.Duration, quota, topicCount int) Plan {
	p := Plan{
		Interval: interval,
		Window:   window,
		Quota:    quota,
		Topics:   topicCount,
		Windows:  1,
	}
	if window > 0 && interval/window > 1 {
		p.Windows = int(interval / window)
	}
	if quota < 0 {
		quota = 0
	}

	if topicCount > 0 {
		p.TopicsPerWindow = (topicCount + p.Windows - 1) / p.Windows
		p.PostsPerTopic = quota / p.TopicsPerWindow / 1000 * 1000
	} else {
		p.PostsPerTopic = quota / 1000 * 1000
	}
	return p
}

// PlanFromConfig builds the plan for topicCount topics from the schedule section
func PlanFromConfig(cfg config.ScheduleConfig, topicCount int) Plan {
	return NewPlan(cfg.Interval, cfg.Window, cfg.WindowQuota, topicCount)
}

// Chunks returns how many windows the topics actually occupy
func (p Plan) Chunks() int {
	if p.TopicsPerWindow == 0 {
		return 0
	}
	return (p.Topics + p.TopicsPerWindow - 1) / p.TopicsPerWindow
}

// Leftover is the time remaining in the interval once every chunk has had
// its full window.
func (p Plan) Leftover() time.Duration {
	rest := p.Interval - time.Duration(p.Chunks())*p.Window
	if rest < 0 {
		return 0
	}
	return rest
}

// split partitions items into consecutive groups of size
func split[T any](items []T, size int) [][]T {
	if size <= 0 {
		return nil
	}
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
