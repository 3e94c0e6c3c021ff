package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// RunTracker follows a run through its generations and refresh cycles
type RunTracker struct {
	Generations   int
	Refreshes     int
	Generation    int
	RefreshesDone int
	StartTime     time.Time
}

// NewRunTracker creates a tracker for generations × refreshes cycles
func NewRunTracker(generations, refreshes int) *RunTracker {
	return &RunTracker{
		Generations: generations,
		Refreshes:   refreshes,
		StartTime:   time.Now(),
	}
}

// StartGeneration moves to generation gen with no refreshes done
func (rt *RunTracker) StartGeneration(gen int) {
	rt.Generation = gen
	rt.RefreshesDone = 0
}

// CompleteRefresh counts one finished refresh cycle
func (rt *RunTracker) CompleteRefresh() {
	rt.RefreshesDone++
}

// GetRefreshProgress returns a bar for the current generation's refreshes
func (rt *RunTracker) GetRefreshProgress() string {
	const width = 24
	filled := 0
	if rt.Refreshes > 0 {
		filled = rt.RefreshesDone * width / rt.Refreshes
	}
	if filled > width {
		filled = width
	}

	bar := strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
	return fmt.Sprintf("[%s] %d/%d", bar, rt.RefreshesDone, rt.Refreshes)
}

// GetElapsedTime returns the time since the run started
func (rt *RunTracker) GetElapsedTime() time.Duration {
	return time.Since(rt.StartTime)
}

// PrintProgress prints the current generation and refresh progress
func (rt *RunTracker) PrintProgress() {
	printf(false, "%s %d/%d %s %s\n",
		Magenta("[GENERATION]"),
		rt.Generation, rt.Generations,
		rt.GetRefreshProgress(),
		Dim(rt.GetElapsedTime().Round(time.Second).String()))
}
