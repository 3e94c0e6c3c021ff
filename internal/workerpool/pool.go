package workerpool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"twdataset/pkg/logger"
)

// Job is one topic operation (a fetch or a refresh)
type Job struct {
	Label string
	Run   func(ctx context.Context) error
}

// Result represents the result of a job
type Result struct {
	Label    string
	Err      error
	Duration time.Duration
}

// WorkerPool runs topic jobs on a fixed number of goroutines. A pool is used
// for a single chunk of topics and then discarded.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	logger      logger.Logger
}

// NewWorkerPool creates a pool bound to ctx
func NewWorkerPool(ctx context.Context, numWorkers int, log logger.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		logger:      log,
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for queued jobs to finish and closes Results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// RunAll starts the pool, runs every job and returns once all have finished.
// Results are in completion order. Jobs not started before ctx is cancelled
// are dropped.
func (wp *WorkerPool) RunAll(jobs []Job) []Result {
	wp.Start()

	go func() {
		for _, job := range jobs {
			if err := wp.Submit(job); err != nil {
				break
			}
		}
		wp.Stop()
	}()

	results := make([]Result, 0, len(jobs))
	for r := range wp.Results() {
		results = append(results, r)
	}
	return results
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		select {
		case <-wp.ctx.Done():
			wp.logger.DebugWithFields("Worker stopping - context cancelled", map[string]interface{}{
				"worker_id": id,
			})
			return
		default:
		}

		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob runs one job, converting a panic into an error result
func (wp *WorkerPool) processJob(job Job, workerID int) (result Result) {
	start := time.Now()
	result.Label = job.Label

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("topic %s panicked: %v", job.Label, r)
		}
		result.Duration = time.Since(start)

		fields := map[string]interface{}{
			"worker_id": workerID,
			"topic":     job.Label,
			"duration":  result.Duration,
		}
		if result.Err != nil {
			wp.logger.WithError(result.Err).ErrorWithFields("Worker job failed", fields)
		} else {
			wp.logger.DebugWithFields("Worker job completed", fields)
		}
	}()

	result.Err = job.Run(wp.ctx)
	return result
}
