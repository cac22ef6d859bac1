package concurrent

import (
	"context"
	"sync"
)

// JobFunc handles one job. ctx is the context the pool was started with.
type JobFunc[T any, G any] func(ctx context.Context, job T) G

// WorkerPool fans jobs out to a fixed number of goroutines. jobs queued after ctx is done are dropped
// without producing a result.
type WorkerPool[T any, G any] struct {
	numWorkers int
	jobQueue   chan T
	results    chan G
	wg         sync.WaitGroup
}

func NewWorkerPool[T any, G any](numWorkers, jobQueueSize int) *WorkerPool[T, G] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool[T, G]{
		numWorkers: numWorkers,
		jobQueue:   make(chan T, jobQueueSize),
		results:    make(chan G, jobQueueSize),
	}
}

func (wp *WorkerPool[T, G]) worker(ctx context.Context, jobFunc JobFunc[T, G]) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		if ctx.Err() != nil {
			continue
		}
		wp.results <- jobFunc(ctx, job)
	}
}

func (wp *WorkerPool[T, G]) Start(ctx context.Context, jobFunc JobFunc[T, G]) {
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, jobFunc)
	}
}

// Wait blocks until every worker returned and closes the results channel. call it after Close.
func (wp *WorkerPool[T, G]) Wait() {
	wp.wg.Wait()
	close(wp.results)
}

func (wp *WorkerPool[T, G]) AddJob(job T) {
	wp.jobQueue <- job
}

func (wp *WorkerPool[T, G]) CollectResults() <-chan G {
	return wp.results
}

// Close stops accepting jobs.
func (wp *WorkerPool[T, G]) Close() {
	close(wp.jobQueue)
}

type indexed[G any] struct {
	i   int
	res G
}

// Map runs fn over jobs on numWorkers goroutines and returns the results in job order. when ctx is done
// the remaining jobs are skipped and their results are left zero.
func Map[T any, G any](ctx context.Context, numWorkers int, jobs []T, fn JobFunc[T, G]) []G {
	type job struct {
		i int
		v T
	}
	wp := NewWorkerPool[job, indexed[G]](numWorkers, numWorkers)
	wp.Start(ctx, func(ctx context.Context, j job) indexed[G] {
		return indexed[G]{i: j.i, res: fn(ctx, j.v)}
	})

	go func() {
		for i, v := range jobs {
			wp.AddJob(job{i: i, v: v})
		}
		wp.Close()
		wp.Wait()
	}()

	out := make([]G, len(jobs))
	for r := range wp.CollectResults() {
		out[r.i] = r.res
	}
	return out
}
