// Package parallel runs independent solver jobs on a bounded set of
// goroutines. A Store is single-threaded, so parallelism happens across
// problems, one store per job.
package parallel

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// ErrPoolShutdown is returned when trying to submit tasks to a shutdown pool.
var ErrPoolShutdown = errors.New("worker pool has been shutdown")

// WorkerPool manages a fixed number of goroutines fed from a buffered
// channel. Submit blocks once the buffer is full.
type WorkerPool struct {
	maxWorkers   int
	taskChan     chan func()
	workerWg     sync.WaitGroup
	shutdownChan chan struct{}
	once         sync.Once
}

// NewWorkerPool creates a new worker pool with the specified number of workers.
// If maxWorkers is 0 or negative, it defaults to the number of CPU cores.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}

	pool := &WorkerPool{
		maxWorkers:   maxWorkers,
		taskChan:     make(chan func(), maxWorkers*2),
		shutdownChan: make(chan struct{}),
	}
	for i := 0; i < maxWorkers; i++ {
		pool.workerWg.Add(1)
		go pool.worker()
	}
	return pool
}

// Workers returns the number of worker goroutines.
func (wp *WorkerPool) Workers() int { return wp.maxWorkers }

func (wp *WorkerPool) worker() {
	defer wp.workerWg.Done()

	for {
		select {
		case task := <-wp.taskChan:
			if task != nil {
				task()
			}
		case <-wp.shutdownChan:
			// run whatever was accepted before shutdown
			for {
				select {
				case task := <-wp.taskChan:
					if task != nil {
						task()
					}
				default:
					return
				}
			}
		}
	}
}

// Submit queues a task, blocking while the buffer is full.
func (wp *WorkerPool) Submit(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-wp.shutdownChan:
		return ErrPoolShutdown
	default:
	}
	select {
	case wp.taskChan <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.shutdownChan:
		return ErrPoolShutdown
	}
}

// Shutdown stops the workers once the accepted tasks have run. It is safe
// to call more than once.
func (wp *WorkerPool) Shutdown() {
	wp.once.Do(func() {
		close(wp.shutdownChan)
		wp.workerWg.Wait()
	})
}

// Map runs fn on every input using the pool and returns the results in
// input order. If ctx ends before every input was submitted, the inputs
// already submitted still complete; the rest keep their zero result and
// ctx's error is returned.
func Map[T, R any](ctx context.Context, wp *WorkerPool, inputs []T, fn func(context.Context, T) R) ([]R, error) {
	results := make([]R, len(inputs))
	var wg sync.WaitGroup
	var submitErr error
	for i, in := range inputs {
		wg.Add(1)
		err := wp.Submit(ctx, func() {
			defer wg.Done()
			results[i] = fn(ctx, in)
		})
		if err != nil {
			wg.Done()
			submitErr = err
			break
		}
	}
	wg.Wait()
	return results, submitErr
}
