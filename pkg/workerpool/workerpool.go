// Package workerpool runs independent export tasks on a fixed number of
// goroutines.
package workerpool

import (
	"context"
	"sync"
)

// Job is a unit of work submitted to the Pool.
type Job func(ctx context.Context) error

// Pool runs jobs using a fixed number of goroutines.
type Pool struct {
	jobs    chan Job
	done    chan struct{}
	wg      sync.WaitGroup
	workers int

	closeOnce sync.Once
	closeMu   sync.RWMutex
	closed    bool
}

// New creates a pool with the specified number of workers and job queue
// capacity.
func New(workers, queue int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = workers * 2
	}
	return &Pool{
		jobs:    make(chan Job, queue),
		done:    make(chan struct{}),
		workers: workers,
	}
}

// Start begins the worker goroutines. Workers exit when ctx is done or the
// pool is closed and drained.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-p.jobs:
					if !ok {
						return
					}
					// Errors are reported through the job's own channels.
					_ = job(ctx)
				}
			}
		}()
	}
}

// Submit enqueues a job, blocking while the queue is full. It returns
// ErrPoolClosed if the pool is or becomes closed.
func (p *Pool) Submit(job Job) error {
	return p.SubmitCtx(context.Background(), job)
}

// SubmitCtx is Submit that also gives up when ctx is done.
func (p *Pool) SubmitCtx(ctx context.Context, job Job) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	case <-p.done:
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting new jobs and waits for workers to finish the queue.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		// Wake blocked submitters before taking the write lock.
		close(p.done)
		p.closeMu.Lock()
		p.closed = true
		close(p.jobs)
		p.closeMu.Unlock()
	})
	p.wg.Wait()
}

// Run executes jobs on a pool of the given size and returns one error per
// job, in job order. Jobs that never ran because ctx ended report ctx.Err().
func Run(ctx context.Context, workers int, jobs []Job) []error {
	errs := make([]error, len(jobs))
	ran := make([]bool, len(jobs))
	p := New(workers, len(jobs))
	p.Start(ctx)
	for i, job := range jobs {
		i, job := i, job
		err := p.SubmitCtx(ctx, func(ctx context.Context) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ran[i] = true
			errs[i] = job(ctx)
			return errs[i]
		})
		if err != nil {
			break
		}
	}
	p.Close()
	for i := range jobs {
		if !ran[i] {
			if err := ctx.Err(); err != nil {
				errs[i] = err
			} else {
				errs[i] = ErrPoolClosed
			}
		}
	}
	return errs
}

// ErrPoolClosed is returned if a Submit is attempted after Close.
var ErrPoolClosed = &PoolError{"worker pool closed"}

// PoolError provides a simple typed error for pool operations.
type PoolError struct{ msg string }

func (e *PoolError) Error() string { return e.msg }
