// Package background runs fire-and-forget side effects (emails, historial
// tombstones) off the request path. Failures are logged, never returned
// to the caller that scheduled them.
package background

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Task is one side effect
type Task func(ctx context.Context) error

// Runner executes tasks on a bounded set of goroutines
type Runner struct {
	log     zerolog.Logger
	timeout time.Duration
	sem     chan struct{}
	wg      sync.WaitGroup

	failures atomic.Int64
}

// NewRunner creates a runner allowing maxWorkers concurrent tasks, each bounded by timeout
func NewRunner(maxWorkers int, timeout time.Duration, log zerolog.Logger) *Runner {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Runner{
		log:     log.With().Str("component", "background").Logger(),
		timeout: timeout,
		sem:     make(chan struct{}, maxWorkers),
	}
}

// Go schedules task under name. It never blocks the caller: the task waits
// for a free slot on its own goroutine. The task context is detached from
// the request so a finished HTTP call does not cancel it.
func (r *Runner) Go(name string, task Task) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		r.sem <- struct{}{}
		defer func() { <-r.sem }()

		defer func() {
			if p := recover(); p != nil {
				r.failures.Add(1)
				r.log.Error().
					Interface("panic", p).
					Str("task", name).
					Msg("Background task panicked - recovered")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		start := time.Now()
		if err := task(ctx); err != nil {
			r.failures.Add(1)
			r.log.Error().
				Err(err).
				Str("task", name).
				Dur("duration", time.Since(start)).
				Msg("Background task failed")
			return
		}

		r.log.Debug().
			Str("task", name).
			Dur("duration", time.Since(start)).
			Msg("Background task completed")
	}()
}

// Wait blocks until every scheduled task has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown waits for scheduled tasks or gives up when ctx ends
func (r *Runner) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.log.Warn().Msg("Background tasks still running at shutdown")
		return ctx.Err()
	}
}

// Failures is the number of tasks that returned an error or panicked
func (r *Runner) Failures() int64 {
	return r.failures.Load()
}
