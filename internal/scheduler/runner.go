// Package scheduler runs a task once at start and then on a fixed interval.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

type Task func(ctx context.Context) error

// TickerFunc returns a tick channel and a stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

type Runner struct {
	name     string
	interval time.Duration
	task     Task
	ticker   TickerFunc

	mu sync.Mutex
}

func NewRunner(name string, interval time.Duration, task Task) *Runner {
	return &Runner{name: name, interval: interval, task: task, ticker: realTicker}
}

// WithTicker replaces the wall-clock ticker, mainly for tests.
func (r *Runner) WithTicker(fn TickerFunc) *Runner {
	r.ticker = fn
	return r
}

// RunOnce runs the task now. Overlapping calls on the same runner are
// serialised; errors are logged and returned.
func (r *Runner) RunOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.task(ctx); err != nil {
		log.Printf("[Scheduler] %s failed: %v", r.name, err)
		return err
	}
	return nil
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	log.Printf("[Scheduler] %s every %s", r.name, r.interval)
	_ = r.RunOnce(ctx)

	ticks, stop := r.ticker(r.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Scheduler] %s stopped", r.name)
			return
		case <-ticks:
			_ = r.RunOnce(ctx)
		}
	}
}
