package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultTickInterval is roughly one frame at 60 Hz.
const DefaultTickInterval = 16 * time.Millisecond

// ErrRunnerStopped is returned when a command is submitted after Stop.
var ErrRunnerStopped = errors.New("runner stopped")

// Runner is the periodic external tick that drives a Manager.
//
// Thread-safety model:
//   - Enqueue(), Do(), Stop(): safe from any goroutine
//   - Run(), Step(): must be called from exactly one goroutine
//
// Commands queued between ticks run in FIFO order at the next tick boundary,
// before Manager.Tick.
type Runner struct {
	manager  *Manager
	queue    *commandQueue
	interval time.Duration
	logger   *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTickInterval sets the tick period.
func WithTickInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.interval = d
	}
}

// WithRunnerLogger sets the runner logger.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a runner for m.
func NewRunner(m *Manager, opts ...RunnerOption) *Runner {
	r := &Runner{
		manager:  m,
		queue:    newCommandQueue(),
		interval: DefaultTickInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enqueue submits a command for the next tick.
// Returns false if the runner has been stopped.
func (r *Runner) Enqueue(c Command) bool {
	return r.queue.Enqueue(c)
}

// Do submits a command and waits until it has run.
func (r *Runner) Do(ctx context.Context, c Command) error {
	done := make(chan struct{})
	ok := r.queue.Enqueue(func(ctx context.Context, m *Manager) {
		defer close(done)
		c(ctx, m)
	})
	if !ok {
		return ErrRunnerStopped
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run ticks until ctx is cancelled or Stop is called.
//
// ERROR HANDLING: per-anchor failures are absorbed by the Manager, so a tick
// cannot fail. Run returns ctx.Err() on cancellation and nil after Stop.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner starting", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("runner stopping: context cancelled")
			r.queue.Close()
			return ctx.Err()

		case _, open := <-r.queue.Wait():
			// Commands wait for the tick boundary; only closure matters here.
			if !open {
				r.logger.Info("runner stopping: stopped")
				return nil
			}

		case <-ticker.C:
			r.Step(ctx)
		}
	}
}

// Step runs one tick: queued commands in FIFO order, then Manager.Tick.
func (r *Runner) Step(ctx context.Context) {
	for _, c := range r.queue.Drain() {
		c(ctx, r.manager)
	}
	r.manager.Tick(ctx)
}

// Stop rejects further commands and makes Run return.
func (r *Runner) Stop() {
	r.queue.Close()
}

// Pending returns the number of commands waiting for the next tick.
func (r *Runner) Pending() int {
	return r.queue.Len()
}
