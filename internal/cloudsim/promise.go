// Package cloudsim provides stand-in cloud anchor services: one completing
// calls asynchronously after a configured latency, and one completed by hand
// for deterministic tests.
package cloudsim

import (
	"sync"

	"github.com/roach88/anchorkeep/internal/cloud"
)

// promise is a thread-safe cloud.Promise completed by the simulator.
type promise[T any] struct {
	mu           sync.Mutex
	state        cloud.PromiseState
	result       T
	onCancel     func()
	ignoreCancel bool
}

func newPromise[T any]() *promise[T] {
	return &promise[T]{state: cloud.PromisePending}
}

// donePromise returns a promise that completed at issue time.
func donePromise[T any](result T) *promise[T] {
	return &promise[T]{state: cloud.PromiseDone, result: result}
}

func (p *promise[T]) State() cloud.PromiseState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *promise[T]) Result() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// Cancel moves a pending promise to Cancelled. Done promises are unaffected,
// as are promises issued by a service that ignores cancellation.
func (p *promise[T]) Cancel() {
	p.mu.Lock()
	if p.state != cloud.PromisePending || p.ignoreCancel {
		p.mu.Unlock()
		return
	}
	p.state = cloud.PromiseCancelled
	onCancel := p.onCancel
	p.mu.Unlock()

	if onCancel != nil {
		onCancel()
	}
}

// complete stores the result. Returns false if the promise was cancelled or
// already completed.
func (p *promise[T]) complete(result T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != cloud.PromisePending {
		return false
	}
	p.state = cloud.PromiseDone
	p.result = result
	return true
}

func (p *promise[T]) setOnCancel(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onCancel = fn
}
