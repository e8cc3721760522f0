package cloudsim

import (
	"fmt"
	"sync"

	"github.com/roach88/anchorkeep/internal/anchor"
	"github.com/roach88/anchorkeep/internal/cloud"
)

// Scripted is a cloud.Service whose calls stay pending until a test completes
// them explicitly. Completion order is entirely up to the caller.
//
// Safe for concurrent use.
type Scripted struct {
	mu sync.Mutex

	hosts    map[anchor.Handle][]*promise[cloud.HostResult]
	resolves map[string][]*promise[cloud.ResolveResult]

	failAtIssue  []cloud.State
	ignoreCancel bool
	handles      IDGenerator

	hostCalls    int
	resolveCalls int
}

// ScriptedOption configures a Scripted service.
type ScriptedOption func(*Scripted)

// WithCancelIgnored makes Cancel a no-op on issued promises, modelling a
// service that still delivers results for abandoned calls.
func WithCancelIgnored() ScriptedOption {
	return func(s *Scripted) {
		s.ignoreCancel = true
	}
}

// NewScripted creates an empty scripted service.
func NewScripted(opts ...ScriptedOption) *Scripted {
	s := &Scripted{
		hosts:    make(map[anchor.Handle][]*promise[cloud.HostResult]),
		resolves: make(map[string][]*promise[cloud.ResolveResult]),
		handles:  NewSequenceGenerator("resolved"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailNextAtIssue makes the next call (host or resolve) complete immediately
// with the given state.
func (s *Scripted) FailNextAtIssue(state cloud.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAtIssue = append(s.failAtIssue, state)
}

func (s *Scripted) popFailure() (cloud.State, bool) {
	if len(s.failAtIssue) == 0 {
		return "", false
	}
	st := s.failAtIssue[0]
	s.failAtIssue = s.failAtIssue[1:]
	return st, true
}

// HostAsync implements cloud.Service.
func (s *Scripted) HostAsync(handle anchor.Handle, ttlDays int) cloud.Promise[cloud.HostResult] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostCalls++

	if ttlDays < cloud.MinTTLDays || ttlDays > cloud.MaxTTLDays {
		return donePromise(cloud.HostResult{State: cloud.StateErrorInternal})
	}
	if st, ok := s.popFailure(); ok {
		return donePromise(cloud.HostResult{State: st})
	}

	p := newPromise[cloud.HostResult]()
	p.ignoreCancel = s.ignoreCancel
	s.hosts[handle] = append(s.hosts[handle], p)
	return p
}

// ResolveAsync implements cloud.Service.
func (s *Scripted) ResolveAsync(cloudID string) cloud.Promise[cloud.ResolveResult] {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolveCalls++

	if st, ok := s.popFailure(); ok {
		return donePromise(cloud.ResolveResult{State: st})
	}

	p := newPromise[cloud.ResolveResult]()
	p.ignoreCancel = s.ignoreCancel
	s.resolves[cloudID] = append(s.resolves[cloudID], p)
	return p
}

// CompleteHost completes the oldest outstanding host call for the handle.
// cloudID is used only when state is success. Returns false if the call had
// been cancelled.
func (s *Scripted) CompleteHost(handle anchor.Handle, state cloud.State, cloudID string) (bool, error) {
	s.mu.Lock()
	queue := s.hosts[handle]
	if len(queue) == 0 {
		s.mu.Unlock()
		return false, fmt.Errorf("no outstanding host call for %q", handle)
	}
	p := queue[0]
	s.hosts[handle] = queue[1:]
	s.mu.Unlock()

	res := cloud.HostResult{State: state}
	if state.Success() {
		res.CloudID = cloudID
	}
	return p.complete(res), nil
}

// CompleteResolve completes the oldest outstanding resolve call for the id.
// A successful resolve gets a fresh anchor handle.
func (s *Scripted) CompleteResolve(cloudID string, state cloud.State) (bool, error) {
	s.mu.Lock()
	queue := s.resolves[cloudID]
	if len(queue) == 0 {
		s.mu.Unlock()
		return false, fmt.Errorf("no outstanding resolve call for %q", cloudID)
	}
	p := queue[0]
	s.resolves[cloudID] = queue[1:]
	var handle anchor.Handle
	if state.Success() {
		handle = anchor.Handle(s.handles.Generate())
	}
	s.mu.Unlock()

	return p.complete(cloud.ResolveResult{State: state, Anchor: handle}), nil
}

// HostCalls returns how many HostAsync calls were made.
func (s *Scripted) HostCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hostCalls
}

// ResolveCalls returns how many ResolveAsync calls were made.
func (s *Scripted) ResolveCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveCalls
}

// OutstandingHosts returns the number of host calls not yet completed by the script.
func (s *Scripted) OutstandingHosts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.hosts {
		n += len(q)
	}
	return n
}
