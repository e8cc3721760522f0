// Package arsession defines the AR subsystem boundary used by the lifecycle
// manager and a simulated session for tests and the CLI.
package arsession

import (
	"errors"
	"sync"

	"github.com/roach88/anchorkeep/internal/anchor"
)

// Status is the tracking state of the AR session.
type Status string

const (
	StatusInitializing Status = "Initializing"
	StatusTracking     Status = "Tracking"
	StatusLimited      Status = "Limited"
	StatusNotTracking  Status = "NotTracking"
	StatusError        Status = "Error"
)

// Ready reports whether cloud resolves may be issued.
func (s Status) Ready() bool {
	return s == StatusTracking
}

// Session is the AR subsystem as seen by the lifecycle manager.
type Session interface {
	Status() Status
	CreateAnchor(pose anchor.Pose) (anchor.Handle, error)
	DestroyAnchor(handle anchor.Handle)
}

// ErrNotTracking is returned by CreateAnchor when the session cannot place anchors.
var ErrNotTracking = errors.New("session is not tracking")

// IDGenerator produces anchor handles.
type IDGenerator interface {
	Generate() string
}

// Sim is an in-memory Session. Its status is set by the caller.
//
// Safe for concurrent use: the CLI flips tracking from the input goroutine.
type Sim struct {
	mu      sync.Mutex
	status  Status
	handles IDGenerator
	live    map[anchor.Handle]anchor.Pose
	message string
}

// NewSim creates a tracking session.
func NewSim(handles IDGenerator) *Sim {
	return &Sim{
		status:  StatusTracking,
		handles: handles,
		live:    make(map[anchor.Handle]anchor.Pose),
	}
}

// Status implements Session.
func (s *Sim) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetStatus changes the tracking state.
func (s *Sim) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// Fail puts the session into the unrecoverable error state.
func (s *Sim) Fail(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusError
	s.message = message
}

// ErrorMessage returns the message given to Fail.
func (s *Sim) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// CreateAnchor implements Session. Anchors can be created while tracking or
// with limited tracking.
func (s *Sim) CreateAnchor(pose anchor.Pose) (anchor.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusTracking && s.status != StatusLimited {
		return "", ErrNotTracking
	}
	h := anchor.Handle(s.handles.Generate())
	s.live[h] = pose
	return h, nil
}

// DestroyAnchor implements Session.
func (s *Sim) DestroyAnchor(handle anchor.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, handle)
}

// LiveAnchors returns the number of anchors not yet destroyed.
func (s *Sim) LiveAnchors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}
