package engine

import (
	"github.com/roach88/anchorkeep/internal/anchor"
)

// EventKind identifies what changed.
type EventKind string

const (
	EventAnchorPlaced          EventKind = "AnchorPlaced"
	EventAnchorNamed           EventKind = "AnchorNamed"
	EventAnchorHostProgress    EventKind = "AnchorHostProgress"
	EventBatchHostComplete     EventKind = "BatchHostComplete"
	EventAnchorResolveProgress EventKind = "AnchorResolveProgress"
	EventAnchorRemoved         EventKind = "AnchorRemoved"
	EventNotice                EventKind = "Notice"
	EventSessionError          EventKind = "SessionError"
	EventReturnHome            EventKind = "ReturnHome"
)

// Resolve progress statuses carried in Event.Status.
const (
	ResolvePending  = "Resolving"
	ResolveResolved = "Resolved"
	ResolveFailed   = "Failed"
)

// Event is one observable state change. Fields not relevant to Kind are zero.
type Event struct {
	Seq     int64        `json:"seq"`
	Kind    EventKind    `json:"kind"`
	Anchor  anchor.ID    `json:"anchor,omitempty"`
	Pose    *anchor.Pose `json:"pose,omitempty"`
	Name    string       `json:"name,omitempty"`
	Status  string       `json:"status,omitempty"`
	CloudID string       `json:"cloud_id,omitempty"`
	Reason  string       `json:"reason,omitempty"`
	Label   string       `json:"label,omitempty"`
	Success int          `json:"success,omitempty"`
	Total   int          `json:"total,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Presenter observes lifecycle events. Implementations must not call back
// into the Manager.
type Presenter interface {
	Present(Event)
}

// Presenters fans events out to every presenter in order.
type Presenters []Presenter

// Present implements Presenter.
func (ps Presenters) Present(ev Event) {
	for _, p := range ps {
		p.Present(ev)
	}
}

// EventLog is a Presenter that keeps every event in memory.
type EventLog struct {
	Events []Event
}

// Present implements Presenter.
func (l *EventLog) Present(ev Event) {
	l.Events = append(l.Events, ev)
}

// Kinds returns the kinds of all recorded events, in order.
func (l *EventLog) Kinds() []EventKind {
	kinds := make([]EventKind, len(l.Events))
	for i, ev := range l.Events {
		kinds[i] = ev.Kind
	}
	return kinds
}

// OfKind returns the recorded events of one kind, in order.
func (l *EventLog) OfKind(kind EventKind) []Event {
	var out []Event
	for _, ev := range l.Events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// Reset drops all recorded events.
func (l *EventLog) Reset() {
	l.Events = nil
}
