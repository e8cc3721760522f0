package cloud

import (
	"context"
	"log/slog"

	"github.com/roach88/anchorkeep/internal/anchor"
	"github.com/roach88/anchorkeep/internal/telemetry"
)

// Outcome is the polled state of an Operation.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSuccess
	OutcomeFailed
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the outcome will never change again.
func (o Outcome) Terminal() bool {
	return o != OutcomePending
}

// Poll is one observation of an Operation.
type Poll struct {
	Outcome Outcome
	CloudID string        // host: the new cloud anchor id; resolve: the requested id
	Anchor  anchor.Handle // resolve only
	Reason  string        // failure reason (cloud state name)
}

// Kind distinguishes host and resolve operations.
type Kind string

const (
	KindHost    Kind = telemetry.KindHost
	KindResolve Kind = telemetry.KindResolve
)

// Operation is one tracked host or resolve call.
// The first terminal Poll is sticky.
type Operation struct {
	kind    Kind
	key     string // anchor handle (host) or requested cloud id (resolve)
	tracker *Tracker

	host    Promise[HostResult]
	resolve Promise[ResolveResult]

	terminal   bool
	registered bool
	last       Poll
}

// Kind returns whether this is a host or resolve operation.
func (o *Operation) Kind() Kind { return o.kind }

// Key returns the anchor handle (host) or requested cloud id (resolve).
func (o *Operation) Key() string { return o.key }

// Poll observes the operation. Once terminal, the same Poll is returned on
// every later call.
func (o *Operation) Poll() Poll {
	if o.terminal {
		return o.last
	}

	var (
		p     Poll
		state PromiseState
	)
	switch o.kind {
	case KindHost:
		state = o.host.State()
		if state == PromiseDone {
			res := o.host.Result()
			p = hostPoll(res)
		}
	case KindResolve:
		state = o.resolve.State()
		if state == PromiseDone {
			res := o.resolve.Result()
			p = resolvePoll(o.key, res)
		}
	}

	switch state {
	case PromisePending:
		return Poll{Outcome: OutcomePending, CloudID: o.pendingCloudID()}
	case PromiseCancelled:
		p = Poll{Outcome: OutcomeCancelled, CloudID: o.pendingCloudID(), Reason: "Cancelled"}
	}

	o.finish(p)
	return p
}

// Cancel abandons the operation. A later completion of the underlying
// promise is ignored: Poll keeps reporting OutcomeCancelled.
func (o *Operation) Cancel() {
	if o.terminal {
		return
	}
	switch o.kind {
	case KindHost:
		o.host.Cancel()
	case KindResolve:
		o.resolve.Cancel()
	}
	o.finish(Poll{Outcome: OutcomeCancelled, CloudID: o.pendingCloudID(), Reason: "Cancelled"})
}

// Registered reports whether the operation is (still) held for cancellation
// bookkeeping. Operations that were terminal at issue time never are.
func (o *Operation) Registered() bool {
	return o.registered
}

func (o *Operation) pendingCloudID() string {
	if o.kind == KindResolve {
		return o.key
	}
	return ""
}

func (o *Operation) finish(p Poll) {
	o.terminal = true
	o.last = p
	wasRegistered := o.registered
	if o.registered {
		o.tracker.release(o)
	}
	o.tracker.metrics.Completed(context.Background(), string(o.kind), p.Outcome.String(), wasRegistered)
}

func hostPoll(res HostResult) Poll {
	if res.State.Success() {
		return Poll{Outcome: OutcomeSuccess, CloudID: res.CloudID}
	}
	return Poll{Outcome: OutcomeFailed, Reason: string(res.State)}
}

func resolvePoll(cloudID string, res ResolveResult) Poll {
	if res.State.Success() {
		return Poll{Outcome: OutcomeSuccess, CloudID: cloudID, Anchor: res.Anchor}
	}
	return Poll{Outcome: OutcomeFailed, CloudID: cloudID, Reason: string(res.State)}
}

// Tracker issues operations against a Service and keeps the set of
// operations still awaiting completion.
//
// Not safe for concurrent use: the manager drives it from the tick goroutine.
type Tracker struct {
	service Service
	live    map[*Operation]struct{}
	metrics *telemetry.Instruments
	logger  *slog.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithInstruments records operation metrics.
func WithInstruments(in *telemetry.Instruments) TrackerOption {
	return func(t *Tracker) {
		t.metrics = in
	}
}

// WithTrackerLogger sets the tracker logger.
func WithTrackerLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		t.logger = l
	}
}

// NewTracker creates a tracker over the given service.
func NewTracker(svc Service, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		service: svc,
		live:    make(map[*Operation]struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IssueHost starts hosting the anchor. If the service reports completion at
// issue time the operation is already terminal and is not registered.
func (t *Tracker) IssueHost(handle anchor.Handle, ttlDays int) *Operation {
	op := &Operation{
		kind:    KindHost,
		key:     string(handle),
		tracker: t,
		host:    t.service.HostAsync(handle, ttlDays),
	}
	t.admit(op, op.host.State())
	return op
}

// IssueResolve starts resolving the cloud anchor id, with the same
// immediate-completion handling as IssueHost.
func (t *Tracker) IssueResolve(cloudID string) *Operation {
	op := &Operation{
		kind:    KindResolve,
		key:     cloudID,
		tracker: t,
		resolve: t.service.ResolveAsync(cloudID),
	}
	t.admit(op, op.resolve.State())
	return op
}

func (t *Tracker) admit(op *Operation, state PromiseState) {
	if state == PromisePending {
		op.registered = true
		t.live[op] = struct{}{}
		t.metrics.Issued(context.Background(), string(op.kind), true)
		t.logger.Debug("cloud operation issued", "kind", op.kind, "key", op.key)
		return
	}

	t.metrics.Issued(context.Background(), string(op.kind), false)
	p := op.Poll()
	t.logger.Debug("cloud operation completed at issue",
		"kind", op.kind,
		"key", op.key,
		"outcome", p.Outcome,
		"reason", p.Reason,
	)
}

func (t *Tracker) release(op *Operation) {
	delete(t.live, op)
	op.registered = false
}

// InFlight returns the number of registered operations.
func (t *Tracker) InFlight() int {
	return len(t.live)
}

// CancelAll cancels every registered operation.
func (t *Tracker) CancelAll() int {
	ops := make([]*Operation, 0, len(t.live))
	for op := range t.live {
		ops = append(ops, op)
	}
	for _, op := range ops {
		op.Cancel()
	}
	if len(ops) > 0 {
		t.logger.Debug("cloud operations cancelled", "count", len(ops))
	}
	return len(ops)
}
