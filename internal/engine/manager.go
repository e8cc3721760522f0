package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/anchorkeep/internal/anchor"
	"github.com/roach88/anchorkeep/internal/arsession"
	"github.com/roach88/anchorkeep/internal/cloud"
	"github.com/roach88/anchorkeep/internal/telemetry"
)

const (
	// DefaultTTLDays is the hosting lifetime requested for new cloud anchors.
	DefaultTTLDays = 1

	// DefaultReturnHomeDelay is the number of ticks between a fatal session
	// error and the ReturnHome event.
	DefaultReturnHomeDelay = 180
)

// HistoryStore persists successfully hosted anchors.
type HistoryStore interface {
	LoadHistory(ctx context.Context) ([]anchor.HistoryEntry, error)
	AppendHistory(ctx context.Context, entry anchor.HistoryEntry) error
}

// PlacementRequest is one tap on the AR view.
type PlacementRequest struct {
	Pose       anchor.Pose
	SurfaceHit bool
	OverUI     bool
}

// Manager is the anchor lifecycle manager.
//
// CRITICAL: not safe for concurrent use. Every method must be called from
// the goroutine that calls Tick; other goroutines go through Runner.Enqueue.
type Manager struct {
	session arsession.Session
	tracker *cloud.Tracker
	history HistoryStore
	records *anchor.Store

	presenter Presenters
	clock     *Clock
	logger    *slog.Logger
	metrics   *telemetry.Instruments
	now       func() time.Time

	ttlDays         int
	returnHomeDelay int

	naming anchor.ID // 0 when no record is awaiting a name

	host *hostBatch

	resolve         *resolveBatch
	pendingResolve  []string
	resolveDeferred bool
	resolutions     []Resolution

	fatal fatalState
}

type fatalState struct {
	reported  bool
	returned  bool
	remaining int
	message   string
}

// Option configures a Manager.
type Option func(*Manager)

// WithPresenter adds an event observer. May be given more than once.
func WithPresenter(p Presenter) Option {
	return func(m *Manager) {
		m.presenter = append(m.presenter, p)
	}
}

// WithTTLDays sets the hosting lifetime passed to the cloud service.
// Values outside 1..365 make every host operation fail at issue.
func WithTTLDays(days int) Option {
	return func(m *Manager) {
		m.ttlDays = days
	}
}

// WithReturnHomeDelay sets how many ticks pass between SessionError and ReturnHome.
func WithReturnHomeDelay(ticks int) Option {
	return func(m *Manager) {
		m.returnHomeDelay = ticks
	}
}

// WithLogger sets the manager logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithMetrics records operation metrics.
func WithMetrics(in *telemetry.Instruments) Option {
	return func(m *Manager) {
		m.metrics = in
	}
}

// WithNow overrides the wall clock used for history timestamps.
func WithNow(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a Manager over its external collaborators.
func New(session arsession.Session, service cloud.Service, history HistoryStore, opts ...Option) *Manager {
	m := &Manager{
		session:         session,
		history:         history,
		records:         anchor.NewStore(),
		clock:           NewClock(),
		logger:          slog.Default(),
		now:             time.Now,
		ttlDays:         DefaultTTLDays,
		returnHomeDelay: DefaultReturnHomeDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.tracker = cloud.NewTracker(service,
		cloud.WithInstruments(m.metrics),
		cloud.WithTrackerLogger(m.logger),
	)
	return m
}

// HandlePlacement filters a tap and places an anchor for it. Taps over UI,
// taps that miss every surface, and invalid poses are dropped without any
// event; the returned error says why.
func (m *Manager) HandlePlacement(req PlacementRequest) (anchor.Record, error) {
	if req.OverUI {
		return anchor.Record{}, NewPlacementRejected("touch is over UI", nil)
	}
	if !req.SurfaceHit {
		return anchor.Record{}, NewPlacementRejected("no surface under touch", nil)
	}
	return m.PlaceAnchor(req.Pose)
}

// PlaceAnchor creates an AR anchor at pose and opens the name prompt for it.
//
// A record still awaiting a name is given its default name first, so at
// most one record is ever awaiting a name.
func (m *Manager) PlaceAnchor(pose anchor.Pose) (anchor.Record, error) {
	if m.fatal.reported {
		return anchor.Record{}, NewFatalSession(m.fatal.message)
	}
	if !pose.Valid() {
		return anchor.Record{}, NewPlacementRejected("invalid pose", nil)
	}

	handle, err := m.session.CreateAnchor(pose)
	if err != nil {
		return anchor.Record{}, NewPlacementRejected("create anchor", err)
	}

	if m.naming != 0 {
		m.logger.Debug("naming interrupted by placement", "anchor", m.naming)
		m.commitName(m.naming, "")
	}

	rec := m.records.Add(pose, handle)
	m.records.Update(rec.ID, func(r *anchor.Record) {
		r.Status = anchor.StatusAwaitingName
	})
	rec, _ = m.records.Get(rec.ID)
	m.naming = rec.ID

	m.metrics.Placed(context.Background())
	m.logger.Info("anchor placed", "anchor", rec.ID, "pose", rec.Pose.String())
	m.emit(Event{
		Kind:   EventAnchorPlaced,
		Anchor: rec.ID,
		Pose:   &rec.Pose,
		Status: string(rec.Status),
	})
	return rec, nil
}

// ConfirmName names the record awaiting a name. Blank text selects the
// default name.
func (m *Manager) ConfirmName(text string) (anchor.Record, error) {
	if m.naming == 0 {
		return anchor.Record{}, ErrNotNaming
	}
	id := m.naming
	m.commitName(id, text)
	rec, _ := m.records.Get(id)
	return rec, nil
}

func (m *Manager) commitName(id anchor.ID, text string) {
	name := anchor.ResolveName(id, text)
	m.records.Update(id, func(r *anchor.Record) {
		r.Name = name
		r.Status = anchor.StatusPlaced
	})
	m.naming = 0
	m.emit(Event{
		Kind:   EventAnchorNamed,
		Anchor: id,
		Name:   name,
		Status: string(anchor.StatusPlaced),
	})
}

// CancelNaming discards the record awaiting a name together with its AR
// anchor. The next placement reuses its ID.
func (m *Manager) CancelNaming() error {
	if m.naming == 0 {
		return ErrNotNaming
	}
	id := m.naming
	rec, _ := m.records.Get(id)
	m.session.DestroyAnchor(rec.Handle)
	m.records.Rollback(id)
	m.naming = 0

	m.logger.Info("placement cancelled", "anchor", id)
	m.emit(Event{Kind: EventAnchorRemoved, Anchor: id})
	return nil
}

// ClearAll tears down the session state. Outstanding cloud operations are
// cancelled before any record is destroyed, so their completions can no
// longer touch a record. The ID sequence restarts at 1.
func (m *Manager) ClearAll() {
	cancelled := m.tracker.CancelAll()
	m.host = nil
	m.resolve = nil
	m.pendingResolve = nil
	m.resolveDeferred = false

	removed := 0
	for _, rec := range m.records.All() {
		m.session.DestroyAnchor(rec.Handle)
		removed++
		m.emit(Event{Kind: EventAnchorRemoved, Anchor: rec.ID, Name: rec.Name})
	}
	for _, r := range m.resolutions {
		if r.Handle == "" {
			continue
		}
		m.session.DestroyAnchor(r.Handle)
		removed++
		m.emit(Event{Kind: EventAnchorRemoved, CloudID: r.CloudID, Label: r.Label})
	}

	m.resolutions = nil
	m.records.Reset()
	m.naming = 0

	m.logger.Info("anchors cleared", "removed", removed, "cancelled", cancelled)
}

// Tick advances one frame: fatal session check, deferred resolve retry,
// then polling of the host and resolve batches.
func (m *Manager) Tick(ctx context.Context) {
	if m.checkFatal() {
		return
	}
	m.issueResolve(ctx)
	m.pollHost(ctx)
	m.pollResolve(ctx)
}

// checkFatal reports the session failure once and counts down to
// ReturnHome. Returns true while the manager is halted.
func (m *Manager) checkFatal() bool {
	if m.fatal.reported {
		if !m.fatal.returned {
			m.fatal.remaining--
			if m.fatal.remaining <= 0 {
				m.returnHome()
			}
		}
		return true
	}

	if m.session.Status() != arsession.StatusError {
		return false
	}

	m.fatal.reported = true
	m.fatal.message = sessionMessage(m.session)
	m.fatal.remaining = m.returnHomeDelay
	m.logger.Error("AR session failed", "error", NewFatalSession(m.fatal.message))
	m.emit(Event{Kind: EventSessionError, Message: m.fatal.message})

	if m.fatal.remaining <= 0 {
		m.returnHome()
	}
	return true
}

func (m *Manager) returnHome() {
	m.fatal.returned = true
	m.ClearAll()
	m.emit(Event{Kind: EventReturnHome, Message: m.fatal.message})
}

func sessionMessage(s arsession.Session) string {
	if r, ok := s.(interface{ ErrorMessage() string }); ok {
		if msg := r.ErrorMessage(); msg != "" {
			return msg
		}
	}
	return "AR session failed"
}

func (m *Manager) notice(msg string) {
	m.logger.Info(msg)
	m.emit(Event{Kind: EventNotice, Message: msg})
}

func (m *Manager) emit(ev Event) {
	ev.Seq = m.clock.Next()
	m.presenter.Present(ev)
}

// Records returns every record in placement order.
func (m *Manager) Records() []anchor.Record {
	return m.records.All()
}

// Record returns one record by ID.
func (m *Manager) Record(id anchor.ID) (anchor.Record, bool) {
	return m.records.Get(id)
}

// Resolved returns the resolve results retained since the last ClearAll, in
// request order.
func (m *Manager) Resolved() []Resolution {
	out := make([]Resolution, len(m.resolutions))
	copy(out, m.resolutions)
	return out
}

// Naming returns the ID of the record awaiting a name, if any.
func (m *Manager) Naming() (anchor.ID, bool) {
	return m.naming, m.naming != 0
}

// HostInFlight reports whether a host batch is running.
func (m *Manager) HostInFlight() bool {
	return m.host != nil
}

// ResolveInFlight reports whether a resolve request is pending or running.
func (m *Manager) ResolveInFlight() bool {
	return m.resolve != nil || m.pendingResolve != nil
}

// Halted reports whether a fatal session error has been reported.
func (m *Manager) Halted() bool {
	return m.fatal.reported
}

// OperationsInFlight returns the number of registered cloud operations.
func (m *Manager) OperationsInFlight() int {
	return m.tracker.InFlight()
}
