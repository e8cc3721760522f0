package engine

import (
	"context"
	"strings"

	"github.com/roach88/anchorkeep/internal/anchor"
	"github.com/roach88/anchorkeep/internal/cloud"
)

// Resolution is the outcome of resolving one cloud anchor id.
type Resolution struct {
	CloudID string        `json:"cloud_id"`
	Status  string        `json:"status"`
	Handle  anchor.Handle `json:"handle,omitempty"`
	Label   string        `json:"label,omitempty"`
	Reason  string        `json:"reason,omitempty"`
}

type resolveBatch struct {
	tasks     []*resolveTask
	remaining int
}

type resolveTask struct {
	index int // into Manager.resolutions
	op    *cloud.Operation
	done  bool
}

// StartResolvingAll requests a resolve of every id, in input order.
// Blank and repeated ids are dropped. The request is issued as soon as the
// session is tracking; until then it is retried each tick.
//
// A second request is ignored while one is pending or running, and while
// results from an earlier request are still held. ClearAll releases them.
func (m *Manager) StartResolvingAll(ctx context.Context, ids []string) error {
	if m.fatal.reported {
		return NewFatalSession(m.fatal.message)
	}

	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}
	if m.ResolveInFlight() || len(m.resolutions) > 0 {
		m.notice("resolve already requested")
		return nil
	}

	m.pendingResolve = ids
	m.issueResolve(ctx)
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// issueResolve turns the pending request into a resolve batch once the
// session is tracking.
func (m *Manager) issueResolve(ctx context.Context) {
	if m.pendingResolve == nil {
		return
	}

	if st := m.session.Status(); !st.Ready() {
		if !m.resolveDeferred {
			m.resolveDeferred = true
			m.logger.Info("resolve deferred", "error", NewSessionNotReady(string(st)))
			m.emit(Event{Kind: EventNotice, Message: "waiting for tracking to resolve anchors"})
		}
		return
	}

	ids := m.pendingResolve
	m.pendingResolve = nil
	m.resolveDeferred = false

	batch := &resolveBatch{
		tasks:     make([]*resolveTask, 0, len(ids)),
		remaining: len(ids),
	}
	m.resolve = batch
	for _, id := range ids {
		m.resolutions = append(m.resolutions, Resolution{CloudID: id, Status: ResolvePending})
		m.emit(Event{
			Kind:    EventAnchorResolveProgress,
			CloudID: id,
			Status:  ResolvePending,
		})
		batch.tasks = append(batch.tasks, &resolveTask{
			index: len(m.resolutions) - 1,
			op:    m.tracker.IssueResolve(id),
		})
	}
	m.logger.Info("resolving started", "ids", len(ids))

	m.pollResolve(ctx)
}

func (m *Manager) pollResolve(ctx context.Context) {
	b := m.resolve
	if b == nil {
		return
	}

	for _, t := range b.tasks {
		if t.done {
			continue
		}
		p := t.op.Poll()
		if !p.Outcome.Terminal() {
			continue
		}
		t.done = true
		b.remaining--
		m.applyResolve(ctx, t, p)
	}

	// No aggregate event for resolves; the batch just ends.
	if b.remaining == 0 {
		m.resolve = nil
		m.logger.Info("resolving finished", "ids", len(b.tasks))
	}
}

func (m *Manager) applyResolve(ctx context.Context, t *resolveTask, p cloud.Poll) {
	r := &m.resolutions[t.index]

	if p.Outcome != cloud.OutcomeSuccess {
		r.Status = ResolveFailed
		r.Reason = p.Reason
		m.logger.Warn("resolving failed", "error", NewResolveFailed(r.CloudID, p.Reason))
		m.emit(Event{
			Kind:    EventAnchorResolveProgress,
			CloudID: r.CloudID,
			Status:  ResolveFailed,
			Reason:  p.Reason,
		})
		return
	}

	r.Status = ResolveResolved
	r.Handle = p.Anchor
	r.Label = m.labelFor(ctx, r.CloudID)
	m.logger.Info("anchor resolved", "cloud_id", r.CloudID, "label", r.Label)
	m.emit(Event{
		Kind:    EventAnchorResolveProgress,
		CloudID: r.CloudID,
		Status:  ResolveResolved,
		Label:   r.Label,
	})
}

// labelFor returns the history name recorded for cloudID, or "" when the id
// is not in history.
func (m *Manager) labelFor(ctx context.Context, cloudID string) string {
	entries, err := m.history.LoadHistory(ctx)
	if err != nil {
		m.logger.Error("load history", "cloud_id", cloudID, "error", err)
		return ""
	}
	for _, e := range entries {
		if e.CloudID == cloudID {
			return e.Name
		}
	}
	return ""
}
