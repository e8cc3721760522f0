package engine

import (
	"context"

	"github.com/roach88/anchorkeep/internal/anchor"
	"github.com/roach88/anchorkeep/internal/cloud"
)

// hostBatch is one StartHostingAll invocation. It finishes when every task
// has reached a terminal outcome.
type hostBatch struct {
	tasks  []*hostTask
	hosted int
	failed int
}

type hostTask struct {
	id   anchor.ID
	op   *cloud.Operation
	done bool
}

func (b *hostBatch) finished() bool {
	return b.hosted+b.failed == len(b.tasks)
}

// StartHostingAll issues one host operation per Placed record, in placement
// order. Records awaiting a name, hosting, hosted or failed are left alone.
// With nothing to host, or while a host batch is running, only a Notice is
// emitted.
func (m *Manager) StartHostingAll(ctx context.Context) error {
	if m.fatal.reported {
		return NewFatalSession(m.fatal.message)
	}
	if m.host != nil {
		m.notice("hosting already in progress")
		return nil
	}

	placed := m.records.WithStatus(anchor.StatusPlaced)
	if len(placed) == 0 {
		m.notice("no anchors to host")
		return nil
	}

	batch := &hostBatch{tasks: make([]*hostTask, 0, len(placed))}
	m.host = batch
	for _, rec := range placed {
		m.records.Update(rec.ID, func(r *anchor.Record) {
			r.Status = anchor.StatusHosting
		})
		m.emit(Event{
			Kind:   EventAnchorHostProgress,
			Anchor: rec.ID,
			Name:   rec.Name,
			Status: string(anchor.StatusHosting),
		})
		batch.tasks = append(batch.tasks, &hostTask{
			id: rec.ID,
			op: m.tracker.IssueHost(rec.Handle, m.ttlDays),
		})
	}
	m.logger.Info("hosting started", "anchors", len(batch.tasks), "ttl_days", m.ttlDays)

	// Operations that failed at issue are applied now.
	m.pollHost(ctx)
	return nil
}

func (m *Manager) pollHost(ctx context.Context) {
	b := m.host
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
		m.applyHost(ctx, b, t.id, p)
	}

	if !b.finished() {
		return
	}
	m.host = nil
	m.metrics.BatchCompleted(ctx, b.hosted, len(b.tasks))
	m.logger.Info("hosting finished", "hosted", b.hosted, "failed", b.failed)
	m.emit(Event{
		Kind:    EventBatchHostComplete,
		Success: b.hosted,
		Total:   len(b.tasks),
	})
}

func (m *Manager) applyHost(ctx context.Context, b *hostBatch, id anchor.ID, p cloud.Poll) {
	if p.Outcome != cloud.OutcomeSuccess {
		b.failed++
		var name string
		m.records.Update(id, func(r *anchor.Record) {
			r.Status = anchor.StatusFailed
			r.FailureReason = p.Reason
			name = r.Name
		})
		m.logger.Warn("hosting failed", "error", NewHostFailed(id, p.Reason))
		m.emit(Event{
			Kind:   EventAnchorHostProgress,
			Anchor: id,
			Name:   name,
			Status: string(anchor.StatusFailed),
			Reason: p.Reason,
		})
		return
	}

	b.hosted++
	var name string
	m.records.Update(id, func(r *anchor.Record) {
		r.Status = anchor.StatusHosted
		r.CloudID = p.CloudID
		name = r.Name
	})

	entry := anchor.HistoryEntry{
		CloudID:   p.CloudID,
		Name:      name,
		CreatedAt: m.now(),
	}
	if err := m.history.AppendHistory(ctx, entry); err != nil {
		m.logger.Error("append history", "anchor", id, "cloud_id", p.CloudID, "error", err)
	}

	m.logger.Info("anchor hosted", "anchor", id, "cloud_id", p.CloudID)
	m.emit(Event{
		Kind:    EventAnchorHostProgress,
		Anchor:  id,
		Name:    name,
		Status:  string(anchor.StatusHosted),
		CloudID: p.CloudID,
	})
}
