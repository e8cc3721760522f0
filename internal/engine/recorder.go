package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/anchorkeep/internal/anchor"
	"github.com/roach88/anchorkeep/internal/trace"
)

// EventWriter persists event records.
type EventWriter interface {
	WriteEvent(ctx context.Context, rec trace.Record) error
}

// Recorder is a Presenter that appends every event to an event log under a
// session token. Write failures are logged and counted; they never reach
// the Manager.
type Recorder struct {
	ctx     context.Context
	writer  EventWriter
	session string
	logger  *slog.Logger
	failed  int
}

// NewRecorder creates a recorder writing through w. ctx bounds every write.
func NewRecorder(ctx context.Context, w EventWriter, session string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		ctx:     ctx,
		writer:  w,
		session: session,
		logger:  logger,
	}
}

// Present implements Presenter.
func (r *Recorder) Present(ev Event) {
	rec, err := trace.NewRecord(r.session, ev.Seq, string(ev.Kind), EventPayload(ev))
	if err == nil {
		err = r.writer.WriteEvent(r.ctx, rec)
	}
	if err != nil {
		r.failed++
		r.logger.Error("record event", "seq", ev.Seq, "kind", ev.Kind, "error", err)
	}
}

// Session returns the session token events are recorded under.
func (r *Recorder) Session() string {
	return r.session
}

// Failed returns how many events could not be recorded.
func (r *Recorder) Failed() int {
	return r.failed
}

// EventPayload returns the canonical-JSON-ready fields of ev, omitting seq
// and kind and every zero field. Pose components are in micro-units.
func EventPayload(ev Event) map[string]any {
	p := map[string]any{}
	if ev.Anchor != 0 {
		p["anchor"] = int(ev.Anchor)
	}
	if ev.Pose != nil {
		p["pose"] = posePayload(*ev.Pose)
	}
	str := map[string]string{
		"name":     ev.Name,
		"status":   ev.Status,
		"cloud_id": ev.CloudID,
		"reason":   ev.Reason,
		"label":    ev.Label,
		"message":  ev.Message,
	}
	for k, v := range str {
		if v != "" {
			p[k] = v
		}
	}
	if ev.Kind == EventBatchHostComplete {
		p["success"] = ev.Success
		p["total"] = ev.Total
	}
	return p
}

func posePayload(pose anchor.Pose) map[string]any {
	return map[string]any{
		"position": map[string]any{
			"x": trace.Micro(pose.Position.X),
			"y": trace.Micro(pose.Position.Y),
			"z": trace.Micro(pose.Position.Z),
		},
		"rotation": map[string]any{
			"x": trace.Micro(pose.Rotation.X),
			"y": trace.Micro(pose.Rotation.Y),
			"z": trace.Micro(pose.Rotation.Z),
			"w": trace.Micro(pose.Rotation.W),
		},
	}
}
