package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Operation kinds used as the "kind" attribute.
const (
	KindHost    = "host"
	KindResolve = "resolve"
)

// Instruments are the counters recorded by the tracker and the manager.
// A nil *Instruments records nothing.
type Instruments struct {
	issued    metric.Int64Counter
	completed metric.Int64Counter
	inFlight  metric.Int64UpDownCounter
	placed    metric.Int64Counter
	batches   metric.Int64Counter
}

// NewInstruments creates the instruments on the given meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	var (
		in  Instruments
		err error
	)
	if in.issued, err = meter.Int64Counter("anchor.operations.issued",
		metric.WithDescription("Cloud anchor operations issued"),
		metric.WithUnit("{operation}")); err != nil {
		return nil, err
	}
	if in.completed, err = meter.Int64Counter("anchor.operations.completed",
		metric.WithDescription("Cloud anchor operations reaching a terminal outcome"),
		metric.WithUnit("{operation}")); err != nil {
		return nil, err
	}
	if in.inFlight, err = meter.Int64UpDownCounter("anchor.operations.in_flight",
		metric.WithDescription("Cloud anchor operations awaiting completion"),
		metric.WithUnit("{operation}")); err != nil {
		return nil, err
	}
	if in.placed, err = meter.Int64Counter("anchor.placed",
		metric.WithDescription("Anchors placed"),
		metric.WithUnit("{anchor}")); err != nil {
		return nil, err
	}
	if in.batches, err = meter.Int64Counter("anchor.host_batches.completed",
		metric.WithDescription("Host batches reaching completion"),
		metric.WithUnit("{batch}")); err != nil {
		return nil, err
	}
	return &in, nil
}

// Issued records an operation issue. Registered operations also count as in flight.
func (in *Instruments) Issued(ctx context.Context, kind string, registered bool) {
	if in == nil {
		return
	}
	in.issued.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	if registered {
		in.inFlight.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// Completed records a terminal outcome. wasRegistered releases the in-flight slot.
func (in *Instruments) Completed(ctx context.Context, kind, outcome string, wasRegistered bool) {
	if in == nil {
		return
	}
	in.completed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	))
	if wasRegistered {
		in.inFlight.Add(ctx, -1, metric.WithAttributes(attribute.String("kind", kind)))
	}
}

// Placed records an anchor placement.
func (in *Instruments) Placed(ctx context.Context) {
	if in == nil {
		return
	}
	in.placed.Add(ctx, 1)
}

// BatchCompleted records a finished host batch.
func (in *Instruments) BatchCompleted(ctx context.Context, success, total int) {
	if in == nil {
		return
	}
	in.batches.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("all_succeeded", success == total),
	))
}
