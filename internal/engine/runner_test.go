package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/anchorkeep/internal/anchor"
	"github.com/roach88/anchorkeep/internal/cloud"
)

func quietRunner(m *Manager, opts ...RunnerOption) *Runner {
	base := []RunnerOption{WithRunnerLogger(slog.New(slog.DiscardHandler))}
	return NewRunner(m, append(base, opts...)...)
}

func TestRunner_StepRunsCommandsBeforeTick(t *testing.T) {
	f := newFixture(t, nil)
	r := quietRunner(f.m)
	ctx := context.Background()

	p1 := f.place(t, "P1", 0)
	require.NoError(t, f.m.StartHostingAll(ctx))
	_, err := f.svc.CompleteHost(p1.Handle, cloud.StateSuccess, "c1")
	require.NoError(t, err)

	// The command observes the batch before the tick polls it.
	var inFlight bool
	require.True(t, r.Enqueue(func(_ context.Context, m *Manager) {
		inFlight = m.HostInFlight()
	}))
	assert.Equal(t, 1, r.Pending())

	r.Step(ctx)
	assert.True(t, inFlight)
	assert.False(t, f.m.HostInFlight())
	assert.Equal(t, 0, r.Pending())
}

func TestRunner_RunAndDo(t *testing.T) {
	f := newFixture(t, nil)
	r := quietRunner(f.m, WithTickInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	var placed anchor.Record
	err := r.Do(ctx, func(_ context.Context, m *Manager) {
		placed, _ = m.PlaceAnchor(anchor.NewPose(0, 0, -1))
	})
	require.NoError(t, err)
	assert.Equal(t, anchor.ID(1), placed.ID)

	r.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	assert.False(t, r.Enqueue(func(context.Context, *Manager) {}))
	assert.ErrorIs(t, r.Do(context.Background(), func(context.Context, *Manager) {}), ErrRunnerStopped)
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t, nil)
	r := quietRunner(f.m, WithTickInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunner_DoHonoursContext(t *testing.T) {
	f := newFixture(t, nil)
	r := quietRunner(f.m) // never run

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := r.Do(ctx, func(context.Context, *Manager) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
