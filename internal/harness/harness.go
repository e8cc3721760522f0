package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/anchorkeep/internal/anchor"
	"github.com/roach88/anchorkeep/internal/arsession"
	"github.com/roach88/anchorkeep/internal/cloud"
	"github.com/roach88/anchorkeep/internal/cloudsim"
	"github.com/roach88/anchorkeep/internal/engine"
	"github.com/roach88/anchorkeep/internal/store"
	"github.com/roach88/anchorkeep/internal/testutil"
)

// Epoch is the wall clock reading every scenario starts at.
var Epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// FrameInterval is how far the scenario clock moves per runner step.
const FrameInterval = engine.DefaultTickInterval

// ErrCodeNotNaming is the step error code for engine.ErrNotNaming.
const ErrCodeNotNaming = "NOT_NAMING"

// Harness holds the collaborators of one scenario run.
type Harness struct {
	store   *store.Store
	session *arsession.Sim
	service *cloudsim.Scripted
	manager *engine.Manager
	runner  *engine.Runner
	events  *engine.EventLog
	clock   *testutil.ManualClock
	logger  *slog.Logger
}

// SessionToken is the event log session a scenario is recorded under.
func SessionToken(s *Scenario) string {
	return "scenario:" + s.Name
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// The returned error covers setup failures only; step and assertion
// failures are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	for i, h := range scenario.History {
		entry := anchor.HistoryEntry{CloudID: h.CloudID, Name: h.Name, CreatedAt: Epoch}
		if err := st.AppendHistory(ctx, entry); err != nil {
			return nil, fmt.Errorf("history[%d]: %w", i, err)
		}
	}

	logger := slog.New(slog.DiscardHandler)
	h := &Harness{
		store:   st,
		session: arsession.NewSim(cloudsim.NewSequenceGenerator("ar")),
		service: cloudsim.NewScripted(),
		events:  &engine.EventLog{},
		clock:   testutil.NewManualClock(Epoch),
		logger:  logger,
	}

	session := SessionToken(scenario)
	recorder := engine.NewRecorder(ctx, st, session, logger)
	opts := []engine.Option{
		engine.WithPresenter(h.events),
		engine.WithPresenter(recorder),
		engine.WithLogger(logger),
		engine.WithNow(h.clock.Now),
	}
	if scenario.TTLDays != 0 {
		opts = append(opts, engine.WithTTLDays(scenario.TTLDays))
	}
	if scenario.ReturnHomeTicks != nil {
		opts = append(opts, engine.WithReturnHomeDelay(*scenario.ReturnHomeTicks))
	}
	h.manager = engine.New(h.session, h.service, st, opts...)
	h.runner = engine.NewRunner(h.manager, engine.WithRunnerLogger(logger))

	result := NewResult()
	result.Session = session
	for i, step := range scenario.Steps {
		code, err := h.execute(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d] %s: %w", i, step.Action, err)
		}
		result.StepErrors = append(result.StepErrors, code)
		if code != step.ExpectError {
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error %q, got %q", i, step.Action, step.ExpectError, code))
		}
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}
	if recorder.Failed() > 0 {
		result.AddError(fmt.Sprintf("%d events were not recorded", recorder.Failed()))
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step and returns the engine error code it produced.
// A non-nil error means the step itself could not be carried out.
func (h *Harness) execute(ctx context.Context, step Step) (string, error) {
	switch step.Action {
	case StepPlace:
		req := engine.PlacementRequest{
			Pose:       anchor.NewPose(step.Pose[0], step.Pose[1], step.Pose[2]),
			SurfaceHit: !step.Miss,
			OverUI:     step.OverUI,
		}
		return h.command(ctx, func(_ context.Context, m *engine.Manager) error {
			_, err := m.HandlePlacement(req)
			return err
		})
	case StepConfirmName:
		return h.command(ctx, func(_ context.Context, m *engine.Manager) error {
			_, err := m.ConfirmName(step.Name)
			return err
		})
	case StepCancelNaming:
		return h.command(ctx, func(_ context.Context, m *engine.Manager) error {
			return m.CancelNaming()
		})
	case StepHostAll:
		return h.command(ctx, func(ctx context.Context, m *engine.Manager) error {
			return m.StartHostingAll(ctx)
		})
	case StepResolveAll:
		return h.command(ctx, func(ctx context.Context, m *engine.Manager) error {
			return m.StartResolvingAll(ctx, step.IDs)
		})
	case StepClear:
		return h.command(ctx, func(_ context.Context, m *engine.Manager) error {
			m.ClearAll()
			return nil
		})

	case StepCompleteHost:
		rec, ok := h.manager.Record(anchor.ID(step.Anchor))
		if !ok {
			return "", fmt.Errorf("no anchor %d", step.Anchor)
		}
		_, err := h.service.CompleteHost(rec.Handle, cloud.State(step.State), step.CloudID)
		return "", err
	case StepCompleteResolve:
		_, err := h.service.CompleteResolve(step.CloudID, cloud.State(step.State))
		return "", err
	case StepFailNext:
		h.service.FailNextAtIssue(cloud.State(step.State))
		return "", nil
	case StepTracking:
		h.session.SetStatus(arsession.Status(step.Status))
		return "", nil
	case StepFatal:
		h.session.Fail(step.Message)
		return "", nil
	case StepTick:
		n := step.Count
		if n == 0 {
			n = 1
		}
		for range n {
			h.step(ctx)
		}
		return "", nil
	}
	return "", fmt.Errorf("unknown action %q", step.Action)
}

// command queues fn on the runner and advances one frame.
func (h *Harness) command(ctx context.Context, fn func(context.Context, *engine.Manager) error) (string, error) {
	var err error
	if !h.runner.Enqueue(func(ctx context.Context, m *engine.Manager) {
		err = fn(ctx, m)
	}) {
		return "", engine.ErrRunnerStopped
	}
	h.step(ctx)
	return errorCode(err), nil
}

// step advances the scenario clock by one frame and runs one tick.
func (h *Harness) step(ctx context.Context) {
	h.clock.Advance(FrameInterval)
	h.runner.Step(ctx)
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, engine.ErrNotNaming) {
		return ErrCodeNotNaming
	}
	var e *engine.Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	return err.Error()
}

// collect copies the final state and the persisted trace into result.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	result.Events = append(result.Events, h.events.Events...)
	result.Records = h.manager.Records()
	result.Resolved = h.manager.Resolved()
	result.Halted = h.manager.Halted()
	if id, ok := h.manager.Naming(); ok {
		result.Naming = id
	}

	history, err := h.store.LoadHistory(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	result.History = history

	trace, err := h.store.ReadEvents(ctx, result.Session)
	if err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	result.Trace = trace
	return nil
}
