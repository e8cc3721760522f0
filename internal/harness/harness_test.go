package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	scenarios, err := LoadDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Len(t, result.Trace, len(result.Events))
		})
	}
}

func TestRun_TraceMatchesPresentedEvents(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "host_batch_partial.yaml"))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Trace, len(result.Events))

	for i, rec := range result.Trace {
		assert.Equal(t, result.Events[i].Seq, rec.Seq)
		assert.Equal(t, string(result.Events[i].Kind), rec.Kind)
		assert.Equal(t, SessionToken(s), rec.Session)
		assert.Len(t, rec.ID, 64)
	}
}

func TestRun_IsDeterministic(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "resolve_with_labels.yaml"))
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.Equal(t, FormatTrace(first.Trace), FormatTrace(second.Trace))
	for i := range first.Trace {
		assert.Equal(t, first.Trace[i].ID, second.Trace[i].ID)
	}
}

func TestRun_ClockAdvancesPerFrame(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "host_batch_partial.yaml"))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.History, 2)

	for _, h := range result.History {
		assert.True(t, h.CreatedAt.After(Epoch), "hosted at %s", h.CreatedAt)
		assert.Zero(t, h.CreatedAt.Sub(Epoch)%FrameInterval)
	}
	assert.False(t, result.History[1].CreatedAt.Before(result.History[0].CreatedAt))
}

func TestRun_UnexpectedStepErrorFails(t *testing.T) {
	s := &Scenario{
		Name:        "unexpected",
		Description: "confirm without a pending name",
		Steps:       []Step{{Action: StepConfirmName, Name: "x"}},
		Assertions:  []Assertion{{Type: AssertEventCount, Kind: "AnchorNamed", Count: 0}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{ErrCodeNotNaming}, result.StepErrors)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], `expected error "", got "NOT_NAMING"`)
}

func TestRun_CompleteHostForUnknownAnchor(t *testing.T) {
	s := &Scenario{
		Name:        "unknown_anchor",
		Description: "completion for an anchor that was never placed",
		Steps:       []Step{{Action: StepCompleteHost, Anchor: 4, State: "Success"}},
		Assertions:  []Assertion{{Type: AssertHistory}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no anchor 4")
}

func TestRun_InvalidTTLFailsEveryHost(t *testing.T) {
	s := &Scenario{
		Name:        "bad_ttl",
		Description: "ttl outside the accepted range",
		TTLDays:     400,
		Steps: []Step{
			{Action: StepPlace, Pose: []float64{0, 0, -1}},
			{Action: StepConfirmName, Name: "A"},
			{Action: StepHostAll},
		},
		Assertions: []Assertion{
			{Type: AssertEventCount, Kind: "BatchHostComplete", Count: 1},
			{Type: AssertExpr, Expr: `records[0].status == "Failed" && records[0].reason == "ErrorInternal"`},
			{Type: AssertHistory},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
