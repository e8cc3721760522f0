package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/roach88/anchorkeep/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Events   []engine.Event // Full event list for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Events) > 0 {
		fmt.Fprintf(&buf, "\nEvents:\n")
		for _, ev := range e.Events {
			fmt.Fprintf(&buf, "  [%d] %s\n", ev.Seq, ev.Kind)
		}
	}
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertEventCount:
			err = assertEventCount(result.Events, a)
		case AssertEventOrder:
			err = assertEventOrder(result.Events, a)
		case AssertHistory:
			err = assertHistory(result, a)
		case AssertExpr:
			err = assertExpr(result, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertEventCount(events []engine.Event, a Assertion) error {
	count := 0
	for _, ev := range events {
		if string(ev.Kind) == a.Kind {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertEventCount,
			Expected: fmt.Sprintf("%d %s events", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d events", count),
			Events:   events,
		}
	}
	return nil
}

// assertEventOrder checks that the kinds occur as a subsequence of the
// event list. Intervening events are allowed.
func assertEventOrder(events []engine.Event, a Assertion) error {
	next := 0
	for _, ev := range events {
		if next < len(a.Kinds) && string(ev.Kind) == a.Kinds[next] {
			next++
		}
	}
	if next == len(a.Kinds) {
		return nil
	}
	return &AssertionError{
		Type:     AssertEventOrder,
		Expected: fmt.Sprintf("events in order: %v", a.Kinds),
		Actual:   fmt.Sprintf("matched up to %v, missing %s", a.Kinds[:next], a.Kinds[next]),
		Events:   events,
	}
}

func assertHistory(result *Result, a Assertion) error {
	got := make([]string, len(result.History))
	for i, h := range result.History {
		got[i] = h.CloudID
	}
	want := a.CloudIDs
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(got, want) {
		return &AssertionError{
			Type:     AssertHistory,
			Expected: fmt.Sprintf("history %v", want),
			Actual:   fmt.Sprintf("history %v", got),
		}
	}
	return nil
}

func assertExpr(result *Result, a Assertion) error {
	env := exprEnv(result)
	program, err := expr.Compile(a.Expr, expr.Env(env), expr.AsBool())
	if err != nil {
		return &AssertionError{
			Type:     AssertExpr,
			Expected: a.Expr,
			Actual:   fmt.Sprintf("compile error: %v", err),
		}
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return &AssertionError{
			Type:     AssertExpr,
			Expected: a.Expr,
			Actual:   fmt.Sprintf("evaluation error: %v", err),
			Events:   result.Events,
		}
	}
	if ok, _ := out.(bool); !ok {
		return &AssertionError{
			Type:     AssertExpr,
			Expected: a.Expr,
			Actual:   "false",
			Events:   result.Events,
		}
	}
	return nil
}

// exprEnv exposes the result to expressions. Every collection is a list of
// maps keyed by the JSON field names used in the event log.
func exprEnv(result *Result) map[string]any {
	events := make([]any, len(result.Events))
	for i, ev := range result.Events {
		events[i] = map[string]any{
			"seq":      ev.Seq,
			"kind":     string(ev.Kind),
			"anchor":   int(ev.Anchor),
			"name":     ev.Name,
			"status":   ev.Status,
			"cloud_id": ev.CloudID,
			"reason":   ev.Reason,
			"label":    ev.Label,
			"success":  ev.Success,
			"total":    ev.Total,
			"message":  ev.Message,
		}
	}

	records := make([]any, len(result.Records))
	for i, r := range result.Records {
		records[i] = map[string]any{
			"id":       int(r.ID),
			"name":     r.Name,
			"status":   string(r.Status),
			"cloud_id": r.CloudID,
			"reason":   r.FailureReason,
		}
	}

	resolved := make([]any, len(result.Resolved))
	for i, r := range result.Resolved {
		resolved[i] = map[string]any{
			"cloud_id": r.CloudID,
			"status":   r.Status,
			"label":    r.Label,
			"reason":   r.Reason,
		}
	}

	history := make([]any, len(result.History))
	for i, h := range result.History {
		history[i] = map[string]any{
			"cloud_id": h.CloudID,
			"name":     h.Name,
		}
	}

	stepErrors := make([]any, len(result.StepErrors))
	for i, code := range result.StepErrors {
		stepErrors[i] = code
	}

	return map[string]any{
		"events":   events,
		"records":  records,
		"resolved": resolved,
		"history":  history,
		"errors":   stepErrors,
		"naming":   int(result.Naming),
		"halted":   result.Halted,
	}
}
