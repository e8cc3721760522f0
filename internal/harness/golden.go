package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/anchorkeep/internal/trace"
)

// FormatTrace renders persisted events one per line as
// "seq kind payload". Payloads are already canonical JSON, so the output
// is deterministic.
func FormatTrace(records []trace.Record) []byte {
	var buf bytes.Buffer
	for _, rec := range records {
		fmt.Fprintf(&buf, "%d %s %s\n", rec.Seq, rec.Kind, rec.Payload)
	}
	return buf.Bytes()
}

// RunWithGolden executes a scenario and compares its persisted trace
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can inspect failures; the golden mismatch
// itself fails t through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, FormatTrace(result.Trace))
}
