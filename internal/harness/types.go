package harness

import (
	"github.com/roach88/anchorkeep/internal/anchor"
	"github.com/roach88/anchorkeep/internal/engine"
	"github.com/roach88/anchorkeep/internal/trace"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step matched its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Session is the token the event log was recorded under.
	Session string `json:"session"`

	// Events are the events as presented, in emission order.
	Events []engine.Event `json:"events"`

	// Trace is the event log read back from the store.
	Trace []trace.Record `json:"trace"`

	// Records, Resolved and History are the final state.
	Records  []anchor.Record       `json:"records"`
	Resolved []engine.Resolution   `json:"resolved"`
	History  []anchor.HistoryEntry `json:"history"`
	Naming   anchor.ID             `json:"naming,omitempty"`
	Halted   bool                  `json:"halted"`

	// StepErrors holds the error code of each step, "" for none.
	StepErrors []string `json:"step_errors"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Events:     []engine.Event{},
		Trace:      []trace.Record{},
		StepErrors: []string{},
		Errors:     []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
