package cli

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/roach88/anchorkeep/internal/store"
	"github.com/roach88/anchorkeep/internal/trace"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Session string
	Kind    string // optional - filter to one event kind
	Verify  bool
}

// TraceEvent is one entry of the event timeline.
type TraceEvent struct {
	Seq     int64           `json:"seq"`
	Kind    string          `json:"kind"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  string       `json:"session"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the session.
type TraceStats struct {
	TotalEvents int            `json:"total_events"`
	ByKind      map[string]int `json:"by_kind"`
	Verified    bool           `json:"verified,omitempty"`
	Problems    []string       `json:"problems,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded event log of a session",
		Long: `Show the lifecycle events recorded for a session.

Without --session the most recent session is shown. --verify recomputes
every event id from its canonical payload and checks that sequence
numbers strictly increase.

Examples:
  anchorkeep trace --db ./anchors.db
  anchorkeep trace --db ./anchors.db --session 0190... --kind AnchorHostProgress
  anchorkeep trace --db ./anchors.db --verify --format json
  anchorkeep trace sessions --db ./anchors.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "session token (default: latest)")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "filter to one event kind")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "recompute event ids and check ordering")

	cmd.AddCommand(&cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceSessions(rootOpts, cmd)
		},
	})

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()

	st, err := openStore(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	session := opts.Session
	if session == "" {
		session, err = st.LatestSession(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find latest session", err)
		}
	}
	if session == "" {
		if opts.Format == "json" {
			return opts.formatter(cmd).Success(TraceResult{Timeline: []TraceEvent{}, Stats: TraceStats{ByKind: map[string]int{}}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded.")
		return nil
	}

	records, err := st.ReadEvents(ctx, session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	timeline := records
	if opts.Kind != "" {
		timeline, err = st.QueryEvents(ctx, store.EventQuery{
			Filter: store.And{store.SessionIs(session), store.KindIn{opts.Kind}},
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to filter events", err)
		}
	}

	result := TraceResult{
		Session:  session,
		Timeline: buildTimeline(timeline),
		Stats: TraceStats{
			TotalEvents: len(records),
			ByKind:      countKinds(records),
		},
	}
	if opts.Verify {
		result.Stats.Problems = verifyRecords(records)
		result.Stats.Verified = len(result.Stats.Problems) == 0
	}

	invalid := opts.Verify && !result.Stats.Verified
	msg := fmt.Sprintf("%d problem(s) in event log", len(result.Stats.Problems))

	if opts.Format == "json" {
		f := opts.formatter(cmd).ForSession(session)
		if invalid {
			err = f.Error(ErrCodeTraceInvalid, msg, result)
		} else {
			err = f.Success(result)
		}
		if err != nil {
			return err
		}
	} else {
		outputTraceText(cmd, result, opts.Verify)
	}

	if invalid {
		return NewExitError(ExitFailure, msg)
	}
	return nil
}

// buildTimeline converts records to timeline entries.
func buildTimeline(records []trace.Record) []TraceEvent {
	timeline := make([]TraceEvent, 0, len(records))
	for _, rec := range records {
		timeline = append(timeline, TraceEvent{
			Seq:     rec.Seq,
			Kind:    rec.Kind,
			ID:      rec.ID,
			Payload: json.RawMessage(rec.Payload),
		})
	}
	return timeline
}

func countKinds(records []trace.Record) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.Kind]++
	}
	return counts
}

// verifyRecords recomputes each event id and checks that seq strictly
// increases.
func verifyRecords(records []trace.Record) []string {
	var problems []string
	var last int64
	for _, rec := range records {
		if rec.Seq <= last {
			problems = append(problems, fmt.Sprintf("seq %d: not after seq %d", rec.Seq, last))
		}
		last = rec.Seq

		id, err := trace.EventID(rec.Session, rec.Seq, rec.Kind, rec.Payload)
		if err != nil {
			problems = append(problems, fmt.Sprintf("seq %d: %v", rec.Seq, err))
			continue
		}
		if id != rec.ID {
			problems = append(problems, fmt.Sprintf("seq %d: id mismatch", rec.Seq))
		}
	}
	return problems
}

func outputTraceText(cmd *cobra.Command, result TraceResult, verify bool) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Session: %s\n\n", result.Session)
	for _, ev := range result.Timeline {
		fmt.Fprintf(w, "[%d] %-22s %s\n", ev.Seq, ev.Kind, ev.Payload)
	}
	fmt.Fprintf(w, "\n%d events\n", result.Stats.TotalEvents)

	if !verify {
		return
	}
	if result.Stats.Verified {
		fmt.Fprintln(w, "✓ Event log verified")
		return
	}
	for _, p := range result.Stats.Problems {
		fmt.Fprintf(w, "✗ %s\n", p)
	}
}

func runTraceSessions(opts *RootOptions, cmd *cobra.Command) error {
	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, err := st.ReadSessions(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read sessions", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(map[string][]store.SessionSummary{"sessions": sessions})
	}

	w := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(w, "%s  %d events (last seq %d)\n", s.Session, s.Events, s.LastSeq)
	}
	return nil
}
