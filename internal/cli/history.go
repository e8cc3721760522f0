package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/anchorkeep/internal/anchor"
	"github.com/roach88/anchorkeep/internal/store"
)

// HistoryResult is the JSON payload of "history list".
type HistoryResult struct {
	Entries []anchor.HistoryEntry `json:"entries"`
	Limit   int                   `json:"limit"`
}

// NewHistoryCommand creates the history command group.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect hosted anchor history",
		Long: `Show or clear the hosted anchors persisted across sessions.

Examples:
  anchorkeep history list --db ./anchors.db
  anchorkeep history clear --db ./anchors.db`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List hosted anchors, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every history entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryClear(rootOpts, cmd)
		},
	})

	return cmd
}

func openStore(opts *RootOptions) (*store.Store, error) {
	st, err := store.Open(opts.Config.Database, store.WithHistoryLimit(opts.Config.HistoryLimit))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runHistoryList(opts *RootOptions, cmd *cobra.Command) error {
	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.LoadHistory(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load history", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(HistoryResult{Entries: entries, Limit: opts.Config.HistoryLimit})
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(w, "History is empty.")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-20s %s\n", e.CreatedAt.Format(time.RFC3339), e.Name, e.CloudID)
	}
	fmt.Fprintf(w, "\n%d of %d entries\n", len(entries), opts.Config.HistoryLimit)
	return nil
}

func runHistoryClear(opts *RootOptions, cmd *cobra.Command) error {
	st, err := openStore(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.ClearHistory(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to clear history", err)
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(map[string]int64{"removed": n})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d history entries.\n", n)
	return nil
}
