package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/anchorkeep/internal/config"
)

// ConfigResult is the JSON payload of "config show".
type ConfigResult struct {
	Source string      `json:"source"`
	Config config.File `json:"config"`
}

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate configuration",
		Long: `Show the effective configuration or validate a CUE config file.

Examples:
  anchorkeep config show
  anchorkeep config show --config ./anchorkeep.cue --format json
  anchorkeep config validate ./anchorkeep.cue`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(rootOpts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a config file against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(rootOpts, args[0], cmd)
		},
	})

	return cmd
}

func runConfigShow(opts *RootOptions, cmd *cobra.Command) error {
	f := opts.Config.File
	f.Database = opts.Config.Database

	source := opts.Config.Source
	if source == "" {
		source = "defaults"
	}

	if opts.Format == "json" {
		return opts.formatter(cmd).Success(ConfigResult{Source: source, Config: f})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "# source: %s\n", source)
	fmt.Fprintf(w, "database:          %s\n", f.Database)
	fmt.Fprintf(w, "ttl_days:          %d\n", f.TTLDays)
	fmt.Fprintf(w, "history_limit:     %d\n", f.HistoryLimit)
	fmt.Fprintf(w, "tick_interval:     %s\n", f.TickInterval)
	fmt.Fprintf(w, "return_home_ticks: %d\n", f.ReturnHomeTicks)
	fmt.Fprintln(w, "simulator:")
	fmt.Fprintf(w, "  host_latency:        %s\n", f.Simulator.HostLatency)
	fmt.Fprintf(w, "  resolve_latency:     %s\n", f.Simulator.ResolveLatency)
	fmt.Fprintf(w, "  requests_per_second: %g\n", f.Simulator.RequestsPerSecond)
	fmt.Fprintf(w, "  burst:               %d\n", f.Simulator.Burst)
	fmt.Fprintln(w, "telemetry:")
	fmt.Fprintf(w, "  enabled:  %t\n", f.Telemetry.Enabled)
	fmt.Fprintf(w, "  endpoint: %s\n", f.Telemetry.Endpoint)
	fmt.Fprintf(w, "  insecure: %t\n", f.Telemetry.Insecure)
	fmt.Fprintf(w, "  interval: %s\n", f.Telemetry.Interval)
	return nil
}

func runConfigValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	_, err := config.Load(path)
	if err == nil {
		if opts.Format == "json" {
			return opts.formatter(cmd).Success(map[string]any{"file": path, "valid": true})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid\n", path)
		return nil
	}

	var loadErr *config.LoadError
	if !errors.As(err, &loadErr) {
		return WrapExitError(ExitCommandError, "failed to validate config", err)
	}
	if loadErr.Code == config.ErrCodeNotFound || loadErr.Code == config.ErrCodeReadFailed {
		return WrapExitError(ExitCommandError, "failed to read config", err)
	}

	return opts.formatter(cmd).Fail(WrapExitError(ExitFailure, fmt.Sprintf("%s is invalid", path), loadErr))
}
