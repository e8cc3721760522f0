package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/anchorkeep/internal/anchor"
	"github.com/roach88/anchorkeep/internal/arsession"
	"github.com/roach88/anchorkeep/internal/cloudsim"
	"github.com/roach88/anchorkeep/internal/engine"
	"github.com/roach88/anchorkeep/internal/store"
	"github.com/roach88/anchorkeep/internal/telemetry"
)

// DefaultWaitTimeout bounds the "wait" command.
const DefaultWaitTimeout = 30 * time.Second

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions

	// Session overrides the event log session token (for testing).
	// If empty, a UUIDv7 is generated.
	Session string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start an interactive anchor session",
		Long: `Start an interactive session against the simulated AR session and
cloud anchor service. Commands are read one per line from stdin:

  place X Y Z [ui] [miss]   tap at a position (ui: over UI, miss: no surface)
  name [TEXT]               confirm the pending name (blank: default name)
  cancel                    discard the anchor awaiting a name
  host                      host every named anchor
  resolve ID[,ID...]        resolve cloud anchor ids
  clear                     remove every anchor and cancel cloud calls
  status                    show anchors and resolve results
  history                   show hosted anchors from earlier sessions
  track STATUS              set tracking (Tracking, Limited, NotTracking)
  fail [MESSAGE]            fail the AR session
  wait [DURATION]           wait until hosting and resolving finish
  quit                      end the session

Example:
  anchorkeep run --db ./anchors.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Session, "session", "", "event log session token (default: new UUIDv7)")

	return cmd
}

func runSession(opts *RunOptions, cmd *cobra.Command) error {
	cfg := opts.Config
	logger := slog.Default()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database, store.WithHistoryLimit(cfg.HistoryLimit))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if purged, err := st.PurgeExpired(ctx, time.Now()); err != nil {
		slog.Warn("purge expired cloud anchors", "error", err)
	} else if purged > 0 {
		slog.Info("expired cloud anchors purged", "count", purged)
	}

	provider, err := telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start telemetry", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			slog.Error("telemetry shutdown", "error", err)
		}
	}()
	instruments, err := telemetry.NewInstruments(provider.Meter())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create instruments", err)
	}

	svc := cloudsim.NewService(cfg.Simulator, st, cloudsim.WithLogger(logger))
	defer svc.Close()

	session := arsession.NewSim(cloudsim.UUIDv7Generator{})
	token := opts.Session
	if token == "" {
		token = cloudsim.UUIDv7Generator{}.Generate()
	}

	out := &syncWriter{w: cmd.OutOrStdout()}
	con := newConsole(out, opts.Format)
	recorder := engine.NewRecorder(ctx, st, token, logger)

	m := engine.New(session, svc, st,
		engine.WithPresenter(recorder),
		engine.WithPresenter(con),
		engine.WithTTLDays(cfg.TTLDays),
		engine.WithReturnHomeDelay(cfg.ReturnHomeTicks),
		engine.WithLogger(logger),
		engine.WithMetrics(instruments),
	)
	runner := engine.NewRunner(m, engine.WithTickInterval(cfg.TickInterval), engine.WithRunnerLogger(logger))

	runErr := make(chan error, 1)
	go func() { runErr <- runner.Run(ctx) }()

	slog.Info("session started", "session", recorder.Session(), "ttl_days", cfg.TTLDays)
	fmt.Fprintf(out, "Session %s. Type \"help\" for commands.\n", token)

	r := &repl{
		out:     out,
		runner:  runner,
		session: session,
		history: st,
	}
	loopErr := r.loop(ctx, cmd.InOrStdin(), con.Home())

	runner.Stop()
	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "runner error", err)
	}
	if recorder.Failed() > 0 {
		slog.Warn("some events were not recorded", "count", recorder.Failed())
	}
	slog.Info("session ended", "session", recorder.Session())

	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return WrapExitError(ExitFailure, "session error", loopErr)
	}
	return nil
}

// historyReader is the part of the store the REPL reads directly.
type historyReader interface {
	LoadHistory(ctx context.Context) ([]anchor.HistoryEntry, error)
}

// repl reads commands and hands them to the runner. It never touches the
// Manager itself; every operation goes through Runner.Do.
type repl struct {
	out     io.Writer
	runner  *engine.Runner
	session *arsession.Sim
	history historyReader
}

var errQuit = errors.New("quit")

func (r *repl) loop(ctx context.Context, in io.Reader, home <-chan struct{}) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-home:
			fmt.Fprintln(r.out, "AR session lost. Returning home.")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := r.exec(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, engine.ErrRunnerStopped) {
					return err
				}
				fmt.Fprintf(r.out, "error: %v\n", err)
			}
		}
	}
}

func (r *repl) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "place":
		return r.place(ctx, args)
	case "name":
		text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))
		return r.do(ctx, func(_ context.Context, m *engine.Manager) error {
			_, err := m.ConfirmName(text)
			return err
		})
	case "cancel":
		return r.do(ctx, func(_ context.Context, m *engine.Manager) error {
			return m.CancelNaming()
		})
	case "host":
		return r.do(ctx, func(ctx context.Context, m *engine.Manager) error {
			return m.StartHostingAll(ctx)
		})
	case "resolve":
		ids, err := anchor.ParseCloudIDs(strings.Join(args, ","))
		if err != nil {
			return err
		}
		return r.do(ctx, func(ctx context.Context, m *engine.Manager) error {
			return m.StartResolvingAll(ctx, ids)
		})
	case "clear":
		return r.do(ctx, func(_ context.Context, m *engine.Manager) error {
			m.ClearAll()
			return nil
		})
	case "status":
		return r.status(ctx)
	case "history":
		return r.printHistory(ctx)
	case "track":
		if len(args) != 1 {
			return fmt.Errorf("usage: track Tracking|Limited|NotTracking|Initializing")
		}
		st, err := parseStatus(args[0])
		if err != nil {
			return err
		}
		r.session.SetStatus(st)
		return nil
	case "fail":
		msg := strings.Join(args, " ")
		if msg == "" {
			msg = "AR session failed"
		}
		r.session.Fail(msg)
		return nil
	case "wait":
		return r.wait(ctx, args)
	case "help":
		fmt.Fprintln(r.out, "commands: place name cancel host resolve clear status history track fail wait quit")
		return nil
	case "quit", "exit":
		return errQuit
	}
	return fmt.Errorf("unknown command %q", verb)
}

func (r *repl) do(ctx context.Context, fn func(context.Context, *engine.Manager) error) error {
	var opErr error
	if err := r.runner.Do(ctx, func(ctx context.Context, m *engine.Manager) {
		opErr = fn(ctx, m)
	}); err != nil {
		return err
	}
	return opErr
}

func (r *repl) place(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: place X Y Z [ui] [miss]")
	}
	var xyz [3]float64
	for i := range xyz {
		v, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return fmt.Errorf("coordinate %q: %w", args[i], err)
		}
		xyz[i] = v
	}
	req := engine.PlacementRequest{
		Pose:       anchor.NewPose(xyz[0], xyz[1], xyz[2]),
		SurfaceHit: true,
	}
	for _, flag := range args[3:] {
		switch strings.ToLower(flag) {
		case "ui":
			req.OverUI = true
		case "miss":
			req.SurfaceHit = false
		default:
			return fmt.Errorf("unknown place flag %q", flag)
		}
	}

	err := r.do(ctx, func(_ context.Context, m *engine.Manager) error {
		_, err := m.HandlePlacement(req)
		return err
	})
	if engine.IsPlacementRejected(err) {
		slog.Debug("placement dropped", "error", err)
		return nil
	}
	return err
}

func (r *repl) status(ctx context.Context) error {
	var (
		records  []anchor.Record
		resolved []engine.Resolution
		naming   anchor.ID
	)
	if err := r.runner.Do(ctx, func(_ context.Context, m *engine.Manager) {
		records = m.Records()
		resolved = m.Resolved()
		naming, _ = m.Naming()
	}); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "tracking: %s\n", r.session.Status())
	if len(records) == 0 && len(resolved) == 0 {
		fmt.Fprintln(r.out, "no anchors")
		return nil
	}
	for _, rec := range records {
		line := fmt.Sprintf("#%d %-12s %-12s %s", rec.ID, rec.Name, rec.Status, rec.Pose)
		if rec.ID == naming {
			line += " (awaiting name)"
		}
		if rec.CloudID != "" {
			line += " cloud_id=" + rec.CloudID
		}
		if rec.FailureReason != "" {
			line += " reason=" + rec.FailureReason
		}
		fmt.Fprintln(r.out, line)
	}
	for _, res := range resolved {
		line := fmt.Sprintf("%s %s", res.CloudID, res.Status)
		if res.Label != "" {
			line += fmt.Sprintf(" label=%q", res.Label)
		}
		if res.Reason != "" {
			line += " reason=" + res.Reason
		}
		fmt.Fprintln(r.out, line)
	}
	return nil
}

func (r *repl) printHistory(ctx context.Context) error {
	entries, err := r.history.LoadHistory(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(r.out, "history is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(r.out, "%s  %-20s %s\n", e.CreatedAt.Format(time.RFC3339), e.Name, e.CloudID)
	}
	return nil
}

// wait polls once per tick until no host or resolve work remains.
func (r *repl) wait(ctx context.Context, args []string) error {
	timeout := DefaultWaitTimeout
	if len(args) > 0 {
		d, err := time.ParseDuration(args[0])
		if err != nil {
			return err
		}
		timeout = d
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		var busy bool
		if err := r.runner.Do(ctx, func(_ context.Context, m *engine.Manager) {
			busy = m.HostInFlight() || m.ResolveInFlight()
		}); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("still busy after %s", timeout)
			}
			return err
		}
		if !busy {
			return nil
		}
	}
}

func parseStatus(s string) (arsession.Status, error) {
	for _, st := range []arsession.Status{
		arsession.StatusTracking,
		arsession.StatusLimited,
		arsession.StatusNotTracking,
		arsession.StatusInitializing,
	} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown tracking status %q", s)
}
