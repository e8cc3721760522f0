package cli

import (
	"io"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/anchorkeep/internal/anchor"
	"github.com/roach88/anchorkeep/internal/arsession"
	"github.com/roach88/anchorkeep/internal/engine"
)

const hostScript = `place 0 0 -1
place 0 0 -2 ui
name Desk
host
wait 5s
status
quit
`

func TestRunSession_HostsAndRecords(t *testing.T) {
	cfgPath, dbPath := writeFastConfig(t)

	out, err := execute(t, hostScript, "--config", cfgPath, "--db", dbPath, "run", "--session", "s1")
	require.NoError(t, err)

	assert.Contains(t, out, "Session s1.")
	assert.Contains(t, out, "AnchorPlaced #1")
	assert.Contains(t, out, `AnchorNamed #1 "Desk"`)
	assert.Contains(t, out, `AnchorHostProgress #1 "Desk" Hosting`)
	assert.Contains(t, out, `AnchorHostProgress #1 "Desk" Hosted cloud_id=`)
	assert.Contains(t, out, "BatchHostComplete 1/1 hosted")
	assert.NotContains(t, out, "AnchorPlaced #2", "placement over UI is dropped")
	assert.Contains(t, out, "tracking: Tracking")

	out, err = execute(t, "", "--config", cfgPath, "--db", dbPath, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Desk")
	assert.Contains(t, out, "1 of 40 entries")

	out, err = execute(t, "", "--config", cfgPath, "--db", dbPath, "trace", "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Session: s1")
	assert.Contains(t, out, "BatchHostComplete")
	assert.Contains(t, out, "Event log verified")
}

func TestRunSession_JSONEvents(t *testing.T) {
	cfgPath, dbPath := writeFastConfig(t)

	out, err := execute(t, "place 1 2 3\ncancel\nquit\n",
		"--config", cfgPath, "--db", dbPath, "--format", "json", "run", "--session", "s2")
	require.NoError(t, err)

	var kinds []engine.EventKind
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var ev engine.Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev), line)
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []engine.EventKind{engine.EventAnchorPlaced, engine.EventAnchorRemoved}, kinds)
}

func TestRunSession_CommandErrorsKeepSessionAlive(t *testing.T) {
	cfgPath, dbPath := writeFastConfig(t)

	script := "bogus\nname Nope\nplace 1 x 3\nresolve  ,  \ntrack Sideways\nstatus\nquit\n"
	out, err := execute(t, script, "--config", cfgPath, "--db", dbPath, "run")
	require.NoError(t, err)

	assert.Contains(t, out, `error: unknown command "bogus"`)
	assert.Contains(t, out, "error: ")
	assert.Contains(t, out, `unknown tracking status "Sideways"`)
	assert.Contains(t, out, "no anchors")
}

func TestRunSession_FatalSessionReturnsHome(t *testing.T) {
	cfgPath, dbPath := writeFastConfig(t)

	// The pipe stays open so the session ends by returning home, not EOF.
	in, w := io.Pipe()
	t.Cleanup(func() { w.Close() })
	go func() { _, _ = io.WriteString(w, "fail camera lost\n") }()

	out, err := executeIn(t, in, "--config", cfgPath, "--db", dbPath, "run")
	require.NoError(t, err)

	assert.Contains(t, out, "SessionError: camera lost")
	assert.Contains(t, out, "AR session lost. Returning home.")
}

func TestRunSession_BadDatabasePath(t *testing.T) {
	cfgPath, _ := writeFastConfig(t)

	_, err := execute(t, "quit\n", "--config", cfgPath, "--db", t.TempDir()+"/missing/dir/anchors.db", "run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestFormatEvent(t *testing.T) {
	pose := anchor.NewPose(1, 2, 3)
	tests := []struct {
		name string
		ev   engine.Event
		want string
	}{
		{
			name: "placed",
			ev:   engine.Event{Seq: 1, Kind: engine.EventAnchorPlaced, Anchor: 4, Pose: &pose},
			want: "[1] AnchorPlaced #4 at " + pose.String() + ": enter a name",
		},
		{
			name: "host failed",
			ev:   engine.Event{Seq: 2, Kind: engine.EventAnchorHostProgress, Anchor: 4, Name: "A", Status: "Failed", Reason: "ErrorInternal"},
			want: `[2] AnchorHostProgress #4 "A" Failed reason=ErrorInternal`,
		},
		{
			name: "batch",
			ev:   engine.Event{Seq: 3, Kind: engine.EventBatchHostComplete, Success: 2, Total: 3},
			want: "[3] BatchHostComplete 2/3 hosted",
		},
		{
			name: "resolved",
			ev:   engine.Event{Seq: 4, Kind: engine.EventAnchorResolveProgress, CloudID: "c1", Status: "Resolved", Label: "Desk"},
			want: `[4] AnchorResolveProgress c1 Resolved label="Desk"`,
		},
		{
			name: "removed resolution",
			ev:   engine.Event{Seq: 5, Kind: engine.EventAnchorRemoved, CloudID: "c1"},
			want: "[5] AnchorRemoved c1",
		},
		{
			name: "notice",
			ev:   engine.Event{Seq: 6, Kind: engine.EventNotice, Message: "hello"},
			want: "[6] Notice: hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatEvent(tt.ev))
		})
	}
}

func TestParseStatus(t *testing.T) {
	st, err := parseStatus("limited")
	require.NoError(t, err)
	assert.Equal(t, arsession.StatusLimited, st)

	_, err = parseStatus("Error")
	assert.Error(t, err)
}
