package cli

import (
	"context"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/anchorkeep/internal/store"
	"github.com/roach88/anchorkeep/internal/trace"
)

func seedEvents(t *testing.T, dbPath, session string, kinds ...string) []trace.Record {
	t.Helper()
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	var recs []trace.Record
	for i, kind := range kinds {
		rec, err := trace.NewRecord(session, int64(i+1), kind, map[string]any{"anchor": int64(i + 1)})
		require.NoError(t, err)
		require.NoError(t, st.WriteEvent(context.Background(), rec))
		recs = append(recs, rec)
	}
	return recs
}

func TestTrace_NoSessions(t *testing.T) {
	cfgPath, dbPath := writeFastConfig(t)

	out, err := execute(t, "", "--config", cfgPath, "--db", dbPath, "trace")
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions recorded.")
}

func TestTrace_LatestSessionAndKindFilter(t *testing.T) {
	cfgPath, dbPath := writeFastConfig(t)
	seedEvents(t, dbPath, "old", "AnchorPlaced")
	seedEvents(t, dbPath, "new", "AnchorPlaced", "AnchorNamed", "AnchorPlaced")

	out, err := execute(t, "", "--config", cfgPath, "--db", dbPath, "--format", "json", "trace", "--kind", "AnchorPlaced")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "new", resp.Data.Session)
	require.Len(t, resp.Data.Timeline, 2)
	assert.Equal(t, int64(1), resp.Data.Timeline[0].Seq)
	assert.Equal(t, int64(3), resp.Data.Timeline[1].Seq)
	assert.JSONEq(t, `{"anchor":3}`, string(resp.Data.Timeline[1].Payload))
	assert.Equal(t, 3, resp.Data.Stats.TotalEvents)
	assert.Equal(t, 2, resp.Data.Stats.ByKind["AnchorPlaced"])
}

func TestTrace_ExplicitSession(t *testing.T) {
	cfgPath, dbPath := writeFastConfig(t)
	seedEvents(t, dbPath, "old", "Notice")
	seedEvents(t, dbPath, "new", "AnchorPlaced")

	out, err := execute(t, "", "--config", cfgPath, "--db", dbPath, "trace", "--session", "old", "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "Session: old")
	assert.Contains(t, out, "[1] Notice")
	assert.Contains(t, out, "Event log verified")
}

func TestTraceSessions(t *testing.T) {
	cfgPath, dbPath := writeFastConfig(t)
	seedEvents(t, dbPath, "a", "Notice", "Notice")
	seedEvents(t, dbPath, "b", "Notice")

	out, err := execute(t, "", "--config", cfgPath, "--db", dbPath, "trace", "sessions")
	require.NoError(t, err)
	assert.Contains(t, out, "a  2 events (last seq 2)")
	assert.Contains(t, out, "b  1 events (last seq 1)")
}

func TestVerifyRecords(t *testing.T) {
	good1, err := trace.NewRecord("s", 1, "Notice", map[string]any{"message": "a"})
	require.NoError(t, err)
	good2, err := trace.NewRecord("s", 2, "Notice", map[string]any{"message": "b"})
	require.NoError(t, err)

	assert.Empty(t, verifyRecords([]trace.Record{good1, good2}))

	tampered := good2
	tampered.Payload = []byte(`{"message":"c"}`)
	problems := verifyRecords([]trace.Record{good1, tampered})
	require.Len(t, problems, 1)
	assert.Contains(t, problems[0], "seq 2: id mismatch")

	problems = verifyRecords([]trace.Record{good2, good1})
	assert.Contains(t, problems, "seq 1: not after seq 2")
}
