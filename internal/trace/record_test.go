package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord("s1", 4, "AnchorNamed", map[string]any{
		"anchor": 1,
		"name":   "Desk",
	})
	require.NoError(t, err)

	assert.Equal(t, "s1", rec.Session)
	assert.Equal(t, int64(4), rec.Seq)
	assert.Equal(t, `{"anchor":1,"name":"Desk"}`, string(rec.Payload))
	assert.Len(t, rec.ID, 64)
}

func TestEventID_Deterministic(t *testing.T) {
	a, err := NewRecord("s1", 1, "Notice", map[string]any{"message": "hi"})
	require.NoError(t, err)
	b, err := NewRecord("s1", 1, "Notice", map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
}

func TestEventID_DependsOnEveryField(t *testing.T) {
	base, err := NewRecord("s1", 1, "Notice", map[string]any{"message": "hi"})
	require.NoError(t, err)

	variants := []struct {
		session string
		seq     int64
		kind    string
		msg     string
	}{
		{"s2", 1, "Notice", "hi"},
		{"s1", 2, "Notice", "hi"},
		{"s1", 1, "SessionError", "hi"},
		{"s1", 1, "Notice", "bye"},
	}
	for _, v := range variants {
		rec, err := NewRecord(v.session, v.seq, v.kind, map[string]any{"message": v.msg})
		require.NoError(t, err)
		assert.NotEqual(t, base.ID, rec.ID, "%+v", v)
	}
}

func TestNewRecord_RejectsFloats(t *testing.T) {
	_, err := NewRecord("s1", 1, "AnchorPlaced", map[string]any{"x": 0.5})
	assert.Error(t, err)
}

func TestMicro(t *testing.T) {
	assert.Equal(t, int64(-1500000), Micro(-1.5))
	assert.Equal(t, int64(333333), Micro(1.0/3))
	assert.InDelta(t, 0.25, FromMicro(Micro(0.25)), 1e-9)
}
