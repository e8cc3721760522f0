package anchor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AddAssignsPlacementOrder(t *testing.T) {
	s := NewStore()

	for i := 1; i <= 3; i++ {
		rec := s.Add(NewPose(float64(i), 0, 0), Handle("h"))
		assert.Equal(t, ID(i), rec.ID)
		assert.Equal(t, StatusPlaced, rec.Status)
		assert.Equal(t, i, s.Len())
	}
}

func TestStore_RemoveKeepsSurvivingIDs(t *testing.T) {
	s := NewStore()
	s.Add(NewPose(1, 0, 0), "h1")
	s.Add(NewPose(2, 0, 0), "h2")
	s.Add(NewPose(3, 0, 0), "h3")

	require.True(t, s.Remove(1))

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, ID(2), all[0].ID)
	assert.Equal(t, ID(3), all[1].ID)
	assert.Equal(t, "Anchor_3", DefaultName(all[1].ID))

	// Removal never frees an index for reuse.
	rec := s.Add(NewPose(4, 0, 0), "h4")
	assert.Equal(t, ID(4), rec.ID)
}

func TestStore_RemoveDropsArtifacts(t *testing.T) {
	s := NewStore()
	rec := s.Add(NewPose(0, 0, 0), "h")
	assert.Equal(t, "anchor-1/object", rec.Artifacts.Object)
	assert.Equal(t, "anchor-1/indicator", rec.Artifacts.Indicator)

	require.True(t, s.Remove(rec.ID))
	_, ok := s.Get(rec.ID)
	assert.False(t, ok)
	assert.False(t, s.Remove(rec.ID))
}

func TestStore_RollbackRestoresPriorState(t *testing.T) {
	s := NewStore()
	s.Add(NewPose(1, 0, 0), "h1")
	before := s.All()
	nextBefore := s.NextID()

	rec := s.Add(NewPose(2, 0, 0), "h2")
	require.True(t, s.Rollback(rec.ID))

	assert.Equal(t, before, s.All())
	assert.Equal(t, nextBefore, s.NextID())
}

func TestStore_RollbackRefusesOlderRecords(t *testing.T) {
	s := NewStore()
	first := s.Add(NewPose(1, 0, 0), "h1")
	s.Add(NewPose(2, 0, 0), "h2")

	assert.False(t, s.Rollback(first.ID))
	assert.Equal(t, 2, s.Len())
}

func TestStore_UpdateAndCount(t *testing.T) {
	s := NewStore()
	a := s.Add(NewPose(1, 0, 0), "h1")
	b := s.Add(NewPose(2, 0, 0), "h2")
	s.Add(NewPose(3, 0, 0), "h3")

	require.True(t, s.Update(a.ID, func(r *Record) { r.Status = StatusHosted }))
	require.True(t, s.Update(b.ID, func(r *Record) { r.Status = StatusFailed }))
	assert.False(t, s.Update(99, func(r *Record) {}))

	assert.Equal(t, 3, s.Count())
	assert.Equal(t, 2, s.Count(StatusHosted, StatusFailed))
	assert.Equal(t, 1, s.Count(StatusPlaced))

	placed := s.WithStatus(StatusPlaced)
	require.Len(t, placed, 1)
	assert.Equal(t, ID(3), placed[0].ID)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore()
	rec := s.Add(NewPose(1, 0, 0), "h1")

	got, ok := s.Get(rec.ID)
	require.True(t, ok)
	got.Name = "mutated"

	again, _ := s.Get(rec.ID)
	assert.Equal(t, "", again.Name)
}

func TestStore_Reset(t *testing.T) {
	s := NewStore()
	s.Add(NewPose(1, 0, 0), "h1")
	s.Add(NewPose(2, 0, 0), "h2")

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, ID(1), s.NextID())
}

func TestPose_Valid(t *testing.T) {
	tests := []struct {
		name string
		pose Pose
		want bool
	}{
		{"identity", NewPose(0, 0, 0), true},
		{"nan position", NewPose(math.NaN(), 0, 0), false},
		{"inf position", NewPose(0, math.Inf(1), 0), false},
		{"zero rotation", Pose{Position: Vec3{X: 1}}, false},
		{"rotated", Pose{Rotation: Quat{Y: 0.7071, W: 0.7071}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pose.Valid())
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusHosted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusHosting.Terminal())
	assert.False(t, StatusPlaced.Terminal())
}
