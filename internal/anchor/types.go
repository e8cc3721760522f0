package anchor

import (
	"fmt"
	"math"
	"time"
)

// ID is the 1-based placement-order index of an anchor record.
// Assigned once at placement; never renumbered.
type ID int

// Status is the lifecycle status of a placed anchor.
type Status string

const (
	StatusPlaced       Status = "Placed"
	StatusAwaitingName Status = "AwaitingName"
	StatusHosting      Status = "Hosting"
	StatusHosted       Status = "Hosted"
	StatusFailed       Status = "Failed"
)

// Terminal reports whether the status ends the hosting lifecycle.
func (s Status) Terminal() bool {
	return s == StatusHosted || s == StatusFailed
}

// Handle is an opaque anchor handle issued by the AR subsystem.
type Handle string

// Vec3 is a position in session space, in meters.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Quat is a rotation quaternion.
type Quat struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
	W float64 `json:"w" yaml:"w"`
}

// Identity is the zero rotation.
var Identity = Quat{W: 1}

// Pose is a 6-DOF transform.
type Pose struct {
	Position Vec3 `json:"position" yaml:"position"`
	Rotation Quat `json:"rotation" yaml:"rotation"`
}

// NewPose returns a pose at the given position with identity rotation.
func NewPose(x, y, z float64) Pose {
	return Pose{Position: Vec3{X: x, Y: y, Z: z}, Rotation: Identity}
}

// Valid reports whether every component is finite and the rotation is
// not degenerate.
func (p Pose) Valid() bool {
	comps := []float64{
		p.Position.X, p.Position.Y, p.Position.Z,
		p.Rotation.X, p.Rotation.Y, p.Rotation.Z, p.Rotation.W,
	}
	for _, c := range comps {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	r := p.Rotation
	return r.X*r.X+r.Y*r.Y+r.Z*r.Z+r.W*r.W > 1e-12
}

// String renders the pose position for status text.
func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.3f)", p.Position.X, p.Position.Y, p.Position.Z)
}

// Artifacts are the presentation handles rendered for a record.
type Artifacts struct {
	Object    string `json:"object"`
	Indicator string `json:"indicator"`
}

// Record is one placed anchor.
type Record struct {
	ID            ID        `json:"id"`
	Name          string    `json:"name"`
	Pose          Pose      `json:"pose"`
	Status        Status    `json:"status"`
	CloudID       string    `json:"cloud_id,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Handle        Handle    `json:"handle"`
	Artifacts     Artifacts `json:"artifacts"`
}

// HistoryEntry is a persisted record of a successfully hosted anchor.
type HistoryEntry struct {
	CloudID   string    `json:"cloud_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
