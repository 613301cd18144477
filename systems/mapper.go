package systems

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose places the surface in the world.
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number
}

// IdentityPose is a pose at the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Orientation: quat.Number{Real: 1}}
}

// Surface describes the plane the flow field covers. Width runs along the
// local X axis and Depth along local Z; the grid is centered on Pose.Position.
type Surface struct {
	Width float64
	Depth float64
	Pose  Pose
}

// Validate checks the surface is usable for a build.
func (s Surface) Validate() error {
	if !(s.Width > 0) || math.IsInf(s.Width, 0) {
		return preconditionf("surface width %v must be positive", s.Width)
	}
	if !(s.Depth > 0) || math.IsInf(s.Depth, 0) {
		return preconditionf("surface depth %v must be positive", s.Depth)
	}
	if quat.Abs(s.Pose.Orientation) == 0 {
		return preconditionf("surface orientation is the zero quaternion")
	}
	return nil
}

// GridToWorld maps grid indices to a world-space sample point. The grid origin
// sits at the surface center, so changing resolution resamples features
// without shifting them.
func GridToWorld(x, y, resolution int, s Surface) r3.Vec {
	res := float64(resolution)
	local := r3.Vec{
		X: float64(x)*s.Width/res - s.Width/2,
		Y: 0,
		Z: float64(y)*s.Depth/res - s.Depth/2,
	}
	rot := unitRotation(s.Pose.Orientation)
	return r3.Add(rot.Rotate(local), s.Pose.Position)
}

// WorldToGrid is the inverse of GridToWorld. It returns fractional grid
// coordinates; points off the plane are projected along its normal.
func WorldToGrid(p r3.Vec, resolution int, s Surface) (gx, gy float64) {
	res := float64(resolution)
	rot := inverse(unitRotation(s.Pose.Orientation))
	local := rot.Rotate(r3.Sub(p, s.Pose.Position))
	gx = (local.X + s.Width/2) * res / s.Width
	gy = (local.Z + s.Depth/2) * res / s.Depth
	return gx, gy
}
