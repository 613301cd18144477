package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

const eps = 1e-9

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func approxVec(a, b r2.Vec, tol float64) bool {
	return approx(a.X, b.X, tol) && approx(a.Y, b.Y, tol)
}

// fixedSolid always reports the same closest point.
type fixedSolid struct {
	closest r3.Vec
}

func (s fixedSolid) ClosestPoint(r3.Vec) r3.Vec { return s.closest }

// offsetSolid reports a closest point at a fixed offset from every query.
type offsetSolid struct {
	offset r3.Vec
}

func (s offsetSolid) ClosestPoint(q r3.Vec) r3.Vec { return r3.Add(q, s.offset) }

// flatTerrain has a constant height and normal.
type flatTerrain struct {
	height float64
	normal r3.Vec
	origin r3.Vec
	size   r3.Vec
}

func (t flatTerrain) HeightAt(float64, float64) float64 { return t.height }
func (t flatTerrain) NormalAt(float64, float64) r3.Vec  { return t.normal }
func (t flatTerrain) Origin() r3.Vec                    { return t.origin }
func (t flatTerrain) Size() r3.Vec                      { return t.size }

// fixedQuery returns the same obstacles for every sample.
type fixedQuery struct {
	obstacles []Obstacle
}

func (q fixedQuery) QueryNearby(dst []Obstacle, _ r3.Vec, _ float64) []Obstacle {
	return append(dst, q.obstacles...)
}

func unitSurface() Surface {
	return Surface{Width: 1, Depth: 1, Pose: IdentityPose()}
}
