package systems

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max r3.Vec
}

// DistanceSq returns the squared distance from p to the box, 0 inside.
func (b AABB) DistanceSq(p r3.Vec) float64 {
	dx := axisGap(p.X, b.Min.X, b.Max.X)
	dy := axisGap(p.Y, b.Min.Y, b.Max.Y)
	dz := axisGap(p.Z, b.Min.Z, b.Max.Z)
	return dx*dx + dy*dy + dz*dz
}

func axisGap(v, lo, hi float64) float64 {
	if v < lo {
		return lo - v
	}
	if v > hi {
		return v - hi
	}
	return 0
}

// Bounded is anything with a world-space bounding box.
type Bounded interface {
	Bounds() AABB
}

// Sphere is a solid ball.
type Sphere struct {
	Center r3.Vec
	Radius float64
}

// ClosestPoint returns the nearest point of the ball. Points inside return
// themselves.
func (s Sphere) ClosestPoint(query r3.Vec) r3.Vec {
	d := r3.Sub(query, s.Center)
	n := r3.Norm(d)
	if n <= s.Radius {
		return query
	}
	return r3.Add(s.Center, r3.Scale(s.Radius/n, d))
}

// Bounds implements Bounded.
func (s Sphere) Bounds() AABB {
	r := r3.Vec{X: s.Radius, Y: s.Radius, Z: s.Radius}
	return AABB{Min: r3.Sub(s.Center, r), Max: r3.Add(s.Center, r)}
}

// Box is a solid oriented box.
type Box struct {
	Center      r3.Vec
	HalfExtents r3.Vec
	Orientation quat.Number
}

// ClosestPoint clamps the query into the box's local frame. Points inside
// return themselves.
func (b Box) ClosestPoint(query r3.Vec) r3.Vec {
	rot := unitRotation(b.Orientation)
	local := inverse(rot).Rotate(r3.Sub(query, b.Center))
	local = r3.Vec{
		X: clampFloat(local.X, -b.HalfExtents.X, b.HalfExtents.X),
		Y: clampFloat(local.Y, -b.HalfExtents.Y, b.HalfExtents.Y),
		Z: clampFloat(local.Z, -b.HalfExtents.Z, b.HalfExtents.Z),
	}
	return r3.Add(rot.Rotate(local), b.Center)
}

// Bounds implements Bounded.
func (b Box) Bounds() AABB {
	rot := unitRotation(b.Orientation)
	ax := rot.Rotate(r3.Vec{X: b.HalfExtents.X})
	ay := rot.Rotate(r3.Vec{Y: b.HalfExtents.Y})
	az := rot.Rotate(r3.Vec{Z: b.HalfExtents.Z})
	ext := r3.Vec{
		X: math.Abs(ax.X) + math.Abs(ay.X) + math.Abs(az.X),
		Y: math.Abs(ax.Y) + math.Abs(ay.Y) + math.Abs(az.Y),
		Z: math.Abs(ax.Z) + math.Abs(ay.Z) + math.Abs(az.Z),
	}
	return AABB{Min: r3.Sub(b.Center, ext), Max: r3.Add(b.Center, ext)}
}
