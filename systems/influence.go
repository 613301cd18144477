package systems

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ObstacleKind selects the influence model applied to an obstacle.
// The set is closed: a new kind needs a new case in Influence.
type ObstacleKind uint8

const (
	ObstacleSolid   ObstacleKind = iota // Closest-point distance falloff
	ObstacleTerrain                     // Shoreline depth falloff along the terrain normal
)

func (k ObstacleKind) String() string {
	switch k {
	case ObstacleSolid:
		return "solid"
	case ObstacleTerrain:
		return "terrain"
	default:
		return fmt.Sprintf("ObstacleKind(%d)", uint8(k))
	}
}

// Solid is any shape that can report its closest surface point.
type Solid interface {
	ClosestPoint(query r3.Vec) r3.Vec
}

// Terrain is a height field defined over a rectangular footprint.
// NormalAt takes coordinates normalized to the footprint, [0,1] on each axis.
type Terrain interface {
	HeightAt(x, z float64) float64
	NormalAt(u, v float64) r3.Vec
	Origin() r3.Vec
	Size() r3.Vec
}

// Obstacle is a borrowed handle to something that deflects the flow.
// Exactly one of Solid or Terrain is set, matching Kind.
type Obstacle struct {
	Kind    ObstacleKind
	Solid   Solid
	Terrain Terrain
}

// SolidObstacle wraps a solid shape.
func SolidObstacle(s Solid) Obstacle {
	return Obstacle{Kind: ObstacleSolid, Solid: s}
}

// TerrainObstacle wraps a height field.
func TerrainObstacle(t Terrain) Obstacle {
	return Obstacle{Kind: ObstacleTerrain, Terrain: t}
}

// Center is the neutral field value added before bias.
var Center = r2.Vec{X: 0.5, Y: 0.5}

// Resolve computes the field value at a sample point: the mean obstacle
// contribution, recentered on Center, plus bias. With no obstacles the
// result is exactly Center + bias.
func Resolve(point r3.Vec, obstacles []Obstacle, radius float64, bias r2.Vec) r2.Vec {
	mean, _ := Influence(point, obstacles, radius)
	return r2.Add(r2.Add(mean, Center), bias)
}

// Influence returns the mean contribution of the obstacles at point in the
// XZ plane, and how many obstacles fell back to a zero direction because
// their horizontal offset had no length. Obstacle order does not matter.
func Influence(point r3.Vec, obstacles []Obstacle, radius float64) (r2.Vec, int) {
	if len(obstacles) == 0 {
		return r2.Vec{}, 0
	}

	var sum r2.Vec
	degenerate := 0
	for _, o := range obstacles {
		var c r2.Vec
		var ok bool
		switch o.Kind {
		case ObstacleSolid:
			c, ok = solidInfluence(point, o.Solid, radius)
		case ObstacleTerrain:
			c, ok = terrainInfluence(point, o.Terrain, radius)
		default:
			panic(fmt.Sprintf("systems: unhandled obstacle kind %v", o.Kind))
		}
		if !ok {
			degenerate++
		}
		sum = r2.Add(sum, c)
	}
	return r2.Scale(1/float64(len(obstacles)), sum), degenerate
}

// solidInfluence pushes away from the closest point, full strength at
// contact and zero at radius. A sample on the surface (or directly above or
// below the closest point) has no horizontal direction and contributes zero.
func solidInfluence(point r3.Vec, s Solid, radius float64) (r2.Vec, bool) {
	closest := s.ClosestPoint(point)
	dist := r3.Norm(r3.Sub(point, closest))
	strength := 1 - clamp01(dist/radius)

	dir := r2.Vec{X: point.X - closest.X, Y: point.Z - closest.Z}
	return scaledUnit(dir, strength)
}

// terrainInfluence follows the horizontal part of the terrain normal. Only
// the vertical gap between the sample and the terrain below it counts as
// distance; a sample under the terrain surface is treated as on the shoreline.
func terrainInfluence(point r3.Vec, t Terrain, radius float64) (r2.Vec, bool) {
	terrainY := t.HeightAt(point.X, point.Z)
	dy := terrainY - point.Y
	if dy > 0 {
		dy = 0
	}
	strength := 1 - clamp01(math.Abs(dy)/radius)

	origin, size := t.Origin(), t.Size()
	u := (point.X - origin.X) / size.X
	v := (point.Z - origin.Z) / size.Z
	n := t.NormalAt(u, v)

	return scaledUnit(r2.Vec{X: n.X, Y: n.Z}, strength)
}

// scaledUnit normalizes dir and scales it. Zero-length input yields the zero
// vector and false.
func scaledUnit(dir r2.Vec, strength float64) (r2.Vec, bool) {
	n := r2.Norm(dir)
	if n == 0 || math.IsNaN(n) {
		return r2.Vec{}, false
	}
	return r2.Scale(strength/n, dir), true
}
