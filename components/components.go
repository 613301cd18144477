// Package components defines ECS components for obstacle entities.
package components

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flowfield/systems"
)

// Transform places an entity in the world.
type Transform struct {
	Position    r3.Vec
	Orientation quat.Number // Unit quaternion; zero is treated as identity
}

// SphereCollider makes an entity a solid ball centered on its position.
type SphereCollider struct {
	Radius float64
}

// BoxCollider makes an entity a solid oriented box centered on its position.
type BoxCollider struct {
	HalfExtents r3.Vec
}

// TerrainCollider attaches a height field. The field carries its own
// footprint, so the entity's Transform is informational only.
type TerrainCollider struct {
	Field *systems.Heightfield
}

// Sphere builds the world-space shape for a sphere entity.
func (c SphereCollider) Sphere(t Transform) systems.Sphere {
	return systems.Sphere{Center: t.Position, Radius: c.Radius}
}

// Box builds the world-space shape for a box entity.
func (c BoxCollider) Box(t Transform) systems.Box {
	o := t.Orientation
	if o == (quat.Number{}) {
		o = quat.Number{Real: 1}
	}
	return systems.Box{Center: t.Position, HalfExtents: c.HalfExtents, Orientation: o}
}
