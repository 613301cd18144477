// Package scene holds the obstacle world the flow field is baked against.
package scene

import (
	"fmt"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flowfield/components"
	"github.com/pthm-cable/flowfield/config"
	"github.com/pthm-cable/flowfield/systems"
)

// Scene is an ECS world of obstacle entities.
type Scene struct {
	world *ecs.World

	sphereMapper  *ecs.Map2[components.Transform, components.SphereCollider]
	boxMapper     *ecs.Map2[components.Transform, components.BoxCollider]
	terrainMapper *ecs.Map2[components.Transform, components.TerrainCollider]

	sphereFilter  *ecs.Filter2[components.Transform, components.SphereCollider]
	boxFilter     *ecs.Filter2[components.Transform, components.BoxCollider]
	terrainFilter *ecs.Filter2[components.Transform, components.TerrainCollider]

	count int
}

// New creates an empty scene.
func New() *Scene {
	world := ecs.NewWorld()
	return &Scene{
		world:         world,
		sphereMapper:  ecs.NewMap2[components.Transform, components.SphereCollider](world),
		boxMapper:     ecs.NewMap2[components.Transform, components.BoxCollider](world),
		terrainMapper: ecs.NewMap2[components.Transform, components.TerrainCollider](world),
		sphereFilter:  ecs.NewFilter2[components.Transform, components.SphereCollider](world),
		boxFilter:     ecs.NewFilter2[components.Transform, components.BoxCollider](world),
		terrainFilter: ecs.NewFilter2[components.Transform, components.TerrainCollider](world),
	}
}

// Load builds a scene from config, generating terrain as needed.
func Load(cfg config.SceneConfig) (*Scene, error) {
	s := New()
	for _, sp := range cfg.Spheres {
		s.AddSphere(config.Vec3(sp.Center), sp.Radius)
	}
	for _, b := range cfg.Boxes {
		s.AddBox(components.Transform{
			Position:    config.Vec3(b.Center),
			Orientation: config.Quat(b.Orientation),
		}, config.Vec3(b.HalfExtents))
	}
	for i, t := range cfg.Terrains {
		field, err := systems.GenerateHeightfield(t.Cols, t.Rows, config.Vec3(t.Origin), config.Vec3(t.Size), t.Seed, t.Noise.NoiseParams())
		if err != nil {
			return nil, fmt.Errorf("terrain %d: %w", i, err)
		}
		s.AddTerrain(field)
	}
	return s, nil
}

// AddSphere places a solid ball.
func (s *Scene) AddSphere(center r3.Vec, radius float64) ecs.Entity {
	s.count++
	return s.sphereMapper.NewEntity(
		&components.Transform{Position: center},
		&components.SphereCollider{Radius: radius},
	)
}

// AddBox places a solid oriented box.
func (s *Scene) AddBox(t components.Transform, halfExtents r3.Vec) ecs.Entity {
	s.count++
	return s.boxMapper.NewEntity(&t, &components.BoxCollider{HalfExtents: halfExtents})
}

// AddTerrain places a height field.
func (s *Scene) AddTerrain(field *systems.Heightfield) ecs.Entity {
	s.count++
	return s.terrainMapper.NewEntity(
		&components.Transform{Position: field.Origin()},
		&components.TerrainCollider{Field: field},
	)
}

// Remove deletes an obstacle entity.
func (s *Scene) Remove(e ecs.Entity) {
	if !s.world.Alive(e) {
		return
	}
	s.world.RemoveEntity(e)
	s.count--
}

// Len returns the number of obstacle entities.
func (s *Scene) Len() int { return s.count }

// Obstacles snapshots every entity as an obstacle with its bounds.
func (s *Scene) Obstacles() ([]systems.Obstacle, []systems.AABB) {
	obstacles := make([]systems.Obstacle, 0, s.count)
	bounds := make([]systems.AABB, 0, s.count)

	query := s.sphereFilter.Query()
	for query.Next() {
		t, c := query.Get()
		sphere := c.Sphere(*t)
		obstacles = append(obstacles, systems.SolidObstacle(sphere))
		bounds = append(bounds, sphere.Bounds())
	}

	boxQuery := s.boxFilter.Query()
	for boxQuery.Next() {
		t, c := boxQuery.Get()
		box := c.Box(*t)
		obstacles = append(obstacles, systems.SolidObstacle(box))
		bounds = append(bounds, box.Bounds())
	}

	terrainQuery := s.terrainFilter.Query()
	for terrainQuery.Next() {
		_, c := terrainQuery.Get()
		if c.Field == nil {
			continue
		}
		obstacles = append(obstacles, systems.TerrainObstacle(c.Field))
		bounds = append(bounds, c.Field.Bounds())
	}

	return obstacles, bounds
}

// Index builds a spatial grid over the current obstacles. The grid is a
// snapshot; later scene edits need a new index.
func (s *Scene) Index(cellSize float64, maxResults int) (*systems.SpatialGrid, error) {
	grid, err := systems.NewSpatialGrid(cellSize, maxResults)
	if err != nil {
		return nil, err
	}
	obstacles, bounds := s.Obstacles()
	for i := range obstacles {
		grid.Insert(obstacles[i], bounds[i])
	}
	return grid, nil
}
