package scene

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flowfield/components"
	"github.com/pthm-cable/flowfield/config"
	"github.com/pthm-cable/flowfield/systems"
)

func TestAddAndRemove(t *testing.T) {
	s := New()
	a := s.AddSphere(r3.Vec{X: 1}, 0.5)
	s.AddBox(components.Transform{Position: r3.Vec{Z: 3}}, r3.Vec{X: 1, Y: 1, Z: 1})
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}

	s.Remove(a)
	s.Remove(a)
	if s.Len() != 1 {
		t.Fatalf("Len after remove = %d, want 1", s.Len())
	}
	obstacles, bounds := s.Obstacles()
	if len(obstacles) != 1 || len(bounds) != 1 {
		t.Fatalf("got %d obstacles, %d bounds", len(obstacles), len(bounds))
	}
	if _, ok := obstacles[0].Solid.(systems.Box); !ok {
		t.Errorf("remaining obstacle is %T, want systems.Box", obstacles[0].Solid)
	}
}

func TestBoxZeroOrientationIsIdentity(t *testing.T) {
	s := New()
	s.AddBox(components.Transform{}, r3.Vec{X: 1, Y: 2, Z: 3})
	obstacles, bounds := s.Obstacles()
	box := obstacles[0].Solid.(systems.Box)
	if box.Orientation != (quat.Number{Real: 1}) {
		t.Errorf("orientation = %v", box.Orientation)
	}
	if bounds[0].Max != (r3.Vec{X: 1, Y: 2, Z: 3}) {
		t.Errorf("bounds = %+v", bounds[0])
	}
}

func TestIndexFindsObstacles(t *testing.T) {
	s := New()
	s.AddSphere(r3.Vec{X: 5, Z: 5}, 1)
	field, err := systems.NewHeightfield(2, 2, []float32{0, 0, 0, 0}, r3.Vec{X: -10, Z: -10}, r3.Vec{X: 4, Y: 1, Z: 4})
	if err != nil {
		t.Fatal(err)
	}
	s.AddTerrain(field)

	grid, err := s.Index(2, 5)
	if err != nil {
		t.Fatal(err)
	}
	if grid.Len() != 2 {
		t.Fatalf("grid holds %d obstacles", grid.Len())
	}

	near := grid.QueryNearby(nil, r3.Vec{X: 5, Z: 6.5}, 1)
	if len(near) != 1 || near[0].Kind != systems.ObstacleSolid {
		t.Errorf("near sphere: %v", near)
	}
	land := grid.QueryNearby(nil, r3.Vec{X: -8, Y: 0.5, Z: -8}, 1)
	if len(land) != 1 || land[0].Kind != systems.ObstacleTerrain {
		t.Errorf("over terrain: %v", land)
	}
	if none := grid.QueryNearby(nil, r3.Vec{X: 30}, 1); len(none) != 0 {
		t.Errorf("open water: %v", none)
	}
}

func TestLoadFromConfig(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	s, err := Load(cfg.Scene)
	if err != nil {
		t.Fatal(err)
	}
	want := len(cfg.Scene.Spheres) + len(cfg.Scene.Boxes) + len(cfg.Scene.Terrains)
	if s.Len() != want {
		t.Fatalf("Len = %d, want %d", s.Len(), want)
	}

	// The default box is turned 45 degrees; its footprint grows accordingly.
	obstacles, bounds := s.Obstacles()
	for i, o := range obstacles {
		box, ok := o.Solid.(systems.Box)
		if !ok {
			continue
		}
		width := bounds[i].Max.X - bounds[i].Min.X
		hx, hz := box.HalfExtents.X, box.HalfExtents.Z
		want := 2 * (hx + hz) / math.Sqrt2
		if math.Abs(width-want) > 1e-5 {
			t.Errorf("box footprint width %v, want %v", width, want)
		}
	}
}
