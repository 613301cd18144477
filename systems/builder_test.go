package systems

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestBuildObstacleDueNorth(t *testing.T) {
	const (
		radius = 0.2
		d      = 0.15
	)
	query := fixedQuery{obstacles: []Obstacle{SolidObstacle(offsetSolid{r3.Vec{Z: d}})}}
	b := NewFieldBuilder(query, 4)
	field := &FlowField{}

	stats, err := b.Build(field, unitSurface(), Params{Resolution: 32, Radius: radius})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Cells != 32*32 || stats.ObstacleSamples != 32*32 || stats.EmptyCells != 0 || stats.Degenerate != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}

	strength := 1 - d/radius
	want := r2.Vec{X: 0, Y: -strength}
	raster := field.ExportRaster()
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			v, err := field.Get(x, y)
			if err != nil {
				t.Fatal(err)
			}
			if !approxVec(v, want, 1e-9) {
				t.Fatalf("cell (%d,%d) = %v, want %v", x, y, v, want)
			}
			px := raster[y*32+x]
			if !approx(float64(px.R), v.X+0.5, 1e-6) || !approx(float64(px.G), v.Y+0.5, 1e-6) {
				t.Fatalf("pixel (%d,%d) = %+v, want R,G = direction+0.5", x, y, px)
			}
			if !approxVec(Decode(px), want, 1e-6) {
				t.Fatalf("pixel (%d,%d) decodes to %v", x, y, Decode(px))
			}
		}
	}
}

func TestBuildNoObstaclesIsBias(t *testing.T) {
	bias := r2.Vec{X: 0.1, Y: -0.2}
	b := NewFieldBuilder(nil, 2)
	field := &FlowField{}

	stats, err := b.Build(field, unitSurface(), Params{Resolution: 64, Radius: 1, Bias: bias})
	if err != nil {
		t.Fatal(err)
	}
	if stats.EmptyCells != 64*64 || stats.ObstacleSamples != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if field.Bias() != bias {
		t.Errorf("field bias = %v", field.Bias())
	}
	for i, v := range field.Cells() {
		if v != bias {
			t.Fatalf("cell %d = %v, want %v", i, v, bias)
		}
	}
	px := field.ExportRaster()[0]
	if !approx(float64(px.R), 0.6, 1e-6) || !approx(float64(px.G), 0.3, 1e-6) {
		t.Errorf("neutral pixel = %+v", px)
	}
}

func TestBuildValidation(t *testing.T) {
	b := NewFieldBuilder(nil, 1)
	good := Params{Resolution: 32, Radius: 1}

	tests := []struct {
		name    string
		field   *FlowField
		surface Surface
		params  Params
	}{
		{"nil field", nil, unitSurface(), good},
		{"bad resolution", &FlowField{}, unitSurface(), Params{Resolution: 33, Radius: 1}},
		{"zero radius", &FlowField{}, unitSurface(), Params{Resolution: 32}},
		{"negative blur", &FlowField{}, unitSurface(), Params{Resolution: 32, Radius: 1, BlurSize: -2}},
		{"flat surface", &FlowField{}, Surface{Width: 1, Pose: IdentityPose()}, good},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := b.Build(tc.field, tc.surface, tc.params); !errors.Is(err, ErrPrecondition) {
				t.Fatalf("expected ErrPrecondition, got %v", err)
			}
		})
	}
}

func sphereGrid(t *testing.T) *SpatialGrid {
	t.Helper()
	g, err := NewSpatialGrid(0.25, 0)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []Sphere{
		{Center: r3.Vec{X: -0.2, Z: 0.1}, Radius: 0.1},
		{Center: r3.Vec{X: 0.25, Z: -0.3}, Radius: 0.05},
	} {
		g.Insert(SolidObstacle(s), s.Bounds())
	}
	return g
}

func TestBuildWorkerCountDoesNotMatter(t *testing.T) {
	p := Params{Resolution: 64, Radius: 0.2, Bias: r2.Vec{X: 0.05}}
	g := sphereGrid(t)

	serial := &FlowField{}
	if _, err := NewFieldBuilder(g, 1).Build(serial, unitSurface(), p); err != nil {
		t.Fatal(err)
	}
	parallel := &FlowField{}
	stats, err := NewFieldBuilder(g, 7).Build(parallel, unitSurface(), p)
	if err != nil {
		t.Fatal(err)
	}
	if stats.ObstacleSamples == 0 {
		t.Fatal("expected obstacles to be found")
	}
	for i := range serial.Cells() {
		if serial.Cells()[i] != parallel.Cells()[i] {
			t.Fatalf("cell %d differs: %v vs %v", i, serial.Cells()[i], parallel.Cells()[i])
		}
	}
}

func TestBuildAppliesBlur(t *testing.T) {
	g := sphereGrid(t)
	b := NewFieldBuilder(g, 3)

	raw := &FlowField{}
	if _, err := b.Build(raw, unitSurface(), Params{Resolution: 32, Radius: 0.2}); err != nil {
		t.Fatal(err)
	}
	want, err := Blur(raw, 2)
	if err != nil {
		t.Fatal(err)
	}

	blurred := &FlowField{}
	stats, err := b.Build(blurred, unitSurface(), Params{Resolution: 32, Radius: 0.2, BlurSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalDuration < stats.BlurDuration {
		t.Errorf("total duration shorter than blur phase: %+v", stats)
	}
	for i := range want.Cells() {
		if !approxVec(blurred.Cells()[i], want.Cells()[i], 1e-12) {
			t.Fatalf("cell %d = %v, want %v", i, blurred.Cells()[i], want.Cells()[i])
		}
	}
}

func TestBuildReusesFieldAcrossResolutions(t *testing.T) {
	b := NewFieldBuilder(sphereGrid(t), 2)
	field := &FlowField{}
	if _, err := b.Build(field, unitSurface(), Params{Resolution: 32, Radius: 0.2}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(field, unitSurface(), Params{Resolution: 64, Radius: 0.2}); err != nil {
		t.Fatal(err)
	}
	if _, err := field.Get(63, 63); err != nil {
		t.Fatalf("index 63 after rebuild: %v", err)
	}

	fresh := &FlowField{}
	if _, err := NewFieldBuilder(sphereGrid(t), 1).Build(fresh, unitSurface(), Params{Resolution: 64, Radius: 0.2}); err != nil {
		t.Fatal(err)
	}
	for i := range fresh.Cells() {
		if fresh.Cells()[i] != field.Cells()[i] {
			t.Fatalf("cell %d carries data from the previous build", i)
		}
	}
}
