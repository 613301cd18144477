package systems

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

func vecNear(a, b r3.Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= tol
}

func TestSphereClosestPoint(t *testing.T) {
	s := Sphere{Center: r3.Vec{X: 1, Y: 2, Z: 3}, Radius: 2}
	tests := []struct {
		name  string
		query r3.Vec
		want  r3.Vec
	}{
		{"outside on x", r3.Vec{X: 6, Y: 2, Z: 3}, r3.Vec{X: 3, Y: 2, Z: 3}},
		{"outside below", r3.Vec{X: 1, Y: -5, Z: 3}, r3.Vec{X: 1, Y: 0, Z: 3}},
		{"inside", r3.Vec{X: 1.5, Y: 2, Z: 3}, r3.Vec{X: 1.5, Y: 2, Z: 3}},
		{"center", r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 1, Y: 2, Z: 3}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.ClosestPoint(tc.query); !vecNear(got, tc.want, 1e-12) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBoxClosestPoint(t *testing.T) {
	half := math.Pi / 8 // 45 degrees about Y
	tests := []struct {
		name  string
		box   Box
		query r3.Vec
		want  r3.Vec
	}{
		{
			name:  "axis aligned face",
			box:   Box{HalfExtents: r3.Vec{X: 1, Y: 1, Z: 1}, Orientation: quat.Number{Real: 1}},
			query: r3.Vec{X: 5, Y: 0.5, Z: 0},
			want:  r3.Vec{X: 1, Y: 0.5, Z: 0},
		},
		{
			name:  "axis aligned corner",
			box:   Box{Center: r3.Vec{X: 10}, HalfExtents: r3.Vec{X: 1, Y: 2, Z: 3}, Orientation: quat.Number{Real: 1}},
			query: r3.Vec{X: 20, Y: 20, Z: -20},
			want:  r3.Vec{X: 11, Y: 2, Z: -3},
		},
		{
			name:  "inside",
			box:   Box{HalfExtents: r3.Vec{X: 1, Y: 1, Z: 1}, Orientation: quat.Number{Real: 1}},
			query: r3.Vec{X: 0.2, Y: -0.3, Z: 0.9},
			want:  r3.Vec{X: 0.2, Y: -0.3, Z: 0.9},
		},
		{
			name:  "rotated corner",
			box:   Box{HalfExtents: r3.Vec{X: 1, Y: 1, Z: 1}, Orientation: quat.Number{Real: math.Cos(half), Jmag: math.Sin(half)}},
			query: r3.Vec{X: 5},
			want:  r3.Vec{X: math.Sqrt2},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.box.ClosestPoint(tc.query); !vecNear(got, tc.want, 1e-9) {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBoxBoundsRotated(t *testing.T) {
	half := math.Pi / 8
	b := Box{
		Center:      r3.Vec{Y: 1},
		HalfExtents: r3.Vec{X: 1, Y: 0.5, Z: 1},
		Orientation: quat.Number{Real: math.Cos(half), Jmag: math.Sin(half)},
	}
	got := b.Bounds()
	want := AABB{
		Min: r3.Vec{X: -math.Sqrt2, Y: 0.5, Z: -math.Sqrt2},
		Max: r3.Vec{X: math.Sqrt2, Y: 1.5, Z: math.Sqrt2},
	}
	if !vecNear(got.Min, want.Min, 1e-9) || !vecNear(got.Max, want.Max, 1e-9) {
		t.Errorf("Bounds = %+v, want %+v", got, want)
	}
}

func TestAABBDistanceSq(t *testing.T) {
	b := AABB{Min: r3.Vec{X: -1, Y: -1, Z: -1}, Max: r3.Vec{X: 1, Y: 1, Z: 1}}
	tests := []struct {
		p    r3.Vec
		want float64
	}{
		{r3.Vec{}, 0},
		{r3.Vec{X: 3}, 4},
		{r3.Vec{X: 2, Y: 2, Z: 2}, 3},
		{r3.Vec{X: 0.5, Z: -4}, 9},
	}
	for _, tc := range tests {
		if got := b.DistanceSq(tc.p); !approx(got, tc.want, eps) {
			t.Errorf("DistanceSq(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}
