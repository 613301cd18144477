package systems

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestNewFlowFieldResolution(t *testing.T) {
	for _, res := range Resolutions {
		f, err := NewFlowField(res, r2.Vec{})
		if err != nil {
			t.Fatalf("resolution %d: %v", res, err)
		}
		if len(f.Cells()) != res*res {
			t.Errorf("resolution %d: %d cells", res, len(f.Cells()))
		}
	}

	for _, res := range []int{0, -32, 16, 100, 2048} {
		if _, err := NewFlowField(res, r2.Vec{}); !errors.Is(err, ErrPrecondition) {
			t.Errorf("resolution %d: expected ErrPrecondition, got %v", res, err)
		}
	}
}

func TestFlowFieldBounds(t *testing.T) {
	f, err := NewFlowField(32, r2.Vec{})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		x, y int
		ok   bool
	}{
		{"origin", 0, 0, true},
		{"last", 31, 31, true},
		{"x past end", 32, 0, false},
		{"y past end", 0, 32, false},
		{"negative x", -1, 5, false},
		{"negative y", 5, -1, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setErr := f.Set(tc.x, tc.y, r2.Vec{X: 0.25})
			_, getErr := f.Get(tc.x, tc.y)
			if tc.ok {
				if setErr != nil || getErr != nil {
					t.Fatalf("unexpected errors: set=%v get=%v", setErr, getErr)
				}
				return
			}
			if !errors.Is(setErr, ErrIndexOutOfRange) {
				t.Errorf("set: expected ErrIndexOutOfRange, got %v", setErr)
			}
			if !errors.Is(getErr, ErrIndexOutOfRange) {
				t.Errorf("get: expected ErrIndexOutOfRange, got %v", getErr)
			}
		})
	}
}

func TestExportRasterRowMajor(t *testing.T) {
	f, _ := NewFlowField(32, r2.Vec{})
	if err := f.Set(3, 7, r2.Vec{X: 0.25, Y: -0.25}); err != nil {
		t.Fatal(err)
	}
	raster := f.ExportRaster()
	if len(raster) != 32*32 {
		t.Fatalf("raster has %d pixels", len(raster))
	}
	got := raster[7*32+3]
	if got.R != 0.75 || got.G != 0.25 || got.B != 0 || got.A != 1 {
		t.Errorf("pixel (3,7) = %+v", got)
	}
	if other := raster[3*32+7]; other.R != 0.5 || other.G != 0.5 {
		t.Errorf("pixel (7,3) should be neutral, got %+v", other)
	}
}

func TestRebuildDiscardsStaleCells(t *testing.T) {
	f, _ := NewFlowField(32, r2.Vec{})
	stale := r2.Vec{X: 0.4, Y: 0.3}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			if err := f.Set(x, y, stale); err != nil {
				t.Fatal(err)
			}
		}
	}

	if err := f.Rebuild(64, r2.Vec{X: 0.1}); err != nil {
		t.Fatal(err)
	}
	if f.Resolution() != 64 || f.Bias() != (r2.Vec{X: 0.1}) {
		t.Fatalf("rebuild did not apply: res=%d bias=%v", f.Resolution(), f.Bias())
	}
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			v, err := f.Get(x, y)
			if err != nil {
				t.Fatalf("cell (%d,%d): %v", x, y, err)
			}
			if v != (r2.Vec{}) {
				t.Fatalf("cell (%d,%d) holds stale value %v", x, y, v)
			}
		}
	}
}

func TestRebuildInvalidKeepsField(t *testing.T) {
	f, _ := NewFlowField(64, r2.Vec{})
	if err := f.Rebuild(48, r2.Vec{}); !errors.Is(err, ErrPrecondition) {
		t.Fatalf("expected ErrPrecondition, got %v", err)
	}
	if f.Resolution() != 64 || len(f.Cells()) != 64*64 {
		t.Errorf("failed rebuild changed the field: res=%d cells=%d", f.Resolution(), len(f.Cells()))
	}
}

func TestCloneIsDeep(t *testing.T) {
	f, _ := NewFlowField(32, r2.Vec{Y: 1})
	_ = f.Set(1, 1, r2.Vec{X: 1})
	c := f.Clone()
	_ = f.Set(1, 1, r2.Vec{X: 2})

	v, _ := c.Get(1, 1)
	if v != (r2.Vec{X: 1}) {
		t.Errorf("clone shares storage: %v", v)
	}
	if c.Bias() != f.Bias() || c.Resolution() != f.Resolution() {
		t.Errorf("clone lost metadata")
	}
}

func TestSampleBilinear(t *testing.T) {
	f, _ := NewFlowField(32, r2.Vec{})
	_ = f.Set(0, 0, r2.Vec{X: 0})
	_ = f.Set(1, 0, r2.Vec{X: 1})
	_ = f.Set(0, 1, r2.Vec{Y: 1})
	_ = f.Set(1, 1, r2.Vec{X: 1, Y: 1})

	tests := []struct {
		gx, gy float64
		want   r2.Vec
	}{
		{0, 0, r2.Vec{}},
		{0.5, 0, r2.Vec{X: 0.5}},
		{0.5, 0.5, r2.Vec{X: 0.5, Y: 0.5}},
		{-3, -3, r2.Vec{}},
		{40, 40, r2.Vec{}},
		// Non-finite coordinates must not index outside the grid.
		{math.NaN(), 0.5, r2.Vec{Y: 0.5}},
		{0.5, math.NaN(), r2.Vec{X: 0.5}},
		{math.NaN(), math.NaN(), r2.Vec{}},
		{math.Inf(1), math.Inf(-1), r2.Vec{}},
	}
	for _, tc := range tests {
		if got := f.Sample(tc.gx, tc.gy); !approxVec(got, tc.want, eps) {
			t.Errorf("Sample(%v, %v) = %v, want %v", tc.gx, tc.gy, got, tc.want)
		}
	}
}
