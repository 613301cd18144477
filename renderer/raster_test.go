package renderer

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"math"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flowfield/systems"
)

func testField(t *testing.T) *systems.FlowField {
	t.Helper()
	f, err := systems.NewFlowField(32, r2.Vec{})
	if err != nil {
		t.Fatal(err)
	}
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			_ = f.Set(x, y, r2.Vec{X: float64(x)/31 - 0.5, Y: 0.25 - float64(y)/62})
		}
	}
	return f
}

func TestToImageLayout(t *testing.T) {
	f := testField(t)
	img := ToImage(f)
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 32 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	px := img.NRGBAAt(31, 0)
	if px.R != 255 || px.B != 0 || px.A != 255 {
		t.Errorf("pixel (31,0) = %+v", px)
	}
	if px := img.NRGBAAt(0, 5); px.R != 0 {
		t.Errorf("pixel (0,5) R = %d, want 0", px.R)
	}
}

func TestPNGRoundTrip(t *testing.T) {
	f := testField(t)
	var buf bytes.Buffer
	if err := WritePNG(&buf, f); err != nil {
		t.Fatal(err)
	}
	back, err := ReadPNG(&buf, f.Bias())
	if err != nil {
		t.Fatal(err)
	}
	if back.Resolution() != 32 {
		t.Fatalf("resolution = %d", back.Resolution())
	}
	for i := range f.Cells() {
		a, b := f.Cells()[i], back.Cells()[i]
		// Half a quantization step.
		if math.Abs(a.X-b.X) > 0.5/255+1e-6 || math.Abs(a.Y-b.Y) > 0.5/255+1e-6 {
			t.Fatalf("cell %d: %v decoded as %v", i, a, b)
		}
	}
}

func TestSaveAndLoadPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.png")
	if err := SavePNG(path, testField(t)); err != nil {
		t.Fatal(err)
	}
	f, err := LoadPNG(path, r2.Vec{})
	if err != nil {
		t.Fatal(err)
	}
	if f.Resolution() != 32 {
		t.Errorf("resolution = %d", f.Resolution())
	}
}

func TestFromImageRejectsShape(t *testing.T) {
	tests := []struct {
		name string
		rect image.Rectangle
	}{
		{"not square", image.Rect(0, 0, 32, 64)},
		{"unsupported size", image.Rect(0, 0, 48, 48)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := png.Encode(&buf, image.NewNRGBA(tc.rect)); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadPNG(&buf, r2.Vec{}); !errors.Is(err, systems.ErrPrecondition) {
				t.Fatalf("expected ErrPrecondition, got %v", err)
			}
		})
	}
}

func TestDrawQuiver(t *testing.T) {
	f := testField(t)
	opts := DefaultQuiverOptions(systems.Surface{Width: 10, Depth: 10, Pose: systems.IdentityPose()})
	opts.Size = 256
	opts.Footprint = []systems.AABB{{Min: r3.Vec{X: -1, Y: -1, Z: -1}, Max: r3.Vec{X: 1, Y: 1, Z: 1}}}

	img := DrawQuiver(f, opts)
	if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 256 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	// The footprint covers the image center.
	r, g, b, _ := img.At(128, 128).RGBA()
	bg := quiverBackground
	if uint8(r>>8) == bg.R && uint8(g>>8) == bg.G && uint8(b>>8) == bg.B {
		t.Error("expected obstacle footprint at the center")
	}

	var buf bytes.Buffer
	if err := WriteQuiver(&buf, f, opts); err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("quiver is not a PNG: %v", err)
	}
}
