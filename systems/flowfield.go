package systems

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Resolutions lists the supported grid edge lengths.
var Resolutions = []int{32, 64, 128, 256, 512, 1024}

// ValidResolution reports whether r is one of Resolutions.
func ValidResolution(r int) bool {
	for _, v := range Resolutions {
		if v == r {
			return true
		}
	}
	return false
}

// FlowSampler provides flow vectors at fractional grid positions.
type FlowSampler interface {
	Sample(gx, gy float64) r2.Vec
}

// FlowField is a square resolution×resolution grid of directions stored
// row-major. It is rebuilt wholesale, never resized in place.
type FlowField struct {
	resolution int
	bias       r2.Vec
	cells      []r2.Vec
}

// NewFlowField allocates a zeroed field.
func NewFlowField(resolution int, bias r2.Vec) (*FlowField, error) {
	f := &FlowField{}
	if err := f.Rebuild(resolution, bias); err != nil {
		return nil, err
	}
	return f, nil
}

// Rebuild reallocates the grid. Every prior cell is discarded.
func (f *FlowField) Rebuild(resolution int, bias r2.Vec) error {
	if !ValidResolution(resolution) {
		return preconditionf("resolution %d not in %v", resolution, Resolutions)
	}
	f.resolution = resolution
	f.bias = bias
	f.cells = make([]r2.Vec, resolution*resolution)
	return nil
}

// Resolution returns the grid edge length.
func (f *FlowField) Resolution() int { return f.resolution }

// Bias returns the global bias the field was built with.
func (f *FlowField) Bias() r2.Vec { return f.bias }

// Cells returns the row-major backing slice. It is invalidated by Rebuild.
func (f *FlowField) Cells() []r2.Vec { return f.cells }

// Get returns the direction stored at (x, y).
func (f *FlowField) Get(x, y int) (r2.Vec, error) {
	if err := f.checkIndex(x, y); err != nil {
		return r2.Vec{}, err
	}
	return f.cells[y*f.resolution+x], nil
}

// Set stores a direction at (x, y).
func (f *FlowField) Set(x, y int, v r2.Vec) error {
	if err := f.checkIndex(x, y); err != nil {
		return err
	}
	f.cells[y*f.resolution+x] = v
	return nil
}

func (f *FlowField) checkIndex(x, y int) error {
	if x < 0 || x >= f.resolution || y < 0 || y >= f.resolution {
		return fmt.Errorf("%w: cell (%d, %d) outside %dx%d grid", ErrIndexOutOfRange, x, y, f.resolution, f.resolution)
	}
	return nil
}

// ExportRaster encodes every cell, row-major.
func (f *FlowField) ExportRaster() []EncodedColor {
	out := make([]EncodedColor, len(f.cells))
	for i, d := range f.cells {
		out[i] = Encode(d)
	}
	return out
}

// Clone returns a deep copy.
func (f *FlowField) Clone() *FlowField {
	c := &FlowField{
		resolution: f.resolution,
		bias:       f.bias,
		cells:      make([]r2.Vec, len(f.cells)),
	}
	copy(c.cells, f.cells)
	return c
}

// Sample returns the bilinearly interpolated direction at fractional grid
// coordinates, clamping at the borders. A NaN coordinate samples index 0.
func (f *FlowField) Sample(gx, gy float64) r2.Vec {
	if f.resolution == 0 {
		return r2.Vec{}
	}
	if math.IsNaN(gx) {
		gx = 0
	}
	if math.IsNaN(gy) {
		gy = 0
	}
	maxIdx := float64(f.resolution - 1)
	gx = clampFloat(gx, 0, maxIdx)
	gy = clampFloat(gy, 0, maxIdx)

	x0 := int(math.Floor(gx))
	y0 := int(math.Floor(gy))
	x1 := clampInt(x0+1, 0, f.resolution-1)
	y1 := clampInt(y0+1, 0, f.resolution-1)
	tx := gx - float64(x0)
	ty := gy - float64(y0)

	r := f.resolution
	a := lerp(f.cells[y0*r+x0], f.cells[y0*r+x1], tx)
	b := lerp(f.cells[y1*r+x0], f.cells[y1*r+x1], tx)
	return lerp(a, b, ty)
}

func lerp(a, b r2.Vec, t float64) r2.Vec {
	return r2.Add(a, r2.Scale(t, r2.Sub(b, a)))
}
