package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Heightfield is a regular grid of normalized heights spread over a
// rectangular footprint. Sample (i, j) sits at
// origin + (i/(cols-1)*size.X, heights[j*cols+i]*size.Y, j/(rows-1)*size.Z).
type Heightfield struct {
	cols, rows int
	heights    []float32
	normals    []r3.Vec
	origin     r3.Vec
	size       r3.Vec
	minH, maxH float64
}

// NewHeightfield validates the footprint and precomputes vertex normals.
// heights are row-major, rows×cols, and scaled by size.Y.
func NewHeightfield(cols, rows int, heights []float32, origin, size r3.Vec) (*Heightfield, error) {
	if cols < 2 || rows < 2 {
		return nil, preconditionf("heightfield needs at least 2x2 samples, got %dx%d", cols, rows)
	}
	if len(heights) != cols*rows {
		return nil, preconditionf("heightfield has %d samples, want %d", len(heights), cols*rows)
	}
	if !(size.X > 0) || !(size.Z > 0) || size.Y < 0 {
		return nil, preconditionf("degenerate heightfield footprint %v", size)
	}

	h := &Heightfield{
		cols:    cols,
		rows:    rows,
		heights: heights,
		origin:  origin,
		size:    size,
		minH:    math.Inf(1),
		maxH:    math.Inf(-1),
	}
	for _, v := range heights {
		y := float64(v)
		h.minH = math.Min(h.minH, y)
		h.maxH = math.Max(h.maxH, y)
	}
	h.computeNormals()
	return h, nil
}

// GenerateHeightfield builds an island: FBM noise shaped by a radial falloff
// so the footprint edges sink below sea level.
func GenerateHeightfield(cols, rows int, origin, size r3.Vec, seed int64, params NoiseParams) (*Heightfield, error) {
	if cols < 2 || rows < 2 {
		return nil, preconditionf("heightfield needs at least 2x2 samples, got %dx%d", cols, rows)
	}
	fbm := NewFBM(seed, params)
	heights := make([]float32, cols*rows)
	for j := 0; j < rows; j++ {
		v := float64(j) / float64(rows-1)
		for i := 0; i < cols; i++ {
			u := float64(i) / float64(cols-1)
			dx := u - 0.5
			dz := v - 0.5
			falloff := 1 - clamp01(math.Sqrt(dx*dx+dz*dz)*2)
			heights[j*cols+i] = float32(fbm.At(u, v) * falloff)
		}
	}
	return NewHeightfield(cols, rows, heights, origin, size)
}

// Origin returns the footprint's minimum corner.
func (h *Heightfield) Origin() r3.Vec { return h.origin }

// Size returns the footprint extent; Y is the height scale.
func (h *Heightfield) Size() r3.Vec { return h.size }

// Dims returns the sample grid size.
func (h *Heightfield) Dims() (cols, rows int) { return h.cols, h.rows }

// Bounds implements Bounded.
func (h *Heightfield) Bounds() AABB {
	return AABB{
		Min: r3.Vec{X: h.origin.X, Y: h.origin.Y + h.minH*h.size.Y, Z: h.origin.Z},
		Max: r3.Vec{X: h.origin.X + h.size.X, Y: h.origin.Y + h.maxH*h.size.Y, Z: h.origin.Z + h.size.Z},
	}
}

// HeightAt returns the world height at (x, z), bilinearly interpolated.
// Positions outside the footprint read the nearest edge.
func (h *Heightfield) HeightAt(x, z float64) float64 {
	u := (x - h.origin.X) / h.size.X
	v := (z - h.origin.Z) / h.size.Z
	return h.origin.Y + h.sampleHeight(u, v)*h.size.Y
}

// NormalAt returns the interpolated unit normal at normalized footprint
// coordinates (u, v).
func (h *Heightfield) NormalAt(u, v float64) r3.Vec {
	i0, j0, i1, j1, tx, ty := h.cell(u, v)
	a := lerp3(h.normals[j0*h.cols+i0], h.normals[j0*h.cols+i1], tx)
	b := lerp3(h.normals[j1*h.cols+i0], h.normals[j1*h.cols+i1], tx)
	n := lerp3(a, b, ty)
	if r3.Norm(n) == 0 {
		return r3.Vec{Y: 1}
	}
	return r3.Unit(n)
}

func (h *Heightfield) sampleHeight(u, v float64) float64 {
	i0, j0, i1, j1, tx, ty := h.cell(u, v)
	at := func(i, j int) float64 { return float64(h.heights[j*h.cols+i]) }
	a := at(i0, j0) + (at(i1, j0)-at(i0, j0))*tx
	b := at(i0, j1) + (at(i1, j1)-at(i0, j1))*tx
	return a + (b-a)*ty
}

// cell finds the sample quad containing (u, v) and the blend weights.
func (h *Heightfield) cell(u, v float64) (i0, j0, i1, j1 int, tx, ty float64) {
	fx := clamp01(u) * float64(h.cols-1)
	fy := clamp01(v) * float64(h.rows-1)
	i0 = int(math.Floor(fx))
	j0 = int(math.Floor(fy))
	i1 = clampInt(i0+1, 0, h.cols-1)
	j1 = clampInt(j0+1, 0, h.rows-1)
	i0 = clampInt(i0, 0, h.cols-1)
	j0 = clampInt(j0, 0, h.rows-1)
	return i0, j0, i1, j1, fx - float64(i0), fy - float64(j0)
}

// computeNormals uses central differences in world units (one-sided at the
// edges).
func (h *Heightfield) computeNormals() {
	h.normals = make([]r3.Vec, len(h.heights))
	stepX := h.size.X / float64(h.cols-1)
	stepZ := h.size.Z / float64(h.rows-1)
	world := func(i, j int) float64 {
		return float64(h.heights[j*h.cols+i]) * h.size.Y
	}

	for j := 0; j < h.rows; j++ {
		jl := clampInt(j-1, 0, h.rows-1)
		jh := clampInt(j+1, 0, h.rows-1)
		for i := 0; i < h.cols; i++ {
			il := clampInt(i-1, 0, h.cols-1)
			ih := clampInt(i+1, 0, h.cols-1)

			dhdx := (world(ih, j) - world(il, j)) / (float64(ih-il) * stepX)
			dhdz := (world(i, jh) - world(i, jl)) / (float64(jh-jl) * stepZ)

			h.normals[j*h.cols+i] = r3.Unit(r3.Vec{X: -dhdx, Y: 1, Z: -dhdz})
		}
	}
}

func lerp3(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}
