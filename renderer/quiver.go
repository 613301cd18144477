package renderer

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/flowfield/systems"
)

// QuiverOptions controls the arrow plot.
type QuiverOptions struct {
	Size      int     // Image edge in pixels
	Stride    int     // Cells between arrows
	Scale     float64 // Arrow length for a unit direction, in cells
	Surface   systems.Surface
	Footprint []systems.AABB // Obstacle bounds drawn under the arrows
}

// DefaultQuiverOptions returns options for a 1024px plot.
func DefaultQuiverOptions(surface systems.Surface) QuiverOptions {
	return QuiverOptions{Size: 1024, Stride: 4, Scale: 2, Surface: surface}
}

var (
	quiverBackground = color.RGBA{12, 16, 28, 255}
	quiverFootprint  = color.RGBA{90, 70, 50, 160}
	quiverGrid       = color.RGBA{40, 48, 64, 255}
)

// DrawQuiver plots one arrow per Stride cells, colored by magnitude, over
// the footprints of the obstacles.
func DrawQuiver(field *systems.FlowField, opts QuiverOptions) image.Image {
	if opts.Size < 1 {
		opts.Size = 1024
	}
	if opts.Stride < 1 {
		opts.Stride = 1
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}

	res := field.Resolution()
	cell := float64(opts.Size) / float64(res)
	dc := gg.NewContext(opts.Size, opts.Size)

	dc.SetColor(quiverBackground)
	dc.DrawRectangle(0, 0, float64(opts.Size), float64(opts.Size))
	dc.Fill()

	dc.SetColor(quiverFootprint)
	for _, b := range opts.Footprint {
		drawFootprint(dc, b, res, cell, opts.Surface)
	}

	dc.SetColor(quiverGrid)
	dc.SetLineWidth(1)
	dc.DrawRectangle(0.5, 0.5, float64(opts.Size)-1, float64(opts.Size)-1)
	dc.Stroke()

	cells := field.Cells()
	dc.SetLineWidth(math.Max(1, cell/4))
	for y := opts.Stride / 2; y < res; y += opts.Stride {
		for x := opts.Stride / 2; x < res; x += opts.Stride {
			d := cells[y*res+x]
			mag := r2.Norm(d)
			if mag < 1e-6 {
				continue
			}
			cx := (float64(x) + 0.5) * cell
			cy := (float64(y) + 0.5) * cell
			length := math.Min(mag, 1) * opts.Scale * float64(opts.Stride) * cell / 2
			dir := r2.Scale(1/mag, d)
			drawArrow(dc, cx, cy, cx+dir.X*length, cy+dir.Y*length, magnitudeColor(mag))
		}
	}
	return dc.Image()
}

// WriteQuiver encodes the arrow plot as PNG.
func WriteQuiver(w io.Writer, field *systems.FlowField, opts QuiverOptions) error {
	dc := gg.NewContextForImage(DrawQuiver(field, opts))
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encoding quiver: %w", err)
	}
	return nil
}

// SaveQuiver writes the arrow plot to path.
func SaveQuiver(path string, field *systems.FlowField, opts QuiverOptions) error {
	if err := gg.SavePNG(path, DrawQuiver(field, opts)); err != nil {
		return fmt.Errorf("saving quiver: %w", err)
	}
	return nil
}

// drawFootprint projects the XZ rectangle of b onto the surface grid.
func drawFootprint(dc *gg.Context, b systems.AABB, res int, cell float64, s systems.Surface) {
	corners := [4]r3.Vec{
		{X: b.Min.X, Y: s.Pose.Position.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: s.Pose.Position.Y, Z: b.Min.Z},
		{X: b.Max.X, Y: s.Pose.Position.Y, Z: b.Max.Z},
		{X: b.Min.X, Y: s.Pose.Position.Y, Z: b.Max.Z},
	}
	for i, c := range corners {
		gx, gy := systems.WorldToGrid(c, res, s)
		if i == 0 {
			dc.MoveTo(gx*cell, gy*cell)
		} else {
			dc.LineTo(gx*cell, gy*cell)
		}
	}
	dc.ClosePath()
	dc.Fill()
}

func drawArrow(dc *gg.Context, x1, y1, x2, y2 float64, c color.Color) {
	dc.SetColor(c)
	dc.DrawLine(x1, y1, x2, y2)
	dc.Stroke()

	angle := math.Atan2(y2-y1, x2-x1)
	head := math.Hypot(x2-x1, y2-y1) * 0.35
	dc.MoveTo(x2, y2)
	dc.LineTo(x2-head*math.Cos(angle-math.Pi/6), y2-head*math.Sin(angle-math.Pi/6))
	dc.LineTo(x2-head*math.Cos(angle+math.Pi/6), y2-head*math.Sin(angle+math.Pi/6))
	dc.ClosePath()
	dc.Fill()
}

// magnitudeColor ramps from blue (weak) to white (full strength).
func magnitudeColor(mag float64) color.Color {
	t := math.Min(mag, 1)
	return color.RGBA{
		R: uint8(60 + 195*t),
		G: uint8(140 + 115*t),
		B: 255,
		A: 255,
	}
}
