package systems

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// Blur box-filters the field with a (2*radius+1)² unweighted window.
// Neighbors past the border repeat the nearest edge cell and still count
// toward the window size. Radius 0 returns field itself.
//
// The result is a new field; every output cell reads only the input.
func Blur(field *FlowField, radius int) (*FlowField, error) {
	if field == nil {
		return nil, preconditionf("blur of nil field")
	}
	if radius < 0 {
		return nil, preconditionf("blur radius %d is negative", radius)
	}
	if radius == 0 {
		return field, nil
	}

	res := field.resolution
	src := field.cells
	out := &FlowField{
		resolution: res,
		bias:       field.bias,
		cells:      make([]r2.Vec, len(src)),
	}

	side := 2*radius + 1
	inv := 1 / float64(side*side)

	for y := 0; y < res; y++ {
		for x := 0; x < res; x++ {
			var sum r2.Vec
			for j := -radius; j <= radius; j++ {
				row := clampInt(y+j, 0, res-1) * res
				for i := -radius; i <= radius; i++ {
					sum = r2.Add(sum, src[row+clampInt(x+i, 0, res-1)])
				}
			}
			out.cells[y*res+x] = r2.Scale(inv, sum)
		}
	}

	return out, nil
}
