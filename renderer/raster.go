// Package renderer turns flow fields into images.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/flowfield/systems"
)

// ToImage encodes the field as an 8-bit RGBA image. Pixel (x, y) is cell
// (x, y); R and G carry the direction, B is 0 and A opaque.
func ToImage(field *systems.FlowField) *image.NRGBA {
	res := field.Resolution()
	img := image.NewNRGBA(image.Rect(0, 0, res, res))
	for i, c := range field.ExportRaster() {
		img.SetNRGBA(i%res, i/res, c.RGBA8())
	}
	return img
}

// WritePNG encodes the field raster as PNG.
func WritePNG(w io.Writer, field *systems.FlowField) error {
	if err := png.Encode(w, ToImage(field)); err != nil {
		return fmt.Errorf("encoding flow raster: %w", err)
	}
	return nil
}

// SavePNG writes the field raster to path.
func SavePNG(path string, field *systems.FlowField) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WritePNG(f, field); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FromImage decodes a raster back into a field. The image must be square
// with a supported resolution. Directions are recovered up to 8-bit
// quantization and codec clamping.
func FromImage(img image.Image, bias r2.Vec) (*systems.FlowField, error) {
	b := img.Bounds()
	if b.Dx() != b.Dy() {
		return nil, fmt.Errorf("%w: raster is %dx%d, want square", systems.ErrPrecondition, b.Dx(), b.Dy())
	}
	field, err := systems.NewFlowField(b.Dx(), bias)
	if err != nil {
		return nil, err
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			if err := field.Set(x, y, systems.Decode(systems.EncodedFromRGBA8(px))); err != nil {
				return nil, err
			}
		}
	}
	return field, nil
}

// ReadPNG decodes a PNG raster into a field.
func ReadPNG(r io.Reader, bias r2.Vec) (*systems.FlowField, error) {
	img, err := png.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding flow raster: %w", err)
	}
	return FromImage(img, bias)
}

// LoadPNG reads a raster from path.
func LoadPNG(path string, bias r2.Vec) (*systems.FlowField, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadPNG(f, bias)
}
