package systems

import (
	"image/color"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// EncodedColor is a direction packed into normalized RGBA channels.
// R and G carry the X and Y axes; B is always 0 and A always 1.
type EncodedColor struct {
	R, G, B, A float32
}

// Encode packs a direction into channels as axis+0.5, saturating anything
// outside [-0.5, 0.5]. Magnitude is not normalized.
func Encode(d r2.Vec) EncodedColor {
	return EncodedColor{
		R: encodeAxis(d.X),
		G: encodeAxis(d.Y),
		B: 0,
		A: 1,
	}
}

// Decode unpacks channels back into a direction (channel-0.5).
func Decode(c EncodedColor) r2.Vec {
	return r2.Vec{
		X: float64(c.R) - 0.5,
		Y: float64(c.G) - 0.5,
	}
}

func encodeAxis(v float64) float32 {
	return float32(clamp01(v + 0.5))
}

// RGBA8 quantizes the channels to an 8-bit pixel.
func (c EncodedColor) RGBA8() color.NRGBA {
	return color.NRGBA{
		R: quantize(c.R),
		G: quantize(c.G),
		B: quantize(c.B),
		A: quantize(c.A),
	}
}

// EncodedFromRGBA8 is the inverse of RGBA8 up to quantization.
func EncodedFromRGBA8(p color.NRGBA) EncodedColor {
	return EncodedColor{
		R: float32(p.R) / 255,
		G: float32(p.G) / 255,
		B: float32(p.B) / 255,
		A: float32(p.A) / 255,
	}
}

func quantize(v float32) uint8 {
	return uint8(math.Round(clamp01(float64(v)) * 255))
}
