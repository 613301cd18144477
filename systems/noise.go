package systems

import (
	"github.com/ojrac/opensimplex-go"
)

// NoiseParams configures fractal noise.
type NoiseParams struct {
	Scale      float64 // Base frequency over the unit square
	Octaves    int
	Lacunarity float64 // Frequency multiplier per octave
	Gain       float64 // Amplitude multiplier per octave
}

// DefaultNoiseParams returns a gentle 4-octave setup.
func DefaultNoiseParams() NoiseParams {
	return NoiseParams{Scale: 3, Octaves: 4, Lacunarity: 2, Gain: 0.5}
}

// FBM sums octaves of OpenSimplex noise.
type FBM struct {
	noise  opensimplex.Noise
	params NoiseParams
}

// NewFBM creates a seeded fractal noise source.
func NewFBM(seed int64, params NoiseParams) *FBM {
	if params.Octaves < 1 {
		params.Octaves = 1
	}
	return &FBM{noise: opensimplex.New(seed), params: params}
}

// At returns noise in [0, 1] for coordinates on the unit square.
func (f *FBM) At(u, v float64) float64 {
	sum := 0.0
	norm := 0.0
	amp := 1.0
	freq := f.params.Scale
	for o := 0; o < f.params.Octaves; o++ {
		sum += amp * f.noise.Eval2(u*freq, v*freq)
		norm += amp
		freq *= f.params.Lacunarity
		amp *= f.params.Gain
	}
	if norm == 0 {
		return 0.5
	}
	return clamp01(sum/norm*0.5 + 0.5)
}
