package systems

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Clamp functions for common value ranges

// clampFloat clamps a value between min and max.
func clampFloat(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clamp01 clamps a value to the [0, 1] range.
func clamp01(v float64) float64 {
	return clampFloat(v, 0, 1)
}

// clampInt clamps an integer index between min and max.
func clampInt(v, minVal, maxVal int) int {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// Rotation helpers

// identity is the no-op rotation.
var identity = r3.Rotation{Real: 1}

// unitRotation converts a quaternion to a rotation, normalizing it first.
// The zero quaternion maps to the identity.
func unitRotation(q quat.Number) r3.Rotation {
	n := quat.Abs(q)
	if n == 0 {
		return identity
	}
	return r3.Rotation(quat.Scale(1/n, q))
}

// inverse returns the rotation that undoes r. r must be a unit rotation.
func inverse(r r3.Rotation) r3.Rotation {
	return r3.Rotation(quat.Conj(quat.Number(r)))
}
