// Package vecmath provides the vector arithmetic used by memo linking and search.
package vecmath

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when two vectors of different length are compared.
var ErrDimensionMismatch = errors.New("vecmath: dimension mismatch")

// Cosine returns the cosine similarity of u and v in [-1, 1].
//
// Accumulation is done in float64. If either vector has zero magnitude the
// result is 0, so callers never see NaN in a sort key.
func Cosine(u, v []float32) (float64, error) {
	if len(u) != len(v) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(u), len(v))
	}

	var dot, nu, nv float64
	for i := range u {
		a, b := float64(u[i]), float64(v[i])
		dot += a * b
		nu += a * a
		nv += b * b
	}

	if nu == 0 || nv == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(nu) * math.Sqrt(nv))
	// Rounding can push parallel vectors a hair past ±1.
	return math.Max(-1, math.Min(1, sim)), nil
}
