// Package vecmath holds the vector primitives the clustering code is built on.
package vecmath

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Sentinel errors for vector operations.
var (
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrZeroVector        = errors.New("zero vector has no direction")
)

// Dot returns the sum of the elementwise products of a and b.
func Dot(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, nil
	}
	return floats.Dot(a, b), nil
}

// Norm returns the Euclidean (L2) norm of a.
func Norm(a []float64) float64 {
	if len(a) == 0 {
		return 0
	}
	return floats.Norm(a, 2)
}

// Cosine returns the cosine of the angle between a and b.
// It fails with ErrDimensionMismatch when the lengths differ and with
// ErrZeroVector when either vector has a zero norm, instead of returning NaN.
func Cosine(a, b []float64) (float64, error) {
	dot, err := Dot(a, b)
	if err != nil {
		return 0, err
	}

	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0, ErrZeroVector
	}

	return dot / (na * nb), nil
}

// Round rounds x to the given number of decimal places.
func Round(x float64, decimals int) float64 {
	e := math.Pow(10, float64(decimals))
	return math.Round(x*e) / e
}
