package similarity

import (
	"math"

	"github.com/hupe1980/vecgo/distance"
)

// NormalizeVector returns a unit length copy of v.
// A zero vector is returned as a zero vector of the same length.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}
	out, ok := distance.NormalizeL2Copy(v)
	if !ok {
		return make([]float32, len(v))
	}
	return out
}

// CosineDistance returns 1 - cos(a, b), in [0, 2].
// Vectors of different length or zero norm are maximally distant.
func CosineDistance(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	na := distance.Dot(a, a)
	nb := distance.Dot(b, b)
	if na == 0 || nb == 0 {
		return 2
	}
	cos := float64(distance.Dot(a, b)) / math.Sqrt(float64(na)*float64(nb))
	return float32(1 - cos)
}
