// Package matching defines the scored association between requirements and
// report paragraphs: similarity computation, ranking policy, match sets, and
// the multi-report comparison structure.
package matching

import (
	"fmt"
	"math"

	"github.com/esglens/esglens/pkg/errors"
)

// Cosine computes the cosine similarity of two vectors. It returns an error
// when the dimensions differ or either vector has zero magnitude.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.New(errors.ErrCodeDimensionMismatch, "vectors have different dimensions").
			WithDetail(dimDetail(len(a), len(b)))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, errors.New(errors.ErrCodeValidation, "cosine is undefined for zero vectors")
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// Dot computes the dot product of two vectors. For L2-normalized vectors this
// equals their cosine similarity; the embedder normalizes all vectors so the
// matcher uses Dot on the hot path.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.New(errors.ErrCodeDimensionMismatch, "vectors have different dimensions").
			WithDetail(dimDetail(len(a), len(b)))
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot, nil
}

// Normalize returns an L2-normalized copy of v. A zero vector is returned
// unchanged since it cannot be normalized.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	inv := 1.0 / math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// IsNormalized reports whether v has unit L2 norm within tolerance eps.
func IsNormalized(v []float32, eps float64) bool {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	return math.Abs(math.Sqrt(norm)-1.0) <= eps
}

func dimDetail(a, b int) string {
	return fmt.Sprintf("len(a)=%d len(b)=%d", a, b)
}
