package memory

import (
	"hash/fnv"
	"math"

	"github.com/xiaot623/gogo/assistant/internal/textutil"
)

// Embedder maps text to a vector for similarity ranking.
type Embedder interface {
	Embed(text string) []float32
}

// HashEmbedder is a feature-hashing bag-of-terms embedder. It needs no model
// and is stable across processes.
type HashEmbedder struct {
	Dims int
}

// DefaultDims is the HashEmbedder vector size.
const DefaultDims = 256

// Embed returns an L2-normalized vector, or nil for text without terms.
func (e HashEmbedder) Embed(text string) []float32 {
	dims := e.Dims
	if dims <= 0 {
		dims = DefaultDims
	}
	terms := textutil.Terms(text)
	if len(terms) == 0 {
		return nil
	}
	v := make([]float32, dims)
	for _, t := range terms {
		h := fnv.New64a()
		_, _ = h.Write([]byte(t))
		sum := h.Sum64()
		sign := float32(1)
		if sum&(1<<63) != 0 {
			sign = -1
		}
		v[sum%uint64(dims)] += sign
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= inv
	}
	return v
}

// Cosine returns the cosine similarity of a and b, 0 when either is empty or
// their sizes differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
