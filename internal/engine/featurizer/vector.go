package featurizer

import "math"

// Vector is a sparse feature vector with strictly increasing Indices.
type Vector struct {
	Indices []int
	Values  []float64
}

// Len returns the number of non-zero entries.
func (v Vector) Len() int {
	return len(v.Indices)
}

// Dot returns the inner product of v with the dense vector w.
func (v Vector) Dot(w []float64) float64 {
	var sum float64
	for k, i := range v.Indices {
		sum += v.Values[k] * w[i]
	}
	return sum
}

// Norm returns the Euclidean norm of v.
func (v Vector) Norm() float64 {
	var s float64
	for _, x := range v.Values {
		s += x * x
	}
	return math.Sqrt(s)
}

// Clone returns a copy of v that does not alias any Buffer.
func (v Vector) Clone() Vector {
	out := Vector{
		Indices: make([]int, len(v.Indices)),
		Values:  make([]float64, len(v.Values)),
	}
	copy(out.Indices, v.Indices)
	copy(out.Values, v.Values)
	return out
}

// Buffer is reusable scratch space for TransformBuf. A Buffer must not be
// used by two goroutines at once.
type Buffer struct {
	counts map[int]float64
	idx    []int
	val    []float64
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{counts: make(map[int]float64)}
}

func (b *Buffer) reset() {
	clear(b.counts)
	b.idx = b.idx[:0]
	b.val = b.val[:0]
}
