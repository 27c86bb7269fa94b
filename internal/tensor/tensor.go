// Package tensor implements the small amount of float32 tensor math the
// native graph runtime needs. Tensors are dense and row-major.
package tensor

import (
	"fmt"
	"math/rand"
)

// Tensor is a dense row-major float32 tensor.
type Tensor struct {
	shape []int
	data  []float32
}

// New allocates a zero-filled tensor.
func New(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Tensor{shape: append([]int(nil), shape...), data: make([]float32, n)}
}

// FromData wraps existing data. The element count must match the shape.
func FromData(data []float32, shape ...int) (*Tensor, error) {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("invalid dimension %d in shape %v", d, shape)
		}
		n *= d
	}
	if len(data) != n {
		return nil, fmt.Errorf("shape %v requires %d values, got %d", shape, n, len(data))
	}
	return &Tensor{shape: append([]int(nil), shape...), data: data}, nil
}

// Randn fills a new tensor with standard normal noise, used for synthetic
// probe inputs.
func Randn(rng *rand.Rand, shape ...int) *Tensor {
	t := New(shape...)
	for i := range t.data {
		t.data[i] = float32(rng.NormFloat64())
	}
	return t
}

// Shape returns the tensor's dimensions. Callers must not mutate it.
func (t *Tensor) Shape() []int { return t.shape }

// Data returns the backing slice.
func (t *Tensor) Data() []float32 { return t.data }

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.shape) }

// Dim returns dimension i.
func (t *Tensor) Dim(i int) int { return t.shape[i] }

// At2 indexes a rank-2 tensor.
func (t *Tensor) At2(i, j int) float32 { return t.data[i*t.shape[1]+j] }

// Set2 writes into a rank-2 tensor.
func (t *Tensor) Set2(i, j int, v float32) { t.data[i*t.shape[1]+j] = v }

// At3 indexes a rank-3 tensor.
func (t *Tensor) At3(b, i, j int) float32 {
	return t.data[(b*t.shape[1]+i)*t.shape[2]+j]
}

// Set3 writes into a rank-3 tensor.
func (t *Tensor) Set3(b, i, j int, v float32) {
	t.data[(b*t.shape[1]+i)*t.shape[2]+j] = v
}

// MatVec computes w^T·x + b for a kernel of shape (in, out), an input row of
// length in and an optional bias of length out, accumulating into dst.
func MatVec(dst []float32, kernel *Tensor, x, bias []float32) error {
	in, out := kernel.Dim(0), kernel.Dim(1)
	if len(x) != in {
		return fmt.Errorf("input length %d does not match kernel rows %d", len(x), in)
	}
	if len(dst) != out {
		return fmt.Errorf("output length %d does not match kernel columns %d", len(dst), out)
	}
	for j := 0; j < out; j++ {
		var acc float32
		if bias != nil {
			acc = bias[j]
		}
		for i := 0; i < in; i++ {
			acc += x[i] * kernel.At2(i, j)
		}
		dst[j] = acc
	}
	return nil
}

// SoftmaxRows applies an in-place softmax over the last axis of a rank-2
// matrix held as a flat slice of rows×cols.
func SoftmaxRows(m []float32, rows, cols int) {
	for r := 0; r < rows; r++ {
		row := m[r*cols : (r+1)*cols]
		max := row[0]
		for _, v := range row[1:] {
			if v > max {
				max = v
			}
		}
		var sum float32
		for i, v := range row {
			row[i] = exp32(v - max)
			sum += row[i]
		}
		for i := range row {
			row[i] /= sum
		}
	}
}
