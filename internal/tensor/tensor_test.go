package tensor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDataValidatesShape(t *testing.T) {
	_, err := FromData([]float32{1, 2, 3}, 2, 2)
	assert.Error(t, err)
	_, err = FromData([]float32{1, 2}, 2, 0)
	assert.Error(t, err)

	ten, err := FromData([]float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, float32(3), ten.At2(1, 0))
}

func TestMatVec(t *testing.T) {
	kernel, err := FromData([]float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)

	out := make([]float32, 2)
	require.NoError(t, MatVec(out, kernel, []float32{1, 1}, []float32{10, 20}))
	assert.InDelta(t, 14, out[0], 1e-6) // 1 + 3 + 10
	assert.InDelta(t, 26, out[1], 1e-6) // 2 + 4 + 20

	assert.Error(t, MatVec(out, kernel, []float32{1}, nil))
	assert.Error(t, MatVec(make([]float32, 3), kernel, []float32{1, 1}, nil))
}

func TestSoftmaxRows(t *testing.T) {
	m := []float32{0, 0, 1, 1}
	SoftmaxRows(m, 2, 2)
	assert.InDelta(t, 0.5, m[0], 1e-6)
	assert.InDelta(t, 0.5, m[1], 1e-6)
	assert.InDelta(t, 0.5, m[2], 1e-6)
	assert.InDelta(t, 0.5, m[3], 1e-6)
}

func TestRandnShape(t *testing.T) {
	ten := Randn(rand.New(rand.NewSource(1)), 1, 3, 4)
	assert.Equal(t, []int{1, 3, 4}, ten.Shape())
	assert.Len(t, ten.Data(), 12)
}
