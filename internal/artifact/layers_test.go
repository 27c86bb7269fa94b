package artifact

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/ser-api/internal/tensor"
)

func mustTensor(t *testing.T, data []float32, shape ...int) *tensor.Tensor {
	t.Helper()
	ten, err := tensor.FromData(data, shape...)
	require.NoError(t, err)
	return ten
}

func testDense(t *testing.T, in, units int, activation string) Layer {
	t.Helper()
	cfg, err := json.Marshal(denseConfig{Units: units, Activation: activation})
	require.NoError(t, err)
	layer, err := newDense("out", cfg)
	require.NoError(t, err)
	require.NoError(t, layer.SetWeights(map[string]*tensor.Tensor{
		"kernel": mustTensor(t, make([]float32, in*units), in, units),
		"bias":   mustTensor(t, make([]float32, units), units),
	}))
	return layer
}

func TestDenseForward(t *testing.T) {
	cfg, err := json.Marshal(denseConfig{Units: 2})
	require.NoError(t, err)
	layer, err := newDense("fc", cfg)
	require.NoError(t, err)

	// Identity kernel with bias (1, -1).
	require.NoError(t, layer.SetWeights(map[string]*tensor.Tensor{
		"kernel": mustTensor(t, []float32{1, 0, 0, 1}, 2, 2),
		"bias":   mustTensor(t, []float32{1, -1}, 2),
	}))

	out, err := layer.Call(mustTensor(t, []float32{2, 3}, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, out.Shape())
	assert.InDelta(t, 3, out.At2(0, 0), 1e-6)
	assert.InDelta(t, 2, out.At2(0, 1), 1e-6)
}

func TestDenseSoftmaxActivation(t *testing.T) {
	layer := testDense(t, 3, 8, "softmax")
	out, err := layer.Call(mustTensor(t, []float32{1, 2, 3}, 1, 3))
	require.NoError(t, err)
	// Zero kernel makes the logits uniform.
	for i := 0; i < 8; i++ {
		assert.InDelta(t, 0.125, out.At2(0, i), 1e-6)
	}
}

func TestDenseRejectsFeatureMismatch(t *testing.T) {
	layer := testDense(t, 40, 8, "")
	_, err := layer.Call(mustTensor(t, make([]float32, 174), 1, 174))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel input 40")
}

func TestDenseRestorationValidatesNames(t *testing.T) {
	cfg, err := json.Marshal(denseConfig{Units: 2})
	require.NoError(t, err)
	layer, err := newDense("fc", cfg)
	require.NoError(t, err)

	err = layer.SetWeights(map[string]*tensor.Tensor{
		"kernel": mustTensor(t, make([]float32, 4), 2, 2),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects 2 weights")

	err = layer.SetWeights(map[string]*tensor.Tensor{
		"kernel":  mustTensor(t, make([]float32, 4), 2, 2),
		"weights": mustTensor(t, make([]float32, 2), 2),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing weight "bias"`)
}

func TestDropoutIsIdentityAtInference(t *testing.T) {
	layer, err := newDropout("drop", json.RawMessage(`{"rate":0.3}`))
	require.NoError(t, err)
	require.NoError(t, layer.SetWeights(map[string]*tensor.Tensor{}))

	x := tensor.Randn(rand.New(rand.NewSource(5)), 1, 4, 3)
	out, err := layer.Call(x)
	require.NoError(t, err)
	assert.Equal(t, x.Data(), out.Data())
}

func TestGlobalAveragePooling(t *testing.T) {
	layer, err := newGlobalAveragePooling("pool", nil)
	require.NoError(t, err)
	require.NoError(t, layer.SetWeights(map[string]*tensor.Tensor{}))

	x := mustTensor(t, []float32{1, 2, 3, 4}, 1, 2, 2)
	out, err := layer.Call(x)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, out.Shape())
	assert.InDelta(t, 2, out.At2(0, 0), 1e-6) // mean of 1, 3
	assert.InDelta(t, 3, out.At2(0, 1), 1e-6) // mean of 2, 4

	_, err = layer.Call(mustTensor(t, []float32{1, 2}, 1, 2))
	assert.Error(t, err)
}

func testBidirectional(t *testing.T, feat, units int, returnSequences bool) Layer {
	t.Helper()
	cfg, err := json.Marshal(lstmConfig{Units: units, ReturnSequences: returnSequences})
	require.NoError(t, err)
	layer, err := newBidirectional("bilstm", cfg)
	require.NoError(t, err)

	weights := map[string]*tensor.Tensor{}
	for _, dir := range []string{"forward", "backward"} {
		weights[dir+"/kernel"] = mustTensor(t, make([]float32, feat*4*units), feat, 4*units)
		weights[dir+"/recurrent_kernel"] = mustTensor(t, make([]float32, units*4*units), units, 4*units)
		weights[dir+"/bias"] = mustTensor(t, make([]float32, 4*units), 4*units)
	}
	require.NoError(t, layer.SetWeights(weights))
	return layer
}

func TestBidirectionalShapes(t *testing.T) {
	rng := rand.New(rand.NewSource(9))

	seq := testBidirectional(t, 3, 2, true)
	out, err := seq.Call(tensor.Randn(rng, 1, 5, 3))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 4}, out.Shape())

	last := testBidirectional(t, 3, 2, false)
	out, err = last.Call(tensor.Randn(rng, 1, 5, 3))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4}, out.Shape())
}

func TestBidirectionalZeroWeightsYieldZeroOutput(t *testing.T) {
	layer := testBidirectional(t, 3, 2, true)
	out, err := layer.Call(tensor.Randn(rand.New(rand.NewSource(13)), 1, 4, 3))
	require.NoError(t, err)
	for _, v := range out.Data() {
		assert.InDelta(t, 0, v, 1e-6)
	}
}

func TestBidirectionalRejectsFeatureMismatch(t *testing.T) {
	layer := testBidirectional(t, 40, 2, true)
	_, err := layer.Call(tensor.Randn(rand.New(rand.NewSource(17)), 1, 40, 174))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel input 40")
}
