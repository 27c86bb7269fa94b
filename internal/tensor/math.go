package tensor

import "math"

func exp32(x float32) float32 {
	return float32(math.Exp(float64(x)))
}

// Sigmoid is the logistic function.
func Sigmoid(x float32) float32 {
	return 1 / (1 + exp32(-x))
}

// Tanh is the hyperbolic tangent.
func Tanh(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}

// Relu clamps negatives to zero.
func Relu(x float32) float32 {
	if x < 0 {
		return 0
	}
	return x
}

// Sqrt returns the float32 square root.
func Sqrt(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
