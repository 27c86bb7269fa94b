// Package emotion defines the label vocabulary and the result contract
// shared by every inference path.
package emotion

import (
	"fmt"
	"math"
)

// Labels maps output-vector index to emotion label. The order is fixed by
// the training label encoding and must never be sorted or inferred.
var Labels = [...]string{
	"angry",
	"calm",
	"disgust",
	"fear",
	"happy",
	"neutral",
	"sad",
	"surprise",
}

// NumLabels is the size of the classification head all models are expected
// to carry.
const NumLabels = len(Labels)

// Softmax converts raw logits into a probability distribution.
func Softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v - max))
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Argmax returns the index of the largest value. Ties resolve to the lowest
// index so that a flat distribution still yields a deterministic label.
func Argmax(probs []float64) int {
	best := 0
	for i, v := range probs {
		if v > probs[best] {
			best = i
		}
	}
	return best
}

// FromProbabilities maps a probability vector onto the label table and
// builds a success result. The vector length must match the table exactly;
// anything else means the model head does not belong to this vocabulary and
// silently mis-mapping probabilities would be worse than failing.
func FromProbabilities(probs []float64, modelTag string) (*Result, error) {
	if len(probs) != NumLabels {
		return nil, fmt.Errorf("model produced %d scores, expected %d", len(probs), NumLabels)
	}
	scores := make(map[string]float64, NumLabels)
	for i, p := range probs {
		scores[Labels[i]] = p
	}
	top := Argmax(probs)
	return &Result{
		Success:    true,
		Emotion:    Labels[top],
		Confidence: probs[top],
		Scores:     scores,
		Model:      modelTag,
	}, nil
}
