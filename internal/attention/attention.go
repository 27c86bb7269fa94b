// Package attention reconstructs the self-attention layer the BiLSTM
// emotion artifact was saved with. The original artifact references a layer
// class whose stock implementation drifted; restoring its weights only works
// against a layer with the exact same parameter footprint, which is what
// this implementation guarantees.
package attention

import (
	"fmt"

	"github.com/Brownie44l1/ser-api/internal/tensor"
)

// ScoreModeDot is the only similarity the artifact family uses.
const ScoreModeDot = "dot"

// WeightScale is the name the artifact stores the learned scalar under.
const WeightScale = "scale"

// Config is the serializable layer configuration. It round-trips through
// JSON without loss.
type Config struct {
	UseScale  bool   `json:"use_scale"`
	ScoreMode string `json:"score_mode"`
}

// DefaultConfig mirrors the defaults the artifact was trained with.
func DefaultConfig() Config {
	return Config{UseScale: false, ScoreMode: ScoreModeDot}
}

// Layer computes scaled dot-product attention over (batch, time, features)
// tensors. It carries at most one trainable weight, the scalar "scale",
// present iff UseScale is set. That footprint is the compatibility
// constraint: one weight more or fewer and restoration by name fails.
type Layer struct {
	cfg   Config
	scale *tensor.Tensor
	built bool
}

// New creates an unbuilt layer. An empty score mode falls back to "dot".
func New(cfg Config) *Layer {
	if cfg.ScoreMode == "" {
		cfg.ScoreMode = ScoreModeDot
	}
	return &Layer{cfg: cfg}
}

// Config returns the serializable configuration.
func (l *Layer) Config() Config { return l.cfg }

// SupportsMasking reports that masked input is accepted. See ComputeMask for
// what actually happens to the mask.
func (l *Layer) SupportsMasking() bool { return true }

// ComputeMask always returns nil: masked input is consumed but no mask is
// propagated downstream. Layers after this one will see unmasked output.
func (l *Layer) ComputeMask() *tensor.Tensor { return nil }

// Build allocates the layer's weights. Only a scalar "scale" exists, and
// only when UseScale is set; it initializes to one.
func (l *Layer) Build() {
	if l.built {
		return
	}
	if l.cfg.UseScale {
		l.scale = tensor.New(1)
		l.scale.Data()[0] = 1.0
	}
	l.built = true
}

// TrainableWeights returns the layer's weights keyed by serialized name.
func (l *Layer) TrainableWeights() map[string]*tensor.Tensor {
	l.Build()
	if l.scale == nil {
		return map[string]*tensor.Tensor{}
	}
	return map[string]*tensor.Tensor{WeightScale: l.scale}
}

// SetWeights restores weights by name. The provided set must match the
// layer's footprint exactly.
func (l *Layer) SetWeights(weights map[string]*tensor.Tensor) error {
	l.Build()
	if !l.cfg.UseScale {
		if len(weights) != 0 {
			return fmt.Errorf("attention without use_scale expects no weights, got %d", len(weights))
		}
		return nil
	}
	w, ok := weights[WeightScale]
	if !ok || len(weights) != 1 {
		return fmt.Errorf("attention with use_scale expects exactly one weight %q, got %d", WeightScale, len(weights))
	}
	if len(w.Data()) != 1 {
		return fmt.Errorf("weight %q must be a scalar, got shape %v", WeightScale, w.Shape())
	}
	l.scale.Data()[0] = w.Data()[0]
	return nil
}

// Call evaluates the layer. One input means self-attention (query = value =
// input); two inputs are interpreted as (query, value). Both must be rank 3
// (batch, time, features), and the output shape equals the query shape.
func (l *Layer) Call(inputs ...*tensor.Tensor) (*tensor.Tensor, error) {
	l.Build()
	var query, value *tensor.Tensor
	switch len(inputs) {
	case 1:
		query, value = inputs[0], inputs[0]
	case 2:
		query, value = inputs[0], inputs[1]
	default:
		return nil, fmt.Errorf("attention takes one or two inputs, got %d", len(inputs))
	}
	if query.Rank() != 3 || value.Rank() != 3 {
		return nil, fmt.Errorf("attention expects rank-3 inputs, got ranks %d and %d", query.Rank(), value.Rank())
	}
	if query.Dim(0) != value.Dim(0) || query.Dim(2) != value.Dim(2) {
		return nil, fmt.Errorf("query shape %v incompatible with value shape %v", query.Shape(), value.Shape())
	}

	batch, tq, feat := query.Dim(0), query.Dim(1), query.Dim(2)
	tv := value.Dim(1)
	invSqrt := 1 / tensor.Sqrt(float32(feat))
	scale := float32(1)
	if l.cfg.UseScale {
		scale = l.scale.Data()[0]
	}

	out := tensor.New(batch, tq, feat)
	scores := make([]float32, tq*tv)
	for b := 0; b < batch; b++ {
		// scores[i][j] = dot(query_i, value_j) / sqrt(F)
		for i := 0; i < tq; i++ {
			for j := 0; j < tv; j++ {
				var dot float32
				for f := 0; f < feat; f++ {
					dot += query.At3(b, i, f) * value.At3(b, j, f)
				}
				scores[i*tv+j] = dot * invSqrt * scale
			}
		}
		tensor.SoftmaxRows(scores, tq, tv)
		for i := 0; i < tq; i++ {
			for f := 0; f < feat; f++ {
				var acc float32
				for j := 0; j < tv; j++ {
					acc += scores[i*tv+j] * value.At3(b, j, f)
				}
				out.Set3(b, i, f, acc)
			}
		}
	}
	return out, nil
}
