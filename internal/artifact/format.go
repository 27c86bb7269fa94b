// Package artifact loads serialized native model graphs and resolves how a
// loaded graph can actually be invoked. An artifact is a JSON document
// carrying the layer stack plus every trained weight by name; restoration
// only succeeds when each layer's reconstructed parameter footprint matches
// the serialized one exactly.
package artifact

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Brownie44l1/ser-api/internal/tensor"
)

// FormatV1 identifies the only artifact encoding currently in use.
const FormatV1 = "ser.model.v1"

// Document is the on-disk artifact layout.
type Document struct {
	Format string `json:"format"`
	Name   string `json:"name"`
	// InputShape is the bound input signature excluding the batch axis.
	// Artifacts exported without a signature leave it null; such graphs can
	// only be invoked through Predict.
	InputShape []int                 `json:"input_shape,omitempty"`
	Layers     []LayerSpec           `json:"layers"`
	Weights    map[string]WeightSpec `json:"weights"`
}

// LayerSpec is one serialized layer: its registered class name, its unique
// instance name and its class-specific configuration.
type LayerSpec struct {
	ClassName string          `json:"class_name"`
	Name      string          `json:"name"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// WeightSpec is a named weight tensor, keyed in Document.Weights by
// "<layer name>/<weight name>".
type WeightSpec struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

func (w WeightSpec) tensor() (*tensor.Tensor, error) {
	return tensor.FromData(w.Data, w.Shape...)
}

// layerWeights splits the flat weight map into per-layer maps keyed by the
// weight name local to the layer.
func layerWeights(doc *Document) (map[string]map[string]*tensor.Tensor, error) {
	byLayer := make(map[string]map[string]*tensor.Tensor)
	for key, spec := range doc.Weights {
		layer, name, ok := strings.Cut(key, "/")
		if !ok {
			return nil, fmt.Errorf("weight key %q is not of the form layer/name", key)
		}
		t, err := spec.tensor()
		if err != nil {
			return nil, fmt.Errorf("weight %q: %w", key, err)
		}
		if byLayer[layer] == nil {
			byLayer[layer] = make(map[string]*tensor.Tensor)
		}
		byLayer[layer][name] = t
	}
	return byLayer, nil
}
