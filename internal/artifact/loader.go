package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/ser-api/internal/tensor"
)

var (
	// ErrArtifactNotFound means the artifact path does not exist. No load is
	// attempted in that case.
	ErrArtifactNotFound = errors.New("model artifact not found")
	// ErrLoadFailed means both load strategies failed.
	ErrLoadFailed = errors.New("model load failed")
)

// Graph is a loaded sequential model. A graph with a bound input signature
// supports both Call and Predict; one without a signature rejects Call.
type Graph struct {
	name       string
	inputShape []int
	layers     []Layer
}

// Name returns the artifact's model name.
func (g *Graph) Name() string { return g.name }

// InputShape returns the bound input signature excluding the batch axis, or
// nil if the artifact was saved without one.
func (g *Graph) InputShape() []int { return g.inputShape }

// Call invokes the graph through its bound input signature, validating the
// input shape before running.
func (g *Graph) Call(x *tensor.Tensor) (*tensor.Tensor, error) {
	if g.inputShape == nil {
		return nil, fmt.Errorf("graph %q has no bound input signature; use Predict", g.name)
	}
	if x.Rank() != len(g.inputShape)+1 {
		return nil, fmt.Errorf("graph %q expects rank %d input, got rank %d", g.name, len(g.inputShape)+1, x.Rank())
	}
	for i, want := range g.inputShape {
		if x.Dim(i+1) != want {
			return nil, fmt.Errorf("graph %q expects input shape %v, got %v", g.name, g.inputShape, x.Shape()[1:])
		}
	}
	return g.forward(x)
}

// Predict feeds the graph without signature validation; individual layers
// still reject inputs their restored weights cannot consume.
func (g *Graph) Predict(x *tensor.Tensor) (*tensor.Tensor, error) {
	return g.forward(x)
}

func (g *Graph) forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	cur := x
	for _, layer := range g.layers {
		out, err := layer.Call(cur)
		if err != nil {
			return nil, err
		}
		cur = out
	}
	return cur, nil
}

type loadStrategy struct {
	name     string
	registry *Registry
}

// Load reads and reconstructs a model artifact. Two strategies run in order:
// first with the compatible attention shim substituted for the "Attention"
// class, then with the stock registry alone for artifacts that never needed
// the shim. If both fail the error carries the second attempt's cause, since
// the stock path is the simpler and therefore the more telling diagnostic.
func Load(path string, log *logrus.Entry) (*Graph, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrLoadFailed, path, err)
	}

	strategies := []loadStrategy{
		{name: "compatible-attention", registry: WithCompatibleAttention()},
		{name: "builtin", registry: Builtin()},
	}
	var lastErr error
	for _, s := range strategies {
		g, err := build(raw, s.registry)
		if err == nil {
			log.WithFields(logrus.Fields{"strategy": s.name, "model": g.name}).Info("artifact loaded")
			return g, nil
		}
		log.WithFields(logrus.Fields{"strategy": s.name}).WithError(err).Warn("load attempt failed")
		lastErr = fmt.Errorf("%s registry: %w", s.name, err)
	}
	return nil, fmt.Errorf("%w: %v", ErrLoadFailed, lastErr)
}

func build(raw []byte, reg *Registry) (*Graph, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding artifact: %w", err)
	}
	if doc.Format != FormatV1 {
		return nil, fmt.Errorf("unsupported artifact format %q", doc.Format)
	}
	if len(doc.Layers) == 0 {
		return nil, fmt.Errorf("artifact %q has no layers", doc.Name)
	}

	weights, err := layerWeights(&doc)
	if err != nil {
		return nil, err
	}

	g := &Graph{name: doc.Name, inputShape: doc.InputShape}
	seen := make(map[string]bool, len(doc.Layers))
	for _, spec := range doc.Layers {
		if seen[spec.Name] {
			return nil, fmt.Errorf("duplicate layer name %q", spec.Name)
		}
		seen[spec.Name] = true
		layer, err := reg.Construct(spec)
		if err != nil {
			return nil, err
		}
		w := weights[spec.Name]
		if w == nil {
			w = map[string]*tensor.Tensor{}
		}
		if err := layer.SetWeights(w); err != nil {
			return nil, fmt.Errorf("restoring weights: %w", err)
		}
		g.layers = append(g.layers, layer)
	}
	for name := range weights {
		if !seen[name] {
			return nil, fmt.Errorf("weights reference unknown layer %q", name)
		}
	}
	return g, nil
}
