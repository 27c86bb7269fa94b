package artifact

import (
	"encoding/json"
	"fmt"

	"github.com/Brownie44l1/ser-api/internal/attention"
	"github.com/Brownie44l1/ser-api/internal/tensor"
)

// Layer is one node of a loaded sequential graph. Weight restoration happens
// once at load time; Call runs a single inference step and reports shape
// mismatches against the restored weights.
type Layer interface {
	Name() string
	ClassName() string
	SetWeights(weights map[string]*tensor.Tensor) error
	Call(x *tensor.Tensor) (*tensor.Tensor, error)
}

func requireWeights(layer string, got map[string]*tensor.Tensor, want ...string) error {
	if len(got) != len(want) {
		return fmt.Errorf("layer %q expects %d weights %v, got %d", layer, len(want), want, len(got))
	}
	for _, name := range want {
		if _, ok := got[name]; !ok {
			return fmt.Errorf("layer %q is missing weight %q", layer, name)
		}
	}
	return nil
}

// --- Dense ---

type denseConfig struct {
	Units      int    `json:"units"`
	Activation string `json:"activation,omitempty"`
}

type dense struct {
	name   string
	cfg    denseConfig
	kernel *tensor.Tensor // (in, units)
	bias   *tensor.Tensor // (units)
}

func newDense(name string, raw json.RawMessage) (Layer, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("dense %q: missing config", name)
	}
	var cfg denseConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("dense %q config: %w", name, err)
	}
	if cfg.Units <= 0 {
		return nil, fmt.Errorf("dense %q: units must be positive, got %d", name, cfg.Units)
	}
	switch cfg.Activation {
	case "", "linear", "relu", "tanh", "softmax":
	default:
		return nil, fmt.Errorf("dense %q: unsupported activation %q", name, cfg.Activation)
	}
	return &dense{name: name, cfg: cfg}, nil
}

func (d *dense) Name() string      { return d.name }
func (d *dense) ClassName() string { return "Dense" }

func (d *dense) SetWeights(w map[string]*tensor.Tensor) error {
	if err := requireWeights(d.name, w, "kernel", "bias"); err != nil {
		return err
	}
	kernel, bias := w["kernel"], w["bias"]
	if kernel.Rank() != 2 || kernel.Dim(1) != d.cfg.Units {
		return fmt.Errorf("layer %q: kernel shape %v does not match units %d", d.name, kernel.Shape(), d.cfg.Units)
	}
	if bias.Rank() != 1 || bias.Dim(0) != d.cfg.Units {
		return fmt.Errorf("layer %q: bias shape %v does not match units %d", d.name, bias.Shape(), d.cfg.Units)
	}
	d.kernel, d.bias = kernel, bias
	return nil
}

func (d *dense) Call(x *tensor.Tensor) (*tensor.Tensor, error) {
	in, units := d.kernel.Dim(0), d.cfg.Units
	apply := func(row, out []float32) error {
		if err := tensor.MatVec(out, d.kernel, row, d.bias.Data()); err != nil {
			return fmt.Errorf("layer %q: %w", d.name, err)
		}
		d.activate(out)
		return nil
	}
	switch x.Rank() {
	case 2:
		if x.Dim(1) != in {
			return nil, fmt.Errorf("layer %q: input features %d do not match kernel input %d", d.name, x.Dim(1), in)
		}
		out := tensor.New(x.Dim(0), units)
		for b := 0; b < x.Dim(0); b++ {
			row := x.Data()[b*in : (b+1)*in]
			if err := apply(row, out.Data()[b*units:(b+1)*units]); err != nil {
				return nil, err
			}
		}
		return out, nil
	case 3:
		if x.Dim(2) != in {
			return nil, fmt.Errorf("layer %q: input features %d do not match kernel input %d", d.name, x.Dim(2), in)
		}
		out := tensor.New(x.Dim(0), x.Dim(1), units)
		rows := x.Dim(0) * x.Dim(1)
		for r := 0; r < rows; r++ {
			row := x.Data()[r*in : (r+1)*in]
			if err := apply(row, out.Data()[r*units:(r+1)*units]); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("layer %q: expected rank 2 or 3 input, got rank %d", d.name, x.Rank())
	}
}

func (d *dense) activate(out []float32) {
	switch d.cfg.Activation {
	case "relu":
		for i, v := range out {
			out[i] = tensor.Relu(v)
		}
	case "tanh":
		for i, v := range out {
			out[i] = tensor.Tanh(v)
		}
	case "softmax":
		tensor.SoftmaxRows(out, 1, len(out))
	}
}

// --- Dropout ---

type dropoutConfig struct {
	Rate float64 `json:"rate"`
}

type dropout struct {
	name string
	cfg  dropoutConfig
}

func newDropout(name string, raw json.RawMessage) (Layer, error) {
	var cfg dropoutConfig
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("dropout %q config: %w", name, err)
		}
	}
	return &dropout{name: name, cfg: cfg}, nil
}

func (d *dropout) Name() string      { return d.name }
func (d *dropout) ClassName() string { return "Dropout" }

func (d *dropout) SetWeights(w map[string]*tensor.Tensor) error {
	return requireWeights(d.name, w)
}

// Call is the identity: dropout only acts during training.
func (d *dropout) Call(x *tensor.Tensor) (*tensor.Tensor, error) {
	return x, nil
}

// --- GlobalAveragePooling1D ---

type globalAveragePooling struct {
	name string
}

func newGlobalAveragePooling(name string, _ json.RawMessage) (Layer, error) {
	return &globalAveragePooling{name: name}, nil
}

func (g *globalAveragePooling) Name() string      { return g.name }
func (g *globalAveragePooling) ClassName() string { return "GlobalAveragePooling1D" }

func (g *globalAveragePooling) SetWeights(w map[string]*tensor.Tensor) error {
	return requireWeights(g.name, w)
}

func (g *globalAveragePooling) Call(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Rank() != 3 {
		return nil, fmt.Errorf("layer %q: expected rank-3 input, got rank %d", g.name, x.Rank())
	}
	batch, steps, feat := x.Dim(0), x.Dim(1), x.Dim(2)
	out := tensor.New(batch, feat)
	inv := 1 / float32(steps)
	for b := 0; b < batch; b++ {
		for f := 0; f < feat; f++ {
			var acc float32
			for t := 0; t < steps; t++ {
				acc += x.At3(b, t, f)
			}
			out.Set2(b, f, acc*inv)
		}
	}
	return out, nil
}

// --- Attention (compatibility shim) ---

type attentionLayer struct {
	name  string
	inner *attention.Layer
}

func newCompatibleAttention(name string, raw json.RawMessage) (Layer, error) {
	cfg := attention.DefaultConfig()
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("attention %q config: %w", name, err)
		}
	}
	return &attentionLayer{name: name, inner: attention.New(cfg)}, nil
}

func (a *attentionLayer) Name() string      { return a.name }
func (a *attentionLayer) ClassName() string { return "Attention" }

func (a *attentionLayer) SetWeights(w map[string]*tensor.Tensor) error {
	if err := a.inner.SetWeights(w); err != nil {
		return fmt.Errorf("layer %q: %w", a.name, err)
	}
	return nil
}

func (a *attentionLayer) Call(x *tensor.Tensor) (*tensor.Tensor, error) {
	out, err := a.inner.Call(x)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", a.name, err)
	}
	return out, nil
}
