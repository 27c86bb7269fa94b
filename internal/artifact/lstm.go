package artifact

import (
	"encoding/json"
	"fmt"

	"github.com/Brownie44l1/ser-api/internal/tensor"
)

type lstmConfig struct {
	Units           int  `json:"units"`
	ReturnSequences bool `json:"return_sequences"`
}

// lstmCell holds one direction's restored weights. Gate columns are laid out
// input, forget, cell, output.
type lstmCell struct {
	kernel    *tensor.Tensor // (features, 4*units)
	recurrent *tensor.Tensor // (units, 4*units)
	bias      *tensor.Tensor // (4*units)
}

func (c *lstmCell) check(layer, dir string, units int) error {
	if c.kernel.Rank() != 2 || c.kernel.Dim(1) != 4*units {
		return fmt.Errorf("layer %q: %s kernel shape %v does not match units %d", layer, dir, c.kernel.Shape(), units)
	}
	if c.recurrent.Rank() != 2 || c.recurrent.Dim(0) != units || c.recurrent.Dim(1) != 4*units {
		return fmt.Errorf("layer %q: %s recurrent kernel shape %v does not match units %d", layer, dir, c.recurrent.Shape(), units)
	}
	if c.bias.Rank() != 1 || c.bias.Dim(0) != 4*units {
		return fmt.Errorf("layer %q: %s bias shape %v does not match units %d", layer, dir, c.bias.Shape(), units)
	}
	return nil
}

// run processes one sequence (steps × features) in the given direction and
// writes each step's hidden state via emit.
func (c *lstmCell) run(layer string, x *tensor.Tensor, batch int, reverse bool, units int, emit func(step int, h []float32)) error {
	steps, feat := x.Dim(1), x.Dim(2)
	if c.kernel.Dim(0) != feat {
		return fmt.Errorf("layer %q: input features %d do not match kernel input %d", layer, feat, c.kernel.Dim(0))
	}
	h := make([]float32, units)
	cell := make([]float32, units)
	z := make([]float32, 4*units)
	zr := make([]float32, 4*units)
	row := make([]float32, feat)
	for s := 0; s < steps; s++ {
		step := s
		if reverse {
			step = steps - 1 - s
		}
		for f := 0; f < feat; f++ {
			row[f] = x.At3(batch, step, f)
		}
		if err := tensor.MatVec(z, c.kernel, row, c.bias.Data()); err != nil {
			return fmt.Errorf("layer %q: %w", layer, err)
		}
		if err := tensor.MatVec(zr, c.recurrent, h, nil); err != nil {
			return fmt.Errorf("layer %q: %w", layer, err)
		}
		for i := range z {
			z[i] += zr[i]
		}
		for u := 0; u < units; u++ {
			in := tensor.Sigmoid(z[u])
			forget := tensor.Sigmoid(z[units+u])
			cand := tensor.Tanh(z[2*units+u])
			out := tensor.Sigmoid(z[3*units+u])
			cell[u] = forget*cell[u] + in*cand
			h[u] = out * tensor.Tanh(cell[u])
		}
		emit(step, h)
	}
	return nil
}

// bidirectional is a Bidirectional-wrapped LSTM with concatenated forward
// and backward outputs.
type bidirectional struct {
	name     string
	cfg      lstmConfig
	forward  lstmCell
	backward lstmCell
}

func newBidirectional(name string, raw json.RawMessage) (Layer, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("bidirectional %q: missing config", name)
	}
	var cfg lstmConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("bidirectional %q config: %w", name, err)
	}
	if cfg.Units <= 0 {
		return nil, fmt.Errorf("bidirectional %q: units must be positive, got %d", name, cfg.Units)
	}
	return &bidirectional{name: name, cfg: cfg}, nil
}

func (b *bidirectional) Name() string      { return b.name }
func (b *bidirectional) ClassName() string { return "Bidirectional" }

func (b *bidirectional) SetWeights(w map[string]*tensor.Tensor) error {
	err := requireWeights(b.name, w,
		"forward/kernel", "forward/recurrent_kernel", "forward/bias",
		"backward/kernel", "backward/recurrent_kernel", "backward/bias")
	if err != nil {
		return err
	}
	b.forward = lstmCell{kernel: w["forward/kernel"], recurrent: w["forward/recurrent_kernel"], bias: w["forward/bias"]}
	b.backward = lstmCell{kernel: w["backward/kernel"], recurrent: w["backward/recurrent_kernel"], bias: w["backward/bias"]}
	if err := b.forward.check(b.name, "forward", b.cfg.Units); err != nil {
		return err
	}
	return b.backward.check(b.name, "backward", b.cfg.Units)
}

func (b *bidirectional) Call(x *tensor.Tensor) (*tensor.Tensor, error) {
	if x.Rank() != 3 {
		return nil, fmt.Errorf("layer %q: expected rank-3 input, got rank %d", b.name, x.Rank())
	}
	batch, steps := x.Dim(0), x.Dim(1)
	units := b.cfg.Units
	seq := tensor.New(batch, steps, 2*units)
	for bi := 0; bi < batch; bi++ {
		err := b.forward.run(b.name, x, bi, false, units, func(step int, h []float32) {
			for u, v := range h {
				seq.Set3(bi, step, u, v)
			}
		})
		if err != nil {
			return nil, err
		}
		err = b.backward.run(b.name, x, bi, true, units, func(step int, h []float32) {
			for u, v := range h {
				seq.Set3(bi, step, units+u, v)
			}
		})
		if err != nil {
			return nil, err
		}
	}
	if b.cfg.ReturnSequences {
		return seq, nil
	}
	// Without return_sequences the output is the last forward step
	// concatenated with the last backward step (which saw step 0 last).
	out := tensor.New(batch, 2*units)
	for bi := 0; bi < batch; bi++ {
		for u := 0; u < units; u++ {
			out.Set2(bi, u, seq.At3(bi, steps-1, u))
			out.Set2(bi, units+u, seq.At3(bi, 0, units+u))
		}
	}
	return out, nil
}
