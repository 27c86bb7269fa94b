package artifact

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/ser-api/internal/tensor"
)

// ErrInferenceFailed means no candidate (shape, method) combination was
// accepted by the loaded graph.
var ErrInferenceFailed = errors.New("no input shape and invocation method accepted")

// Method is one of the two ways a loaded graph may expose inference.
type Method string

const (
	// MethodDirect invokes the graph through its bound input signature.
	MethodDirect Method = "direct-call"
	// MethodPredict feeds the graph without signature validation.
	MethodPredict Method = "predict-call"
)

// DefaultCandidateShapes lists the candidate probe inputs in priority
// order: (batch, feature-channels, time-steps) first, then the transposed
// (batch, time-steps, feature-channels). Which order the artifact actually
// expects is unknowable from the file alone.
var DefaultCandidateShapes = [][]int{
	{1, 40, 174},
	{1, 174, 40},
}

// sampleLen bounds the diagnostic slice of the probe output.
const sampleLen = 5

// Attempt records one failed (shape, method) trial.
type Attempt struct {
	Shape  []int
	Method Method
	Err    error
}

func (a Attempt) String() string {
	return fmt.Sprintf("shape %v via %s: %v", a.Shape, a.Method, a.Err)
}

// Resolution is the accepted combination plus the output it produced.
// Callers should reuse the combination for subsequent real requests instead
// of probing again.
type Resolution struct {
	Shape       []int
	Method      Method
	OutputShape []int
	Output      []float32
}

// Sample returns the first few output values for diagnostics.
func (r *Resolution) Sample() []float32 {
	if len(r.Output) > sampleLen {
		return r.Output[:sampleLen]
	}
	return r.Output
}

// Probe feeds synthetic inputs through the graph until one (shape, method)
// combination succeeds. Per shape, the direct call is tried before the
// predict call; the first success wins and no further combination is
// attempted. A nil Resolution means every combination failed and the
// returned attempts enumerate each failure.
func Probe(g *Graph, shapes [][]int, log *logrus.Entry) (*Resolution, []Attempt) {
	if len(shapes) == 0 {
		shapes = DefaultCandidateShapes
	}
	rng := rand.New(rand.NewSource(42))

	var attempts []Attempt
	for _, shape := range shapes {
		input := tensor.Randn(rng, shape...)
		for _, method := range []Method{MethodDirect, MethodPredict} {
			var out *tensor.Tensor
			var err error
			switch method {
			case MethodDirect:
				out, err = g.Call(input)
			case MethodPredict:
				out, err = g.Predict(input)
			}
			if err != nil {
				log.WithFields(logrus.Fields{"shape": shape, "method": method}).WithError(err).Debug("probe attempt failed")
				attempts = append(attempts, Attempt{Shape: shape, Method: method, Err: err})
				continue
			}
			res := &Resolution{
				Shape:       shape,
				Method:      method,
				OutputShape: out.Shape(),
				Output:      append([]float32(nil), out.Data()...),
			}
			log.WithFields(logrus.Fields{
				"shape":        shape,
				"method":       method,
				"output_shape": res.OutputShape,
				"sample":       res.Sample(),
			}).Info("probe resolved invocation")
			return res, attempts
		}
	}
	return nil, attempts
}

// UnresolvedError aggregates the per-attempt failures of an unsuccessful
// probe into a single reportable error.
func UnresolvedError(attempts []Attempt) error {
	lines := make([]string, 0, len(attempts))
	for _, a := range attempts {
		lines = append(lines, a.String())
	}
	return fmt.Errorf("%w: %s", ErrInferenceFailed, strings.Join(lines, "; "))
}
