package hub

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

func sqrt(x float64) float64 { return math.Sqrt(x) }

// Model is a fetched hub model ready for inference.
type Model interface {
	// Forward runs one inference-only pass and returns the raw logits.
	Forward(ctx context.Context, features [][]float32) ([]float32, error)
	Close() error
}

// Input/output names of the wav2vec2 sequence-classification ONNX export.
const (
	inputName  = "input_values"
	outputName = "logits"
)

var ortInit sync.Once

func initRuntime() error {
	var err error
	ortInit.Do(func() {
		if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		}
		err = ort.InitializeEnvironment()
	})
	return err
}

// ortModel wraps an onnxruntime session over a downloaded model export.
type ortModel struct {
	session *ort.DynamicAdvancedSession
}

func newORTModel(onnxPath string) (*ortModel, error) {
	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}
	session, err := ort.NewDynamicAdvancedSession(onnxPath,
		[]string{inputName}, []string{outputName}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &ortModel{session: session}, nil
}

func (m *ortModel) Forward(ctx context.Context, features [][]float32) ([]float32, error) {
	if len(features) != 1 {
		return nil, fmt.Errorf("expected a single-clip batch, got %d", len(features))
	}
	input, err := ort.NewTensor(ort.NewShape(1, int64(len(features[0]))), features[0])
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	done := make(chan error, 1)
	go func() {
		done <- m.session.Run([]ort.Value{input}, outputs)
	}()
	select {
	case <-ctx.Done():
		// The run finishes on its own; the result is discarded.
		go func() {
			if <-done == nil {
				if out := outputs[0]; out != nil {
					out.Destroy()
				}
			}
		}()
		return nil, fmt.Errorf("inference cancelled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}
	}

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}
	defer out.Destroy()
	logits := append([]float32(nil), out.GetData()...)
	return logits, nil
}

func (m *ortModel) Close() error {
	if m.session != nil {
		return m.session.Destroy()
	}
	return nil
}

// findONNX locates the model export inside a downloaded repository, which
// may keep it at the top level or under onnx/.
func findONNX(modelDir string) (string, error) {
	candidates := []string{
		filepath.Join(modelDir, "model.onnx"),
		filepath.Join(modelDir, "onnx", "model.onnx"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	matches, _ := filepath.Glob(filepath.Join(modelDir, "*.onnx"))
	if len(matches) > 0 {
		return matches[0], nil
	}
	return "", fmt.Errorf("no ONNX export found under %s", modelDir)
}
