package emotion

import (
	"encoding/json"
	"errors"
	"io"
)

// ErrClassification is the catch-all for faults no more specific error
// covers. The caller still receives a well-formed failure result.
var ErrClassification = errors.New("classification failed")

// Result is the single output contract of the service. Exactly one of the
// success payload (emotion/confidence/scores) and the error message is
// populated.
type Result struct {
	Success    bool               `json:"success"`
	Emotion    string             `json:"emotion,omitempty"`
	Confidence float64            `json:"confidence,omitempty"`
	Scores     map[string]float64 `json:"scores,omitempty"`
	Error      string             `json:"error,omitempty"`
	Model      string             `json:"model,omitempty"`
}

// Failure wraps any error into the standard failure shape.
func Failure(err error, modelTag string) *Result {
	return &Result{
		Success: false,
		Error:   err.Error(),
		Model:   modelTag,
	}
}

// Write emits the result as a single JSON line. This is the only thing the
// process may ever write to the result stream; diagnostics go elsewhere.
func (r *Result) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	return enc.Encode(r)
}
