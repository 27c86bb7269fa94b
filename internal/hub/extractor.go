package hub

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// DefaultSamplingRate is what the wav2vec2 model family expects.
const DefaultSamplingRate = 16000

// FeatureExtractor is the preprocessor paired with a hub model. It mirrors
// the preprocessor_config.json shipped alongside the model weights.
type FeatureExtractor struct {
	SamplingRate int     `json:"sampling_rate"`
	DoNormalize  bool    `json:"do_normalize"`
	PaddingValue float32 `json:"padding_value"`
	FeatureSize  int     `json:"feature_size"`
}

// DefaultFeatureExtractor matches the wav2vec2 defaults, used when a model
// repository ships no preprocessor config.
func DefaultFeatureExtractor() *FeatureExtractor {
	return &FeatureExtractor{
		SamplingRate: DefaultSamplingRate,
		DoNormalize:  true,
		PaddingValue: 0,
		FeatureSize:  1,
	}
}

// loadFeatureExtractor reads preprocessor_config.json from the downloaded
// model directory, falling back to defaults when absent.
func loadFeatureExtractor(modelDir string) *FeatureExtractor {
	fe := DefaultFeatureExtractor()
	raw, err := os.ReadFile(filepath.Join(modelDir, "preprocessor_config.json"))
	if err != nil {
		return fe
	}
	if err := json.Unmarshal(raw, fe); err != nil {
		return DefaultFeatureExtractor()
	}
	if fe.SamplingRate <= 0 {
		fe.SamplingRate = DefaultSamplingRate
	}
	return fe
}

// Extract converts a waveform into the model's input features, padding the
// batch as required. An empty waveform is padded to a single frame so the
// forward pass always sees valid input.
func (fe *FeatureExtractor) Extract(wave []float32) [][]float32 {
	if len(wave) == 0 {
		wave = []float32{fe.PaddingValue}
	}
	features := make([]float32, len(wave))
	copy(features, wave)
	if fe.DoNormalize {
		normalizeMeanVar(features)
	}
	return [][]float32{features}
}

// normalizeMeanVar applies zero-mean unit-variance normalization in place.
func normalizeMeanVar(x []float32) {
	var mean float64
	for _, v := range x {
		mean += float64(v)
	}
	mean /= float64(len(x))
	var variance float64
	for _, v := range x {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(x))
	const eps = 1e-7
	inv := 1 / float32(sqrt(variance+eps))
	for i, v := range x {
		x[i] = (v - float32(mean)) * inv
	}
}
