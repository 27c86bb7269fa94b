// Package audio decodes clips into the mono float32 waveform the
// classifiers consume.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// ErrAudioLoad means the clip could not be read or decoded.
var ErrAudioLoad = errors.New("audio load failed")

// Decoder turns an audio file into a mono waveform at the requested sample
// rate.
type Decoder interface {
	Decode(ctx context.Context, path string, targetRate int) ([]float32, error)
}

// WAVDecoder decodes RIFF/WAV files.
type WAVDecoder struct{}

// Decode reads a WAV file, downmixes it to mono and resamples it to
// targetRate.
func (WAVDecoder) Decode(ctx context.Context, path string, targetRate int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAudioLoad, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: %s is not a valid WAV file", ErrAudioLoad, path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrAudioLoad, path, err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("%w: %s contains no samples", ErrAudioLoad, path)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	wave := normalize(buf.Data, bitDepth)
	if buf.Format != nil && buf.Format.NumChannels > 1 {
		wave = downmix(wave, buf.Format.NumChannels)
	}
	sourceRate := int(dec.SampleRate)
	if sourceRate <= 0 {
		return nil, fmt.Errorf("%w: %s reports sample rate %d", ErrAudioLoad, path, sourceRate)
	}
	return Resample(wave, sourceRate, targetRate), nil
}

// normalize scales integer PCM samples into [-1, 1].
func normalize(samples []int, bitDepth int) []float32 {
	scale := float32(int64(1) << (bitDepth - 1))
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / scale
	}
	return out
}

// downmix averages interleaved channels into mono.
func downmix(samples []float32, channels int) []float32 {
	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var acc float32
		for c := 0; c < channels; c++ {
			acc += samples[i*channels+c]
		}
		out[i] = acc / float32(channels)
	}
	return out
}

// Resample converts a waveform between sample rates by linear
// interpolation. Equal rates return the input unchanged.
func Resample(wave []float32, from, to int) []float32 {
	if from == to || len(wave) == 0 {
		return wave
	}
	ratio := float64(from) / float64(to)
	n := int(float64(len(wave)) / ratio)
	if n < 1 {
		n = 1
	}
	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(wave)-1 {
			out[i] = wave[len(wave)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = wave[idx]*(1-frac) + wave[idx+1]*frac
	}
	return out
}
