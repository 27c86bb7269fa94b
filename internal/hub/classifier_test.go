package hub

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/ser-api/internal/audio"
	"github.com/Brownie44l1/ser-api/internal/emotion"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

type fakeModel struct {
	logits []float32
	err    error
	closed bool
}

func (m *fakeModel) Forward(context.Context, [][]float32) ([]float32, error) {
	return m.logits, m.err
}

func (m *fakeModel) Close() error {
	m.closed = true
	return nil
}

type fakeFetcher struct {
	model     *fakeModel
	extractor *FeatureExtractor
	err       error
}

func (f *fakeFetcher) Fetch(context.Context, string) (Model, *FeatureExtractor, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.model, f.extractor, nil
}

type fakeDecoder struct {
	wave []float32
	err  error
}

func (d fakeDecoder) Decode(context.Context, string, int) ([]float32, error) {
	return d.wave, d.err
}

func newTestClassifier(fetcher Fetcher, decoder audio.Decoder) *Classifier {
	return &Classifier{
		Fetcher: fetcher,
		Decoder: decoder,
		Log:     testLog(),
	}
}

func TestClassifyUnreachableHubReturnsFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("%w: host unreachable", ErrModelFetch)}
	c := newTestClassifier(fetcher, fakeDecoder{})

	res := c.Classify(context.Background(), "someone/some-model", "clip.wav")
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, ModelTag, res.Model)
	assert.Empty(t, res.Emotion)
}

func TestClassifySilentClip(t *testing.T) {
	model := &fakeModel{logits: make([]float32, emotion.NumLabels)}
	c := newTestClassifier(
		&fakeFetcher{model: model, extractor: DefaultFeatureExtractor()},
		fakeDecoder{wave: make([]float32, 16000)},
	)

	res := c.Classify(context.Background(), "someone/some-model", "silence.wav")
	require.True(t, res.Success, "silence must classify, not crash: %s", res.Error)
	assert.NotEmpty(t, res.Emotion)
	require.Len(t, res.Scores, emotion.NumLabels)
	var sum float64
	for _, label := range emotion.Labels {
		score, ok := res.Scores[label]
		require.True(t, ok, "missing label %s", label)
		assert.GreaterOrEqual(t, score, 0.0)
		sum += score
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
	assert.True(t, model.closed, "per-request models must be closed")
}

func TestClassifyDominantEmotion(t *testing.T) {
	// Logits chosen so softmax puts the mass on index 4 ("happy").
	logits := []float32{0, -1, -1, 0, 3, 0, -1, -1}
	c := newTestClassifier(
		&fakeFetcher{model: &fakeModel{logits: logits}, extractor: DefaultFeatureExtractor()},
		fakeDecoder{wave: []float32{0.5, -0.5}},
	)

	res := c.Classify(context.Background(), "someone/some-model", "clip.wav")
	require.True(t, res.Success)
	assert.Equal(t, "happy", res.Emotion)
	assert.InDelta(t, res.Scores["happy"], res.Confidence, 1e-9)
}

func TestClassifyAudioFailure(t *testing.T) {
	c := newTestClassifier(
		&fakeFetcher{model: &fakeModel{}, extractor: DefaultFeatureExtractor()},
		fakeDecoder{err: fmt.Errorf("%w: truncated file", audio.ErrAudioLoad)},
	)

	res := c.Classify(context.Background(), "someone/some-model", "broken.wav")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "audio load failed")
}

func TestClassifyRejectsWrongHeadSize(t *testing.T) {
	c := newTestClassifier(
		&fakeFetcher{model: &fakeModel{logits: make([]float32, 9)}, extractor: DefaultFeatureExtractor()},
		fakeDecoder{wave: []float32{0.1}},
	)

	res := c.Classify(context.Background(), "someone/some-model", "clip.wav")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "expected 8")
}

func TestClassifyInferenceFault(t *testing.T) {
	c := newTestClassifier(
		&fakeFetcher{model: &fakeModel{err: errors.New("session exploded")}, extractor: DefaultFeatureExtractor()},
		fakeDecoder{wave: []float32{0.1}},
	)

	res := c.Classify(context.Background(), "someone/some-model", "clip.wav")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "session exploded")
}

func TestPreloadedFetcherDoesNotCloseShared(t *testing.T) {
	model := &fakeModel{logits: make([]float32, emotion.NumLabels)}
	pre := &Preloaded{Model: model, Extractor: DefaultFeatureExtractor()}
	c := newTestClassifier(pre, fakeDecoder{wave: []float32{0.1, 0.2}})

	for i := 0; i < 3; i++ {
		res := c.Classify(context.Background(), "ignored", "clip.wav")
		require.True(t, res.Success)
	}
	assert.False(t, model.closed, "preloaded model must survive requests")
}

func TestExtractNormalizes(t *testing.T) {
	fe := DefaultFeatureExtractor()
	feats := fe.Extract([]float32{1, 3})
	require.Len(t, feats, 1)
	require.Len(t, feats[0], 2)
	// Zero mean, unit variance.
	assert.InDelta(t, -1, feats[0][0], 1e-3)
	assert.InDelta(t, 1, feats[0][1], 1e-3)
}

func TestExtractHandlesSilenceAndEmpty(t *testing.T) {
	fe := DefaultFeatureExtractor()

	for _, wave := range [][]float32{nil, make([]float32, 100)} {
		feats := fe.Extract(wave)
		require.Len(t, feats, 1)
		require.NotEmpty(t, feats[0])
		for _, v := range feats[0] {
			assert.False(t, math.IsNaN(float64(v)))
			assert.False(t, math.IsInf(float64(v), 0))
		}
	}
}
