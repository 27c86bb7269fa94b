// Package hub classifies audio clips with a pretrained model fetched by
// identifier from a model hub.
package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/ser-api/internal/audio"
	"github.com/Brownie44l1/ser-api/internal/emotion"
)

// ModelTag identifies the hub path in emitted results.
const ModelTag = "huggingface"

// Classifier runs the hub inference path. Every fault is converted into a
// failure result at this boundary; Classify never returns an error.
type Classifier struct {
	Fetcher Fetcher
	Decoder audio.Decoder
	Log     *logrus.Entry

	// FetchTimeout bounds the hub download, InferTimeout the forward pass.
	// Zero means no bound.
	FetchTimeout time.Duration
	InferTimeout time.Duration
}

// Classify fetches the model, decodes and resamples the clip, runs one
// forward pass and maps the softmaxed logits onto the emotion vocabulary.
func (c *Classifier) Classify(ctx context.Context, identifier, audioPath string) *emotion.Result {
	fetchCtx := ctx
	if c.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.FetchTimeout)
		defer cancel()
	}
	c.Log.WithField("model", identifier).Info("loading hub model")
	model, extractor, err := c.Fetcher.Fetch(fetchCtx, identifier)
	if err != nil {
		return emotion.Failure(err, ModelTag)
	}
	defer model.Close()

	wave, err := c.Decoder.Decode(ctx, audioPath, extractor.SamplingRate)
	if err != nil {
		return emotion.Failure(err, ModelTag)
	}
	c.Log.WithFields(logrus.Fields{"path": audioPath, "samples": len(wave), "rate": extractor.SamplingRate}).Info("audio decoded")

	inferCtx := ctx
	if c.InferTimeout > 0 {
		var cancel context.CancelFunc
		inferCtx, cancel = context.WithTimeout(ctx, c.InferTimeout)
		defer cancel()
	}
	logits, err := model.Forward(inferCtx, extractor.Extract(wave))
	if err != nil {
		return emotion.Failure(fmt.Errorf("%w: %v", emotion.ErrClassification, err), ModelTag)
	}

	result, err := emotion.FromProbabilities(emotion.Softmax(logits), ModelTag)
	if err != nil {
		return emotion.Failure(fmt.Errorf("%w: %v", emotion.ErrClassification, err), ModelTag)
	}
	c.Log.WithFields(logrus.Fields{"emotion": result.Emotion, "confidence": result.Confidence}).Info("classification complete")
	return result
}
