package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/knights-analytics/hugot"
	"github.com/sirupsen/logrus"
)

// ErrModelFetch means the model identifier could not be resolved or the hub
// was unreachable.
var ErrModelFetch = errors.New("model fetch failed")

// Fetcher resolves a model identifier into a ready model and its paired
// feature extractor.
type Fetcher interface {
	Fetch(ctx context.Context, identifier string) (Model, *FeatureExtractor, error)
}

// HugotFetcher downloads model repositories from the HuggingFace hub into a
// local cache directory and opens an onnxruntime session over the export.
type HugotFetcher struct {
	CacheDir string
	Log      *logrus.Entry
}

// Fetch downloads (or reuses from cache) the named model. The download
// itself cannot be interrupted midway, so cancellation abandons it and
// returns; a later retry will find the completed files in the cache.
func (f *HugotFetcher) Fetch(ctx context.Context, identifier string) (Model, *FeatureExtractor, error) {
	if identifier == "" {
		return nil, nil, fmt.Errorf("%w: empty model identifier", ErrModelFetch)
	}

	type fetched struct {
		dir string
		err error
	}
	done := make(chan fetched, 1)
	go func() {
		dir, err := hugot.DownloadModel(identifier, f.CacheDir, hugot.NewDownloadOptions())
		done <- fetched{dir: dir, err: err}
	}()

	var modelDir string
	select {
	case <-ctx.Done():
		return nil, nil, fmt.Errorf("%w: fetching %s: %v", ErrModelFetch, identifier, ctx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, nil, fmt.Errorf("%w: fetching %s: %v", ErrModelFetch, identifier, res.err)
		}
		modelDir = res.dir
	}
	f.Log.WithFields(logrus.Fields{"model": identifier, "dir": modelDir}).Info("hub model available")

	onnxPath, err := findONNX(modelDir)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrModelFetch, err)
	}
	model, err := newORTModel(onnxPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrModelFetch, err)
	}
	return model, loadFeatureExtractor(modelDir), nil
}

// Preloaded serves an already fetched model, letting a long-lived process
// load once and share it read-only across requests. The wrapped model is
// not closed per request; the owner closes it at shutdown.
type Preloaded struct {
	Model     Model
	Extractor *FeatureExtractor
}

// Fetch returns the preloaded model regardless of identifier.
func (p *Preloaded) Fetch(context.Context, string) (Model, *FeatureExtractor, error) {
	return noClose{p.Model}, p.Extractor, nil
}

type noClose struct {
	Model
}

func (noClose) Close() error { return nil }
