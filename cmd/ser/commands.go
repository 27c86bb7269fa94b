package main

import (
	"context"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Brownie44l1/ser-api/internal/artifact"
	"github.com/Brownie44l1/ser-api/internal/audio"
	"github.com/Brownie44l1/ser-api/internal/config"
	"github.com/Brownie44l1/ser-api/internal/emotion"
	"github.com/Brownie44l1/ser-api/internal/handlers"
	"github.com/Brownie44l1/ser-api/internal/hub"
)

// customModelTag marks results produced by the native artifact path.
const customModelTag = "custom-bilstm"

func newRootCmd(log *logrus.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "ser",
		Short:         "Speech emotion classification service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newClassifyCmd(log), newProbeCmd(log), newServeCmd(log))
	return root
}

func loadConfig(log *logrus.Logger) (*config.Root, error) {
	conf, err := config.Load()
	if err != nil {
		return nil, err
	}
	if lvl, err := logrus.ParseLevel(conf.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	return conf, nil
}

func newClassifier(conf *config.Root, log *logrus.Logger) *hub.Classifier {
	return &hub.Classifier{
		Fetcher:      &hub.HugotFetcher{CacheDir: conf.Models.CacheDir, Log: log.WithField("component", "hub")},
		Decoder:      audio.WAVDecoder{},
		Log:          log.WithField("component", "classifier"),
		FetchTimeout: conf.FetchTimeout(),
		InferTimeout: conf.InferTimeout(),
	}
}

func newClassifyCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <model_identifier> <audio_path>",
		Short: "Classify a clip with a pretrained hub model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(log)
			if err != nil {
				return err
			}
			result := newClassifier(conf, log).Classify(cmd.Context(), args[0], args[1])
			return result.Write(os.Stdout)
		},
	}
}

func newProbeCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "probe [artifact_path]",
		Short: "Load the native model artifact and resolve how to invoke it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(log)
			if err != nil {
				return err
			}
			path := conf.Models.ArtifactPath
			if len(args) == 1 {
				path = args[0]
			}
			entry := log.WithField("component", "artifact")

			graph, err := artifact.Load(path, entry)
			if err != nil {
				return emotion.Failure(err, customModelTag).Write(os.Stdout)
			}
			res, attempts := artifact.Probe(graph, nil, entry)
			if res == nil {
				return emotion.Failure(artifact.UnresolvedError(attempts), customModelTag).Write(os.Stdout)
			}
			result, err := emotion.FromProbabilities(asDistribution(res.Output), customModelTag)
			if err != nil {
				return emotion.Failure(err, customModelTag).Write(os.Stdout)
			}
			return result.Write(os.Stdout)
		},
	}
}

// asDistribution passes an already-normalized output through unchanged and
// softmaxes anything else, so probe results read the same whether the final
// layer carried a softmax activation or not.
func asDistribution(out []float32) []float64 {
	var sum float64
	for _, v := range out {
		if v < 0 || v > 1 {
			return emotion.Softmax(out)
		}
		sum += float64(v)
	}
	if sum < 0.999 || sum > 1.001 {
		return emotion.Softmax(out)
	}
	probs := make([]float64, len(out))
	for i, v := range out {
		probs[i] = float64(v)
	}
	return probs
}

func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func newServeCmd(log *logrus.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a long-lived HTTP classification service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(log)
			if err != nil {
				return err
			}
			modelID := conf.Models.DefaultHub

			// Load the model once; requests share it read-only.
			fetchCtx, cancel := context.WithTimeout(cmd.Context(), conf.FetchTimeout())
			defer cancel()
			fetcher := &hub.HugotFetcher{CacheDir: conf.Models.CacheDir, Log: log.WithField("component", "hub")}
			model, extractor, err := fetcher.Fetch(fetchCtx, modelID)
			if err != nil {
				return err
			}
			defer model.Close()

			classifier := newClassifier(conf, log)
			classifier.Fetcher = &hub.Preloaded{Model: model, Extractor: extractor}
			handler := handlers.NewHandler(classifier, modelID, log.WithField("component", "handlers"))

			http.HandleFunc("/health", enableCORS(handler.Health))
			http.HandleFunc("/classify", enableCORS(handler.Classify))

			port := os.Getenv("PORT")
			if port == "" {
				port = conf.Server.Port
			}

			log.WithFields(logrus.Fields{"port": port, "model": modelID}).Info("server starting")
			log.Info("endpoints:")
			log.Info("  GET /health - Health check")
			log.Info("  POST /classify - Classify an uploaded clip")

			return http.ListenAndServe(":"+port, nil)
		},
	}
}
