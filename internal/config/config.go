// Package config loads service configuration from YAML with environment
// overrides for the file location.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Root is the full configuration tree.
type Root struct {
	Models struct {
		CacheDir     string `yaml:"cache_dir"`
		DefaultHub   string `yaml:"default_hub"`
		ArtifactPath string `yaml:"artifact_path"`
	} `yaml:"models"`
	Timeouts struct {
		FetchSeconds     int `yaml:"fetch_seconds"`
		InferenceSeconds int `yaml:"inference_seconds"`
	} `yaml:"timeouts"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
}

// Defaults returns the configuration used when no file is present.
func Defaults() *Root {
	var cfg Root
	cfg.Models.CacheDir = "./models"
	cfg.Models.DefaultHub = "prithivMLmods/Speech-Emotion-Classification"
	cfg.Models.ArtifactPath = "./models/emotion_bilstm_final.json"
	cfg.Timeouts.FetchSeconds = 120
	cfg.Timeouts.InferenceSeconds = 30
	cfg.Log.Level = "info"
	cfg.Server.Port = "8080"
	return &cfg
}

// Load reads the config file named by SER_CONFIG, falling back to
// ./config.yaml and finally to defaults when neither exists. A file that
// exists but does not parse is an error.
func Load() (*Root, error) {
	paths := []string{os.Getenv("SER_CONFIG"), "config.yaml"}
	for _, p := range paths {
		if p == "" {
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		defer f.Close()
		cfg := Defaults()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return Defaults(), nil
}

// FetchTimeout returns the hub fetch bound as a duration.
func (r *Root) FetchTimeout() time.Duration {
	return time.Duration(r.Timeouts.FetchSeconds) * time.Second
}

// InferTimeout returns the inference bound as a duration.
func (r *Root) InferTimeout() time.Duration {
	return time.Duration(r.Timeouts.InferenceSeconds) * time.Second
}
