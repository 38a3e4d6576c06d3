// Package config - Detector configuration loaded from YAML.
package config

import (
	"os"

	"github.com/nvr-ai/go-trafficlight/images"
	"github.com/nvr-ai/go-trafficlight/inference"
	"github.com/nvr-ai/go-trafficlight/inference/providers"
	"github.com/nvr-ai/go-trafficlight/models/postprocess"
	"github.com/nvr-ai/go-trafficlight/models/trafficlight"
	"github.com/nvr-ai/go-trafficlight/signal"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the full detector configuration. It is loaded once and passed by value.
type Config struct {
	// ONNX model file.
	ModelPath string `json:"model_path" yaml:"model-path"`
	// onnxruntime shared library; empty uses the platform default.
	RuntimeLibrary string `json:"runtime_library" yaml:"runtime-library"`
	// Execution providers in priority order, e.g. CUDAExecutionProvider.
	SessionProviders []string `json:"session_providers" yaml:"session-providers"`
	// fp32 or fp16, the element type of the exported graph.
	Precision inference.Precision `json:"precision" yaml:"precision"`
	// Rows scoring at or below this are discarded.
	ConfThreshold float32 `json:"conf_threshold" yaml:"conf-threshold"`
	// Boxes overlapping a kept box by more than this are suppressed.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou-threshold"`
	// Adaptive NMS decay; 1 disables it.
	NMSEta float32 `json:"nms_eta" yaml:"nms-eta"`
	// Best scoring candidates considered by NMS; 0 is unlimited.
	NMSTopK int `json:"nms_top_k" yaml:"nms-top-k"`
	// Model input size.
	InputWidth  int `json:"input_width" yaml:"input-width"`
	InputHeight int `json:"input_height" yaml:"input-height"`
	// How frames are brought to the input size.
	Fit images.Fit `json:"fit" yaml:"fit"`
	// Intra-op threads for the CPU provider; 0 lets onnxruntime decide.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra-op-threads"`
	// Provider specific tuning.
	CUDA     providers.CUDAOptions     `json:"cuda" yaml:"cuda"`
	OpenVINO providers.OpenVINOOptions `json:"openvino" yaml:"openvino"`
	// Resolver assumptions.
	Policy signal.Policy `json:"policy" yaml:"policy"`
}

// Default returns the configuration the detector ships with.
func Default() Config {
	opts := trafficlight.DefaultOptions()
	nms := postprocess.DefaultNMSConfig()
	return Config{
		ModelPath:        "models/best.onnx",
		SessionProviders: []string{"CPUExecutionProvider"},
		Precision:        inference.PrecisionFP32,
		ConfThreshold:    nms.ScoreThreshold,
		IoUThreshold:     nms.IoUThreshold,
		NMSEta:           nms.Eta,
		InputWidth:       opts.Width,
		InputHeight:      opts.Height,
		Fit:              images.FitCropPad,
		Policy:           signal.DefaultPolicy(),
	}
}

// Load reads a YAML file over the defaults and validates the result.
//
// Arguments:
//   - path: The YAML file.
//
// Returns:
//   - Config: The configuration.
//   - error: An error if the file cannot be read, parsed or is invalid.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model-path is required")
	}
	if !(c.ConfThreshold > 0 && c.ConfThreshold < 1) {
		return errors.Errorf("conf-threshold must be in (0, 1), got %v", c.ConfThreshold)
	}
	if !(c.IoUThreshold > 0 && c.IoUThreshold < 1) {
		return errors.Errorf("iou-threshold must be in (0, 1), got %v", c.IoUThreshold)
	}
	if !(c.NMSEta > 0 && c.NMSEta <= 1) {
		return errors.Errorf("nms-eta must be in (0, 1], got %v", c.NMSEta)
	}
	if c.NMSTopK < 0 {
		return errors.Errorf("nms-top-k must not be negative, got %d", c.NMSTopK)
	}
	if c.IntraOpThreads < 0 {
		return errors.Errorf("intra-op-threads must not be negative, got %d", c.IntraOpThreads)
	}
	if _, err := inference.ParsePrecision(string(c.Precision)); err != nil {
		return err
	}
	if _, err := images.ParseFit(string(c.Fit)); err != nil {
		return err
	}
	if _, err := providers.ParseBackends(c.SessionProviders); err != nil {
		return err
	}
	return c.ModelOptions().Validate()
}

// NMS returns the suppression parameters.
func (c Config) NMS() postprocess.NMSConfig {
	return postprocess.NMSConfig{
		ScoreThreshold: c.ConfThreshold,
		IoUThreshold:   c.IoUThreshold,
		Eta:            c.NMSEta,
		TopK:           c.NMSTopK,
	}
}

// ModelOptions returns the model description for the configured input size.
func (c Config) ModelOptions() trafficlight.Options {
	opts := trafficlight.DefaultOptions()
	opts.Width = c.InputWidth
	opts.Height = c.InputHeight
	return opts
}

// EngineArgs returns the arguments for an ONNX Runtime engine. The config must be valid.
func (c Config) EngineArgs() (providers.NewEngineArgs, error) {
	backends, err := providers.ParseBackends(c.SessionProviders)
	if err != nil {
		return providers.NewEngineArgs{}, err
	}
	opts := c.ModelOptions()
	return providers.NewEngineArgs{
		ModelPath:   c.ModelPath,
		LibraryPath: c.RuntimeLibrary,
		InputName:   opts.InputName,
		OutputName:  opts.OutputName,
		InputShape:  opts.InputShape(),
		OutputShape: opts.OutputShape(),
		Precision:   c.Precision,
		Providers: providers.Config{
			Backends:       backends,
			CUDA:           c.CUDA,
			OpenVINO:       c.OpenVINO,
			IntraOpThreads: c.IntraOpThreads,
		},
	}, nil
}
