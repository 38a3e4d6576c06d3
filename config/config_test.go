package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-trafficlight/images"
	"github.com/nvr-ai/go-trafficlight/inference"
	"github.com/nvr-ai/go-trafficlight/inference/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault checks the shipped defaults are valid.
func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, float32(0.25), cfg.ConfThreshold)
	assert.Equal(t, float32(0.45), cfg.IoUThreshold)
	assert.Equal(t, inference.PrecisionFP32, cfg.Precision)
	assert.True(t, cfg.Policy.ForwardImpliesLeft)
	assert.True(t, cfg.Policy.DefaultRight)
}

// TestLoad reads the original key names from a file.
func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model-path: weights/best_fp16.onnx
session-providers:
  - CUDAExecutionProvider
  - CPUExecutionProvider
precision: fp16
conf-threshold: 0.4
iou-threshold: 0.5
fit: letterbox
cuda:
  deviceID: 1
policy:
  forward-implies-left: false
  default-right: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "weights/best_fp16.onnx", cfg.ModelPath)
	assert.Equal(t, inference.PrecisionFP16, cfg.Precision)
	assert.Equal(t, float32(0.4), cfg.ConfThreshold)
	assert.Equal(t, images.FitLetterbox, cfg.Fit)
	assert.False(t, cfg.Policy.ForwardImpliesLeft)
	// Untouched keys keep their defaults.
	assert.Equal(t, float32(0.5), cfg.NMSEta)
	assert.Equal(t, 640, cfg.InputWidth)

	args, err := cfg.EngineArgs()
	require.NoError(t, err)
	assert.Equal(t, []providers.ProviderBackend{providers.CUDAProviderBackend, providers.CPUProviderBackend}, args.Providers.Backends)
	assert.Equal(t, 1, args.Providers.CUDA.DeviceID)
	assert.Equal(t, []int64{1, 12, 6300}, args.OutputShape)

	nms := cfg.NMS()
	assert.Equal(t, float32(0.4), nms.ScoreThreshold)
	assert.Equal(t, float32(0.5), nms.IoUThreshold)
}

// TestValidate rejects out of range values.
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no model", func(c *Config) { c.ModelPath = "" }},
		{"conf zero", func(c *Config) { c.ConfThreshold = 0 }},
		{"conf one", func(c *Config) { c.ConfThreshold = 1 }},
		{"iou negative", func(c *Config) { c.IoUThreshold = -0.1 }},
		{"eta zero", func(c *Config) { c.NMSEta = 0 }},
		{"negative top k", func(c *Config) { c.NMSTopK = -1 }},
		{"precision", func(c *Config) { c.Precision = "int8" }},
		{"fit", func(c *Config) { c.Fit = "stretch" }},
		{"provider", func(c *Config) { c.SessionProviders = []string{"TPUExecutionProvider"} }},
		{"input size", func(c *Config) { c.InputWidth = 100 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TestLoad_Errors covers unreadable and malformed files.
func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)

	_, err = Parse([]byte("conf-threshold: [1, 2]"))
	assert.Error(t, err)

	_, err = Parse([]byte("conf-threshold: 1.5"))
	assert.Error(t, err)
}
