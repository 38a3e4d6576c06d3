// Package providers - ONNX Runtime execution providers and the session backed engine.
package providers

import (
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend represents different ONNX Runtime execution providers.
type ProviderBackend string

const (
	// CPUProviderBackend runs on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CUDAProviderBackend uses NVIDIA CUDA for GPU acceleration.
	CUDAProviderBackend ProviderBackend = "cuda"
	// CoreMLProviderBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// OpenVINOProviderBackend uses Intel OpenVINO for inference optimization.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// ParseBackend accepts either the short name ("cuda") or the ONNX Runtime provider
// name ("CUDAExecutionProvider"), case-insensitively.
func ParseBackend(s string) (ProviderBackend, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(name, "executionprovider")
	switch b := ProviderBackend(name); b {
	case CPUProviderBackend, CUDAProviderBackend, CoreMLProviderBackend, OpenVINOProviderBackend:
		return b, nil
	}
	return "", errors.Errorf("unsupported execution provider %q", s)
}

// ParseBackends parses a provider priority list. An empty list means CPU only.
func ParseBackends(names []string) ([]ProviderBackend, error) {
	out := make([]ProviderBackend, 0, len(names))
	for _, n := range names {
		b, err := ParseBackend(n)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		out = append(out, CPUProviderBackend)
	}
	return out, nil
}

// Config selects and tunes the execution providers for a session.
type Config struct {
	// Backends in priority order. ONNX Runtime falls back to CPU for unsupported nodes.
	Backends []ProviderBackend `json:"backends" yaml:"backends"`
	// CUDA provider options, used when Backends contains cuda.
	CUDA CUDAOptions `json:"cuda" yaml:"cuda"`
	// OpenVINO provider options, used when Backends contains openvino.
	OpenVINO OpenVINOOptions `json:"openvino" yaml:"openvino"`
	// CoreMLFlags are the COREML_FLAG_* bits passed to the CoreML provider.
	CoreMLFlags uint32 `json:"coremlFlags" yaml:"coremlFlags"`
	// IntraOpThreads sets intra-op parallelism; 0 lets ONNX Runtime decide.
	IntraOpThreads int `json:"intraOpThreads" yaml:"intraOpThreads"`
}

// appendExecutionProviders registers the configured providers on the session options.
//
// Execution Providers (EPs) let ONNX Runtime leverage specialized hardware. CPU needs no
// registration; it is always the final fallback.
func appendExecutionProviders(options *ort.SessionOptions, cfg Config) error {
	for _, backend := range cfg.Backends {
		switch backend {
		case CPUProviderBackend:
		case CoreMLProviderBackend:
			if err := options.AppendExecutionProviderCoreML(cfg.CoreMLFlags); err != nil {
				return errors.Wrap(err, "error enabling CoreML")
			}
		case OpenVINOProviderBackend:
			if err := options.AppendExecutionProviderOpenVINO(cfg.OpenVINO.toMap()); err != nil {
				return errors.Wrap(err, "error enabling OpenVINO")
			}
		case CUDAProviderBackend:
			cuda, err := cfg.CUDA.ToNativeProviderOptions()
			if err != nil {
				return errors.Wrap(err, "error converting CUDA options")
			}
			err = options.AppendExecutionProviderCUDA(cuda)
			cuda.Destroy()
			if err != nil {
				return errors.Wrap(err, "error enabling CUDA")
			}
		default:
			return errors.Errorf("unsupported execution provider %q", backend)
		}
	}
	return nil
}
