package providers

import (
	"strconv"

	ort "github.com/yalue/onnxruntime_go"
)

// CUDAOptions contains arguments for the CUDA provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int `json:"deviceID" yaml:"deviceID"`
	// The size limit of the device memory arena in bytes; 0 leaves the provider default.
	GPUMemLimit int64 `json:"gpuMemLimit" yaml:"gpuMemLimit"`
	// 0: kNextPowerOfTwo, 1: kSameAsRequested.
	ArenaExtendStrategy int `json:"arenaExtendStrategy" yaml:"arenaExtendStrategy"`
	// 0: EXHAUSTIVE, 1: HEURISTIC, 2: DEFAULT.
	CudnnConvAlgoSearch int `json:"cudnnConvAlgoSearch" yaml:"cudnnConvAlgoSearch"`
	// Allow TF32 math on Ampere and newer.
	UseTF32 bool `json:"useTF32" yaml:"useTF32"`
}

// toMap renders the options with the key names the CUDA provider expects.
func (o CUDAOptions) toMap() map[string]string {
	m := map[string]string{
		"device_id":              strconv.Itoa(o.DeviceID),
		"arena_extend_strategy":  arenaStrategies[o.ArenaExtendStrategy&1],
		"cudnn_conv_algo_search": convAlgoSearches[min(max(o.CudnnConvAlgoSearch, 0), 2)],
		"use_tf32":               boolFlag(o.UseTF32),
	}
	if o.GPUMemLimit > 0 {
		m["gpu_mem_limit"] = strconv.FormatInt(o.GPUMemLimit, 10)
	}
	return m
}

var arenaStrategies = [...]string{"kNextPowerOfTwo", "kSameAsRequested"}

var convAlgoSearches = [...]string{"EXHAUSTIVE", "HEURISTIC", "DEFAULT"}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ToNativeProviderOptions converts the CUDA options to ONNX Runtime CUDA provider options.
// The caller must Destroy the result.
func (o CUDAOptions) ToNativeProviderOptions() (*ort.CUDAProviderOptions, error) {
	opts, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return nil, err
	}
	if err := opts.Update(o.toMap()); err != nil {
		opts.Destroy()
		return nil, err
	}
	return opts, nil
}
