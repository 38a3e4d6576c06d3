package providers

import (
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-trafficlight/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseBackend validates the accepted provider spellings.
func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    ProviderBackend
		wantErr bool
	}{
		{"cpu", CPUProviderBackend, false},
		{"CPUExecutionProvider", CPUProviderBackend, false},
		{"CUDAExecutionProvider", CUDAProviderBackend, false},
		{" CoreML ", CoreMLProviderBackend, false},
		{"OpenVINOExecutionProvider", OpenVINOProviderBackend, false},
		{"TensorRTExecutionProvider", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestParseBackends defaults to CPU and stops at the first bad entry.
func TestParseBackends(t *testing.T) {
	got, err := ParseBackends(nil)
	require.NoError(t, err)
	assert.Equal(t, []ProviderBackend{CPUProviderBackend}, got)

	got, err = ParseBackends([]string{"CUDAExecutionProvider", "CPUExecutionProvider"})
	require.NoError(t, err)
	assert.Equal(t, []ProviderBackend{CUDAProviderBackend, CPUProviderBackend}, got)

	_, err = ParseBackends([]string{"cpu", "quantum"})
	assert.Error(t, err)
}

// TestFloat16RoundTrip checks the half precision codec on exactly representable values.
func TestFloat16RoundTrip(t *testing.T) {
	values := []float32{0, 1, -2, 0.5, 0.25, 640, 65504}
	buf := make([]byte, 2*len(values))

	encodeFloat16(buf, values)
	assert.Equal(t, []byte{0x00, 0x3c}, buf[2:4], "1.0 is 0x3c00 little-endian")
	assert.Equal(t, values, decodeFloat16(buf))
}

// TestProviderOptionMaps checks the key names handed to ONNX Runtime.
func TestProviderOptionMaps(t *testing.T) {
	cuda := CUDAOptions{DeviceID: 1, GPUMemLimit: 1 << 30, CudnnConvAlgoSearch: 1, UseTF32: true}.toMap()
	assert.Equal(t, "1", cuda["device_id"])
	assert.Equal(t, "1073741824", cuda["gpu_mem_limit"])
	assert.Equal(t, "HEURISTIC", cuda["cudnn_conv_algo_search"])
	assert.Equal(t, "kNextPowerOfTwo", cuda["arena_extend_strategy"])
	assert.Equal(t, "1", cuda["use_tf32"])

	ov := OpenVINOOptions{DeviceType: "GPU", NumOfThreads: 4}.toMap()
	assert.Equal(t, map[string]string{"device_type": "GPU", "num_of_threads": "4"}, ov)
	assert.Empty(t, OpenVINOOptions{}.toMap())
}

// TestGetSharedLibPath checks the override order.
func TestGetSharedLibPath(t *testing.T) {
	p, err := GetSharedLibPath("/opt/ort/libonnxruntime.so")
	require.NoError(t, err)
	assert.Equal(t, "/opt/ort/libonnxruntime.so", p)

	t.Setenv(LibraryPathEnv, "/env/libonnxruntime.so")
	p, err = GetSharedLibPath("")
	require.NoError(t, err)
	assert.Equal(t, "/env/libonnxruntime.so", p)

	p, err = defaultSharedLibPath("linux", "arm64")
	require.NoError(t, err)
	assert.Equal(t, "./third_party/onnxruntime_arm64.so", p)

	_, err = defaultSharedLibPath("plan9", "386")
	assert.Error(t, err)
}

// TestNewEngine_InvalidArgs fails before touching the native runtime.
func TestNewEngine_InvalidArgs(t *testing.T) {
	valid := NewEngineArgs{
		ModelPath:   filepath.Join(t.TempDir(), "missing.onnx"),
		InputName:   "images",
		OutputName:  "output0",
		InputShape:  []int64{1, 3, 480, 640},
		OutputShape: []int64{1, 12, 6300},
		Precision:   inference.PrecisionFP32,
	}

	tests := []struct {
		name   string
		mutate func(a *NewEngineArgs)
	}{
		{"missing model file", func(a *NewEngineArgs) {}},
		{"no model path", func(a *NewEngineArgs) { a.ModelPath = "" }},
		{"no input name", func(a *NewEngineArgs) { a.InputName = "" }},
		{"empty shape", func(a *NewEngineArgs) { a.OutputShape = nil }},
		{"bad precision", func(a *NewEngineArgs) { a.Precision = "int4" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := valid
			tt.mutate(&args)
			_, err := NewEngine(args, logs.NewTestingLog(t))
			assert.Error(t, err)
		})
	}
}
