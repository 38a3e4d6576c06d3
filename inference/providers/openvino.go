package providers

import "strconv"

// OpenVINOOptions contains arguments for the OpenVINO provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// Accelerator to run on, e.g. CPU, GPU or NPU. Empty uses the build default.
	DeviceType string `json:"deviceType" yaml:"deviceType"`
	// FP32, FP16 or ACCURACY. Empty uses the device default.
	Precision string `json:"precision" yaml:"precision"`
	// Overrides the default of 8 inference threads.
	NumOfThreads int `json:"numOfThreads" yaml:"numOfThreads"`
	// Overrides the default of 1 stream.
	NumStreams int `json:"numStreams" yaml:"numStreams"`
	// Directory for compiled blobs.
	CacheDir string `json:"cacheDir" yaml:"cacheDir"`
}

func (o OpenVINOOptions) toMap() map[string]string {
	m := map[string]string{}
	if o.DeviceType != "" {
		m["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		m["precision"] = o.Precision
	}
	if o.NumOfThreads > 0 {
		m["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	if o.NumStreams > 0 {
		m["num_streams"] = strconv.Itoa(o.NumStreams)
	}
	if o.CacheDir != "" {
		m["cache_dir"] = o.CacheDir
	}
	return m
}
