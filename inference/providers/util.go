package providers

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// LibraryPathEnv overrides the ONNX Runtime shared library location.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

// GetSharedLibPath returns the path to the shared library for the current platform.
//
// An explicit path wins, then LibraryPathEnv, then the per-platform default under
// ./third_party.
//
// Arguments:
//   - explicit: A configured path, may be empty.
//
// Returns:
//   - string: The path to the shared library.
//   - error: An error if the platform has no default.
func GetSharedLibPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if p := os.Getenv(LibraryPathEnv); p != "" {
		return p, nil
	}
	return defaultSharedLibPath(runtime.GOOS, runtime.GOARCH)
}

func defaultSharedLibPath(goos, goarch string) (string, error) {
	switch goos {
	case "windows":
		if goarch == "amd64" {
			return "./third_party/onnxruntime.dll", nil
		}
	case "darwin":
		return "./third_party/libonnxruntime.dylib", nil
	case "linux":
		if goarch == "arm64" {
			return "./third_party/onnxruntime_arm64.so", nil
		}
		return "./third_party/onnxruntime.so", nil
	}
	return "", errors.Errorf("no onnxruntime library known for %s/%s", goos, goarch)
}
