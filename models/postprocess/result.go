// Package postprocess - Postprocessing utilities for detector outputs.
package postprocess

import "github.com/nvr-ai/go-trafficlight/images"

// Candidate is a decoded, not yet suppressed, detection.
type Candidate struct {
	// The bounding box in input-image pixels.
	Box images.Rect
	// The confidence score, the maximum over the class scores.
	Score float32
	// The predicted class index into the label table.
	Class int
}
