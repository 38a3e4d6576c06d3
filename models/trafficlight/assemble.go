package trafficlight

import (
	"github.com/nvr-ai/go-trafficlight/images"
	"github.com/nvr-ai/go-trafficlight/models/postprocess"
)

// Detection is a surviving candidate with its class resolved to a label.
type Detection struct {
	Box   images.Rect `json:"box"`
	Label ClassLabel  `json:"label"`
	Score float32     `json:"score"`
}

// Assemble builds one detection per surviving index, in the order given.
//
// Arguments:
//   - candidates: The decoded candidates.
//   - indices: Survivor indices into candidates, as returned by postprocess.Suppress.
//   - labels: The class table.
//
// Returns:
//   - []Detection: The detections.
//   - error: A *LabelLookupError if an index or class falls outside its table.
func Assemble(candidates []postprocess.Candidate, indices []int, labels []ClassLabel) ([]Detection, error) {
	detections := make([]Detection, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(candidates) {
			return nil, &LabelLookupError{Index: idx, Size: len(candidates)}
		}
		c := candidates[idx]

		label, err := LabelAt(labels, c.Class)
		if err != nil {
			return nil, err
		}

		detections = append(detections, Detection{Box: c.Box, Label: label, Score: c.Score})
	}
	return detections, nil
}

// LabelsOf returns the label of every detection, in order.
func LabelsOf(detections []Detection) []ClassLabel {
	out := make([]ClassLabel, len(detections))
	for i, d := range detections {
		out[i] = d.Label
	}
	return out
}
