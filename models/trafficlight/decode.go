package trafficlight

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-trafficlight/images"
	"github.com/nvr-ai/go-trafficlight/models/postprocess"
)

const boxFields = 4

// Decode turns raw detector rows into candidates.
//
// For every row the score is the maximum class score and the class is its first argmax.
// Rows scoring strictly above threshold become candidates. The box fields are truncated
// to integers and converted from centre form with
//
//	x1 = cx - w>>1, y1 = cy - h>>1, x2 = x1 + w, y2 = y1 + h
//
// Boxes are not clamped to the image.
//
// Arguments:
//   - raw: The detector output.
//   - threshold: The confidence threshold.
//
// Returns:
//   - []postprocess.Candidate: The candidates in row order, empty when nothing passes.
//   - error: A *ShapeError if the row width does not match Labels or a value is not finite.
func Decode(raw RawOutput, threshold float32) ([]postprocess.Candidate, error) {
	return DecodeClasses(raw, threshold, len(Labels))
}

// DecodeClasses is Decode for a label table of the given size. Rows must carry exactly
// classes scores after the box fields.
func DecodeClasses(raw RawOutput, threshold float32, classes int) ([]postprocess.Candidate, error) {
	if classes < 1 || raw.cols < boxFields+1 || raw.cols-boxFields != classes {
		return nil, &ShapeError{
			Shape:  []int{raw.rows, raw.cols},
			Reason: fmt.Sprintf("expected %d columns (4 box fields and %d classes)", boxFields+classes, classes),
		}
	}

	candidates := make([]postprocess.Candidate, 0)
	for i := 0; i < raw.rows; i++ {
		row := raw.row(i)

		class := 0
		score := row[boxFields]
		for j := boxFields; j < len(row); j++ {
			v := row[j]
			if math32.IsNaN(v) || math32.IsInf(v, 0) {
				return nil, nonFinite(raw, i, j)
			}
			if v > score {
				score = v
				class = j - boxFields
			}
		}
		if score <= threshold {
			continue
		}

		for j := 0; j < boxFields; j++ {
			if math32.IsNaN(row[j]) || math32.IsInf(row[j], 0) {
				return nil, nonFinite(raw, i, j)
			}
		}

		cx, cy, w, h := int(row[0]), int(row[1]), int(row[2]), int(row[3])
		x1 := cx - w>>1
		y1 := cy - h>>1

		candidates = append(candidates, postprocess.Candidate{
			Box:   images.Rect{X1: x1, Y1: y1, X2: x1 + w, Y2: y1 + h},
			Score: score,
			Class: class,
		})
	}

	return candidates, nil
}

func nonFinite(raw RawOutput, i, j int) *ShapeError {
	return &ShapeError{
		Shape:  []int{raw.rows, raw.cols},
		Reason: fmt.Sprintf("non-finite value at row %d column %d", i, j),
	}
}
