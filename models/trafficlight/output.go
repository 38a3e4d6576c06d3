package trafficlight

import (
	"slices"

	"gorgonia.org/tensor"
)

// RawOutput is a read-only, row-major N x M view of detector output.
//
// Each row is cx, cy, w, h in input pixels followed by one score per class.
type RawOutput struct {
	rows int
	cols int
	data []float32
}

// NewRawOutput copies data into a rows x cols output.
//
// Arguments:
//   - rows: Number of anchors.
//   - cols: Values per anchor, 4 box fields plus the class scores.
//   - data: Row-major values; len(data) must equal rows*cols.
//
// Returns:
//   - RawOutput: The output.
//   - error: A *ShapeError if the dimensions disagree with the data.
func NewRawOutput(rows, cols int, data []float32) (RawOutput, error) {
	if rows < 0 || cols < 0 || rows*cols != len(data) {
		return RawOutput{}, &ShapeError{
			Shape:  []int{rows, cols},
			Reason: "data length does not match dimensions",
		}
	}
	return RawOutput{rows: rows, cols: cols, data: slices.Clone(data)}, nil
}

// FromModelOutput converts the channels-first YOLO head layout [1, 4+C, N] (or [4+C, N])
// into N rows of 4+C values.
//
// The input slice is not modified.
//
// @example
// raw, err := FromModelOutput([]int64{1, 12, 6300}, out.Data)
// // raw.Rows() == 6300, raw.Cols() == 12
func FromModelOutput(shape []int64, data []float32) (RawOutput, error) {
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}

	if len(dims) == 3 {
		if dims[0] != 1 {
			return RawOutput{}, &ShapeError{Shape: dims, Reason: "batch size must be 1"}
		}
		dims = dims[1:]
	}
	if len(dims) != 2 {
		return RawOutput{}, &ShapeError{Shape: dims, Reason: "expected [1, channels, anchors]"}
	}

	channels, anchors := dims[0], dims[1]
	if channels < 0 || anchors < 0 || channels*anchors != len(data) {
		return RawOutput{}, &ShapeError{Shape: dims, Reason: "data length does not match dimensions"}
	}

	backing := slices.Clone(data)
	// A single row or column has the same memory layout either way round.
	if channels > 1 && anchors > 1 {
		t := tensor.New(tensor.WithShape(channels, anchors), tensor.WithBacking(backing))
		if err := t.T(); err != nil {
			return RawOutput{}, &ShapeError{Shape: dims, Reason: err.Error()}
		}
		if err := t.Transpose(); err != nil {
			return RawOutput{}, &ShapeError{Shape: dims, Reason: err.Error()}
		}
		backing = t.Data().([]float32)
	}

	return RawOutput{rows: anchors, cols: channels, data: backing}, nil
}

// Rows returns N, the number of anchors.
func (o RawOutput) Rows() int { return o.rows }

// Cols returns M, the number of values per anchor.
func (o RawOutput) Cols() int { return o.cols }

// Row returns a copy of row i.
func (o RawOutput) Row(i int) []float32 {
	return slices.Clone(o.row(i))
}

// At returns the value at row i, column j.
func (o RawOutput) At(i, j int) float32 {
	return o.data[i*o.cols+j]
}

func (o RawOutput) row(i int) []float32 {
	return o.data[i*o.cols : (i+1)*o.cols]
}
