package trafficlight

import (
	"github.com/pkg/errors"
)

// DefaultStrides are the YOLOv11 detection head strides.
var DefaultStrides = []int{8, 16, 32}

// Options describes the exported traffic light detector.
type Options struct {
	InputName  string `json:"input_name" yaml:"input-name"`
	OutputName string `json:"output_name" yaml:"output-name"`
	Width      int    `json:"width" yaml:"width"`
	Height     int    `json:"height" yaml:"height"`
	Strides    []int  `json:"strides" yaml:"strides"`
}

// DefaultOptions returns the options of the 640x480 export.
func DefaultOptions() Options {
	return Options{
		InputName:  "images",
		OutputName: "output0",
		Width:      640,
		Height:     480,
		Strides:    DefaultStrides,
	}
}

// Validate checks that the input size is usable by every stride.
func (o Options) Validate() error {
	if o.InputName == "" || o.OutputName == "" {
		return errors.New("model input and output names are required")
	}
	if o.Width <= 0 || o.Height <= 0 {
		return errors.Errorf("invalid model input size %dx%d", o.Width, o.Height)
	}
	if len(o.Strides) == 0 {
		return errors.New("at least one stride is required")
	}
	for _, s := range o.Strides {
		if s <= 0 || o.Width%s != 0 || o.Height%s != 0 {
			return errors.Errorf("input size %dx%d is not divisible by stride %d", o.Width, o.Height, s)
		}
	}
	return nil
}

// AnchorCount returns the number of output rows for an input of width x height.
//
// Arguments:
//   - width: Input width in pixels.
//   - height: Input height in pixels.
//   - strides: The detection head strides.
//
// Returns:
//   - int: Sum over strides of (width/s)*(height/s), 6300 for 640x480.
func AnchorCount(width, height int, strides ...int) int {
	if len(strides) == 0 {
		strides = DefaultStrides
	}
	n := 0
	for _, s := range strides {
		n += (width / s) * (height / s)
	}
	return n
}

// InputShape returns the NCHW input shape.
func (o Options) InputShape() []int64 {
	return []int64{1, 3, int64(o.Height), int64(o.Width)}
}

// OutputShape returns the channels-first output shape [1, 4+C, A].
func (o Options) OutputShape() []int64 {
	return []int64{1, int64(boxFields + o.ClassCount()), int64(AnchorCount(o.Width, o.Height, o.Strides...))}
}

// ClassCount is the number of class score columns the model emits.
func (o Options) ClassCount() int {
	return len(Labels)
}
