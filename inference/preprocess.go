package inference

import (
	"image"

	"github.com/nvr-ai/go-trafficlight/images"
	"github.com/pkg/errors"
)

// PrepareInput normalises img to the model input size and lays it out as a
// [1, 3, height, width] tensor.
//
// Arguments:
//   - img: The frame to prepare.
//   - fit: How frames that are not width x height are brought to size.
//   - width: Model input width.
//   - height: Model input height.
//
// Returns:
//   - Tensor: The input tensor.
//   - *image.RGBA: The normalised frame, the coordinate space of the detections.
//   - error: An error if the input preparation fails.
func PrepareInput(img image.Image, fit images.Fit, width, height int) (Tensor, *image.RGBA, error) {
	frame, err := images.Normalize(img, fit, height, width)
	if err != nil {
		return Tensor{}, nil, errors.Wrap(err, "normalise input")
	}
	return Tensor{
		Shape: []int64{1, 3, int64(height), int64(width)},
		Data:  images.ToCHW(frame),
	}, frame, nil
}
