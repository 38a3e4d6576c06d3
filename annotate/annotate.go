// Package annotate - Draws detections and the legality lamps onto frames with OpenCV.
package annotate

import (
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/nvr-ai/go-trafficlight/models/trafficlight"
	"github.com/nvr-ai/go-trafficlight/signal"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

var (
	// Red marks boxes, labels and forbidden movements.
	Red = color.RGBA{R: 255, A: 255}
	// Green marks allowed movements.
	Green = color.RGBA{G: 255, A: 255}
)

// Lamp geometry: one filled circle per movement, left to right.
const (
	LampRadius = 12
	LampY      = 20
)

// LampCenters are the left, straight and right lamp positions.
var LampCenters = [3]image.Point{{X: 20, Y: LampY}, {X: 50, Y: LampY}, {X: 80, Y: LampY}}

// Draw paints each detection box with its label and the three legality lamps onto img.
//
// Arguments:
//   - img: A BGR frame, modified in place.
//   - detections: Boxes in the frame's pixel coordinates.
//   - state: The legality state for the lamps.
func Draw(img *gocv.Mat, detections []trafficlight.Detection, state signal.State) {
	for _, d := range detections {
		gocv.Rectangle(img, d.Box.ToRectangle(), Red, 1)
		gocv.PutText(img, d.Label.String(), image.Pt(d.Box.X1, d.Box.Y1), gocv.FontHersheySimplex, 0.4, Red, 1)
	}

	for i, allowed := range []bool{state.Left, state.Straight, state.Right} {
		c := Red
		if allowed {
			c = Green
		}
		gocv.Circle(img, LampCenters[i], LampRadius, c, -1)
	}
}

// Render converts frame to a BGR Mat and draws onto it. The caller must Close the Mat.
func Render(frame image.Image, detections []trafficlight.Detection, state signal.State) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "convert frame")
	}
	Draw(&mat, detections, state)
	return mat, nil
}

// ResultName returns the output file name for an input image.
func ResultName(input string) string {
	return "result_" + filepath.Base(input)
}

// Save renders frame and writes it to dir as result_<name>.
//
// Returns:
//   - string: The written path.
//   - error: An error if the directory cannot be created or the encoder fails.
func Save(dir, name string, frame image.Image, detections []trafficlight.Detection, state signal.State) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create output directory")
	}
	mat, err := Render(frame, detections, state)
	if err != nil {
		return "", err
	}
	defer mat.Close()

	path := filepath.Join(dir, ResultName(name))
	if !gocv.IMWrite(path, mat) {
		return "", errors.Errorf("failed to write %s", path)
	}
	return path, nil
}
