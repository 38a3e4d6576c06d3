// Package images - Image processing utilities
package images

import (
	"fmt"
	"image"
)

// Rect is a lightweight corner-form bounding box on the pixel grid.
//
// X2,Y2 are exclusive (like image.Rectangle). A Rect may be degenerate (X2 <= X1 or
// Y2 <= Y1) when it comes straight out of a detector; nothing here clamps it.
type Rect struct {
	X1 int `json:"x1" yaml:"x1"`
	Y1 int `json:"y1" yaml:"y1"`
	X2 int `json:"x2" yaml:"x2"`
	Y2 int `json:"y2" yaml:"y2"`
}

// Width returns X2-X1, which can be zero or negative for degenerate boxes.
func (r Rect) Width() int {
	return r.X2 - r.X1
}

// Height returns Y2-Y1, which can be zero or negative for degenerate boxes.
func (r Rect) Height() int {
	return r.Y2 - r.Y1
}

// Area returns the covered pixel area. Degenerate boxes cover nothing.
func (r Rect) Area() int {
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Empty reports whether the box covers no pixels.
func (r Rect) Empty() bool {
	return r.Area() == 0
}

// ToRectangle converts the box to an image.Rectangle for drawing.
//
// The result is canonicalised, so a degenerate box with swapped corners is drawn
// with its corners in the right order.
//
// Returns:
//   - image.Rectangle: The canonical rectangle.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2).Canon()
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.X1, r.Y1, r.X2, r.Y2)
}

// CalculateIoU returns the Intersection over Union of two boxes.
//
// IoU = Area(intersection) / (Area(r) + Area(o) - Area(intersection))
//
// The intersection corners are the max of the top-left corners and the min of the
// bottom-right corners. If that box has no positive width or height the boxes do not
// overlap and the result is 0. Degenerate inputs never produce a NaN: a zero union
// also yields 0.
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0.
//
// Example Usage:
// ```go
//
//	a := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	b := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(a, b) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	// Cast before dividing; integer division would truncate to 0.
	return float32(interArea) / float32(unionArea)
}
