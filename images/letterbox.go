package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Fit selects how an arbitrary camera frame is brought to the model input size.
type Fit string

const (
	// FitCropPad centre-crops anything larger than the target and pads the rest.
	FitCropPad Fit = "crop-pad"
	// FitLetterbox scales the frame down to fit, keeping the aspect ratio, then pads.
	FitLetterbox Fit = "letterbox"
)

// PadColor is the fill used for padded borders.
var PadColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// ParseFit validates a fit mode name.
func ParseFit(s string) (Fit, error) {
	switch Fit(s) {
	case FitCropPad, FitLetterbox:
		return Fit(s), nil
	case "":
		return FitCropPad, nil
	}
	return "", errors.Errorf("unknown fit mode %q (want %q or %q)", s, FitCropPad, FitLetterbox)
}

// Normalize brings img to exactly width x height using the given fit mode.
//
// Arguments:
//   - img: The source frame.
//   - fit: The fit mode.
//   - height: Target height in pixels.
//   - width: Target width in pixels.
//
// Returns:
//   - *image.RGBA: A new image; the source is never modified.
//   - error: An error if the target size or fit mode is invalid.
func Normalize(img image.Image, fit Fit, height, width int) (*image.RGBA, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	if height <= 0 || width <= 0 {
		return nil, errors.Errorf("invalid target size %dx%d", width, height)
	}
	switch fit {
	case FitCropPad, "":
		return CropAndPad(img, height, width), nil
	case FitLetterbox:
		return Letterbox(img, height, width), nil
	}
	return nil, errors.Errorf("unknown fit mode %q", fit)
}

// CropAndPad centre-crops img to at most width x height and pads the remainder with
// PadColor so the result is exactly width x height.
//
// The crop origin is ((w-width)/2, (h-height)/2) when the source is larger; the pad
// offset is ((width-cw)/2, (height-ch)/2), so any odd pixel lands on the right/bottom.
//
// @example
// frame := image.NewRGBA(image.Rect(0, 0, 1920, 1080))
// input := CropAndPad(frame, 480, 640) // 640x480, cropped from the centre
func CropAndPad(img image.Image, height, width int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	startX := max((w-width)/2, 0)
	startY := max((h-height)/2, 0)
	cw := min(width, w)
	ch := min(height, h)

	left := max((width-cw)/2, 0)
	top := max((height-ch)/2, 0)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: PadColor}, image.Point{}, draw.Src)

	src := image.Pt(b.Min.X+startX, b.Min.Y+startY)
	draw.Draw(dst, image.Rect(left, top, left+cw, top+ch), img, src, draw.Src)
	return dst
}

// Letterbox scales img down (never up) to fit inside width x height keeping the
// aspect ratio, then centres it on a PadColor canvas.
func Letterbox(img image.Image, height, width int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return CropAndPad(img, height, width)
	}

	scale := math32.Min(float32(width)/float32(w), float32(height)/float32(h))
	if scale < 1 {
		nw := max(int(math32.Round(float32(w)*scale)), 1)
		nh := max(int(math32.Round(float32(h)*scale)), 1)
		img = resize.Resize(uint(nw), uint(nh), img, resize.Lanczos3)
	}
	return CropAndPad(img, height, width)
}
