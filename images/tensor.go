package images

import "image"

// ToCHW flattens img into three planar RGB channels scaled to [0, 1].
//
// The layout is [R..., G..., B...], each plane row-major, which is the NCHW layout
// YOLO-style ONNX models expect once a batch axis of 1 is added.
//
// Arguments:
//   - img: The (already normalised) input frame.
//
// Returns:
//   - []float32: A newly allocated slice of length 3 * width * height.
func ToCHW(img image.Image) []float32 {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	channelSize := width * height
	data := make([]float32, channelSize*3)

	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	if rgba, ok := img.(*image.RGBA); ok {
		i := 0
		for y := 0; y < height; y++ {
			row := rgba.Pix[(y+b.Min.Y-rgba.Rect.Min.Y)*rgba.Stride+(b.Min.X-rgba.Rect.Min.X)*4:]
			for x := 0; x < width; x++ {
				red[i] = float32(row[x*4]) / 255.0
				green[i] = float32(row[x*4+1]) / 255.0
				blue[i] = float32(row[x*4+2]) / 255.0
				i++
			}
		}
		return data
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
			i++
		}
	}
	return data
}
