package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestToCHW checks planar layout and scaling for both the RGBA fast path and generic images.
func TestToCHW(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 2, 2))
	rgba.SetRGBA(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	rgba.SetRGBA(1, 0, color.RGBA{R: 0, G: 255, B: 0, A: 255})
	rgba.SetRGBA(0, 1, color.RGBA{R: 0, G: 0, B: 255, A: 255})
	rgba.SetRGBA(1, 1, color.RGBA{R: 51, G: 102, B: 204, A: 255})

	nrgba := image.NewNRGBA(rgba.Bounds())
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			nrgba.Set(x, y, rgba.At(x, y))
		}
	}

	want := []float32{
		1, 0, 0, 0.2, // R
		0, 1, 0, 0.4, // G
		0, 0, 1, 0.8, // B
	}

	for name, img := range map[string]image.Image{"rgba": rgba, "nrgba": nrgba} {
		t.Run(name, func(t *testing.T) {
			got := ToCHW(img)
			require.Len(t, got, 12)
			assert.InDeltaSlice(t, want, got, 1e-6)
		})
	}
}

// TestToCHW_SubImage reads only the visible window of an RGBA sub-image.
func TestToCHW_SubImage(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	rgba.SetRGBA(2, 3, color.RGBA{R: 255, A: 255})
	sub := rgba.SubImage(image.Rect(2, 2, 4, 4))

	got := ToCHW(sub)
	require.Len(t, got, 12)
	// (2,3) is row 1, col 0 of the window.
	assert.Equal(t, float32(1), got[2])
	assert.Equal(t, float32(0), got[0])
}
