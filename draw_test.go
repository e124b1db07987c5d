package facenorm

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func grayNRGBA(w, h int, v uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 0xff
	}
	return img
}

func TestDraw_FilledMarker(t *testing.T) {
	src := grayNRGBA(20, 20, 100)

	out := DrawMarkers(src, []Point{{X: 10, Y: 10}}, DetectMarker)
	assert.Equal(t, color.NRGBA{G: 0xff, A: 0xff}, out.NRGBAAt(10, 10))
	// Far from the marker the pixels are untouched.
	assert.Equal(t, color.NRGBA{R: 100, G: 100, B: 100, A: 0xff}, out.NRGBAAt(1, 1))
	// The source is not modified.
	assert.Equal(t, color.NRGBA{R: 100, G: 100, B: 100, A: 0xff}, src.NRGBAAt(10, 10))
}

func TestDraw_RingMarker(t *testing.T) {
	src := grayNRGBA(20, 20, 100)

	out := DrawMarkers(src, []Point{{X: 10, Y: 10}}, NormMarker)
	assert.Equal(t, color.NRGBA{R: 100, G: 100, B: 100, A: 0xff}, out.NRGBAAt(10, 10))

	ring := out.NRGBAAt(12, 10)
	assert.Greater(t, ring.G, ring.R)
}

func TestDraw_NoPoints(t *testing.T) {
	src := grayNRGBA(8, 8, 40)

	out := DrawMarkers(src, nil, DetectMarker)
	assert.Equal(t, src.Pix, out.Pix)
	assert.NotSame(t, src, out)
}
