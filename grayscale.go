package facenorm

import "image"

// Grayscale converts the image to grayscale mode using the Rec. 601 luma weights.
// The returned image has its origin at (0, 0), which is what the cascades expect.
func Grayscale(src *image.NRGBA) *image.Gray {
	b := src.Bounds()
	dx, dy := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, dx, dy))

	for y := 0; y < dy; y++ {
		si := src.PixOffset(b.Min.X, b.Min.Y+y)
		di := dst.PixOffset(0, y)
		for x := 0; x < dx; x++ {
			r, g, bl := src.Pix[si], src.Pix[si+1], src.Pix[si+2]
			lum := float32(r)*0.299 + float32(g)*0.587 + float32(bl)*0.114
			dst.Pix[di+x] = uint8(lum + 0.5)
			si += 4
		}
	}
	return dst
}
