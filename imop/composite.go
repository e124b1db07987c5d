// Package imop implements the source-over Porter-Duff composition on
// straight alpha NRGBA images, without the premultiplied round trip
// of the image/draw core package.
//
// It is used for rendering the landmark markers over the face images.
package imop

import "image"

// SrcOver composes src over backdrop inside r and stores the result in dst.
// The three images have to share the same coordinate space; dst may be backdrop.
func SrcOver(dst, src, backdrop *image.NRGBA, r image.Rectangle) {
	r = r.Intersect(dst.Bounds()).Intersect(src.Bounds()).Intersect(backdrop.Bounds())

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			si, bi, di := src.PixOffset(x, y), backdrop.PixOffset(x, y), dst.PixOffset(x, y)
			s := src.Pix[si : si+4 : si+4]
			b := backdrop.Pix[bi : bi+4 : bi+4]

			as, ab := float64(s[3])/255, float64(b[3])/255
			fb := 1 - as

			// Premultiplied composition, converted back to straight alpha.
			ao := as + ab*fb
			d := dst.Pix[di : di+4 : di+4]
			if ao == 0 {
				d[0], d[1], d[2], d[3] = 0, 0, 0, 0
				continue
			}
			for i := 0; i < 3; i++ {
				co := (float64(s[i])*as + float64(b[i])*ab*fb) / ao
				d[i] = uint8(co + 0.5)
			}
			d[3] = uint8(ao*255 + 0.5)
		}
	}
}
