package facenorm

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Point is a real valued image coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ImageCenter returns the rotation center used by RotateImage and RotatePoint.
func ImageCenter(r image.Rectangle) Point {
	return Point{
		X: float64(r.Dx()) / 2.0,
		Y: float64(r.Dy()) / 2.0,
	}
}

// rotationMatrix returns the source to destination affine transformation
// of a rotation about c. A positive angle rotates the content counter clockwise
// on screen (y axis pointing downwards).
func rotationMatrix(c Point, angle float64) f64.Aff3 {
	rad := angle * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)

	return f64.Aff3{
		cos, sin, c.X - cos*c.X - sin*c.Y,
		-sin, cos, c.Y + sin*c.X - cos*c.Y,
	}
}

// RotatePoint rotates p about the center c by angle degrees.
// It applies exactly the same mapping RotateImage applies to the image pixels,
// so a landmark rotated with the same angle keeps annotating the same feature.
func RotatePoint(c Point, angle float64, p Point) Point {
	m := rotationMatrix(c, angle)

	return Point{
		X: m[0]*p.X + m[1]*p.Y + m[2],
		Y: m[3]*p.X + m[4]*p.Y + m[5],
	}
}

// RotateImage rotates the image about its center by angle degrees.
// The canvas is not expanded: the output has the size of the input
// and the uncovered regions are filled with opaque black.
// The source image is expected to have its origin at (0, 0).
func RotateImage(src *image.NRGBA, angle float64) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{color.NRGBA{A: 0xff}}, image.Point{}, draw.Src)

	if angle == 0 {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	s2d := rotationMatrix(ImageCenter(b), angle)
	draw.BiLinear.Transform(dst, s2d, src, b, draw.Over, nil)

	return dst
}
