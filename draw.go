package facenorm

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/esimov/facenorm/imop"
	"golang.org/x/image/vector"
)

// Marker describes how a landmark point is drawn over an image.
type Marker struct {
	Radius float32
	Color  color.NRGBA
	// Filled draws a disc, otherwise a ring of Stroke width is drawn.
	Filled bool
	Stroke float32
}

var (
	// DetectMarker marks the landmarks on the source image.
	DetectMarker = Marker{Radius: 2, Color: color.NRGBA{G: 0xff, A: 0xff}, Filled: true}
	// NormMarker marks the landmarks on the normalized face.
	NormMarker = Marker{Radius: 3, Color: color.NRGBA{G: 0xff, A: 0xff}, Stroke: 1}
)

// kappa is the control point distance of a cubic Bézier quarter circle.
const kappa = 0.5522847498

// DrawMarkers draws a marker on every point and returns the annotated copy of the image.
func DrawMarkers(img *image.NRGBA, points []Point, m Marker) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	if len(points) == 0 || m.Radius <= 0 {
		return dst
	}

	r := vector.NewRasterizer(b.Dx(), b.Dy())
	for _, p := range points {
		x, y := float32(p.X)-float32(b.Min.X), float32(p.Y)-float32(b.Min.Y)
		circle(r, x, y, m.Radius, false)
		if !m.Filled {
			inner := m.Radius - m.Stroke
			if inner > 0 {
				// The opposite winding cuts the hole out of the disc.
				circle(r, x, y, inner, true)
			}
		}
	}

	mask := image.NewAlpha(image.Rect(0, 0, b.Dx(), b.Dy()))
	r.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})

	layer := image.NewNRGBA(b)
	draw.DrawMask(layer, b, &image.Uniform{m.Color}, image.Point{}, mask, image.Point{}, draw.Src)

	imop.SrcOver(dst, layer, dst, markerBounds(points, m.Radius).Intersect(b))

	return dst
}

// circle adds a closed circle path built of four cubic Bézier curves.
func circle(r *vector.Rasterizer, cx, cy, radius float32, reverse bool) {
	k := radius * kappa
	dir := float32(1)
	if reverse {
		dir = -1
	}

	r.MoveTo(cx+radius, cy)
	r.CubeTo(cx+radius, cy+dir*k, cx+k, cy+dir*radius, cx, cy+dir*radius)
	r.CubeTo(cx-k, cy+dir*radius, cx-radius, cy+dir*k, cx-radius, cy)
	r.CubeTo(cx-radius, cy-dir*k, cx-k, cy-dir*radius, cx, cy-dir*radius)
	r.CubeTo(cx+k, cy-dir*radius, cx+radius, cy-dir*k, cx+radius, cy)
	r.ClosePath()
}

// markerBounds returns the region touched by the markers.
func markerBounds(points []Point, radius float32) image.Rectangle {
	var rect image.Rectangle
	pad := float64(radius) + 1
	for _, p := range points {
		pr := image.Rect(
			int(math.Floor(p.X-pad)), int(math.Floor(p.Y-pad)),
			int(math.Ceil(p.X+pad)), int(math.Ceil(p.Y+pad)),
		)
		rect = rect.Union(pr)
	}
	return rect
}
