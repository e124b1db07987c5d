package facenorm

import (
	"fmt"
	"image"
	"math"

	"github.com/esimov/facenorm/utils"
)

const (
	// DefaultNormSize is the side of the square face produced by DetectNorm.
	DefaultNormSize = 100
	// DefaultPatchSize is the context border DetectNorm keeps around the landmarks.
	DefaultPatchSize = 30
)

// BoundingBox is a real valued crop region in (rotated) image coordinates.
type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Width returns the box width.
func (b BoundingBox) Width() float64 {
	return b.MaxX - b.MinX
}

// Height returns the box height.
func (b BoundingBox) Height() float64 {
	return b.MaxY - b.MinY
}

// Within reports whether the box lies entirely inside an image of size w x h.
func (b BoundingBox) Within(w, h int) bool {
	return b.MinX >= 0 && b.MinY >= 0 && b.MaxX <= float64(w) && b.MaxY <= float64(h)
}

// Rect converts the box into the integer crop rectangle. The origin is truncated
// and the size is truncated separately, the same way the landmarks are remapped.
func (b BoundingBox) Rect() image.Rectangle {
	x, y := int(b.MinX), int(b.MinY)
	return image.Rect(x, y, x+int(b.Width()), y+int(b.Height()))
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f, %.2f)", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// Extent returns the tightest box containing all the points.
func Extent(points []Point) BoundingBox {
	box := BoundingBox{
		MinX: math.Inf(1),
		MinY: math.Inf(1),
		MaxX: math.Inf(-1),
		MaxY: math.Inf(-1),
	}
	for _, p := range points {
		box.MinX = math.Min(box.MinX, p.X)
		box.MinY = math.Min(box.MinY, p.Y)
		box.MaxX = math.Max(box.MaxX, p.X)
		box.MaxY = math.Max(box.MaxY, p.Y)
	}
	return box
}

// SquareBox extends the landmark extent to a square and adds the patch margin
// required by a normSize x normSize output keeping patchSize context pixels.
//
// The margin is (patchSize/2 + 1) / (normSize - patchSize - 2) times the square
// side, truncated to an integer, plus one pixel on every edge.
func SquareBox(extent BoundingBox, normSize, patchSize int) BoundingBox {
	box := extent

	margin := box.Width() - box.Height()
	if margin > 0 {
		box.MaxY += margin / 2
		box.MinY -= margin / 2
	} else {
		margin = utils.Abs(margin)
		box.MaxX += margin / 2
		box.MinX -= margin / 2
	}

	region := float64(int((float64(patchSize)/2 + 1) / float64(normSize-patchSize-2) * box.Width()))

	box.MinX -= region + 1
	box.MaxX += region + 1
	box.MinY -= region + 1
	box.MaxY += region + 1

	return box
}

// AspectBox extends the landmark extent to the aspect ratio of the
// (faceWidth-patchSize) x (faceHeight-patchSize) face area and adds
// the scaled patch margin on every side.
func AspectBox(extent BoundingBox, faceWidth, faceHeight, patchSize float64) BoundingBox {
	box := extent

	whRatio := (faceWidth - patchSize) / (faceHeight - patchSize)
	curRatio := box.Width() / box.Height()

	if curRatio >= whRatio {
		// Fit the width, extend the height.
		region := box.Width()/whRatio - box.Height()
		box.MinY -= region / 2
		box.MaxY += region / 2
	} else {
		// Fit the height, extend the width.
		region := box.Height()*whRatio - box.Width()
		box.MinX -= region / 2
		box.MaxX += region / 2
	}

	px := box.Width() / (faceWidth - patchSize) * patchSize / 2
	py := box.Height() / (faceHeight - patchSize) * patchSize / 2

	box.MinX -= px + 2
	box.MaxX += px + 2
	box.MinY -= py + 2
	box.MaxY += py + 2

	return box
}

// validateBox checks the derived box against the image size.
func validateBox(box BoundingBox, w, h int) error {
	if !(box.Width() > 0 && box.Height() > 0) {
		return fmt.Errorf("%w: degenerate box %v", ErrOutOfBounds, box)
	}
	if !box.Within(w, h) {
		return fmt.Errorf("%w: box %v, image %dx%d", ErrOutOfBounds, box, w, h)
	}
	return nil
}
