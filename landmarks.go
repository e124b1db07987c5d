package facenorm

import "fmt"

// AcceptThreshold is the minimum landmark confidence of a true face.
const AcceptThreshold = 0.5

// LandmarkSet holds the facial landmark points in the order
// defined by the regressor which produced them.
type LandmarkSet struct {
	Points     []Point `json:"points"`
	Confidence float64 `json:"confidence"`
}

// Accepted reports whether the confidence score marks a true face.
func (ls LandmarkSet) Accepted() bool {
	return ls.Confidence >= AcceptThreshold
}

// Clone returns a deep copy of the landmark set.
func (ls LandmarkSet) Clone() LandmarkSet {
	points := make([]Point, len(ls.Points))
	copy(points, ls.Points)

	return LandmarkSet{Points: points, Confidence: ls.Confidence}
}

// HeadPose contains the head orientation angles in degrees.
type HeadPose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// FivePointIndex maps a dense landmark layout onto the canonical five points:
// left eye, right eye, nose, mouth left and mouth right. The eye centers are
// the mean of an index pair, the other points are taken as they are.
type FivePointIndex struct {
	LeftEye    [2]int
	RightEye   [2]int
	Nose       int
	MouthLeft  int
	MouthRight int
}

// IntraFace49 is the five point table of the 49 point IntraFace layout.
var IntraFace49 = FivePointIndex{
	LeftEye:    [2]int{19, 22},
	RightEye:   [2]int{25, 28},
	Nose:       13,
	MouthLeft:  31,
	MouthRight: 37,
}

// PigoLayout is the five point table of the landmark order produced by PigoRegressor.
var PigoLayout = FivePointIndex{
	LeftEye:    [2]int{pigoLeftEyeOuter, pigoLeftEyeInner},
	RightEye:   [2]int{pigoRightEyeOuter, pigoRightEyeInner},
	Nose:       pigoNoseTip,
	MouthLeft:  pigoMouthLeft,
	MouthRight: pigoMouthRight,
}

func (fp FivePointIndex) max() int {
	m := fp.Nose
	for _, idx := range []int{fp.LeftEye[0], fp.LeftEye[1], fp.RightEye[0], fp.RightEye[1], fp.MouthLeft, fp.MouthRight} {
		if idx > m {
			m = idx
		}
	}
	return m
}

// Reduce returns the five canonical points of a dense landmark set.
func (fp FivePointIndex) Reduce(points []Point) ([]Point, error) {
	if n := fp.max(); n >= len(points) {
		return nil, fmt.Errorf("five point reduction needs %d landmarks, got %d", n+1, len(points))
	}
	mean := func(pair [2]int) Point {
		a, b := points[pair[0]], points[pair[1]]
		return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	}

	return []Point{
		mean(fp.LeftEye),
		mean(fp.RightEye),
		points[fp.Nose],
		points[fp.MouthLeft],
		points[fp.MouthRight],
	}, nil
}

// Remap maps the points from the crop box onto an outWidth x outHeight frame.
// The points have to be in the same (rotated) coordinate space as the box.
func Remap(points []Point, box BoundingBox, outWidth, outHeight float64) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{
			X: (p.X - box.MinX) / box.Width() * outWidth,
			Y: (p.Y - box.MinY) / box.Height() * outHeight,
		}
	}
	return out
}

// rotatePoints rotates every point about c with the same angle.
func rotatePoints(points []Point, c Point, angle float64) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = RotatePoint(c, angle, p)
	}
	return out
}
