package facenorm

import (
	"errors"
	"fmt"
	"math"

	"github.com/esimov/facenorm/utils"
)

// neutralNoseRatio is the nose height relative to the eye-to-mouth
// distance of a face looking straight into the camera.
const neutralNoseRatio = 0.6

var errDegeneratePose = errors.New("degenerate landmark geometry")

// GeometricPose estimates the head orientation from the five canonical points.
//
// Roll is the eye line inclination. Yaw and pitch are approximated in the
// leveled frame from the horizontal nose offset relative to the eye distance
// and from the nose height relative to the eye-to-mouth distance.
type GeometricPose struct {
	index FivePointIndex
}

var _ PoseEstimator = (*GeometricPose)(nil)

// NewGeometricPose returns a pose estimator reading the landmarks through index.
func NewGeometricPose(index FivePointIndex) *GeometricPose {
	return &GeometricPose{index: index}
}

// Estimate returns the head pose in degrees. A positive roll means the face
// is tilted counterclockwise on the image, so rotating the image by -roll
// levels the eyes.
func (g *GeometricPose) Estimate(lm LandmarkSet) (HeadPose, error) {
	five, err := g.index.Reduce(lm.Points)
	if err != nil {
		return HeadPose{}, err
	}
	leftEye, rightEye, nose := five[0], five[1], five[2]

	dx, dy := rightEye.X-leftEye.X, rightEye.Y-leftEye.Y
	iod := math.Hypot(dx, dy)
	if iod == 0 {
		return HeadPose{}, fmt.Errorf("%w: eyes overlap", errDegeneratePose)
	}
	tilt := math.Atan2(dy, dx) * 180 / math.Pi

	eyeMid := Point{X: (leftEye.X + rightEye.X) / 2, Y: (leftEye.Y + rightEye.Y) / 2}
	// Level the points about the eye midpoint.
	leveled := rotatePoints(five, eyeMid, tilt)
	nose = leveled[2]
	mouthMid := Point{
		X: (leveled[3].X + leveled[4].X) / 2,
		Y: (leveled[3].Y + leveled[4].Y) / 2,
	}

	faceHeight := mouthMid.Y - eyeMid.Y
	if faceHeight <= 0 {
		return HeadPose{}, fmt.Errorf("%w: mouth above the eyes", errDegeneratePose)
	}

	yaw := utils.Clamp((nose.X-eyeMid.X)/(iod/2), -1, 1)
	pitch := utils.Clamp(((nose.Y-eyeMid.Y)/faceHeight-neutralNoseRatio)/neutralNoseRatio, -1, 1)

	return HeadPose{
		Roll:  -tilt,
		Pitch: math.Asin(pitch) * 180 / math.Pi,
		Yaw:   math.Asin(yaw) * 180 / math.Pi,
	}, nil
}
