package facenorm

import (
	"errors"
	"image"
)

// FaceRegion is an axis aligned face rectangle in image coordinates.
type FaceRegion struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Rect returns the region as an image.Rectangle.
func (f FaceRegion) Rect() image.Rectangle {
	return image.Rect(f.X, f.Y, f.X+f.Width, f.Y+f.Height)
}

// Center returns the center of the region.
func (f FaceRegion) Center() Point {
	return Point{
		X: float64(f.X) + float64(f.Width)/2,
		Y: float64(f.Y) + float64(f.Height)/2,
	}
}

// FaceDetector finds face regions on a grayscale image.
type FaceDetector interface {
	Detect(gray *image.Gray) ([]FaceRegion, error)
	Close() error
}

// LandmarkRegressor locates the facial landmarks inside a face region
// of a color image and scores how likely the region is a true face.
type LandmarkRegressor interface {
	Landmarks(img *image.NRGBA, face FaceRegion) (LandmarkSet, error)
	// FivePoint returns the canonical five point table of the produced layout.
	FivePoint() FivePointIndex
	Close() error
}

// PoseEstimator derives the head orientation from a landmark set.
type PoseEstimator interface {
	Estimate(lm LandmarkSet) (HeadPose, error)
}

// DetectorType selects the face detector backend.
type DetectorType string

const (
	DetectorPigo   DetectorType = "pigo"
	DetectorOpenCV DetectorType = "opencv"
)

// ErrUnknownDetector is returned for an unsupported detector type.
var ErrUnknownDetector = errors.New("unknown detector cascade type")

// Models owns the long lived detection models shared by every pipeline call.
// It is created once at startup and released with Close. The backends are
// safe for concurrent use: pigo cascades are read only after unpacking and
// the OpenCV classifier serializes its calls internally.
type Models struct {
	Detector  FaceDetector
	Regressor LandmarkRegressor
	Estimator PoseEstimator
}

// NewModels loads the models described by the configuration.
func NewModels(cfg *Config) (*Models, error) {
	var (
		det FaceDetector
		err error
	)
	switch cfg.Detector {
	case DetectorPigo:
		det, err = NewPigoDetector(cfg.Cascade, cfg.pigoParams())
	case DetectorOpenCV:
		det, err = NewOpenCVDetector(cfg.Cascade, cfg.openCVParams())
	default:
		return nil, ErrUnknownDetector
	}
	if err != nil {
		return nil, err
	}

	reg, err := NewPigoRegressor(cfg.Puploc, cfg.FlplocDir, cfg.Perturbs)
	if err != nil {
		det.Close()
		return nil, err
	}

	return &Models{
		Detector:  det,
		Regressor: reg,
		Estimator: NewGeometricPose(reg.FivePoint()),
	}, nil
}

// Close releases the model handles.
func (m *Models) Close() error {
	return errors.Join(m.Detector.Close(), m.Regressor.Close())
}
