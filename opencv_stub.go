//go:build !opencv

package facenorm

import "errors"

// ErrOpenCVUnavailable is returned when the binary was built without the opencv tag.
var ErrOpenCVUnavailable = errors.New("opencv detector not available: rebuild with -tags opencv")

// NewOpenCVDetector always fails: the binary was built without OpenCV support.
func NewOpenCVDetector(cascade string, params OpenCVParams) (FaceDetector, error) {
	return nil, ErrOpenCVUnavailable
}
