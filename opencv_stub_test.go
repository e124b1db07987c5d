//go:build !opencv

package facenorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpenCV_Unavailable(t *testing.T) {
	det, err := NewOpenCVDetector("haarcascade_frontalface_default.xml", OpenCVParams{})
	assert.Nil(t, det)
	assert.ErrorIs(t, err, ErrOpenCVUnavailable)

	cfg := DefaultConfig()
	cfg.Detector = DetectorOpenCV
	_, err = NewModels(cfg)
	assert.ErrorIs(t, err, ErrOpenCVUnavailable)
}
