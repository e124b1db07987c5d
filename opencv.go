//go:build opencv

package facenorm

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// OpenCVDetector is the Haar cascade face detector backed by OpenCV.
// The classifier is not reentrant, so the detection calls are serialized.
type OpenCVDetector struct {
	mu     sync.Mutex
	cls    gocv.CascadeClassifier
	params OpenCVParams
}

var _ FaceDetector = (*OpenCVDetector)(nil)

// NewOpenCVDetector loads the Haar cascade xml file.
func NewOpenCVDetector(cascade string, params OpenCVParams) (*OpenCVDetector, error) {
	cls := gocv.NewCascadeClassifier()
	if !cls.Load(cascade) {
		cls.Close()
		return nil, fmt.Errorf("couldn't load face detector %q", cascade)
	}

	return &OpenCVDetector{
		cls:    cls,
		params: params.withDefaults(),
	}, nil
}

// Detect equalizes the histogram of the grayscale image
// and runs the multi scale cascade detection.
func (d *OpenCVDetector) Detect(gray *image.Gray) ([]FaceRegion, error) {
	src, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, fmt.Errorf("couldn't convert the image: %w", err)
	}
	defer src.Close()

	eq := gocv.NewMat()
	defer eq.Close()
	gocv.EqualizeHist(src, &eq)

	d.mu.Lock()
	rects := d.cls.DetectMultiScaleWithParams(eq,
		d.params.ScaleFactor,
		d.params.MinNeighbors,
		0,
		image.Pt(d.params.MinSize, d.params.MinSize),
		image.Point{},
	)
	d.mu.Unlock()

	faces := make([]FaceRegion, 0, len(rects))
	for _, r := range rects {
		faces = append(faces, FaceRegion{
			X:      r.Min.X,
			Y:      r.Min.Y,
			Width:  r.Dx(),
			Height: r.Dy(),
		})
	}
	return faces, nil
}

// Close releases the classifier.
func (d *OpenCVDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cls.Close()
}
