package facenorm

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/esimov/facenorm/utils"
	"github.com/sirupsen/logrus"
)

// Errors reported by the face pipeline. They are always wrapped into a StageError.
var (
	ErrImageUnreadable = errors.New("cannot read image")
	ErrImageTooSmall   = errors.New("image too small")
	ErrImageTooLarge   = errors.New("image too large")
	ErrFaceCount       = errors.New("exactly one face is required")
	ErrLandmarkFailed  = errors.New("landmark detection failed")
	ErrLowConfidence   = errors.New("false positive face")
	ErrOutOfBounds     = errors.New("bounding box out of bound")
)

// Stage identifies a step of the face pipeline.
type Stage int

const (
	StageLoad Stage = iota
	StageGrayscale
	StageDetect
	StageLandmarks
	StageConfidence
	StagePose
	StageAlign
	StageOutput
)

var stageNames = map[Stage]string{
	StageLoad:       "load",
	StageGrayscale:  "grayscale",
	StageDetect:     "detect",
	StageLandmarks:  "landmarks",
	StageConfidence: "confidence",
	StagePose:       "pose",
	StageAlign:      "align",
	StageOutput:     "output",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError is returned when a pipeline stage fails.
// No partial result is ever returned together with a StageError.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// job holds the transient state of a single pipeline run.
// It is owned by the call and dropped on every exit path.
type job struct {
	source string

	img  *image.NRGBA
	gray *image.Gray
	face FaceRegion
	lm   LandmarkSet
	pose HeadPose

	// alignment results
	rotated *image.NRGBA
	points  []Point
	box     BoundingBox
	out     *image.NRGBA
}

type step struct {
	stage Stage
	run   func(*job) error
}

// run threads the job through the steps and stops at the first failure.
func (p *Processor) run(j *job, steps ...step) error {
	log := p.logger().WithField("source", j.source)

	for _, s := range steps {
		start := time.Now()
		if err := s.run(j); err != nil {
			log.WithFields(logrus.Fields{
				"stage":  s.stage.String(),
				"reason": err.Error(),
			}).Warn("face pipeline stopped")

			return &StageError{Stage: s.stage, Err: err}
		}
		log.WithField("stage", s.stage.String()).
			Debugf("stage done in %s", utils.FormatTime(time.Since(start)))
	}
	return nil
}
