package facenorm

import (
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/esimov/facenorm/utils"
	"github.com/sirupsen/logrus"
)

// Mode selects the operation run by Process.
type Mode string

const (
	// ModeDetect marks the landmarks on the source image.
	ModeDetect Mode = "detect"
	// ModeLandmarks marks the landmarks on an already cropped face image.
	ModeLandmarks Mode = "landmarks"
	// ModeNorm produces the normalized face using NormOptions.
	ModeNorm Mode = "norm"
	// ModeSquare produces the square normalized face using SquareOptions.
	ModeSquare Mode = "square"
)

var (
	ErrUnknownMode    = errors.New("unknown processing mode")
	ErrInvalidOptions = errors.New("invalid normalization options")
	errNoModels       = errors.New("processor has no models")
)

// NormOptions controls the aspect ratio preserving normalization.
type NormOptions struct {
	FaceWidth  int `validate:"gtfield=PatchSize"`
	FaceHeight int `validate:"gtfield=PatchSize"`
	// PatchSize is the context border kept around the landmarks.
	PatchSize int `validate:"gte=0"`
	// NumLandmarks set to 5 reduces the returned landmarks to the
	// canonical five points. Any other value returns them all.
	NumLandmarks  int `validate:"gte=0"`
	ShowLandmarks bool
}

// DefaultNormOptions returns the options used by ModeNorm when none is set.
func DefaultNormOptions() NormOptions {
	return NormOptions{
		FaceWidth:  DefaultNormSize,
		FaceHeight: DefaultNormSize,
		PatchSize:  DefaultPatchSize,
	}
}

// SquareOptions controls the square normalization of DetectNorm.
type SquareOptions struct {
	Size          int `validate:"gt=0"`
	PatchSize     int `validate:"gte=0"`
	ShowLandmarks bool
}

// DefaultSquareOptions returns the 100x100 square normalization options.
func DefaultSquareOptions() SquareOptions {
	return SquareOptions{
		Size:      DefaultNormSize,
		PatchSize: DefaultPatchSize,
	}
}

func checkOptions(opts any) error {
	if err := validate.Struct(opts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	if sq, ok := opts.(SquareOptions); ok && sq.Size-sq.PatchSize-2 <= 0 {
		return fmt.Errorf("%w: patch size %d leaves no room in a %d pixel face", ErrInvalidOptions, sq.PatchSize, sq.Size)
	}
	return nil
}

// Detection is the result of the landmark detection without normalization.
type Detection struct {
	Image     *image.NRGBA
	Face      FaceRegion
	Landmarks LandmarkSet
	Pose      HeadPose
}

// NormalizedFace is the leveled, cropped and resized face. The landmarks are
// expressed in the coordinate frame of the normalized image.
type NormalizedFace struct {
	Image     *image.NRGBA
	Landmarks LandmarkSet
	Pose      HeadPose
	Box       BoundingBox
	Face      FaceRegion
}

// Processor runs the face pipeline over the shared models.
// It is safe for concurrent use once configured.
type Processor struct {
	Models *Models
	Logger logrus.FieldLogger

	// Mode, Norm and Square are used by Process.
	Mode   Mode
	Norm   NormOptions
	Square SquareOptions
}

// NewProcessor returns a processor running in ModeDetect.
func NewProcessor(models *Models, logger logrus.FieldLogger) *Processor {
	return &Processor{
		Models: models,
		Logger: logger,
		Mode:   ModeDetect,
		Norm:   DefaultNormOptions(),
		Square: DefaultSquareOptions(),
	}
}

var discard = utils.DiscardLogger()

func (p *Processor) logger() logrus.FieldLogger {
	if p.Logger == nil {
		return discard
	}
	return p.Logger
}

// Detect detects the face and returns the source image with the landmarks marked.
func (p *Processor) Detect(path string) (*image.NRGBA, error) {
	det, err := p.detect(path, loadPath(path), true)
	if err != nil {
		return nil, err
	}
	return det.Image, nil
}

// DetectImage is Detect over a decoded image.
func (p *Processor) DetectImage(img image.Image) (*image.NRGBA, error) {
	det, err := p.detect("image", loadImage(img), true)
	if err != nil {
		return nil, err
	}
	return det.Image, nil
}

// DetectLandmarks detects the face and returns its landmarks, the head pose
// and the source image with the landmarks marked.
func (p *Processor) DetectLandmarks(path string) (*Detection, error) {
	return p.detect(path, loadPath(path), true)
}

// DetectLandmarksImage is DetectLandmarks over a decoded image.
func (p *Processor) DetectLandmarksImage(img image.Image) (*Detection, error) {
	return p.detect("image", loadImage(img), true)
}

// DetectFace locates the landmarks on an image which is already a face crop.
// The face detection is skipped: the whole image is the face region.
func (p *Processor) DetectFace(img image.Image) (*Detection, error) {
	return p.detectFace("image", loadImage(img), false)
}

// DetectNorm returns the square normalized face using the processor
// square options, the 100x100 face with a 30 pixel patch by default.
func (p *Processor) DetectNorm(path string) (*NormalizedFace, error) {
	return p.normalizeSquare(path, loadPath(path), p.squareOptions())
}

// DetectNormImage is DetectNorm over a decoded image.
func (p *Processor) DetectNormImage(img image.Image) (*NormalizedFace, error) {
	return p.normalizeSquare("image", loadImage(img), p.squareOptions())
}

// DetectNormWithOptions returns the normalized face of the requested size
// keeping the aspect ratio of the face area.
func (p *Processor) DetectNormWithOptions(path string, opts NormOptions) (*NormalizedFace, error) {
	return p.normalizeAspect(path, loadPath(path), opts)
}

// DetectNormWithOptionsImage is DetectNormWithOptions over a decoded image.
func (p *Processor) DetectNormWithOptionsImage(img image.Image, opts NormOptions) (*NormalizedFace, error) {
	return p.normalizeAspect("image", loadImage(img), opts)
}

func (p *Processor) squareOptions() SquareOptions {
	if p.Square.Size == 0 {
		return DefaultSquareOptions()
	}
	return p.Square
}

func (p *Processor) normOptions() NormOptions {
	if p.Norm == (NormOptions{}) {
		return DefaultNormOptions()
	}
	return p.Norm
}

func (p *Processor) detect(source string, load step, annotate bool) (*Detection, error) {
	if p.Models == nil {
		return nil, errNoModels
	}
	j := &job{source: source}
	steps := append(p.analysis(load, true), p.markStep(annotate))
	if err := p.run(j, steps...); err != nil {
		return nil, err
	}
	return j.detection(), nil
}

func (p *Processor) detectFace(source string, load step, annotate bool) (*Detection, error) {
	if p.Models == nil {
		return nil, errNoModels
	}
	j := &job{source: source}
	steps := append(p.analysis(load, false), p.markStep(annotate))
	if err := p.run(j, steps...); err != nil {
		return nil, err
	}
	return j.detection(), nil
}

func (p *Processor) normalizeSquare(source string, load step, opts SquareOptions) (*NormalizedFace, error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}
	policy := func(extent BoundingBox) BoundingBox {
		return SquareBox(extent, opts.Size, opts.PatchSize)
	}
	return p.normalize(source, load, policy, opts.Size, opts.Size, 0, opts.ShowLandmarks)
}

func (p *Processor) normalizeAspect(source string, load step, opts NormOptions) (*NormalizedFace, error) {
	if err := checkOptions(opts); err != nil {
		return nil, err
	}
	policy := func(extent BoundingBox) BoundingBox {
		return AspectBox(extent, float64(opts.FaceWidth), float64(opts.FaceHeight), float64(opts.PatchSize))
	}
	return p.normalize(source, load, policy, opts.FaceWidth, opts.FaceHeight, opts.NumLandmarks, opts.ShowLandmarks)
}

func (p *Processor) normalize(
	source string,
	load step,
	policy func(BoundingBox) BoundingBox,
	width, height int,
	numLandmarks int,
	show bool,
) (*NormalizedFace, error) {
	if p.Models == nil {
		return nil, errNoModels
	}
	j := &job{source: source}
	steps := append(p.analysis(load, true),
		alignStep(policy, width, height, show),
		p.normOutputStep(numLandmarks, show),
	)
	if err := p.run(j, steps...); err != nil {
		return nil, err
	}

	return &NormalizedFace{
		Image: j.out,
		Landmarks: LandmarkSet{
			Points:     j.points,
			Confidence: j.lm.Confidence,
		},
		Pose: j.pose,
		Box:  j.box,
		Face: j.face,
	}, nil
}

// analysis returns the steps shared by every operation: loading, face
// detection (or the whole image as face), landmarks, confidence gate and pose.
func (p *Processor) analysis(load step, detectFace bool) []step {
	steps := []step{load}
	if detectFace {
		steps = append(steps, grayscaleStep(), p.detectStep())
	} else {
		steps = append(steps, wholeImageStep())
	}
	return append(steps, p.landmarkStep(), confidenceStep(), p.poseStep())
}

func loadPath(path string) step {
	return step{StageLoad, func(j *job) (err error) {
		j.img, err = readImage(path)
		return err
	}}
}

func loadImage(img image.Image) step {
	return step{StageLoad, func(j *job) error {
		if img == nil {
			return fmt.Errorf("%w: nil image", ErrImageUnreadable)
		}
		b := img.Bounds()
		if err := checkDimensions(b.Dx(), b.Dy()); err != nil {
			return err
		}
		j.img = imgToNRGBA(img)
		return nil
	}}
}

func loadBytes(data []byte) step {
	return step{StageLoad, func(j *job) (err error) {
		j.img, err = decodeImage(data)
		return err
	}}
}

func grayscaleStep() step {
	return step{StageGrayscale, func(j *job) error {
		j.gray = Grayscale(j.img)
		return nil
	}}
}

func (p *Processor) detectStep() step {
	return step{StageDetect, func(j *job) error {
		faces, err := p.Models.Detector.Detect(j.gray)
		if err != nil {
			return err
		}
		if len(faces) != 1 {
			return fmt.Errorf("%w: found %d", ErrFaceCount, len(faces))
		}
		j.face = faces[0]
		return nil
	}}
}

func wholeImageStep() step {
	return step{StageDetect, func(j *job) error {
		b := j.img.Bounds()
		j.face = FaceRegion{Width: b.Dx(), Height: b.Dy()}
		return nil
	}}
}

func (p *Processor) landmarkStep() step {
	return step{StageLandmarks, func(j *job) error {
		lm, err := p.Models.Regressor.Landmarks(j.img, j.face)
		if err != nil {
			if errors.Is(err, ErrLandmarkFailed) {
				return err
			}
			return fmt.Errorf("%w: %v", ErrLandmarkFailed, err)
		}
		if len(lm.Points) == 0 {
			return fmt.Errorf("%w: no landmarks", ErrLandmarkFailed)
		}
		j.lm = lm
		return nil
	}}
}

func confidenceStep() step {
	return step{StageConfidence, func(j *job) error {
		if !j.lm.Accepted() {
			return fmt.Errorf("%w: confidence %.2f is below %.2f", ErrLowConfidence, j.lm.Confidence, AcceptThreshold)
		}
		return nil
	}}
}

func (p *Processor) poseStep() step {
	return step{StagePose, func(j *job) (err error) {
		j.pose, err = p.Models.Estimator.Estimate(j.lm)
		return err
	}}
}

func (p *Processor) markStep(annotate bool) step {
	return step{StageOutput, func(j *job) error {
		j.out = j.img
		if annotate {
			j.out = DrawMarkers(j.img, j.lm.Points, DetectMarker)
		}
		return nil
	}}
}

// alignStep levels the face, derives the crop box and produces the
// width x height face. The image and the landmarks go through the
// same rotate, crop, resize sequence. With mark set the landmarks are
// drawn on the source first, so the markers follow the face into the crop.
func alignStep(policy func(BoundingBox) BoundingBox, width, height int, mark bool) step {
	return step{StageAlign, func(j *job) error {
		src := j.img
		if mark {
			src = DrawMarkers(j.img, j.lm.Points, DetectMarker)
		}
		center := ImageCenter(src.Bounds())
		j.rotated = RotateImage(src, -j.pose.Roll)
		j.points = rotatePoints(j.lm.Points, center, -j.pose.Roll)

		j.box = policy(Extent(j.points))
		b := j.rotated.Bounds()
		if err := validateBox(j.box, b.Dx(), b.Dy()); err != nil {
			return err
		}
		rect := j.box.Rect()
		if rect.Empty() {
			return fmt.Errorf("%w: box %v is smaller than a pixel", ErrOutOfBounds, j.box)
		}

		crop := imaging.Crop(j.rotated, rect)
		j.out = imaging.Resize(crop, width, height, imaging.Linear)
		j.points = Remap(j.points, j.box, float64(width), float64(height))
		return nil
	}}
}

func (p *Processor) normOutputStep(numLandmarks int, show bool) step {
	return step{StageOutput, func(j *job) error {
		if numLandmarks == 5 {
			five, err := p.Models.Regressor.FivePoint().Reduce(j.points)
			if err != nil {
				return err
			}
			j.points = five
		}
		if show {
			j.out = DrawMarkers(j.out, j.points, NormMarker)
		}
		return nil
	}}
}

func (j *job) detection() *Detection {
	return &Detection{
		Image:     j.out,
		Face:      j.face,
		Landmarks: j.lm,
		Pose:      j.pose,
	}
}

// Report summarizes the result of Process. It is the content of the JSON sidecar.
type Report struct {
	Source    string       `json:"source"`
	Mode      Mode         `json:"mode"`
	Width     int          `json:"width"`
	Height    int          `json:"height"`
	Face      FaceRegion   `json:"face"`
	Landmarks LandmarkSet  `json:"landmarks"`
	Pose      HeadPose     `json:"pose"`
	Box       *BoundingBox `json:"box,omitempty"`

	img *image.NRGBA
}

// Process decodes the image from r, runs the operation selected by Mode
// and encodes the resulting image into w.
func (p *Processor) Process(r io.Reader, w io.Writer) error {
	_, err := p.ProcessReport("-", r, w)
	return err
}

// ProcessReport is Process returning the report of the processed image.
func (p *Processor) ProcessReport(source string, r io.Reader, w io.Writer) (*Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &StageError{Stage: StageLoad, Err: fmt.Errorf("%w: %v", ErrImageUnreadable, err)}
	}
	load := loadBytes(data)

	rep := &Report{Source: source, Mode: p.Mode}
	switch p.Mode {
	case ModeDetect, "":
		rep.Mode = ModeDetect
		det, err := p.detect(source, load, true)
		if err != nil {
			return nil, err
		}
		rep.fromDetection(det)
	case ModeLandmarks:
		det, err := p.detectFace(source, load, true)
		if err != nil {
			return nil, err
		}
		rep.fromDetection(det)
	case ModeNorm:
		nf, err := p.normalizeAspect(source, load, p.normOptions())
		if err != nil {
			return nil, err
		}
		rep.fromNormalized(nf)
	case ModeSquare:
		nf, err := p.normalizeSquare(source, load, p.squareOptions())
		if err != nil {
			return nil, err
		}
		rep.fromNormalized(nf)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, p.Mode)
	}

	if err := encodeImage(w, rep.img); err != nil {
		return nil, &StageError{Stage: StageOutput, Err: err}
	}
	return rep, nil
}

func (r *Report) fromDetection(det *Detection) {
	r.img = det.Image
	r.Width, r.Height = det.Image.Bounds().Dx(), det.Image.Bounds().Dy()
	r.Face = det.Face
	r.Landmarks = det.Landmarks
	r.Pose = det.Pose
}

func (r *Report) fromNormalized(nf *NormalizedFace) {
	r.img = nf.Image
	r.Width, r.Height = nf.Image.Bounds().Dx(), nf.Image.Bounds().Dy()
	r.Face = nf.Face
	r.Landmarks = nf.Landmarks
	r.Pose = nf.Pose
	box := nf.Box
	r.Box = &box
}
