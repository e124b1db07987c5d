package facenorm

import (
	"fmt"
	"image"
	"os"

	"github.com/esimov/facenorm/utils"
	pigo "github.com/esimov/pigo/core"
)

// PigoParams contains the cascade parameters of the pigo face detector.
type PigoParams struct {
	MinSize     int
	MaxSize     int
	ShiftFactor float64
	ScaleFactor float64
	// Angle is the cascade rotation: 0.0 is 0 radians and 1.0 is 2*pi radians.
	Angle float64
	// IoU is the intersection over union threshold used for clustering.
	IoU float64
	// MinScore drops the clustered detections with a lower quality score.
	MinScore float64
}

// DefaultPigoParams returns the detector parameters used when none is configured.
func DefaultPigoParams() PigoParams {
	return PigoParams{
		MinSize:     50,
		MaxSize:     500,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		IoU:         0.2,
		MinScore:    5.0,
	}
}

// PigoDetector is the pure Go pixel intensity comparison cascade detector.
type PigoDetector struct {
	classifier *pigo.Pigo
	params     PigoParams
}

var _ FaceDetector = (*PigoDetector)(nil)

// NewPigoDetector unpacks the face finder cascade file.
func NewPigoDetector(cascade string, params PigoParams) (*PigoDetector, error) {
	data, err := os.ReadFile(cascade)
	if err != nil {
		return nil, fmt.Errorf("couldn't load face detector %q: %w", cascade, err)
	}

	// Unpack the binary file. This will return the number of cascade trees,
	// the tree depth, the threshold and the prediction from tree's leaf nodes.
	classifier, err := pigo.NewPigo().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("error unpacking the cascade file: %w", err)
	}

	return &PigoDetector{
		classifier: classifier,
		params:     params,
	}, nil
}

// Detect runs the cascade over the grayscale image and
// returns the clustered detections as square face regions.
func (d *PigoDetector) Detect(gray *image.Gray) ([]FaceRegion, error) {
	cols, rows := gray.Bounds().Dx(), gray.Bounds().Dy()

	maxSize := d.params.MaxSize
	if side := utils.Min(cols, rows); maxSize <= 0 || maxSize > side {
		maxSize = side
	}

	cParams := pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigoImage(gray),
	}

	dets := d.classifier.RunCascade(cParams, d.params.Angle)
	dets = d.classifier.ClusterDetections(dets, d.params.IoU)

	faces := make([]FaceRegion, 0, len(dets))
	for _, det := range dets {
		if float64(det.Q) < d.params.MinScore {
			continue
		}
		faces = append(faces, FaceRegion{
			X:      det.Col - det.Scale/2,
			Y:      det.Row - det.Scale/2,
			Width:  det.Scale,
			Height: det.Scale,
		})
	}
	return faces, nil
}

// Close is a no-op: the unpacked cascade is plain Go memory.
func (d *PigoDetector) Close() error {
	return nil
}

func pigoImage(gray *image.Gray) pigo.ImageParams {
	return pigo.ImageParams{
		Pixels: gray.Pix,
		Rows:   gray.Bounds().Dy(),
		Cols:   gray.Bounds().Dx(),
		Dim:    gray.Stride,
	}
}

// Landmark layout produced by PigoRegressor. The "left" points are the ones
// with the smaller x coordinate on the image.
const (
	pigoLeftPupil = iota
	pigoRightPupil
	pigoLeftBrowOuter
	pigoLeftBrowMiddle
	pigoLeftBrowInner
	pigoLeftEyeOuter
	pigoLeftEyeInner
	pigoRightBrowOuter
	pigoRightBrowMiddle
	pigoRightBrowInner
	pigoRightEyeOuter
	pigoRightEyeInner
	pigoNoseTip
	pigoMouthLeft
	pigoLowerLip
	pigoUpperLip
	pigoMouthRight

	PigoLandmarkCount
)

// flpPoint binds a facial landmark point cascade to its slot in the layout.
type flpPoint struct {
	cascade string
	flipV   bool
	index   int
}

var pigoFlpPoints = []flpPoint{
	{"lp46", false, pigoLeftBrowOuter},
	{"lp44", false, pigoLeftBrowMiddle},
	{"lp42", false, pigoLeftBrowInner},
	{"lp38", false, pigoLeftEyeOuter},
	{"lp312", false, pigoLeftEyeInner},
	{"lp46", true, pigoRightBrowOuter},
	{"lp44", true, pigoRightBrowMiddle},
	{"lp42", true, pigoRightBrowInner},
	{"lp38", true, pigoRightEyeOuter},
	{"lp312", true, pigoRightEyeInner},
	{"lp93", false, pigoNoseTip},
	{"lp84", false, pigoMouthLeft},
	{"lp82", false, pigoLowerLip},
	{"lp81", false, pigoUpperLip},
	{"lp84", true, pigoMouthRight},
}

// pigoMirrored lists the left/right slot pairs which have to be ordered by x.
var pigoMirrored = [][2]int{
	{pigoLeftPupil, pigoRightPupil},
	{pigoLeftBrowOuter, pigoRightBrowOuter},
	{pigoLeftBrowMiddle, pigoRightBrowMiddle},
	{pigoLeftBrowInner, pigoRightBrowInner},
	{pigoLeftEyeOuter, pigoRightEyeOuter},
	{pigoLeftEyeInner, pigoRightEyeInner},
	{pigoMouthLeft, pigoMouthRight},
}

// PigoRegressor locates the pupils with the pigo pupil localization cascade
// and the rest of the facial landmark points with the flploc cascades.
type PigoRegressor struct {
	puploc   *pigo.PuplocCascade
	flpcs    map[string][]*pigo.FlpCascade
	perturbs int
}

var _ LandmarkRegressor = (*PigoRegressor)(nil)

// NewPigoRegressor unpacks the pupil localization cascade and
// the facial landmark point cascades found in flplocDir.
func NewPigoRegressor(puplocPath, flplocDir string, perturbs int) (*PigoRegressor, error) {
	data, err := os.ReadFile(puplocPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't load pupil localization cascade %q: %w", puplocPath, err)
	}

	plc := &pigo.PuplocCascade{}
	plc, err = plc.UnpackCascade(data)
	if err != nil {
		return nil, fmt.Errorf("error unpacking the puploc cascade: %w", err)
	}

	flpcs, err := plc.ReadCascadeDir(flplocDir)
	if err != nil {
		return nil, fmt.Errorf("error reading the facial landmark cascades from %q: %w", flplocDir, err)
	}
	for _, fp := range pigoFlpPoints {
		if list := flpcs[fp.cascade]; len(list) == 0 || list[0].PuplocCascade == nil {
			return nil, fmt.Errorf("facial landmark cascade %q is missing from %q", fp.cascade, flplocDir)
		}
	}
	if perturbs <= 0 {
		perturbs = 63
	}

	return &PigoRegressor{
		puploc:   plc,
		flpcs:    flpcs,
		perturbs: perturbs,
	}, nil
}

// Landmarks returns the PigoLandmarkCount points of the face. The confidence
// is the ratio of the localized points; a point which could not be localized
// is placed on the face center so it never widens the landmark extent.
// Failing to localize either pupil is a landmark failure.
func (r *PigoRegressor) Landmarks(img *image.NRGBA, face FaceRegion) (LandmarkSet, error) {
	imgParams := pigoImage(Grayscale(img))

	scale := utils.Max(face.Width, face.Height)
	center := face.Center()
	row, col := int(center.Y), int(center.X)

	leftEye := r.puploc.RunDetector(pigo.Puploc{
		Row:      row - int(0.075*float32(scale)),
		Col:      col - int(0.175*float32(scale)),
		Scale:    float32(scale) * 0.25,
		Perturbs: r.perturbs,
	}, imgParams, 0.0, false)

	rightEye := r.puploc.RunDetector(pigo.Puploc{
		Row:      row - int(0.075*float32(scale)),
		Col:      col + int(0.185*float32(scale)),
		Scale:    float32(scale) * 0.25,
		Perturbs: r.perturbs,
	}, imgParams, 0.0, false)

	if !localized(leftEye) || !localized(rightEye) {
		return LandmarkSet{}, fmt.Errorf("%w: pupils not found", ErrLandmarkFailed)
	}

	points := make([]Point, PigoLandmarkCount)
	points[pigoLeftPupil] = Point{X: float64(leftEye.Col), Y: float64(leftEye.Row)}
	points[pigoRightPupil] = Point{X: float64(rightEye.Col), Y: float64(rightEye.Row)}

	found := 2
	for _, fp := range pigoFlpPoints {
		flp := r.flpcs[fp.cascade][0].GetLandmarkPoint(leftEye, rightEye, imgParams, r.perturbs, fp.flipV)
		if localized(flp) {
			points[fp.index] = Point{X: float64(flp.Col), Y: float64(flp.Row)}
			found++
		} else {
			points[fp.index] = center
		}
	}

	for _, pair := range pigoMirrored {
		if points[pair[0]].X > points[pair[1]].X {
			points[pair[0]], points[pair[1]] = points[pair[1]], points[pair[0]]
		}
	}

	return LandmarkSet{
		Points:     points,
		Confidence: float64(found) / float64(PigoLandmarkCount),
	}, nil
}

// FivePoint returns the five point table of the pigo layout.
func (r *PigoRegressor) FivePoint() FivePointIndex {
	return PigoLayout
}

// Close is a no-op: the unpacked cascades are plain Go memory.
func (r *PigoRegressor) Close() error {
	return nil
}

func localized(p *pigo.Puploc) bool {
	return p != nil && p.Row > 0 && p.Col > 0
}
