package facenorm

// OpenCVParams contains the multi scale parameters of the Haar cascade detector.
type OpenCVParams struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
}

func (p OpenCVParams) withDefaults() OpenCVParams {
	if p.ScaleFactor <= 1 {
		p.ScaleFactor = 1.1
	}
	if p.MinNeighbors <= 0 {
		p.MinNeighbors = 2
	}
	if p.MinSize <= 0 {
		p.MinSize = 100
	}
	return p
}
