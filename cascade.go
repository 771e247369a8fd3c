package facecam

import (
	"image"
	"os"

	"github.com/esimov/facecam/utils"
	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"
)

// Region is a raw face region found by a Detector.
type Region struct {
	Box   BoundingBox
	Score float32
}

// Detector finds raw face regions on a single channel intensity image.
type Detector interface {
	Detect(gray *image.Gray) []Region
}

// CascadeParams holds the sliding window settings of the cascade classifier.
type CascadeParams struct {
	MinSize      int     `yaml:"min_size"`
	MaxSize      int     `yaml:"max_size"` // 0 means the longest image edge
	ShiftFactor  float64 `yaml:"shift_factor"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	Angle        float64 `yaml:"angle"` // 0.0 is 0 radians and 1.0 is 2*pi radians
	IoUThreshold float64 `yaml:"iou_threshold"`
	QThreshold   float32 `yaml:"q_threshold"`
}

// DefaultCascadeParams returns the detector defaults.
func DefaultCascadeParams() CascadeParams {
	return CascadeParams{
		MinSize:      20,
		MaxSize:      0,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		Angle:        0.0,
		IoUThreshold: 0.2,
		QThreshold:   5.0,
	}
}

// CascadeDetector runs a pigo pixel intensity comparison cascade over the image.
type CascadeDetector struct {
	classifier *pigo.Pigo
	params     CascadeParams
}

var _ Detector = (*CascadeDetector)(nil)

// NewCascadeDetector unpacks the binary cascade file.
func NewCascadeDetector(cascade []byte, params CascadeParams) (cd *CascadeDetector, err error) {
	// The header holds 8 reserved bytes followed by the tree depth and the number of trees.
	if len(cascade) < 16 {
		return nil, errors.New("invalid cascade file: too short")
	}
	defer func() {
		if r := recover(); r != nil {
			cd, err = nil, errors.Errorf("invalid cascade file: %v", r)
		}
	}()

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, errors.Wrap(err, "error unpacking the cascade file")
	}
	return &CascadeDetector{classifier: classifier, params: params}, nil
}

// LoadCascadeDetector reads and unpacks the cascade file found at path.
func LoadCascadeDetector(path string, params CascadeParams) (*CascadeDetector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read the cascade file")
	}
	return NewCascadeDetector(data, params)
}

// Detect returns the clustered detections whose score is above the quality threshold.
func (cd *CascadeDetector) Detect(gray *image.Gray) []Region {
	bounds := gray.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()

	maxSize := cd.params.MaxSize
	if maxSize <= 0 {
		maxSize = utils.Max(cols, rows)
	}

	cParams := pigo.CascadeParams{
		MinSize:     cd.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: cd.params.ShiftFactor,
		ScaleFactor: cd.params.ScaleFactor,

		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix,
			Rows:   rows,
			Cols:   cols,
			Dim:    gray.Stride,
		},
	}

	// Run the classifier over the obtained leaf nodes and return the detection results.
	// The result contains quadruplets representing the row, column, scale and detection score.
	dets := cd.classifier.RunCascade(cParams, cd.params.Angle)

	// Calculate the intersection over union (IoU) of two clusters.
	dets = cd.classifier.ClusterDetections(dets, cd.params.IoUThreshold)

	regions := make([]Region, 0, len(dets))
	for _, det := range dets {
		if det.Q < cd.params.QThreshold {
			continue
		}
		box := boxFromDetection(det, image.Rect(0, 0, cols, rows))
		if box.Empty() {
			continue
		}
		regions = append(regions, Region{Box: box, Score: det.Q})
	}
	return regions
}
