package facecam

import (
	"image"
	"io"
	"math"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Recognizer errors.
var (
	ErrLengthMismatch   = errors.New("faces and labels differ in length")
	ErrFaceSize         = errors.New("face has an unexpected size")
	ErrEmptyTrainingSet = errors.New("empty training set")
	ErrNotTrained       = errors.New("recognizer is not trained")
)

// LBPHParams are the settings of the Local Binary Patterns Histograms recognizer.
type LBPHParams struct {
	Radius    int    `yaml:"radius"`
	Neighbors int    `yaml:"neighbors"`
	GridX     int    `yaml:"grid_x"`
	GridY     int    `yaml:"grid_y"`
	FaceSize  int    `yaml:"face_size"`
	Index     string `yaml:"index"`
}

// DefaultLBPHParams returns the commonly used LBPH settings.
func DefaultLBPHParams() LBPHParams {
	return LBPHParams{
		Radius:    1,
		Neighbors: 8,
		GridX:     8,
		GridY:     8,
		FaceSize:  DefaultFaceSize,
		Index:     IndexLinear,
	}
}

func (p LBPHParams) validate() error {
	switch {
	case p.Radius < 1:
		return errors.New("lbph radius should be at least 1")
	case p.Neighbors < 1 || p.Neighbors > 16:
		return errors.New("lbph neighbors should be between 1 and 16")
	case p.GridX < 1 || p.GridY < 1:
		return errors.New("lbph grid should be at least 1x1")
	case p.FaceSize-2*p.Radius < max(p.GridX, p.GridY):
		return errors.New("lbph face size too small for the radius and grid")
	}
	return nil
}

// LBPH is a Local Binary Patterns Histograms face recognizer. Each training
// face is described by the concatenated, per cell normalized histograms of
// its local binary pattern codes; prediction returns the label of the
// nearest training sample under the chi-square distance.
type LBPH struct {
	// RunID identifies the training run. It binds the model to its label map.
	RunID string

	params LBPHParams
	labels []int
	hists  [][]float32
	index  Index
}

var _ Recognizer = (*LBPH)(nil)

// NewLBPH returns an untrained recognizer.
func NewLBPH(params LBPHParams) (*LBPH, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	index, err := NewIndex(params.Index)
	if err != nil {
		return nil, err
	}
	return &LBPH{params: params, index: index}, nil
}

// Params returns the recognizer settings.
func (l *LBPH) Params() LBPHParams {
	return l.params
}

// Len returns the number of training samples.
func (l *LBPH) Len() int {
	return len(l.hists)
}

// Train discards any previous state and trains the recognizer on the faces.
// It starts a new training run.
func (l *LBPH) Train(faces []*image.Gray, labels []int) error {
	if len(faces) == 0 {
		return ErrEmptyTrainingSet
	}
	hists, err := l.describe(faces, labels)
	if err != nil {
		return err
	}

	index, err := NewIndex(l.params.Index)
	if err != nil {
		return err
	}
	l.index = index
	l.labels = nil
	l.hists = nil
	l.add(hists, labels)
	l.RunID = uuid.NewString()

	return nil
}

// Update adds new samples to an already trained recognizer, keeping the training run.
func (l *LBPH) Update(faces []*image.Gray, labels []int) error {
	if l.RunID == "" {
		return ErrNotTrained
	}
	hists, err := l.describe(faces, labels)
	if err != nil {
		return err
	}
	l.add(hists, labels)
	return nil
}

func (l *LBPH) add(hists [][]float32, labels []int) {
	for i, h := range hists {
		l.labels = append(l.labels, labels[i])
		l.hists = append(l.hists, h)
		l.index.Add(labels[i], h)
	}
}

// describe validates the training input and computes the histograms.
func (l *LBPH) describe(faces []*image.Gray, labels []int) ([][]float32, error) {
	if len(faces) != len(labels) {
		return nil, errors.Wrapf(ErrLengthMismatch, "%d faces, %d labels", len(faces), len(labels))
	}
	hists := make([][]float32, len(faces))
	for i, face := range faces {
		h, err := l.histogram(face)
		if err != nil {
			return nil, errors.Wrapf(err, "face #%d", i)
		}
		hists[i] = h
	}
	return hists, nil
}

// Predict returns the label of the closest training face and its distance.
// Lower distances mean better matches.
func (l *LBPH) Predict(face *image.Gray) (int, float64, error) {
	if l.index == nil || l.index.Len() == 0 {
		return -1, math.MaxFloat64, ErrNotTrained
	}
	h, err := l.histogram(face)
	if err != nil {
		return -1, math.MaxFloat64, err
	}
	label, dist, ok := l.index.Nearest(h)
	if !ok {
		return -1, math.MaxFloat64, ErrNotTrained
	}
	return label, dist, nil
}

// Distances returns, for every known label, the distance of its closest training face.
func (l *LBPH) Distances(face *image.Gray) (map[int]float64, error) {
	if len(l.hists) == 0 {
		return nil, ErrNotTrained
	}
	h, err := l.histogram(face)
	if err != nil {
		return nil, err
	}
	res := make(map[int]float64)
	for i, sample := range l.hists {
		d := chiSquare(sample, h)
		if best, ok := res[l.labels[i]]; !ok || d < best {
			res[l.labels[i]] = d
		}
	}
	return res, nil
}

// histogram computes the spatial LBP histogram of a normalized face.
func (l *LBPH) histogram(face *image.Gray) ([]float32, error) {
	size := l.params.FaceSize
	if face == nil || face.Bounds().Dx() != size || face.Bounds().Dy() != size {
		return nil, ErrFaceSize
	}
	codes, w, h := l.patterns(face)

	bins := 1 << uint(l.params.Neighbors)
	cellW, cellH := w/l.params.GridX, h/l.params.GridY
	hist := make([]float32, l.params.GridX*l.params.GridY*bins)

	for gy := 0; gy < l.params.GridY; gy++ {
		for gx := 0; gx < l.params.GridX; gx++ {
			cell := hist[(gy*l.params.GridX+gx)*bins : (gy*l.params.GridX+gx+1)*bins]
			for y := gy * cellH; y < (gy+1)*cellH; y++ {
				for x := gx * cellW; x < (gx+1)*cellW; x++ {
					cell[codes[y*w+x]]++
				}
			}
			total := float32(cellW * cellH)
			for i := range cell {
				cell[i] /= total
			}
		}
	}
	return hist, nil
}

// patterns computes the extended (circular) local binary pattern codes using
// bilinear interpolation for the sampling points not on the pixel grid.
func (l *LBPH) patterns(face *image.Gray) ([]int, int, int) {
	var (
		radius    = l.params.Radius
		neighbors = l.params.Neighbors
		bounds    = face.Bounds()
		w         = bounds.Dx() - 2*radius
		h         = bounds.Dy() - 2*radius
		codes     = make([]int, w*h)
	)
	at := func(x, y int) float64 {
		return float64(face.Pix[face.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)])
	}

	for n := 0; n < neighbors; n++ {
		sx := float64(radius) * math.Cos(2.0*math.Pi*float64(n)/float64(neighbors))
		sy := -float64(radius) * math.Sin(2.0*math.Pi*float64(n)/float64(neighbors))

		fx, fy := int(math.Floor(sx)), int(math.Floor(sy))
		cx, cy := int(math.Ceil(sx)), int(math.Ceil(sy))
		tx, ty := sx-float64(fx), sy-float64(fy)

		w1 := (1 - tx) * (1 - ty)
		w2 := tx * (1 - ty)
		w3 := (1 - tx) * ty
		w4 := tx * ty

		for y := radius; y < bounds.Dy()-radius; y++ {
			for x := radius; x < bounds.Dx()-radius; x++ {
				t := w1*at(x+fx, y+fy) + w2*at(x+cx, y+fy) + w3*at(x+fx, y+cy) + w4*at(x+cx, y+cy)
				c := at(x, y)
				if t > c || math.Abs(t-c) < 1e-6 {
					codes[(y-radius)*w+(x-radius)] |= 1 << uint(n)
				}
			}
		}
	}
	return codes, w, h
}

type lbphSample struct {
	Label     int       `yaml:"label"`
	Histogram []float32 `yaml:"histogram,flow"`
}

type lbphFile struct {
	Run     string       `yaml:"run"`
	Params  LBPHParams   `yaml:"params"`
	Samples []lbphSample `yaml:"samples"`
}

// Save writes the trained state to path. The previous file is replaced
// only once the new one is completely written.
func (l *LBPH) Save(path string) error {
	return writeFile(path, l.Encode)
}

// Encode writes the trained state as a YAML document.
func (l *LBPH) Encode(w io.Writer) error {
	if l.RunID == "" {
		return ErrNotTrained
	}
	doc := lbphFile{
		Run:     l.RunID,
		Params:  l.params,
		Samples: make([]lbphSample, len(l.hists)),
	}
	for i := range l.hists {
		doc.Samples[i] = lbphSample{Label: l.labels[i], Histogram: l.hists[i]}
	}

	enc := yaml.NewEncoder(w)
	if err := enc.Encode(&doc); err != nil {
		return errors.Wrap(err, "could not encode the model")
	}
	return enc.Close()
}

// LoadLBPH reads a recognizer saved with Save. A missing file is not an
// error: it returns a nil recognizer, meaning recognition is unavailable.
func LoadLBPH(path string) (*LBPH, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not open the model file")
	}
	defer f.Close()

	var doc lbphFile
	if err := yaml.NewDecoder(f).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "could not decode the model file")
	}

	l, err := NewLBPH(doc.Params)
	if err != nil {
		return nil, err
	}
	l.RunID = doc.Run

	hists := make([][]float32, len(doc.Samples))
	labels := make([]int, len(doc.Samples))
	bins := doc.Params.GridX * doc.Params.GridY * (1 << uint(doc.Params.Neighbors))
	for i, s := range doc.Samples {
		if len(s.Histogram) != bins {
			return nil, errors.Errorf("model sample #%d has %d bins, expected %d", i, len(s.Histogram), bins)
		}
		hists[i], labels[i] = s.Histogram, s.Label
	}
	l.add(hists, labels)

	return l, nil
}
