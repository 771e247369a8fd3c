package facecam

import (
	"image"
	"os"

	"github.com/esimov/facecam/utils"
	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"
)

// LandmarkPredictor locates facial landmark points inside a detected face region.
// A nil result means the landmarks could not be localized.
type LandmarkPredictor interface {
	Predict(gray *image.Gray, box BoundingBox) LandmarkSet
}

// LandmarkCount is the number of points returned by the PupilLandmarkPredictor.
const LandmarkCount = 2 + 2*len(eyeCascades) + len(mouthCascades) + 1

// minLandmarkScale is the smallest face the pupil localizer gives usable results on.
const minLandmarkScale = 50

var (
	eyeCascades   = [...]string{"lp46", "lp44", "lp42", "lp38", "lp312"}
	mouthCascades = [...]string{"lp93", "lp84", "lp82", "lp81"}
	// mouthCorner is run a second time on the mirrored face to get the other corner.
	mouthCorner = "lp84"
)

// PupilLandmarkPredictor localizes the pupils and, relative to them, the eye
// and mouth landmark points using pigo's tree based regression cascades.
// Points are ordered as follows: left pupil, right pupil, every eye cascade
// on the left then on the mirrored side, every mouth cascade, and finally
// the mirrored mouth corner.
type PupilLandmarkPredictor struct {
	puploc   *pigo.PuplocCascade
	flpcs    map[string]*pigo.PuplocCascade
	perturbs int
}

var _ LandmarkPredictor = (*PupilLandmarkPredictor)(nil)

// LoadLandmarkPredictor reads the pupil localization cascade and the facial
// landmark point cascades directory.
func LoadLandmarkPredictor(puplocPath, flpDir string, perturbs int) (*PupilLandmarkPredictor, error) {
	data, err := os.ReadFile(puplocPath)
	if err != nil {
		return nil, errors.Wrap(err, "could not read the pupil localization cascade")
	}
	plc, err := pigo.NewPuplocCascade().UnpackCascade(data)
	if err != nil {
		return nil, errors.Wrap(err, "error unpacking the pupil localization cascade")
	}

	cascades, err := plc.ReadCascadeDir(flpDir)
	if err != nil {
		return nil, errors.Wrap(err, "error reading the facial landmark cascades")
	}

	flpcs := make(map[string]*pigo.PuplocCascade)
	required := append(eyeCascades[:], mouthCascades[:]...)
	for _, name := range required {
		found := cascades[name]
		if len(found) == 0 || found[0] == nil || found[0].PuplocCascade == nil {
			return nil, errors.Errorf("missing facial landmark cascade %q in %s", name, flpDir)
		}
		flpcs[name] = found[0].PuplocCascade
	}

	if perturbs <= 0 {
		perturbs = 63
	}
	return &PupilLandmarkPredictor{puploc: plc, flpcs: flpcs, perturbs: perturbs}, nil
}

// Predict returns LandmarkCount points or nil when the pupils are not found.
func (p *PupilLandmarkPredictor) Predict(gray *image.Gray, box BoundingBox) LandmarkSet {
	if box.Width < minLandmarkScale {
		return nil
	}
	bounds := gray.Bounds()
	imgParams := pigo.ImageParams{
		Pixels: gray.Pix,
		Rows:   bounds.Dy(),
		Cols:   bounds.Dx(),
		Dim:    gray.Stride,
	}

	center := box.Center()
	scale := float32(box.Width)

	leftEye := p.puploc.RunDetector(pigo.Puploc{
		Row:      center.Y - int(0.075*scale),
		Col:      center.X - int(0.175*scale),
		Scale:    scale * 0.25,
		Perturbs: p.perturbs,
	}, imgParams, 0.0, false)
	rightEye := p.puploc.RunDetector(pigo.Puploc{
		Row:      center.Y - int(0.075*scale),
		Col:      center.X + int(0.185*scale),
		Scale:    scale * 0.25,
		Perturbs: p.perturbs,
	}, imgParams, 0.0, false)

	left, ok := pointFromPuploc(leftEye, bounds)
	if !ok {
		return nil
	}
	right, ok := pointFromPuploc(rightEye, bounds)
	if !ok {
		return nil
	}

	points := make(LandmarkSet, 0, LandmarkCount)
	points = append(points, left, right)

	for _, name := range eyeCascades {
		flpc := p.flpcs[name]
		points = append(points,
			clampPoint(flpc.GetLandmarkPoint(leftEye, rightEye, imgParams, p.perturbs, false), bounds),
			clampPoint(flpc.GetLandmarkPoint(leftEye, rightEye, imgParams, p.perturbs, true), bounds),
		)
	}
	for _, name := range mouthCascades {
		flpc := p.flpcs[name]
		points = append(points, clampPoint(flpc.GetLandmarkPoint(leftEye, rightEye, imgParams, p.perturbs, false), bounds))
	}
	points = append(points,
		clampPoint(p.flpcs[mouthCorner].GetLandmarkPoint(leftEye, rightEye, imgParams, p.perturbs, true), bounds))

	return points
}

// clampPoint keeps a localized point inside the image so the set keeps its cardinality.
func clampPoint(p *pigo.Puploc, bounds image.Rectangle) Point {
	if p == nil {
		return Point{X: bounds.Min.X, Y: bounds.Min.Y}
	}
	return Point{
		X: utils.Clamp(p.Col, bounds.Min.X, bounds.Max.X-1),
		Y: utils.Clamp(p.Row, bounds.Min.Y, bounds.Max.Y-1),
	}
}
