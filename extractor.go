package facecam

import (
	"image"
	"image/color"
)

// DetectorGroup is a named detector. Faces found by different groups are
// reported separately and never merged, even when they overlap.
type DetectorGroup struct {
	Name     string
	Detector Detector
	Color    color.NRGBA
}

// FaceExtractor locates the faces on an image using one or more detector
// groups and an optional landmark predictor.
type FaceExtractor struct {
	Groups    []DetectorGroup
	Landmarks LandmarkPredictor
}

// NewFaceExtractor creates a face extractor. The landmark predictor may be nil.
func NewFaceExtractor(landmarks LandmarkPredictor, groups ...DetectorGroup) *FaceExtractor {
	return &FaceExtractor{
		Groups:    groups,
		Landmarks: landmarks,
	}
}

// Detect converts the image to grayscale and returns the faces found by every
// detector group, in group order. Boxes and landmarks are expressed in the
// coordinate space of img, whatever its bounds' min-point is.
func (fe *FaceExtractor) Detect(img image.Image) []DetectedFace {
	_, faces := fe.find(img)
	return faces
}

// find returns the intensity image the detection ran on together with the
// faces. The intensity image has its min-point at (0, 0), the faces are
// translated back to the bounds of img.
func (fe *FaceExtractor) find(img image.Image) (*image.Gray, []DetectedFace) {
	gray := ToGray(img)
	bounds := gray.Bounds()
	origin := img.Bounds().Min

	var faces []DetectedFace
	for _, group := range fe.Groups {
		for _, region := range group.Detector.Detect(gray) {
			box := ClampBox(region.Box, bounds)
			if box.Empty() {
				continue
			}
			face := DetectedFace{
				Group: group.Name,
				Box:   box.Translate(origin),
				Score: region.Score,
			}
			if fe.Landmarks != nil {
				face.Landmarks = fe.Landmarks.Predict(gray, box).Translate(origin)
			}
			faces = append(faces, face)
		}
	}
	return gray, faces
}

// groupColor returns the drawing color of the named group.
func (fe *FaceExtractor) groupColor(name string) color.NRGBA {
	for _, g := range fe.Groups {
		if g.Name == name {
			return g.Color
		}
	}
	return boxColor
}
