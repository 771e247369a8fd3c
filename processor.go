package facecam

import (
	"fmt"
	"image"

	"github.com/esimov/facecam/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ImageProcessor is the calling convention of the video loop and the batch
// annotation: it receives a frame and returns the frame to be shown.
type ImageProcessor interface {
	ProcessImage(img *image.NRGBA) (*image.NRGBA, error)
}

// FaceProcessor is an image processor which also exposes the normalized
// faces it works on, the way the training pipeline needs them.
type FaceProcessor interface {
	ImageProcessor
	ExtractAndAdjustFaces(img image.Image) []*image.Gray
	MarkUpFaces(img *image.NRGBA) *image.NRGBA
}

var (
	_ FaceProcessor  = (*RecognitionProcessor)(nil)
	_ ImageProcessor = (*DetectionProcessor)(nil)
)

// Recognition is a detected face together with the identity assigned to it.
type Recognition struct {
	Face DetectedFace
	// Label is the predicted label id, -1 when no prediction was made.
	Label      int
	Name       string
	Confidence float64
}

// Caption returns the text drawn next to the face.
func (r Recognition) Caption() string {
	if r.Label < 0 || r.Name == Unknown {
		return r.Name
	}
	return fmt.Sprintf("%s-%.2f", r.Name, r.Confidence)
}

// RecognitionProcessor detects the faces, identifies them with the
// recognizer and marks them up with the recognized names.
type RecognitionProcessor struct {
	Extractor *FaceExtractor
	// Recognizer may be nil, in which case every face is reported as Unrecognized.
	Recognizer Recognizer
	Labels     *LabelMap
	Threshold  float64
	FaceSize   int
}

// NewRecognitionProcessor creates a recognition processor. A nil recognizer
// disables the recognition.
func NewRecognitionProcessor(fe *FaceExtractor, rec Recognizer, labels *LabelMap) *RecognitionProcessor {
	return &RecognitionProcessor{
		Extractor:  fe,
		Recognizer: rec,
		Labels:     labels,
		FaceSize:   DefaultFaceSize,
	}
}

func (rp *RecognitionProcessor) faceSize() int {
	if rp.FaceSize <= 0 {
		return DefaultFaceSize
	}
	return rp.FaceSize
}

// ExtractAndAdjustFaces returns the normalized face crops found on the image.
// Detections producing an empty crop are left out.
func (rp *RecognitionProcessor) ExtractAndAdjustFaces(img image.Image) []*image.Gray {
	gray, faces := rp.Extractor.find(img)
	offset := img.Bounds().Min.Mul(-1)

	crops := make([]*image.Gray, 0, len(faces))
	for _, f := range faces {
		if crop, ok := NormalizeFace(gray, f.Box.Translate(offset), rp.faceSize()); ok {
			crops = append(crops, crop)
		}
	}
	return crops
}

// Recognize detects the faces on the image and predicts their identity.
func (rp *RecognitionProcessor) Recognize(img image.Image) ([]Recognition, error) {
	gray, faces := rp.Extractor.find(img)
	offset := img.Bounds().Min.Mul(-1)

	results := make([]Recognition, 0, len(faces))
	for _, f := range faces {
		res := Recognition{Face: f, Label: -1, Name: Unrecognized}
		crop, ok := NormalizeFace(gray, f.Box.Translate(offset), rp.faceSize())
		if !ok || rp.Recognizer == nil {
			results = append(results, res)
			continue
		}

		label, conf, err := rp.Recognizer.Predict(crop)
		if err != nil {
			return nil, errors.Wrap(err, "face prediction failed")
		}
		res.Label = label
		res.Confidence = conf
		res.Name = rp.Labels.Name(label)
		if rp.Threshold > 0 && conf > rp.Threshold {
			res.Name = Unknown
		}
		log.WithFields(log.Fields{
			"name":       res.Name,
			"confidence": conf,
			"box":        f.Box.Rect(),
		}).Debug("face recognized")

		results = append(results, res)
	}
	return results, nil
}

// MarkUpFaces draws the boxes, names and landmarks of the faces directly on
// the image and returns it. Prediction errors are logged and the affected
// faces are reported as Unrecognized.
func (rp *RecognitionProcessor) MarkUpFaces(img *image.NRGBA) *image.NRGBA {
	results, err := rp.Recognize(img)
	if err != nil {
		log.WithError(err).Warn("could not recognize the faces")
		results = results[:0]
		for _, f := range rp.Extractor.Detect(img) {
			results = append(results, Recognition{Face: f, Label: -1, Name: Unrecognized})
		}
	}
	for _, r := range results {
		drawFace(img, r.Face, r.Caption(), rp.Extractor.groupColor(r.Face.Group))
	}
	return img
}

// ProcessImage implements ImageProcessor.
func (rp *RecognitionProcessor) ProcessImage(img *image.NRGBA) (*image.NRGBA, error) {
	return rp.MarkUpFaces(img), nil
}

// DetectionProcessor only detects the faces and draws them with their group
// color and a running number. No recognition takes place.
type DetectionProcessor struct {
	Extractor *FaceExtractor
}

// NewDetectionProcessor creates a detection only processor.
func NewDetectionProcessor(fe *FaceExtractor) *DetectionProcessor {
	return &DetectionProcessor{Extractor: fe}
}

// ProcessImage implements ImageProcessor.
func (dp *DetectionProcessor) ProcessImage(img *image.NRGBA) (*image.NRGBA, error) {
	for i, f := range dp.Extractor.Detect(img) {
		drawFace(img, f, fmt.Sprintf("Face #%d", i+1), dp.Extractor.groupColor(f.Group))
	}
	return img, nil
}

// NewProcessor builds a new processor for the configured strategy. The
// detector resources, and for the recognize strategy the trained model, are
// loaded on every call.
func NewProcessor(cfg *Config) (ImageProcessor, error) {
	fe, err := NewExtractor(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Strategy {
	case StrategyDetect:
		return NewDetectionProcessor(fe), nil
	case StrategyRecognize, "":
		model, labels, err := cfg.Store().Load()
		if err != nil {
			return nil, err
		}
		rp := NewRecognitionProcessor(fe, nil, labels)
		if model != nil {
			rp.Recognizer = model
			rp.FaceSize = model.Params().FaceSize
		} else {
			log.WithField("path", cfg.Path(cfg.ModelFile)).Warn("no trained model found, faces will not be recognized")
		}
		rp.Threshold = cfg.Threshold
		return rp, nil
	default:
		return nil, errors.Errorf("unknown strategy %q", cfg.Strategy)
	}
}

// NewExtractor loads a detector group for every configured detector and,
// when enabled, the landmark cascades described by the configuration.
func NewExtractor(cfg *Config) (*FaceExtractor, error) {
	groups, err := detectorGroups(cfg.Detectors, func(dc DetectorConfig) (Detector, error) {
		return LoadCascadeDetector(cfg.Path(dc.Cascade), dc.CascadeParams)
	})
	if err != nil {
		return nil, err
	}

	fe := NewFaceExtractor(nil, groups...)
	if cfg.Landmarks {
		lp, err := LoadLandmarkPredictor(cfg.Path(cfg.PupilCascade), cfg.Path(cfg.LandmarkDir), cfg.Perturbations)
		if err != nil {
			return nil, err
		}
		fe.Landmarks = lp
	}
	return fe, nil
}

// detectorGroups builds the detector groups in configuration order.
func detectorGroups(dcs []DetectorConfig, load func(DetectorConfig) (Detector, error)) ([]DetectorGroup, error) {
	groups := make([]DetectorGroup, 0, len(dcs))
	for _, dc := range dcs {
		col, err := utils.HexToRGBA(dc.Color)
		if err != nil {
			return nil, errors.Wrapf(err, "detector %q", dc.Name)
		}
		det, err := load(dc)
		if err != nil {
			return nil, errors.Wrapf(err, "detector %q", dc.Name)
		}
		groups = append(groups, DetectorGroup{Name: dc.Name, Detector: det, Color: col})
		log.WithFields(log.Fields{
			"group":   dc.Name,
			"cascade": dc.Cascade,
			"angle":   dc.Angle,
		}).Debug("detector loaded")
	}
	return groups, nil
}
