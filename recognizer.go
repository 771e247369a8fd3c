package facecam

import (
	"image"

	"github.com/pkg/errors"
)

// Unrecognized is reported for faces when no recognizer is available.
const Unrecognized = "Unrecognized"

// Unknown is reported for faces whose best match is rejected by the threshold.
const Unknown = "Unknown"

// ErrModelMismatch is returned when the model and the label map come from different training runs.
var ErrModelMismatch = errors.New("model and label map belong to different training runs")

// Recognizer maps a normalized face to a label id and a distance-like
// confidence score, where lower scores are better matches.
type Recognizer interface {
	Predict(face *image.Gray) (label int, confidence float64, err error)
}
