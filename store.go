package facecam

import (
	"io"

	"github.com/google/renameio"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ModelStore persists a trained model and its label map as a matched pair.
type ModelStore struct {
	ModelPath  string
	LabelsPath string
}

// Save writes the model and the label map, both tagged with the model's run
// id. Both documents are written to temporary files next to their
// destination first, the previous pair is replaced only when both succeeded.
func (s ModelStore) Save(model *LBPH, labels *LabelMap) error {
	mf, err := pendingFile(s.ModelPath, model.Encode)
	if err != nil {
		return errors.Wrap(err, "could not write the model file")
	}
	defer mf.Cleanup()

	lf, err := pendingFile(s.LabelsPath, func(w io.Writer) error {
		return labels.Encode(w, model.RunID)
	})
	if err != nil {
		return errors.Wrap(err, "could not write the label map")
	}
	defer lf.Cleanup()

	if err := mf.CloseAtomicallyReplace(); err != nil {
		return errors.Wrap(err, "could not replace the model file")
	}
	if err := lf.CloseAtomicallyReplace(); err != nil {
		return errors.Wrap(err, "could not replace the label map")
	}
	return nil
}

// Load reads the model and its label map. A missing model returns a nil
// model and no error: recognition is simply unavailable. A model without
// a label map is usable, the label ids are then reported as names.
func (s ModelStore) Load() (*LBPH, *LabelMap, error) {
	model, err := LoadLBPH(s.ModelPath)
	if err != nil {
		return nil, nil, err
	}
	labels, run, err := LoadLabelMap(s.LabelsPath)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case model == nil:
		if labels != nil {
			log.WithField("path", s.LabelsPath).Warn("label map found without a trained model, ignoring it")
		}
		return nil, nil, nil
	case labels == nil:
		log.WithField("path", s.LabelsPath).Warn("trained model found without a label map, reporting numeric labels")
		return model, NewLabelMap(), nil
	case run != model.RunID:
		return nil, nil, errors.Wrapf(ErrModelMismatch, "model run %q, labels run %q", model.RunID, run)
	}
	return model, labels, nil
}

// pendingFile encodes a document into a temporary file placed next to path.
// The destination is untouched until CloseAtomicallyReplace is called.
func pendingFile(path string, encode func(io.Writer) error) (*renameio.PendingFile, error) {
	f, err := renameio.TempFile("", path)
	if err != nil {
		return nil, err
	}
	if err := f.Chmod(0644); err != nil {
		f.Cleanup()
		return nil, err
	}
	if err := encode(f); err != nil {
		f.Cleanup()
		return nil, err
	}
	return f, nil
}

// writeFile atomically replaces the file at path with the encoded document.
func writeFile(path string, encode func(io.Writer) error) error {
	f, err := pendingFile(path, encode)
	if err != nil {
		return err
	}
	defer f.Cleanup()
	return f.CloseAtomicallyReplace()
}
