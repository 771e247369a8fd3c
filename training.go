package facecam

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
)

// Trainer runs the training pipeline: optional video preprocessing, dataset
// loading, LBPH training, persistence of the model and label map pair and
// evaluation on the held-out set.
type Trainer struct {
	Sampler     FaceSampler
	Params      LBPHParams
	Store       ModelStore
	TrainingDir string
	TestDir     string
	// OpenVideo is used by the preprocessing step.
	OpenVideo VideoOpener
	// Progress receives the progress bars. Nothing is shown when nil.
	Progress io.Writer
}

// EvalSample is the outcome of predicting a single held-out face.
type EvalSample struct {
	Expected   string
	Predicted  string
	Confidence float64
	Match      bool
}

// EvalReport summarizes the evaluation of a model on the held-out set.
type EvalReport struct {
	Samples  int
	Matches  int
	Accuracy float64
	Results  []EvalSample
}

// Train runs the pipeline and returns the evaluation report, which is nil
// when there is no held-out set.
func (t *Trainer) Train(ctx context.Context, preprocess bool) (*EvalReport, error) {
	if preprocess {
		if t.OpenVideo == nil {
			return nil, errors.New("no video decoder configured for preprocessing")
		}
		n, err := Preprocess(ctx, t.TrainingDir, t.OpenVideo)
		if err != nil {
			return nil, errors.Wrap(err, "preprocessing failed")
		}
		log.WithField("frames", n).Info("training videos preprocessed")
	}

	ds, err := LoadDataset(t.TrainingDir, t.Sampler, t.Progress)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"samples": ds.Len(),
		"people":  ds.Names.Len(),
	}).Info("training set loaded")

	model, err := NewLBPH(t.Params)
	if err != nil {
		return nil, err
	}
	if err := model.Train(ds.Faces, ds.Labels); err != nil {
		return nil, errors.Wrap(err, "training failed")
	}
	if err := t.persist(model, ds.Names); err != nil {
		return nil, err
	}
	log.WithField("run", model.RunID).Info("model saved")

	if _, err := os.Stat(t.TestDir); err != nil {
		log.WithField("dir", t.TestDir).Warn("no test set found, skipping the evaluation")
		return nil, nil
	}
	return t.Evaluate(ctx, model, ds.Names)
}

func (t *Trainer) persist(model *LBPH, labels *LabelMap) error {
	for _, p := range []string{t.Store.ModelPath, t.Store.LabelsPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return errors.Wrap(err, "could not create the model directory")
		}
	}
	return t.Store.Save(model, labels)
}

// Test loads the persisted model and evaluates it on the held-out set.
func (t *Trainer) Test(ctx context.Context) (*EvalReport, error) {
	model, labels, err := t.Store.Load()
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, errors.Errorf("no trained model found at %s", t.Store.ModelPath)
	}
	return t.Evaluate(ctx, model, labels)
}

// Evaluate predicts every face of the held-out set. The predicted id is
// resolved through the training label map and the expected id through the
// label map of the held-out set; the two names are compared.
func (t *Trainer) Evaluate(ctx context.Context, rec Recognizer, labels *LabelMap) (*EvalReport, error) {
	ds, err := LoadDataset(t.TestDir, t.Sampler, t.Progress)
	if err != nil {
		return nil, err
	}

	progress := t.Progress
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(ds.Len(),
		progressbar.OptionSetDescription("Evaluating"),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionShowCount(),
	)
	defer bar.Finish()

	report := &EvalReport{}
	for i, face := range ds.Faces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		label, conf, err := rec.Predict(face)
		if err != nil {
			return nil, errors.Wrap(err, "prediction failed")
		}
		sample := EvalSample{
			Expected:   ds.Names.Name(ds.Labels[i]),
			Predicted:  labels.Name(label),
			Confidence: conf,
		}
		sample.Match = sample.Expected == sample.Predicted

		entry := log.WithFields(log.Fields{
			"expected":   sample.Expected,
			"predicted":  sample.Predicted,
			"confidence": conf,
		})
		if sample.Match {
			entry.Info("match")
			report.Matches++
		} else {
			entry.Warn("mismatch")
		}
		report.Results = append(report.Results, sample)
		bar.Add(1)
	}

	report.Samples = len(report.Results)
	if report.Samples > 0 {
		report.Accuracy = float64(report.Matches) / float64(report.Samples)
	}
	return report, nil
}
