package main

import (
	"fmt"
	"os"
	"time"

	"github.com/esimov/facecam"
	"github.com/esimov/facecam/utils"
	"github.com/spf13/cobra"
)

var preprocess bool

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the recognizer on the training set and evaluate it on the test set",
	RunE: func(cmd *cobra.Command, args []string) error {
		trainer, err := newTrainer()
		if err != nil {
			return err
		}

		now := time.Now()
		report, err := trainer.Train(cmd.Context(), preprocess)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "\nModel saved as: %s\n",
			utils.DecorateText(trainer.Store.ModelPath, utils.SuccessMessage))
		printReport(report)
		fmt.Fprintf(os.Stderr, "Execution time: %s\n",
			utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Evaluate the persisted model on the test set",
	RunE: func(cmd *cobra.Command, args []string) error {
		trainer, err := newTrainer()
		if err != nil {
			return err
		}
		report, err := trainer.Test(cmd.Context())
		if err != nil {
			return err
		}
		printReport(report)
		return nil
	},
}

func init() {
	trainCmd.Flags().BoolVar(&preprocess, "preprocess", false, "Convert the training videos to frames first")

	rootCmd.AddCommand(trainCmd, testCmd)
}

func newTrainer() (*facecam.Trainer, error) {
	fe, err := facecam.NewExtractor(cfg)
	if err != nil {
		return nil, err
	}
	sampler := facecam.NewRecognitionProcessor(fe, nil, nil)
	sampler.FaceSize = cfg.LBPH.FaceSize

	return &facecam.Trainer{
		Sampler:     sampler,
		Params:      cfg.LBPH,
		Store:       cfg.Store(),
		TrainingDir: cfg.Path(cfg.TrainingDir),
		TestDir:     cfg.Path(cfg.TestDir),
		OpenVideo:   facecam.FFmpegOpener(cfg.Video.FFmpeg),
		Progress:    os.Stderr,
	}, nil
}

func printReport(report *facecam.EvalReport) {
	if report == nil {
		return
	}
	msgType := utils.SuccessMessage
	if report.Matches < report.Samples {
		msgType = utils.StatusMessage
	}
	fmt.Fprintf(os.Stderr, "\nRecognized %s of %d test faces (accuracy %s)\n",
		utils.DecorateText(fmt.Sprint(report.Matches), msgType),
		report.Samples,
		utils.DecorateText(fmt.Sprintf("%.2f%%", report.Accuracy*100), msgType),
	)
}
