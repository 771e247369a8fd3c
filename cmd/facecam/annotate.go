package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/esimov/facecam"
	"github.com/esimov/facecam/utils"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	annotateStrategy string
	annotateOut      string
)

var annotateCmd = &cobra.Command{
	Use:   "annotate <image|dir|url|->",
	Short: "Mark up the faces of an image, an image URL or a directory of images",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if annotateStrategy != "" {
			cfg.Strategy = annotateStrategy
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		src := args[0]
		if utils.IsValidUrl(src) {
			f, err := utils.DownloadImage(src)
			if err != nil {
				return err
			}
			defer os.Remove(f.Name())
			f.Close()
			src = f.Name()
		}

		proc, err := facecam.NewProcessor(cfg)
		if err != nil {
			return err
		}

		spinner := utils.NewSpinner(fmt.Sprintf("%s %s",
			utils.DecorateText("facecam", utils.StatusMessage),
			utils.DecorateText("is looking for faces...", utils.DefaultMessage),
		), 100*time.Millisecond)
		spinner.Start()

		now := time.Now()
		results, err := facecam.Annotate(cmd.Context(), proc, src, annotateOut)
		spinner.Stop()
		if err != nil {
			return err
		}

		var failed int
		for _, res := range results {
			printStatus(res)
			if res.Err != nil {
				failed++
			}
		}
		if failed > 0 {
			return errors.Errorf("%d of %d images could not be annotated", failed, len(results))
		}
		fmt.Fprintf(os.Stderr, "\nExecution time: %s\n",
			utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
		return nil
	},
}

func init() {
	annotateCmd.Flags().StringVarP(&annotateOut, "out", "o", facecam.PipeName, "Destination image or directory")
	annotateCmd.Flags().StringVarP(&annotateStrategy, "strategy", "s", "", "Processing strategy: recognize or detect")

	rootCmd.AddCommand(annotateCmd)
}

// printStatus displays the outcome of annotating a single image.
func printStatus(res facecam.AnnotateResult) {
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n\tReason: %v\n",
			utils.DecorateText("Error annotating", utils.ErrorMessage),
			res.Src, res.Err,
		)
		return
	}
	if res.Dst != facecam.PipeName {
		fmt.Fprintf(os.Stderr, "The image has been saved as: %s\n",
			utils.DecorateText(filepath.Base(res.Dst), utils.SuccessMessage))
	}
}
