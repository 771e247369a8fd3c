package main

import (
	"fmt"
	"os"

	"github.com/esimov/facecam"
	"github.com/esimov/facecam/utils"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	watchInput  string
	watchOutput string
	watchDevice string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Recognize the faces of the webcam stream or of a video file",
	Long: `Recognize the faces of the webcam stream or of a video file.
The processed frames are shown in ffplay, or written into a directory when --out is set.
Press 'q' to quit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return watch(cmd, facecam.StrategyRecognize)
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect the faces and landmarks of the webcam stream or of a video file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return watch(cmd, facecam.StrategyDetect)
	},
}

func init() {
	for _, c := range []*cobra.Command{watchCmd, detectCmd} {
		c.Flags().StringVarP(&watchInput, "in", "i", "", "Video file to read instead of the webcam")
		c.Flags().StringVarP(&watchOutput, "out", "o", "", "Directory to write the processed frames to")
		c.Flags().StringVar(&watchDevice, "device", "", "Capture device")
	}
	rootCmd.AddCommand(watchCmd, detectCmd)
}

func watch(cmd *cobra.Command, strategy string) error {
	cfg.Strategy = strategy
	if watchInput != "" {
		cfg.Video.Input = watchInput
	}
	if watchDevice != "" {
		cfg.Video.Device = watchDevice
	}

	proc, err := facecam.NewProcessor(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	src, err := facecam.OpenVideo(ctx, cfg.Video)
	if err != nil {
		return err
	}

	var sink facecam.FrameSink
	if watchOutput != "" {
		sink, err = facecam.NewDirSink(watchOutput, ".jpg")
	} else {
		sink, err = facecam.NewPlayerSink(ctx, cfg.Video.Player, "facecam")
	}
	if err != nil {
		src.Close()
		return err
	}

	keys, err := utils.ListenQuitKey(os.Stdin)
	if err != nil {
		src.Close()
		sink.Close()
		return err
	}
	defer keys.Restore()
	// Raw mode keeps the cursor in its column on a line feed.
	log.SetOutput(keys.Output(os.Stderr))
	defer log.SetOutput(os.Stderr)

	fmt.Fprintf(os.Stderr, "%s\r\n", utils.DecorateText("Press 'q' to quit", utils.StatusMessage))
	log.WithField("strategy", strategy).Debug("video loop started")

	return facecam.Run(ctx, src, sink, proc, keys.Quit())
}
