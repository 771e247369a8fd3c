package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/esimov/facecam"
	"github.com/esimov/facecam/utils"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const HelpBanner = `
┌─┐┌─┐┌─┐┌─┐┌─┐┌─┐┌┬┐
├┤ ├─┤│  ├┤ │  ├─┤│││
└  ┴ ┴└─┘└─┘└─┘┴ ┴┴ ┴

Face detection and recognition toolkit.
    Version: %s
`

// Version indicates the current build version.
var Version = "dev"

var (
	configFile string
	rootDir    string
	verbose    bool

	// cfg is the configuration shared by the subcommands, loaded before any of them runs.
	cfg *facecam.Config
)

var rootCmd = &cobra.Command{
	Use:           "facecam",
	Short:         "Face detection and recognition on webcam streams, videos and images",
	Long:          fmt.Sprintf(HelpBanner, Version),
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}

		var err error
		cfg, err = facecam.LoadConfig(configFile)
		if err != nil {
			return err
		}
		if rootDir != "" {
			cfg.Root = rootDir
		}
		log.WithField("root", cfg.Root).Debug("configuration loaded")
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Project root the resource paths are resolved against")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
}

func initConfig() {
	// .env file is optional
	_ = godotenv.Load()

	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n",
			utils.DecorateText("facecam:", utils.ErrorMessage),
			utils.DecorateText(err.Error(), utils.DefaultMessage),
		)
		os.Exit(1)
	}
}
