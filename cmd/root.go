package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/audiolibrelab/soundcheck/internal/config"
	"github.com/audiolibrelab/soundcheck/internal/indicator"
	"github.com/audiolibrelab/soundcheck/internal/service"
)

var (
	cfg          *config.Config
	cfgFile      string
	pipeline     string
	profile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "soundcheck [audio-file]",
	Short: "Record or pick an audio clip and send it for spectral analysis",
	Long: `SoundCheck records a short clip while a key is held, or picks an existing
audio file, plays it back and uploads it to an analysis service. The returned
spectrum is drawn as a chart in the terminal.

When a file is provided, it acts as 'soundcheck run -p sa [audio-file]'.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(verboseLevel)

		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Failed to load .env file", "error", err)
		}

		// Use default config path if not specified
		if cfgFile == "" {
			cfgFile = os.ExpandEnv("$HOME/.config/soundcheck.yaml")
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return service.ValidatePipeline(pipeline)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// If a file is provided, select and analyze it
		if len(args) == 1 {
			if pipeline == "" {
				pipeline = "sa"
			}
			return runCmd.RunE(cmd, args)
		}
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/soundcheck.yaml)")
	rootCmd.PersistentFlags().StringVarP(&pipeline, "pipeline", "p", "", "pipeline steps: r=record, s=select, p=play, a=analyze (e.g., 'ra', 'spa')")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=recorder output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(recordingsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analysisServerCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	slogLevel := slog.LevelInfo
	if level >= 1 {
		slogLevel = slog.LevelDebug
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	slog.SetDefault(slog.New(handler))
}

// newService builds the service for terminal commands
func newService() *service.Service {
	// Recorder process output is only shown at verbose level 2
	var logWriter io.Writer = io.Discard
	if verboseLevel >= 2 {
		logWriter = os.Stderr
	}

	return service.New(cfg, service.Options{
		LogWriter: logWriter,
		Indicator: indicator.NewSpinner(os.Stderr),
		Output:    os.Stderr,
	})
}
