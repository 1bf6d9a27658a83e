package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/soundcheck/internal/picker"
	"github.com/audiolibrelab/soundcheck/internal/service"
)

var playCmd = &cobra.Command{
	Use:   "play [audio-file]",
	Short: "Play an audio file",
	Long: `Select the audio file and play it with the first available player
(vlc, mpv, ffplay, aplay, or playback.player) until it finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := newService()
		defer svc.Close()

		if _, err := svc.Screen().SelectWith(ctx, picker.NewPathPicker(cfg, args[0])); err != nil {
			return fmt.Errorf("selection failed: %w", err)
		}

		fmt.Printf("Playing: %s\n", svc.Screen().Snapshot().Selection.FileName)
		if err := svc.PlayAndWait(ctx); err != nil {
			return fmt.Errorf("playback failed: %w", err)
		}

		return executePipeline(ctx, svc, service.StepPlay, args[0])
	},
}
