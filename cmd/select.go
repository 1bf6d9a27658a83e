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

var selectCmd = &cobra.Command{
	Use:   "select [audio-file]",
	Short: "Select an audio file",
	Long: `Copy an audio file into the picker cache and make it the selection. Without an
argument the native file picker is opened.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := newService()
		defer svc.Close()

		var path string
		if len(args) == 1 {
			path = args[0]
		}

		var err error
		if path != "" {
			_, err = svc.Screen().SelectWith(ctx, picker.NewPathPicker(cfg, path))
		} else {
			_, err = svc.Screen().SelectFile(ctx)
		}
		if err != nil {
			return fmt.Errorf("selection failed: %w", err)
		}

		sel := svc.Screen().Snapshot().Selection
		fmt.Printf("Selected: %s\n", sel.FileName)
		fmt.Printf("Cached at: %s\n", sel.URI)

		return executePipeline(ctx, svc, service.StepSelect, sel.URI)
	},
}
