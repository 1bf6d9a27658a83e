package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/soundcheck/internal/spectral"
)

var analysisServerCmd = &cobra.Command{
	Use:   "analysis-server",
	Short: "Run a local analysis endpoint for development",
	Long: `Run a local stand-in for the analysis service. It accepts the same multipart upload
on api.process_path and answers with an FFT magnitude spectrum and a coarse class
(silence, low, voice, high).

Point the client at it with SOUNDCHECK_API_URL=http://localhost:8000.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := spectral.NewService(cfg, port)
		if err := svc.Listen(ctx); err != nil {
			return fmt.Errorf("analysis server failed: %w", err)
		}
		return nil
	},
}

func init() {
	analysisServerCmd.Flags().String("port", "", "port for the analysis server (overrides analysis_server.port)")
}
