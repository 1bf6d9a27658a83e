package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/soundcheck/internal/server"
	"github.com/audiolibrelab/soundcheck/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server for remote control",
	Long: `Start the SoundCheck web server to record, select, play and analyze from a browser.
This allows you to hold the record button on your smartphone or any device on the same network,
or upload a file from it.

The server will display the local network URL for easy access from mobile devices.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var logWriter io.Writer = io.Discard
		if verboseLevel >= 2 {
			logWriter = os.Stderr
		}

		// No terminal indicator here, the page shows the recording state
		svc := service.New(cfg, service.Options{LogWriter: logWriter, Output: os.Stderr})
		defer svc.Close()
		svc.Screen().Mount(ctx)

		srv := server.New(cfg, svc.Screen(), svc.Backend(), port)
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().String("port", "", "port for the web server (overrides server.port)")
}
