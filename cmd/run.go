package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [audio-file]",
	Short: "Execute pipeline steps",
	Long: `Execute the specified pipeline steps in order. Use -p to specify which steps to run:
r records (Enter to start, Enter to stop), s selects the given file or opens the file picker,
p plays the selection, a uploads it for analysis. The screen is rendered afterwards.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if pipeline == "" {
			return fmt.Errorf("no pipeline specified, use -p flag (e.g., -p spa)")
		}

		var path string
		if len(args) == 1 {
			path = args[0]
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc := newService()
		defer svc.Close()

		return svc.RunPipeline(ctx, pipeline, path, os.Stdin, os.Stdout)
	},
}
