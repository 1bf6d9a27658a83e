package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/soundcheck/internal/audio"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List available audio sources",
	Long:  `List the capture sources the active audio backend can record from. Use one of them as audio.source.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend := audio.NewBackend(cfg)
		return listAvailableSources(backend)
	},
}

// listAvailableSources prints the sources of backend and the backends found on this system
func listAvailableSources(backend audio.Backend) error {
	fmt.Printf("🎵 Audio Sources (%s, %s backend)\n", runtime.GOOS, backend.GetType())
	fmt.Printf("═══════════════════════════════════════\n\n")

	sources, err := backend.ListSources()
	if err != nil {
		return fmt.Errorf("failed to get %s sources: %w", backend.GetType(), err)
	}

	fmt.Printf("📋 SOURCES (%d found):\n", len(sources))
	for i, source := range sources {
		marker := ""
		if source == cfg.Audio.Source {
			marker = " (configured)"
		}
		fmt.Printf("  %d. %s%s\n", i+1, source, marker)
	}

	fmt.Printf("\n💡 Available backends: %v\n", audio.GetAvailableBackends())
	fmt.Printf("  • Configure in audio.source, empty records from the system default\n\n")

	return nil
}
