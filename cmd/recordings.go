package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var recordingsCmd = &cobra.Command{
	Use:   "recordings",
	Short: "List finished recordings",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService()
		defer svc.Close()

		recordings, err := svc.ListRecordings()
		if err != nil {
			return err
		}

		fmt.Printf("Recordings in %s (%d found):\n", cfg.Recording.Directory, len(recordings))
		for i, r := range recordings {
			fmt.Printf("  %d. %s  %s  %s\n", i+1, r.Name, r.SizeHuman, r.ModTimeHuman)
		}
		return nil
	},
}
