package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/audiolibrelab/soundcheck/internal/config"
)

var infoCmd = &cobra.Command{
	Use:   "info [audio-file]",
	Short: "Show how a file would be uploaded and the resolved configuration",
	Long:  `Display the derived file name, upload MIME type and endpoint for the given file, followed by the resolved configuration with inheritance indicators.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService()
		defer svc.Close()

		info := svc.GetFileInfo(args[0])

		fmt.Printf("=== FILE ===\n")
		fmt.Printf("name: %s\n", info.Name)
		fmt.Printf("mime_type: %s\n", info.MIMEType)
		fmt.Printf("supported: %t\n", info.Supported)
		if info.UploadURL == "" {
			fmt.Printf("upload_url: (not configured, set api.base_url or SOUNDCHECK_API_URL)\n")
		} else {
			fmt.Printf("upload_url: %s\n", info.UploadURL)
		}

		fmt.Printf("\n=== RESOLVED CONFIGURATION ===\n")
		values := settingValues(cfg)
		for _, key := range config.SettingKeys() {
			fmt.Printf("%s: %s %s\n", key, values[key], getInheritanceIndicator(cfg.Inheritance[key]))
		}

		return nil
	},
}

// settingValues formats every tracked setting for display
func settingValues(c *config.Config) map[string]string {
	return map[string]string{
		"api.base_url":                  c.API.BaseURL,
		"api.process_path":              c.API.ProcessPath,
		"api.timeout":                   c.API.Timeout.String(),
		"audio.backend":                 c.Audio.Backend,
		"audio.sample_rate":             fmt.Sprint(c.Audio.SampleRate),
		"audio.channels":                fmt.Sprint(c.Audio.Channels),
		"audio.source":                  c.Audio.Source,
		"audio.format":                  c.Audio.Format,
		"recording.directory":           c.Recording.Directory,
		"recording.long_press_delay":    c.Recording.LongPressDelay.String(),
		"recording.hold_key":            c.Recording.HoldKey,
		"picker.backend":                c.Picker.Backend,
		"picker.cache_directory":        c.Picker.CacheDirectory,
		"picker.extensions":             fmt.Sprint(c.Picker.Extensions),
		"playback.player":               c.Playback.Player,
		"screen.clear_result_on_select": fmt.Sprint(c.Screen.ClearResultOnSelect),
		"screen.notifier":               c.Screen.Notifier,
		"server.port":                   c.Server.Port,
		"analysis_server.port":          c.AnalysisServer.Port,
		"analysis_server.points":        fmt.Sprint(c.AnalysisServer.Points),
	}
}

// getInheritanceIndicator returns a formatted indicator for inheritance status
func getInheritanceIndicator(status string) string {
	switch status {
	case config.Inherited:
		return "[inherited]"
	case config.ProfileSpecific:
		return "[profile-specific]"
	case config.BuiltinDefault:
		return "[default]"
	case "environment":
		return "[environment]"
	default:
		return "[unknown]"
	}
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
