package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Inheritance markers reported by the info command
const (
	Inherited       = "inherited"
	ProfileSpecific = "profile-specific"
	BuiltinDefault  = "default"
)

type RootConfig struct {
	ActiveConfig             string             `mapstructure:"active_config" yaml:"active_config"`
	API                      *APIConfig         `mapstructure:"api,omitempty" yaml:"api,omitempty"`
	Configs                  map[string]*Config `mapstructure:"configs" yaml:"configs"`
	SupportedAudioExtensions []string           `mapstructure:"supported_audio_extensions" yaml:"supported_audio_extensions"`
}

type Config struct {
	API            APIConfig            `mapstructure:"api" yaml:"api"`
	Audio          AudioConfig          `mapstructure:"audio" yaml:"audio"`
	Recording      RecordingConfig      `mapstructure:"recording" yaml:"recording"`
	Picker         PickerConfig         `mapstructure:"picker" yaml:"picker"`
	Playback       PlaybackConfig       `mapstructure:"playback" yaml:"playback"`
	Screen         ScreenConfig         `mapstructure:"screen" yaml:"screen"`
	Server         ServerConfig         `mapstructure:"server" yaml:"server"`
	AnalysisServer AnalysisServerConfig `mapstructure:"analysis_server" yaml:"analysis_server"`

	// Internal field to track inheritance information for info command, keyed by dotted setting name
	Inheritance map[string]string `mapstructure:"-" yaml:"-"`
}

type APIConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	ProcessPath string        `mapstructure:"process_path" yaml:"process_path"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

type AudioConfig struct {
	Backend    string `mapstructure:"backend" yaml:"backend"` // "pipewire", "portaudio", "auto"
	SampleRate int    `mapstructure:"sample_rate" yaml:"sample_rate"`
	Channels   int    `mapstructure:"channels" yaml:"channels"`
	Source     string `mapstructure:"source" yaml:"source"` // capture target, empty = system default
	Format     string `mapstructure:"format" yaml:"format"` // container of the finished recording
}

type RecordingConfig struct {
	Directory      string        `mapstructure:"directory" yaml:"directory"`
	LongPressDelay time.Duration `mapstructure:"long_press_delay" yaml:"long_press_delay"`
	HoldKey        string        `mapstructure:"hold_key" yaml:"hold_key"`
}

type PickerConfig struct {
	Backend        string   `mapstructure:"backend" yaml:"backend"` // "dialog", "zenity"
	CacheDirectory string   `mapstructure:"cache_directory" yaml:"cache_directory"`
	Extensions     []string `mapstructure:"extensions" yaml:"extensions"`
}

type PlaybackConfig struct {
	Player string `mapstructure:"player" yaml:"player"` // empty = first available
}

type ScreenConfig struct {
	ClearResultOnSelect bool   `mapstructure:"clear_result_on_select" yaml:"clear_result_on_select"`
	Notifier            string `mapstructure:"notifier" yaml:"notifier"` // "terminal", "dialog"
}

type ServerConfig struct {
	Port string `mapstructure:"port" yaml:"port"`
}

type AnalysisServerConfig struct {
	Port   string `mapstructure:"port" yaml:"port"`
	Points int    `mapstructure:"points" yaml:"points"`
}

var defaultExtensions = []string{"wav", "mp3", "m4a", "aac", "flac", "ogg", "opus", "webm", "3gp", "caf"}

// DefaultConfig returns the built-in configuration used when no file is present
func DefaultConfig() *Config {
	cacheRoot := defaultCacheRoot()
	return &Config{
		API: APIConfig{
			ProcessPath: "/process_file",
			Timeout:     60 * time.Second,
		},
		Audio: AudioConfig{
			Backend:    "auto",
			SampleRate: 44100,
			Channels:   1,
			Format:     "wav",
		},
		Recording: RecordingConfig{
			Directory:      filepath.Join(cacheRoot, "recordings"),
			LongPressDelay: 500 * time.Millisecond,
			HoldKey:        "space",
		},
		Picker: PickerConfig{
			Backend:        "dialog",
			CacheDirectory: filepath.Join(cacheRoot, "DocumentPicker"),
			Extensions:     append([]string(nil), defaultExtensions...),
		},
		Screen: ScreenConfig{
			Notifier: "terminal",
		},
		Server: ServerConfig{
			Port: "8080",
		},
		AnalysisServer: AnalysisServerConfig{
			Port:   "8000",
			Points: 256,
		},
	}
}

func defaultCacheRoot() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "soundcheck")
}

// LoadWithProfile resolves the configuration from file, profile and environment.
// A missing file yields the built-in defaults.
func LoadWithProfile(configFile, profile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SOUNDCHECK")
	v.AutomaticEnv()
	if err := v.BindEnv("api_url", "SOUNDCHECK_API_URL"); err != nil {
		return nil, fmt.Errorf("error binding environment: %w", err)
	}

	var selectedConfig *Config

	if configFile != "" && fileExists(configFile) {
		rootConfig, err := readRootConfig(v, configFile)
		if err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}

		configName := profile
		if configName == "" {
			configName = rootConfig.ActiveConfig
		}
		if configName == "" {
			configName = "default"
		}

		selectedProfile, exists := rootConfig.Configs[configName]
		if !exists {
			if profile != "" || len(rootConfig.Configs) > 0 {
				return nil, fmt.Errorf("configuration profile '%s' not found", configName)
			}
			selectedProfile = &Config{}
		}

		// Every profile falls back to "default", which itself falls back to the built-ins
		base := DefaultConfig()
		if configName != "default" {
			if defaultProfile, ok := rootConfig.Configs["default"]; ok {
				base = mergeConfigs(base, defaultProfile)
			}
		}
		selectedConfig = mergeConfigs(base, selectedProfile)

		// Global API settings take priority over profile values
		if rootConfig.API != nil {
			if rootConfig.API.BaseURL != "" {
				selectedConfig.API.BaseURL = rootConfig.API.BaseURL
				selectedConfig.Inheritance["api.base_url"] = ProfileSpecific
			}
			if rootConfig.API.ProcessPath != "" {
				selectedConfig.API.ProcessPath = rootConfig.API.ProcessPath
			}
			if rootConfig.API.Timeout > 0 {
				selectedConfig.API.Timeout = rootConfig.API.Timeout
			}
		}

		if len(rootConfig.SupportedAudioExtensions) > 0 && selectedConfig.Inheritance["picker.extensions"] != ProfileSpecific {
			selectedConfig.Picker.Extensions = rootConfig.SupportedAudioExtensions
		}
	} else {
		if configFile != "" && profile != "" {
			return nil, fmt.Errorf("configuration profile '%s' requested but %s does not exist", profile, configFile)
		}
		selectedConfig = mergeConfigs(DefaultConfig(), nil)
	}

	// The environment always wins for the service address
	if envURL := v.GetString("api_url"); envURL != "" {
		selectedConfig.API.BaseURL = envURL
		selectedConfig.Inheritance["api.base_url"] = "environment"
	}

	selectedConfig.Recording.Directory = expandPath(selectedConfig.Recording.Directory)
	selectedConfig.Picker.CacheDirectory = expandPath(selectedConfig.Picker.CacheDirectory)

	if err := Validate(selectedConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return selectedConfig, nil
}

// readRootConfig reads and unmarshals the YAML file into a RootConfig
func readRootConfig(v *viper.Viper, configFile string) (*RootConfig, error) {
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	var rootConfig RootConfig
	if err := v.Unmarshal(&rootConfig); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	for name, profile := range rootConfig.Configs {
		if profile == nil {
			return nil, fmt.Errorf("configuration profile '%s' is empty", name)
		}
	}

	return &rootConfig, nil
}

// UpdateActiveConfig updates the active_config field in the config file
func UpdateActiveConfig(configFile, newActiveConfig string) error {
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	// Create a new viper instance to avoid interfering with other readers
	v := viper.New()
	v.SetConfigFile(configFile)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", configFile, err)
	}

	configs := v.GetStringMap("configs")
	if _, ok := configs[newActiveConfig]; !ok {
		return fmt.Errorf("configuration profile '%s' not found", newActiveConfig)
	}

	v.Set("active_config", newActiveConfig)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configFile, err)
	}

	return nil
}

// ProfileNames lists the profiles declared in the config file
func ProfileNames(configFile string) ([]string, error) {
	v := viper.New()
	rootConfig, err := readRootConfig(v, configFile)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(rootConfig.Configs))
	for name := range rootConfig.Configs {
		names = append(names, name)
	}
	return names, nil
}

// mergeConfigs implements the "Selection & Fallback" model: every zero value in the
// profile falls back to the base value and is recorded as inherited.
func mergeConfigs(base, profile *Config) *Config {
	result := &Config{Inheritance: make(map[string]string)}
	if base != nil {
		*result = *base
		result.Picker.Extensions = append([]string(nil), base.Picker.Extensions...)
		result.Inheritance = make(map[string]string)
	}

	mark := func(key string, overridden bool) {
		if overridden {
			result.Inheritance[key] = ProfileSpecific
		} else {
			result.Inheritance[key] = Inherited
		}
	}

	if profile == nil {
		for _, key := range settingKeys {
			result.Inheritance[key] = BuiltinDefault
		}
		return result
	}

	mark("api.base_url", overrideString(&result.API.BaseURL, profile.API.BaseURL))
	mark("api.process_path", overrideString(&result.API.ProcessPath, profile.API.ProcessPath))
	mark("api.timeout", overrideDuration(&result.API.Timeout, profile.API.Timeout))

	mark("audio.backend", overrideString(&result.Audio.Backend, profile.Audio.Backend))
	mark("audio.sample_rate", overrideInt(&result.Audio.SampleRate, profile.Audio.SampleRate))
	mark("audio.channels", overrideInt(&result.Audio.Channels, profile.Audio.Channels))
	mark("audio.source", overrideString(&result.Audio.Source, profile.Audio.Source))
	mark("audio.format", overrideString(&result.Audio.Format, profile.Audio.Format))

	mark("recording.directory", overrideString(&result.Recording.Directory, profile.Recording.Directory))
	mark("recording.long_press_delay", overrideDuration(&result.Recording.LongPressDelay, profile.Recording.LongPressDelay))
	mark("recording.hold_key", overrideString(&result.Recording.HoldKey, profile.Recording.HoldKey))

	mark("picker.backend", overrideString(&result.Picker.Backend, profile.Picker.Backend))
	mark("picker.cache_directory", overrideString(&result.Picker.CacheDirectory, profile.Picker.CacheDirectory))
	if len(profile.Picker.Extensions) > 0 {
		result.Picker.Extensions = append([]string(nil), profile.Picker.Extensions...)
	}
	mark("picker.extensions", len(profile.Picker.Extensions) > 0)

	mark("playback.player", overrideString(&result.Playback.Player, profile.Playback.Player))

	// Booleans cannot be told apart from "unset", the profile value always takes precedence
	result.Screen.ClearResultOnSelect = profile.Screen.ClearResultOnSelect
	mark("screen.clear_result_on_select", true)
	mark("screen.notifier", overrideString(&result.Screen.Notifier, profile.Screen.Notifier))

	mark("server.port", overrideString(&result.Server.Port, profile.Server.Port))
	mark("analysis_server.port", overrideString(&result.AnalysisServer.Port, profile.AnalysisServer.Port))
	mark("analysis_server.points", overrideInt(&result.AnalysisServer.Points, profile.AnalysisServer.Points))

	return result
}

var settingKeys = []string{
	"api.base_url", "api.process_path", "api.timeout",
	"audio.backend", "audio.sample_rate", "audio.channels", "audio.source", "audio.format",
	"recording.directory", "recording.long_press_delay", "recording.hold_key",
	"picker.backend", "picker.cache_directory", "picker.extensions",
	"playback.player",
	"screen.clear_result_on_select", "screen.notifier",
	"server.port",
	"analysis_server.port", "analysis_server.points",
}

// SettingKeys returns the dotted names tracked in Config.Inheritance, in display order
func SettingKeys() []string {
	return append([]string(nil), settingKeys...)
}

func overrideString(dst *string, v string) bool {
	if v == "" {
		return false
	}
	*dst = v
	return true
}

func overrideInt(dst *int, v int) bool {
	if v == 0 {
		return false
	}
	*dst = v
	return true
}

func overrideDuration(dst *time.Duration, v time.Duration) bool {
	if v == 0 {
		return false
	}
	*dst = v
	return true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ProcessURL returns the full upload endpoint, or an empty string when no base URL is configured
func (c *Config) ProcessURL() string {
	if c.API.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.API.BaseURL, "/") + c.API.ProcessPath
}

var (
	validBackends  = []string{"auto", "pipewire", "portaudio"}
	validFormats   = []string{"wav", "flac", "mp3", "m4a", "ogg"}
	validPickers   = []string{"dialog", "zenity"}
	validNotifiers = []string{"terminal", "dialog"}
)

// Validate checks a resolved configuration
func Validate(c *Config) error {
	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil {
			return fmt.Errorf("api.base_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("api.base_url must use http or https, got: %s", c.API.BaseURL)
		}
		if u.Host == "" {
			return fmt.Errorf("api.base_url must include a host, got: %s", c.API.BaseURL)
		}
	}
	if !strings.HasPrefix(c.API.ProcessPath, "/") {
		return fmt.Errorf("api.process_path must start with '/', got: %s", c.API.ProcessPath)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0, got: %s", c.API.Timeout)
	}

	if !contains(validBackends, strings.ToLower(c.Audio.Backend)) {
		return fmt.Errorf("audio.backend must be one of %v, got: %s", validBackends, c.Audio.Backend)
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be > 0, got: %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels != 1 && c.Audio.Channels != 2 {
		return fmt.Errorf("audio.channels must be 1 or 2, got: %d", c.Audio.Channels)
	}
	if !contains(validFormats, c.Audio.Format) {
		return fmt.Errorf("audio.format must be one of %v, got: %s", validFormats, c.Audio.Format)
	}

	if c.Recording.Directory == "" {
		return fmt.Errorf("recording.directory is required")
	}
	if c.Recording.LongPressDelay <= 0 {
		return fmt.Errorf("recording.long_press_delay must be > 0, got: %s", c.Recording.LongPressDelay)
	}
	if c.Recording.HoldKey == "" {
		return fmt.Errorf("recording.hold_key is required")
	}

	if !contains(validPickers, c.Picker.Backend) {
		return fmt.Errorf("picker.backend must be one of %v, got: %s", validPickers, c.Picker.Backend)
	}
	if c.Picker.CacheDirectory == "" {
		return fmt.Errorf("picker.cache_directory is required")
	}
	if len(c.Picker.Extensions) == 0 {
		return fmt.Errorf("picker.extensions cannot be empty")
	}
	for i, ext := range c.Picker.Extensions {
		if ext == "" || strings.ContainsAny(ext, "./") {
			return fmt.Errorf("picker.extensions[%d] must be a bare extension like 'wav', got: %q", i, ext)
		}
	}

	if !contains(validNotifiers, c.Screen.Notifier) {
		return fmt.Errorf("screen.notifier must be one of %v, got: %s", validNotifiers, c.Screen.Notifier)
	}

	if err := validatePort("server.port", c.Server.Port); err != nil {
		return err
	}
	if err := validatePort("analysis_server.port", c.AnalysisServer.Port); err != nil {
		return err
	}
	if c.AnalysisServer.Points < 2 {
		return fmt.Errorf("analysis_server.points must be >= 2, got: %d", c.AnalysisServer.Points)
	}

	return nil
}

func validatePort(name, port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("%s must be a number between 1 and 65535, got: %q", name, port)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
