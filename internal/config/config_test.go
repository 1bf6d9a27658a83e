package config

import (
	"testing"
	"time"
)

func TestMergeConfigs_SelectionAndFallback(t *testing.T) {
	base := DefaultConfig()
	base.API.BaseURL = "http://base.local:8000"

	profile := &Config{
		Audio: AudioConfig{
			SampleRate: 48000, // Override sample rate
			Backend:    "portaudio",
		},
		Recording: RecordingConfig{
			LongPressDelay: 750 * time.Millisecond,
		},
		Picker: PickerConfig{
			Extensions: []string{"wav", "m4a"},
		},
	}

	result := mergeConfigs(base, profile)

	if result.Audio.SampleRate != 48000 {
		t.Errorf("Expected sample rate 48000, got %d", result.Audio.SampleRate)
	}
	if result.Audio.Backend != "portaudio" {
		t.Errorf("Expected backend 'portaudio', got %s", result.Audio.Backend)
	}
	if result.Audio.Channels != 1 {
		t.Errorf("Expected inherited channel count 1, got %d", result.Audio.Channels)
	}
	if result.API.BaseURL != "http://base.local:8000" {
		t.Errorf("Expected inherited base URL, got %s", result.API.BaseURL)
	}
	if result.Recording.LongPressDelay != 750*time.Millisecond {
		t.Errorf("Expected long press delay 750ms, got %s", result.Recording.LongPressDelay)
	}
	if len(result.Picker.Extensions) != 2 || result.Picker.Extensions[1] != "m4a" {
		t.Errorf("Expected profile extensions [wav m4a], got %v", result.Picker.Extensions)
	}

	if result.Inheritance == nil {
		t.Fatal("Inheritance tracking not initialized")
	}
	if result.Inheritance["audio.sample_rate"] != ProfileSpecific {
		t.Errorf("Expected sample rate to be profile-specific, got %s", result.Inheritance["audio.sample_rate"])
	}
	if result.Inheritance["audio.channels"] != Inherited {
		t.Errorf("Expected channels to be inherited, got %s", result.Inheritance["audio.channels"])
	}
	if result.Inheritance["api.base_url"] != Inherited {
		t.Errorf("Expected base URL to be inherited, got %s", result.Inheritance["api.base_url"])
	}
	if result.Inheritance["picker.extensions"] != ProfileSpecific {
		t.Errorf("Expected extensions to be profile-specific, got %s", result.Inheritance["picker.extensions"])
	}
}

func TestMergeConfigs_DoesNotAliasBaseExtensions(t *testing.T) {
	base := DefaultConfig()
	result := mergeConfigs(base, &Config{})

	result.Picker.Extensions[0] = "changed"
	if base.Picker.Extensions[0] == "changed" {
		t.Error("Expected merged extensions to be a copy of the base slice")
	}
}

func TestMergeConfigs_BooleanAlwaysFromProfile(t *testing.T) {
	base := DefaultConfig()
	base.Screen.ClearResultOnSelect = true

	result := mergeConfigs(base, &Config{})
	if result.Screen.ClearResultOnSelect {
		t.Error("Expected profile value (false) to take precedence for clear_result_on_select")
	}

	result = mergeConfigs(DefaultConfig(), &Config{Screen: ScreenConfig{ClearResultOnSelect: true}})
	if !result.Screen.ClearResultOnSelect {
		t.Error("Expected clear_result_on_select to be enabled by the profile")
	}
}

func TestMergeConfigs_NilProfileMarksDefaults(t *testing.T) {
	result := mergeConfigs(DefaultConfig(), nil)

	for _, key := range SettingKeys() {
		if result.Inheritance[key] != BuiltinDefault {
			t.Errorf("Expected %s to be marked %q, got %q", key, BuiltinDefault, result.Inheritance[key])
		}
	}
}

func TestProcessURL(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.ProcessURL(); got != "" {
		t.Errorf("Expected empty process URL without base URL, got %q", got)
	}

	cfg.API.BaseURL = "http://10.0.2.2:5000/"
	if got := cfg.ProcessURL(); got != "http://10.0.2.2:5000/process_file" {
		t.Errorf("Expected trailing slash to be collapsed, got %q", got)
	}

	cfg.API.BaseURL = "https://api.example.com/v1"
	if got := cfg.ProcessURL(); got != "https://api.example.com/v1/process_file" {
		t.Errorf("Unexpected process URL %q", got)
	}
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("Expected default config to validate, got: %v", err)
	}
}
