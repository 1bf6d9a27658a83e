package cmd

import (
	"context"
	"testing"

	"github.com/audiolibrelab/soundcheck/internal/config"
)

func TestSettingValuesCoverEveryKey(t *testing.T) {
	values := settingValues(config.DefaultConfig())
	for _, key := range config.SettingKeys() {
		if _, ok := values[key]; !ok {
			t.Errorf("Setting %s has no display value", key)
		}
	}
	if len(values) != len(config.SettingKeys()) {
		t.Errorf("Expected %d values, got %d", len(config.SettingKeys()), len(values))
	}
}

func TestGetInheritanceIndicator(t *testing.T) {
	tests := map[string]string{
		config.Inherited:       "[inherited]",
		config.ProfileSpecific: "[profile-specific]",
		config.BuiltinDefault:  "[default]",
		"environment":          "[environment]",
		"":                     "[unknown]",
	}
	for status, want := range tests {
		if got := getInheritanceIndicator(status); got != want {
			t.Errorf("getInheritanceIndicator(%q) = %s, want %s", status, got, want)
		}
	}
}

func TestExecutePipeline(t *testing.T) {
	defer func(p string) { pipeline = p }(pipeline)

	pipeline = ""
	if err := executePipeline(context.Background(), nil, 'r', ""); err != nil {
		t.Errorf("Expected no-op without a pipeline, got %v", err)
	}

	pipeline = "sa"
	if err := executePipeline(context.Background(), nil, 'r', ""); err == nil {
		t.Error("Expected error when the step is not in the pipeline")
	}

	pipeline = "ra"
	if err := executePipeline(context.Background(), nil, 'a', ""); err != nil {
		t.Errorf("Expected nothing left to run after the last step, got %v", err)
	}
}
