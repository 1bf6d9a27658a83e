package audio

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/audiolibrelab/soundcheck/internal/config"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypePipeWire  BackendType = "pipewire"
	BackendTypePortAudio BackendType = "portaudio"
	BackendTypeAuto      BackendType = "auto"
)

// Mode is the session-wide audio mode. Recording is only possible while AllowsRecording is set.
type Mode struct {
	AllowsRecording   bool `json:"allows_recording"`
	PlaysInSilentMode bool `json:"plays_in_silent_mode"`
}

// Backend defines the interface for audio backend implementations
type Backend interface {
	// Create a new recorder instance bound to this backend's mode
	NewRecorder(logWriter io.Writer) Recorder

	// List available capture sources
	ListSources() ([]string, error)

	// Validate if a source is available
	ValidateSource(source string) error

	// RequestPermission verifies the capture device can be opened
	RequestPermission(ctx context.Context) error

	SetMode(mode Mode) error
	Mode() Mode

	// Get the backend type
	GetType() BackendType
}

// NewBackend creates the backend selected by configuration
func NewBackend(cfg *config.Config) Backend {
	switch determineBackend(cfg) {
	case BackendTypePortAudio:
		return NewPortAudioBackend(cfg)
	default:
		return NewPipeWireBackend(cfg)
	}
}

// determineBackend determines which backend to use based on configuration
func determineBackend(cfg *config.Config) BackendType {
	switch strings.ToLower(cfg.Audio.Backend) {
	case "pipewire":
		return BackendTypePipeWire
	case "portaudio":
		return BackendTypePortAudio
	}

	// auto: prefer PipeWire when its tools are installed
	if pipeWireAvailable() {
		return BackendTypePipeWire
	}
	return BackendTypePortAudio
}

func pipeWireAvailable() bool {
	_, err := exec.LookPath("pw-record")
	return err == nil
}

// GetAvailableBackends returns list of available backends on current system
func GetAvailableBackends() []BackendType {
	backends := []BackendType{}

	if pipeWireAvailable() {
		backends = append(backends, BackendTypePipeWire)
	}
	// PortAudio is linked in, so it is always a candidate
	backends = append(backends, BackendTypePortAudio)

	return backends
}

// modeState is embedded by backends to hold the current audio mode
type modeState struct {
	mu   sync.RWMutex
	mode Mode
}

func (m *modeState) SetMode(mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mode = mode
	slog.Debug("Audio mode updated", "allows_recording", mode.AllowsRecording, "plays_in_silent_mode", mode.PlaysInSilentMode)
	return nil
}

func (m *modeState) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

func (m *modeState) allowsRecording() bool {
	return m.Mode().AllowsRecording
}
