package audio

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/audiolibrelab/soundcheck/internal/config"
)

// PipeWireBackend implements the Backend interface for PipeWire
type PipeWireBackend struct {
	modeState
	cfg *config.Config
}

func NewPipeWireBackend(cfg *config.Config) *PipeWireBackend {
	return &PipeWireBackend{cfg: cfg}
}

// NewRecorder creates a new PipeWire recorder
func (p *PipeWireBackend) NewRecorder(logWriter io.Writer) Recorder {
	return NewPipeWireRecorder(p.cfg, logWriter, p.allowsRecording)
}

// ListSources returns the capture nodes PipeWire exposes
func (p *PipeWireBackend) ListSources() ([]string, error) {
	ports, err := NewPipeWire().ListPorts()
	if err != nil {
		return nil, err
	}
	return nodeNames(ports), nil
}

// ValidateSource validates a PipeWire node or port name
func (p *PipeWireBackend) ValidateSource(source string) error {
	if source == "" || source == "disabled" {
		return nil
	}

	return NewPipeWire().ValidateSource(source)
}

// RequestPermission checks that pw-record is installed and the configured source exists
func (p *PipeWireBackend) RequestPermission(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := exec.LookPath(pipeWireRecordCommand); err != nil {
		return fmt.Errorf("microphone unavailable: %s not found in PATH", pipeWireRecordCommand)
	}
	if err := p.ValidateSource(p.cfg.Audio.Source); err != nil {
		return fmt.Errorf("microphone unavailable: %w", err)
	}
	return nil
}

// GetType returns the backend type
func (p *PipeWireBackend) GetType() BackendType {
	return BackendTypePipeWire
}
