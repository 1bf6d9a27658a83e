package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/audiolibrelab/soundcheck/internal/config"
	"github.com/audiolibrelab/soundcheck/internal/transcode"
)

// PortAudioBackend captures from the default input device through PortAudio
type PortAudioBackend struct {
	modeState
	cfg *config.Config
}

func NewPortAudioBackend(cfg *config.Config) *PortAudioBackend {
	return &PortAudioBackend{cfg: cfg}
}

func (p *PortAudioBackend) NewRecorder(logWriter io.Writer) Recorder {
	return NewPortAudioRecorder(p.cfg, p.allowsRecording)
}

// ListSources returns the names of devices with input channels
func (p *PortAudioBackend) ListSources() ([]string, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list PortAudio devices: %w", err)
	}

	var sources []string
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			sources = append(sources, d.Name)
		}
	}
	return sources, nil
}

func (p *PortAudioBackend) ValidateSource(source string) error {
	if source == "" || source == "disabled" {
		return nil
	}

	sources, err := p.ListSources()
	if err != nil {
		return err
	}
	for _, s := range sources {
		if s == source {
			return nil
		}
	}
	return fmt.Errorf("source not found: %s", source)
}

// RequestPermission opens PortAudio and checks a default input device exists
func (p *PortAudioBackend) RequestPermission(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("microphone unavailable: %w", err)
	}
	defer portaudio.Terminate()

	device, err := portaudio.DefaultInputDevice()
	if err != nil {
		return fmt.Errorf("microphone unavailable: %w", err)
	}
	slog.Debug("PortAudio input device", "name", device.Name, "channels", device.MaxInputChannels)
	return nil
}

func (p *PortAudioBackend) GetType() BackendType {
	return BackendTypePortAudio
}

// PortAudioRecorder buffers input callbacks in memory and writes a WAV on stop
type PortAudioRecorder struct {
	cfg        *config.Config
	allowed    func() bool
	transcoder *transcode.Transcoder

	mutex   sync.RWMutex
	status  Status
	session *SessionInfo
	stream  *portaudio.Stream

	bufMu   sync.Mutex
	samples []int16
}

func NewPortAudioRecorder(cfg *config.Config, allowed func() bool) *PortAudioRecorder {
	if allowed == nil {
		allowed = func() bool { return true }
	}
	return &PortAudioRecorder{
		cfg:        cfg,
		allowed:    allowed,
		transcoder: transcode.New(),
		status:     StatusIdle,
	}
}

func (r *PortAudioRecorder) Start(ctx context.Context) (*SessionInfo, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.status == StatusRecording {
		return nil, ErrAlreadyRecording
	}
	if !r.allowed() {
		return nil, ErrRecordingNotAllowed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session, err := newSession(r.cfg)
	if err != nil {
		r.status = StatusError
		return nil, err
	}

	if err := portaudio.Initialize(); err != nil {
		r.status = StatusError
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	r.bufMu.Lock()
	r.samples = r.samples[:0]
	r.bufMu.Unlock()

	stream, err := portaudio.OpenDefaultStream(session.Channels, 0, float64(session.SampleRate), 0, r.capture)
	if err != nil {
		portaudio.Terminate()
		r.status = StatusError
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		r.status = StatusError
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	r.stream = stream
	r.session = session
	r.status = StatusRecording

	slog.Info("PortAudio recording started", "id", session.ID, "file", session.OutputFile)
	return copySession(session), nil
}

// capture is the PortAudio input callback
func (r *PortAudioRecorder) capture(in []float32) {
	r.bufMu.Lock()
	defer r.bufMu.Unlock()
	for _, s := range in {
		r.samples = append(r.samples, floatToPCM16(s))
	}
}

func (r *PortAudioRecorder) Stop(ctx context.Context) (string, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.status != StatusRecording || r.session == nil {
		return "", ErrNotRecording
	}

	r.closeStream()

	r.bufMu.Lock()
	samples := append([]int16(nil), r.samples...)
	r.samples = r.samples[:0]
	r.bufMu.Unlock()

	session := r.session
	r.session = nil

	if err := WriteWAVFile(session.OutputFile, samples, session.SampleRate, session.Channels); err != nil {
		r.status = StatusError
		return "", err
	}

	outputFile := finalizeRecording(ctx, r.transcoder, session.OutputFile, r.cfg.Audio.Format)
	r.status = StatusIdle

	slog.Debug("PortAudio recording completed", "output", outputFile, "samples", len(samples))
	return outputFile, nil
}

func (r *PortAudioRecorder) closeStream() {
	if r.stream == nil {
		return
	}
	if err := r.stream.Stop(); err != nil {
		slog.Debug("Failed to stop PortAudio stream", "error", err)
	}
	r.stream.Close()
	r.stream = nil
	portaudio.Terminate()
}

func (r *PortAudioRecorder) GetStatus() (Status, *SessionInfo) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.status, copySession(r.session)
}

func (r *PortAudioRecorder) Cleanup() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.closeStream()
	r.status = StatusIdle
	r.session = nil
	return nil
}
