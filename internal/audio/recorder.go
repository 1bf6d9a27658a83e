package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/audiolibrelab/soundcheck/internal/config"
	"github.com/audiolibrelab/soundcheck/internal/transcode"
)

// Status represents the current state of the recorder
type Status string

const (
	StatusIdle      Status = "IDLE"
	StatusRecording Status = "RECORDING"
	StatusError     Status = "ERROR"
)

var (
	ErrAlreadyRecording    = errors.New("a recording is already in progress")
	ErrNotRecording        = errors.New("no recording in progress")
	ErrRecordingNotAllowed = errors.New("audio mode does not allow recording")
)

// SessionInfo contains information about the current recording session
type SessionInfo struct {
	ID         string    `json:"id"`
	StartTime  time.Time `json:"start_time"`
	OutputFile string    `json:"output_file"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
}

// Recorder defines the interface that all audio recorders must implement
type Recorder interface {
	// Start begins capturing into a new session file
	Start(ctx context.Context) (*SessionInfo, error)
	// Stop finalizes the file, releases the session and returns the file location
	Stop(ctx context.Context) (string, error)

	GetStatus() (Status, *SessionInfo)

	Cleanup() error
}

func newSession(cfg *config.Config) (*SessionInfo, error) {
	if err := os.MkdirAll(cfg.Recording.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	id := uuid.NewString()
	return &SessionInfo{
		ID:         id,
		StartTime:  time.Now(),
		OutputFile: filepath.Join(cfg.Recording.Directory, "recording-"+id+".wav"),
		SampleRate: cfg.Audio.SampleRate,
		Channels:   cfg.Audio.Channels,
	}, nil
}

func copySession(s *SessionInfo) *SessionInfo {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// finalizeRecording converts the captured WAV into the configured container.
// A failed conversion keeps the WAV so the take is never lost.
func finalizeRecording(ctx context.Context, t *transcode.Transcoder, wavPath, format string) string {
	format = strings.ToLower(format)
	if format == "" || format == "wav" {
		return wavPath
	}

	out := strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + "." + format
	if err := t.Convert(ctx, wavPath, out, transcode.Options{}); err != nil {
		slog.Warn("Keeping WAV recording, conversion failed", "format", format, "error", err)
		return wavPath
	}

	if err := os.Remove(wavPath); err != nil {
		slog.Debug("Failed to remove intermediate WAV", "file", wavPath, "error", err)
	}
	return out
}
