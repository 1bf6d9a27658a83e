package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrFFmpegNotFound is returned when no ffmpeg binary is on PATH
var ErrFFmpegNotFound = errors.New("ffmpeg not found in PATH")

// Options controls the output stream. Zero values keep the source parameters.
type Options struct {
	SampleRate int
	Channels   int
	// Codec overrides the codec ffmpeg would pick from the output extension
	Codec string
}

type Transcoder struct {
	binary string
}

func New() *Transcoder {
	return &Transcoder{binary: "ffmpeg"}
}

// Available reports whether the ffmpeg binary can be found
func (t *Transcoder) Available() bool {
	_, err := exec.LookPath(t.binary)
	return err == nil
}

// Convert transcodes input into output; the container is derived from the output extension
func (t *Transcoder) Convert(ctx context.Context, input, output string, opts Options) error {
	if _, err := os.Stat(input); err != nil {
		return fmt.Errorf("input file not found: %s", input)
	}
	if !t.Available() {
		return ErrFFmpegNotFound
	}

	// Write next to the target and rename, so a failed run never leaves a truncated output
	tmpFile := filepath.Join(filepath.Dir(output), "tmp_"+filepath.Base(output))
	defer os.Remove(tmpFile)

	cmd := exec.CommandContext(ctx, t.binary, BuildArgs(input, tmpFile, opts)...)

	slog.Debug("Running FFmpeg for transcoding", "command", strings.Join(cmd.Args, " "))

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("FFmpeg transcoding failed: %w\nOutput: %s", err, string(out))
	}

	if err := os.Rename(tmpFile, output); err != nil {
		return fmt.Errorf("failed to move transcoded file into place: %w", err)
	}

	slog.Debug("Transcoded audio file saved to", "file", output)
	return nil
}

// ToWAV converts input into a 16-bit PCM WAV file next to it and returns its path.
// WAV inputs are returned unchanged.
func (t *Transcoder) ToWAV(ctx context.Context, input string, sampleRate int) (string, error) {
	ext := filepath.Ext(input)
	if strings.EqualFold(ext, ".wav") {
		return input, nil
	}
	output := strings.TrimSuffix(input, ext) + ".wav"
	err := t.Convert(ctx, input, output, Options{SampleRate: sampleRate, Channels: 1, Codec: "pcm_s16le"})
	if err != nil {
		return "", err
	}
	return output, nil
}

// BuildArgs returns the ffmpeg argument list for a conversion
func BuildArgs(input, output string, opts Options) []string {
	args := []string{"-y", "-i", input}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", opts.SampleRate))
	}
	if opts.Channels > 0 {
		args = append(args, "-ac", fmt.Sprintf("%d", opts.Channels))
	}
	codec := opts.Codec
	if codec == "" {
		codec = codecForExtension(filepath.Ext(output))
	}
	if codec != "" {
		args = append(args, "-c:a", codec)
	}
	return append(args, output)
}

func codecForExtension(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "wav":
		return "pcm_s16le"
	case "flac":
		return "flac"
	case "mp3":
		return "libmp3lame"
	case "m4a", "aac":
		return "aac"
	case "ogg":
		return "libvorbis"
	default:
		return ""
	}
}
