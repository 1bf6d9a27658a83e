package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/audiolibrelab/soundcheck/internal/analysis"
	"github.com/audiolibrelab/soundcheck/internal/audio"
	"github.com/audiolibrelab/soundcheck/internal/config"
	"github.com/audiolibrelab/soundcheck/internal/indicator"
	"github.com/audiolibrelab/soundcheck/internal/notify"
	"github.com/audiolibrelab/soundcheck/internal/picker"
	"github.com/audiolibrelab/soundcheck/internal/play"
	"github.com/audiolibrelab/soundcheck/internal/render"
	"github.com/audiolibrelab/soundcheck/internal/screen"
)

// Pipeline steps
const (
	StepRecord  = 'r'
	StepSelect  = 's'
	StepPlay    = 'p'
	StepAnalyze = 'a'
)

const validStepsHelp = "valid: r=record, s=select, p=play, a=analyze"

// ErrAnalysisFailed replaces upload errors once the user has been alerted; the detail is only logged
var ErrAnalysisFailed = errors.New("analysis failed")

// Options tune how the service talks to the terminal
type Options struct {
	// LogWriter receives recorder process output; nil discards it
	LogWriter io.Writer
	// Indicator shows recording progress; nil disables it
	Indicator screen.Indicator
	// Output receives terminal notifications; nil means stderr
	Output io.Writer
}

// Service holds one screen and the backends it was composed from
type Service struct {
	cfg     *config.Config
	backend audio.Backend
	screen  *screen.Screen
	chart   render.Chart

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// FileInfo describes how a file would be selected and uploaded
type FileInfo struct {
	Name      string `json:"name"`
	MIMEType  string `json:"mime_type"`
	Supported bool   `json:"supported"`
	UploadURL string `json:"upload_url"`
}

// RecordingInfo describes a finished recording on disk
type RecordingInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	SizeHuman    string    `json:"size_human"`
	ModTime      time.Time `json:"mod_time"`
	ModTimeHuman string    `json:"mod_time_human"`
}

// New creates the service and its screen
func New(cfg *config.Config, opts Options) *Service {
	if opts.LogWriter == nil {
		opts.LogWriter = io.Discard
	}
	if opts.Indicator == nil {
		opts.Indicator = indicator.Nop{}
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	backend := audio.NewBackend(cfg)
	deps := screen.Deps{
		Session:   backend,
		Recorder:  backend.NewRecorder(opts.LogWriter),
		Picker:    picker.NewDialogPicker(cfg),
		Player:    play.New(cfg),
		Analyzer:  analysis.NewClient(cfg),
		Indicator: opts.Indicator,
		Notifier:  notify.New(cfg, opts.Output),
	}

	return &Service{
		cfg:     cfg,
		backend: backend,
		screen:  screen.New(deps, screen.Options{ClearResultOnSelect: cfg.Screen.ClearResultOnSelect}),
		chart:   render.DefaultChart(),
	}
}

func (s *Service) Screen() *screen.Screen {
	return s.screen
}

func (s *Service) Backend() audio.Backend {
	return s.backend
}

// GetConfig returns the current configuration
func (s *Service) GetConfig() *config.Config {
	return s.cfg
}

// Close releases the screen and its recorder
func (s *Service) Close() error {
	return s.screen.Close()
}

// View renders the current screen state
func (s *Service) View() string {
	return render.View(s.screen.Snapshot(), s.chart)
}

// ValidatePipeline checks that every step is known
func ValidatePipeline(steps string) error {
	for _, step := range strings.ToLower(steps) {
		switch step {
		case StepRecord, StepSelect, StepPlay, StepAnalyze:
		default:
			return fmt.Errorf("invalid pipeline step: '%c' (%s)", step, validStepsHelp)
		}
	}
	return nil
}

// RunPipeline executes steps in order. Recording waits for Enter on in to start and to stop.
// path, when set, is what the select step picks instead of opening the native picker.
func (s *Service) RunPipeline(ctx context.Context, steps, path string, in io.Reader, out io.Writer) error {
	if err := ValidatePipeline(steps); err != nil {
		return err
	}

	s.screen.Mount(ctx)
	stepList := []rune(strings.ToLower(steps))

	var lines <-chan struct{}
	if strings.ContainsRune(strings.ToLower(steps), StepRecord) {
		lines = readLines(in)
	}

	for i, step := range stepList {
		fmt.Fprintf(out, "Pipeline: executing step %d/%d: '%c'...\n", i+1, len(stepList), step)

		var err error
		switch step {
		case StepRecord:
			err = s.recordInteractive(ctx, lines, out)
		case StepSelect:
			err = s.selectStep(ctx, path)
		case StepPlay:
			err = s.PlayAndWait(ctx)
		case StepAnalyze:
			err = s.analyzeStep(ctx)
		}
		if err != nil {
			s.setLastError(fmt.Sprintf("pipeline step '%c' failed: %v", step, err))
			return fmt.Errorf("pipeline step '%c' failed: %w", step, err)
		}
	}

	s.clearLastError()
	fmt.Fprint(out, s.View())
	return nil
}

// readLines signals every line read from in and closes the channel at EOF
func readLines(in io.Reader) <-chan struct{} {
	lines := make(chan struct{})
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- struct{}{}
		}
	}()
	return lines
}

// waitForLine blocks until a line arrives, input ends (io.EOF) or ctx is done
func waitForLine(ctx context.Context, lines <-chan struct{}) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case _, ok := <-lines:
		if !ok {
			return io.EOF
		}
		return nil
	}
}

func (s *Service) recordInteractive(ctx context.Context, lines <-chan struct{}, out io.Writer) error {
	fmt.Fprintln(out, "Press Enter to start recording...")
	if err := waitForLine(ctx, lines); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("input closed before recording started")
		}
		return err
	}

	if err := s.screen.StartRecording(ctx); err != nil {
		return err
	}

	fmt.Fprintln(out, "Recording... Press Enter to stop")
	waitErr := waitForLine(ctx, lines)

	// An interrupted recording is still finalized
	stopCtx := ctx
	if ctx.Err() != nil {
		stopCtx = context.Background()
	}
	sel, err := s.screen.StopRecording(stopCtx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Recorded: %s\n", sel.URI)

	if waitErr != nil && !errors.Is(waitErr, io.EOF) {
		return waitErr
	}
	return nil
}

func (s *Service) analyzeStep(ctx context.Context) error {
	_, err := s.screen.Process(ctx)
	switch {
	case err == nil,
		errors.Is(err, screen.ErrNoSelection),
		errors.Is(err, screen.ErrBusy),
		errors.Is(err, screen.ErrSuperseded):
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return ErrAnalysisFailed
	}
}

func (s *Service) selectStep(ctx context.Context, path string) error {
	var err error
	if path != "" {
		_, err = s.screen.SelectWith(ctx, picker.NewPathPicker(s.cfg, path))
	} else {
		_, err = s.screen.SelectFile(ctx)
	}
	return err
}

// PlayAndWait plays the selection and blocks until playback ends or ctx is done
func (s *Service) PlayAndWait(ctx context.Context) error {
	if err := s.screen.Play(ctx); err != nil {
		return err
	}
	h := s.screen.Handle()
	if h == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- h.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		h.Unload()
		return ctx.Err()
	}
}

// GetFileInfo reports the display name, upload MIME type and endpoint for path
func (s *Service) GetFileInfo(path string) *FileInfo {
	name := picker.DisplayName(path)
	return &FileInfo{
		Name:      name,
		MIMEType:  analysis.MIMEType(name),
		Supported: picker.IsAudio(name, s.cfg.Picker.Extensions),
		UploadURL: s.cfg.ProcessURL(),
	}
}

// ListRecordings returns finished recordings, newest first
func (s *Service) ListRecordings() ([]RecordingInfo, error) {
	dir := s.cfg.Recording.Directory

	files, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read recordings directory: %w", err)
	}

	var recordings []RecordingInfo
	for _, file := range files {
		if file.IsDir() || strings.HasPrefix(file.Name(), "tmp_") || !picker.IsAudio(file.Name(), s.cfg.Picker.Extensions) {
			continue
		}

		info, err := file.Info()
		if err != nil {
			slog.Warn("Failed to get file info", "file", file.Name(), "error", err)
			continue
		}

		recordings = append(recordings, RecordingInfo{
			Name:         file.Name(),
			Path:         filepath.Join(dir, file.Name()),
			Size:         info.Size(),
			SizeHuman:    formatBytes(info.Size()),
			ModTime:      info.ModTime(),
			ModTimeHuman: info.ModTime().Format("2006-01-02 15:04"),
		})
	}

	sort.Slice(recordings, func(i, j int) bool {
		return recordings[i].ModTime.After(recordings[j].ModTime)
	})
	return recordings, nil
}

// GetLastError returns the last error message (thread-safe)
func (s *Service) GetLastError() string {
	s.lastErrorMutex.RLock()
	defer s.lastErrorMutex.RUnlock()
	return s.lastError
}

func (s *Service) setLastError(err string) {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

func (s *Service) clearLastError() {
	s.lastErrorMutex.Lock()
	defer s.lastErrorMutex.Unlock()
	s.lastError = ""
}

// formatBytes formats bytes in human readable format
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
