package screen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/audiolibrelab/soundcheck/internal/analysis"
	"github.com/audiolibrelab/soundcheck/internal/audio"
	"github.com/audiolibrelab/soundcheck/internal/picker"
	"github.com/audiolibrelab/soundcheck/internal/play"
)

var (
	ErrBusy         = errors.New("an upload is already in progress")
	ErrNoSelection  = errors.New("no audio file selected")
	ErrNotRecording = errors.New("recording was never started")
	// ErrSuperseded is returned by Process when the selection changed while uploading
	ErrSuperseded = errors.New("analysis result discarded, selection changed")
)

// User-facing notification text
const (
	WarningTitle        = "Warning"
	NoFileMessage       = "No file was selected"
	ErrorTitle          = "Error"
	ServerErrorMessage  = "An error occurred while fetching data from the server"
	ProcessErrorMessage = "An error occurred while processing the audio file"
)

// AudioSession is the part of the audio backend the screen drives directly
type AudioSession interface {
	RequestPermission(ctx context.Context) error
	SetMode(mode audio.Mode) error
}

type Loader interface {
	Load(ctx context.Context, uri string, autoPlay bool) (play.Handle, error)
}

type Analyzer interface {
	Process(ctx context.Context, u analysis.Upload) (*analysis.Result, error)
}

type Indicator interface {
	Play()
	Pause()
	Reset()
}

type Notifier interface {
	Warn(title, message string)
	Alert(title, message string)
}

// Deps are the platform services a Screen is composed from
type Deps struct {
	Session   AudioSession
	Recorder  audio.Recorder
	Picker    picker.Picker
	Player    Loader
	Analyzer  Analyzer
	Indicator Indicator
	Notifier  Notifier
}

type Options struct {
	// ClearResultOnSelect drops the displayed result whenever a new file is selected
	ClearResultOnSelect bool
}

// Selection is the current local audio file
type Selection struct {
	URI      string `json:"uri"`
	FileName string `json:"file_name"`
}

// Snapshot is an immutable copy of the screen state
type Snapshot struct {
	Selection  *Selection       `json:"selection"`
	Recording  bool             `json:"recording"`
	Processing bool             `json:"processing"`
	Loaded     bool             `json:"loaded"`
	Result     *analysis.Result `json:"result"`
	Generation uint64           `json:"generation"`
}

type Screen struct {
	deps Deps
	opts Options

	mountOnce sync.Once
	// recMu serializes start/stop so a release waits for a pending start
	recMu sync.Mutex
	// playMu serializes Play so only one handle is ever loaded
	playMu sync.Mutex

	mu           sync.Mutex
	recording    bool
	selection    *Selection
	handle       play.Handle
	processing   bool
	result       *analysis.Result
	generation   uint64
	cancelUpload context.CancelFunc
	closed       bool

	subs    map[int]chan Snapshot
	nextSub int
}

func New(deps Deps, opts Options) *Screen {
	return &Screen{
		deps: deps,
		opts: opts,
		subs: make(map[int]chan Snapshot),
	}
}

// Mount requests microphone access once per screen lifetime. A denial is only logged.
func (s *Screen) Mount(ctx context.Context) {
	s.mountOnce.Do(func() {
		if err := s.deps.Session.RequestPermission(ctx); err != nil {
			slog.Warn("Microphone permission not granted", "error", err)
			return
		}
		slog.Debug("Microphone permission granted")
	})
}

// StartRecording begins a recording session
func (s *Screen) StartRecording(ctx context.Context) error {
	s.recMu.Lock()
	defer s.recMu.Unlock()

	s.mu.Lock()
	if s.recording {
		s.mu.Unlock()
		return audio.ErrAlreadyRecording
	}
	s.mu.Unlock()

	slog.Info("Starting recording")
	s.deps.Indicator.Play()

	if err := s.deps.Session.SetMode(audio.Mode{AllowsRecording: true, PlaysInSilentMode: true}); err != nil {
		slog.Error("Failed to set audio mode", "error", err)
		s.deps.Indicator.Reset()
		return fmt.Errorf("failed to start recording: %w", err)
	}

	session, err := s.deps.Recorder.Start(ctx)
	if err != nil {
		slog.Error("Failed to start recording", "error", err)
		s.deps.Indicator.Reset()
		if merr := s.deps.Session.SetMode(audio.Mode{}); merr != nil {
			slog.Debug("Failed to revert audio mode", "error", merr)
		}
		return fmt.Errorf("failed to start recording: %w", err)
	}

	s.mu.Lock()
	s.recording = true
	s.mu.Unlock()
	s.publish()

	slog.Info("Recording started", "file", session.OutputFile)
	return nil
}

// StopRecording finalizes the session and makes its file the selection
func (s *Screen) StopRecording(ctx context.Context) (*Selection, error) {
	s.recMu.Lock()
	defer s.recMu.Unlock()

	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return nil, ErrNotRecording
	}
	s.mu.Unlock()

	slog.Info("Stopping recording")
	s.deps.Indicator.Pause()
	s.deps.Indicator.Reset()

	uri, err := s.deps.Recorder.Stop(ctx)

	if merr := s.deps.Session.SetMode(audio.Mode{AllowsRecording: false}); merr != nil {
		slog.Debug("Failed to revert audio mode", "error", merr)
	}

	s.mu.Lock()
	s.recording = false
	s.mu.Unlock()

	if err != nil {
		s.publish()
		return nil, fmt.Errorf("failed to stop recording: %w", err)
	}

	sel := &Selection{URI: uri, FileName: picker.DisplayName(uri)}
	s.setSelection(sel)

	slog.Info("Recording stopped and stored", "uri", uri)
	return sel, nil
}

// SelectFile asks the configured picker for a file
func (s *Screen) SelectFile(ctx context.Context) (*Selection, error) {
	return s.SelectWith(ctx, s.deps.Picker)
}

// SelectWith asks p for a file. Cancelling raises exactly one warning and keeps the selection.
func (s *Screen) SelectWith(ctx context.Context, p picker.Picker) (*Selection, error) {
	picked, err := p.Pick(ctx)
	if errors.Is(err, picker.ErrCancelled) {
		slog.Debug("File selection cancelled")
		s.deps.Notifier.Warn(WarningTitle, NoFileMessage)
		return nil, err
	}
	if err != nil {
		slog.Error("File selection failed", "error", err)
		return nil, err
	}

	sel := &Selection{URI: picked.URI, FileName: picker.DisplayName(picked.Name)}
	s.setSelection(sel)

	slog.Info("File selected", "name", sel.FileName, "uri", sel.URI)
	return sel, nil
}

// Select makes an already cached file the selection
func (s *Screen) Select(uri, name string) *Selection {
	if name == "" {
		name = picker.DisplayName(uri)
	}
	sel := &Selection{URI: uri, FileName: name}
	s.setSelection(sel)
	return sel
}

func (s *Screen) setSelection(sel *Selection) {
	s.mu.Lock()
	s.selection = sel
	s.generation++
	if s.cancelUpload != nil {
		s.cancelUpload()
		s.cancelUpload = nil
	}
	if s.opts.ClearResultOnSelect {
		s.result = nil
	}
	old := s.handle
	s.handle = nil
	s.mu.Unlock()

	if old != nil {
		if err := old.Unload(); err != nil {
			slog.Debug("Failed to unload previous playback", "error", err)
		}
	}
	s.publish()
}

// Play unloads any previous playback and plays the selection from the start
func (s *Screen) Play(ctx context.Context) error {
	s.playMu.Lock()
	defer s.playMu.Unlock()

	s.mu.Lock()
	sel := s.selection
	gen := s.generation
	old := s.handle
	s.handle = nil
	s.mu.Unlock()

	if sel == nil {
		return ErrNoSelection
	}

	if err := s.deps.Session.SetMode(audio.Mode{PlaysInSilentMode: true}); err != nil {
		slog.Debug("Failed to set playback mode", "error", err)
	}

	if old != nil {
		if err := old.Unload(); err != nil {
			slog.Debug("Failed to unload previous playback", "error", err)
		}
	}

	slog.Info("Loading audio", "uri", sel.URI)
	h, err := s.deps.Player.Load(ctx, sel.URI, true)
	if err != nil {
		slog.Error("Failed to play audio", "uri", sel.URI, "error", err)
		s.publish()
		return fmt.Errorf("failed to play %s: %w", sel.FileName, err)
	}

	s.mu.Lock()
	if s.closed || s.generation != gen {
		s.mu.Unlock()
		h.Unload()
		return nil
	}
	s.handle = h
	s.mu.Unlock()
	s.publish()

	return nil
}

// Handle returns the live playback handle, if any
func (s *Screen) Handle() play.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// upload is one in-flight analysis request
type upload struct {
	ctx    context.Context
	cancel context.CancelFunc
	sel    *Selection
	gen    uint64
}

// Process uploads the selection and stores the result
func (s *Screen) Process(ctx context.Context) (*analysis.Result, error) {
	u, err := s.beginUpload(ctx)
	if err != nil {
		return nil, err
	}
	return s.runUpload(u)
}

// ProcessAsync checks the selection and busy state, then uploads in the background.
// The outcome is published to subscribers.
func (s *Screen) ProcessAsync(ctx context.Context) error {
	u, err := s.beginUpload(ctx)
	if err != nil {
		return err
	}
	go func() {
		if _, err := s.runUpload(u); err != nil {
			slog.Debug("Background analysis finished with error", "error", err)
		}
	}()
	return nil
}

func (s *Screen) beginUpload(ctx context.Context) (*upload, error) {
	s.mu.Lock()
	sel := s.selection
	if sel == nil {
		s.mu.Unlock()
		return nil, ErrNoSelection
	}
	if s.processing {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.processing = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancelUpload = cancel
	u := &upload{ctx: ctx, cancel: cancel, sel: sel, gen: s.generation}
	s.mu.Unlock()
	s.publish()

	return u, nil
}

func (s *Screen) runUpload(u *upload) (*analysis.Result, error) {
	defer u.cancel()
	sel := u.sel

	slog.Info("Uploading for analysis", "file", sel.FileName)
	result, err := s.deps.Analyzer.Process(u.ctx, analysis.Upload{URI: sel.URI, FileName: sel.FileName})

	s.mu.Lock()
	s.processing = false
	stale := s.generation != u.gen
	if !stale {
		s.cancelUpload = nil
		if err == nil {
			s.result = result
		}
	}
	s.mu.Unlock()
	s.publish()

	if stale {
		slog.Debug("Discarding analysis for superseded selection", "file", sel.FileName, "error", err)
		return nil, ErrSuperseded
	}

	if err != nil {
		slog.Error("Analysis failed", "file", sel.FileName, "error", err)
		s.deps.Notifier.Alert(ErrorTitle, alertMessage(err))
		return nil, err
	}

	slog.Info("Analysis complete", "class", result.Class, "points", len(result.AudioData))
	return result, nil
}

func alertMessage(err error) string {
	var statusErr *analysis.StatusError
	if errors.As(err, &statusErr) {
		return ServerErrorMessage
	}
	return ProcessErrorMessage
}

// Snapshot returns a copy of the current state
func (s *Screen) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Screen) snapshotLocked() Snapshot {
	snap := Snapshot{
		Recording:  s.recording,
		Processing: s.processing,
		Loaded:     s.handle != nil,
		Generation: s.generation,
	}
	if s.selection != nil {
		sel := *s.selection
		snap.Selection = &sel
	}
	if s.result != nil {
		r := *s.result
		r.AudioData = append([]analysis.Point(nil), s.result.AudioData...)
		snap.Result = &r
	}
	return snap
}

// Subscribe delivers the latest snapshot after every change. Slow readers only see the newest one.
func (s *Screen) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
}

func (s *Screen) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// replace the unread snapshot with the newer one
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Close tears the screen down: in-flight uploads are cancelled and playback is unloaded
func (s *Screen) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.generation++
	if s.cancelUpload != nil {
		s.cancelUpload()
		s.cancelUpload = nil
	}
	h := s.handle
	s.handle = nil
	subs := s.subs
	s.subs = make(map[int]chan Snapshot)
	s.mu.Unlock()

	if h != nil {
		if err := h.Unload(); err != nil {
			slog.Debug("Failed to unload playback on close", "error", err)
		}
	}

	s.deps.Indicator.Reset()

	var err error
	if s.deps.Recorder != nil {
		err = s.deps.Recorder.Cleanup()
	}

	for _, ch := range subs {
		close(ch)
	}

	slog.Debug("Screen closed")
	return err
}
