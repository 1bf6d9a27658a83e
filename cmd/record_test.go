package cmd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/audiolibrelab/soundcheck/internal/audio"
	"github.com/audiolibrelab/soundcheck/internal/gesture"
	"github.com/audiolibrelab/soundcheck/internal/indicator"
	"github.com/audiolibrelab/soundcheck/internal/screen"
)

type holdSession struct{}

func (holdSession) RequestPermission(ctx context.Context) error { return nil }
func (holdSession) SetMode(mode audio.Mode) error               { return nil }

type holdNotifier struct{}

func (holdNotifier) Warn(title, message string)  {}
func (holdNotifier) Alert(title, message string) {}

// flakyRecorder fails its first start
type flakyRecorder struct {
	mu       sync.Mutex
	attempts int
	started  bool
}

func (r *flakyRecorder) Start(ctx context.Context) (*audio.SessionInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts++
	if r.attempts == 1 {
		return nil, errors.New("device busy")
	}
	r.started = true
	return &audio.SessionInfo{ID: "1", OutputFile: "/tmp/hold.wav"}, nil
}

func (r *flakyRecorder) Stop(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return "", audio.ErrNotRecording
	}
	r.started = false
	return "/tmp/hold.wav", nil
}

func (r *flakyRecorder) GetStatus() (audio.Status, *audio.SessionInfo) {
	return audio.StatusIdle, nil
}

func (r *flakyRecorder) Cleanup() error { return nil }

func (r *flakyRecorder) startAttempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func TestHoldLoop_ContinuesAfterFailedStart(t *testing.T) {
	rec := &flakyRecorder{}
	scr := screen.New(screen.Deps{
		Session:   holdSession{},
		Recorder:  rec,
		Indicator: indicator.Nop{},
		Notifier:  holdNotifier{},
	}, screen.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	press := gesture.NewLongPress(10*time.Millisecond, func() {
		if err := scr.StartRecording(ctx); err != nil {
			t.Logf("Start failed: %v", err)
		}
	})

	keys := make(chan bool)
	type outcome struct {
		sel *screen.Selection
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		sel, err := holdLoop(ctx, scr, press, keys)
		done <- outcome{sel, err}
	}()

	waitForAttempts := func(n int) {
		t.Helper()
		deadline := time.Now().Add(5 * time.Second)
		for rec.startAttempts() < n {
			if time.Now().After(deadline) {
				t.Fatalf("Expected %d start attempts, got %d", n, rec.startAttempts())
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	// first hold fires but the recorder refuses to start
	keys <- true
	waitForAttempts(1)
	keys <- false

	select {
	case o := <-done:
		t.Fatalf("Expected loop to keep running after a failed start, returned %v, %v", o.sel, o.err)
	case <-time.After(50 * time.Millisecond):
	}

	keys <- true
	waitForAttempts(2)
	keys <- false

	select {
	case o := <-done:
		if o.err != nil {
			t.Fatalf("Expected recording after second hold, got: %v", o.err)
		}
		if o.sel == nil || o.sel.URI != "/tmp/hold.wav" {
			t.Errorf("Expected /tmp/hold.wav selected, got %+v", o.sel)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Loop did not return after the second release")
	}

	if scr.Snapshot().Recording {
		t.Error("Expected recording to be stopped")
	}
}

func TestHoldLoop_ShortTapDoesNotRecord(t *testing.T) {
	rec := &flakyRecorder{attempts: 1}
	scr := screen.New(screen.Deps{
		Session:   holdSession{},
		Recorder:  rec,
		Indicator: indicator.Nop{},
		Notifier:  holdNotifier{},
	}, screen.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	press := gesture.NewLongPress(time.Hour, func() {
		scr.StartRecording(ctx)
	})

	keys := make(chan bool)
	done := make(chan error, 1)
	go func() {
		_, err := holdLoop(ctx, scr, press, keys)
		done <- err
	}()

	keys <- true
	keys <- false
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Loop did not return after cancellation")
	}
	if rec.startAttempts() != 1 {
		t.Errorf("Expected no start attempt for a short tap, got %d", rec.startAttempts()-1)
	}
}
