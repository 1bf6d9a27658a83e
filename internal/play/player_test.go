package play

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/audiolibrelab/soundcheck/internal/config"
)

// installFakePlayer puts a shell script named mpv on an otherwise empty PATH
func installFakePlayer(t *testing.T, body string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script player not supported on windows")
	}

	dir := t.TempDir()
	script := filepath.Join(dir, "mpv")
	if err := os.WriteFile(script, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("Failed to write fake player: %v", err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+"/bin"+string(os.PathListSeparator)+"/usr/bin")
}

func audioFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("RIFF"), 0644); err != nil {
		t.Fatalf("Failed to write audio file: %v", err)
	}
	return path
}

func TestPlayerArgs(t *testing.T) {
	testCases := []struct {
		player  string
		uri     string
		want    string
		wantErr bool
	}{
		{"vlc", "/a/b.m4a", "--intf dummy --play-and-exit /a/b.m4a", false},
		{"mpv", "/a/b.m4a", "--no-video --really-quiet /a/b.m4a", false},
		{"ffplay", "/a/b.wav", "-nodisp -autoexit -loglevel quiet /a/b.wav", false},
		{"aplay", "/a/b.wav", "-q /a/b.wav", false},
		{"aplay", "/a/b.mp3", "", true},
		{"/opt/custom/player", "/a/b.ogg", "/a/b.ogg", false},
	}

	for _, tc := range testCases {
		args, err := playerArgs(tc.player, tc.uri)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%s: expected error for %s", tc.player, tc.uri)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.player, err)
			continue
		}
		if got := strings.Join(args, " "); got != tc.want {
			t.Errorf("%s: expected %q, got %q", tc.player, tc.want, got)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	p := New(config.DefaultConfig())
	_, err := p.Load(context.Background(), filepath.Join(t.TempDir(), "nope.wav"), true)
	if err == nil || !strings.Contains(err.Error(), "audio file not found") {
		t.Errorf("Expected audio file not found error, got: %v", err)
	}
}

func TestLoad_NoPlayer(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	p := New(config.DefaultConfig())
	_, err := p.Load(context.Background(), audioFile(t, "take.wav"), false)
	if err == nil || !strings.Contains(err.Error(), "no suitable audio player") {
		t.Errorf("Expected no player error, got: %v", err)
	}
}

func TestHandle_PlayToCompletion(t *testing.T) {
	installFakePlayer(t, "exit 0")

	p := New(config.DefaultConfig())
	h, err := p.Load(context.Background(), audioFile(t, "take.wav"), true)
	if err != nil {
		t.Fatalf("Expected load to succeed, got: %v", err)
	}
	if err := h.Wait(); err != nil {
		t.Errorf("Expected clean exit, got: %v", err)
	}
	if err := h.Unload(); err != nil {
		t.Errorf("Expected unload after completion to succeed, got: %v", err)
	}
}

func TestHandle_UnloadStopsPlayback(t *testing.T) {
	installFakePlayer(t, "exec sleep 30")

	p := New(config.DefaultConfig())
	h, err := p.Load(context.Background(), audioFile(t, "take.wav"), true)
	if err != nil {
		t.Fatalf("Expected load to succeed, got: %v", err)
	}

	finished := make(chan error, 1)
	go func() { finished <- h.Wait() }()

	if err := h.Unload(); err != nil {
		t.Fatalf("Expected unload to succeed, got: %v", err)
	}

	select {
	case err := <-finished:
		if err != nil {
			t.Errorf("Expected Wait to return nil after unload, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Expected Wait to return after unload")
	}

	if err := h.Unload(); err != nil {
		t.Errorf("Expected second unload to be a no-op, got: %v", err)
	}
	if err := h.Play(); !errors.Is(err, ErrUnloaded) {
		t.Errorf("Expected ErrUnloaded after unload, got: %v", err)
	}
}

func TestLoad_ConfiguredPlayer(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	cfg := config.DefaultConfig()
	cfg.Playback.Player = "definitely-not-installed"
	_, err := New(cfg).Load(context.Background(), audioFile(t, "take.wav"), false)
	if err == nil || !strings.Contains(err.Error(), "definitely-not-installed") {
		t.Errorf("Expected error naming the configured player, got: %v", err)
	}
}
