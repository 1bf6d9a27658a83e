package play

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/audiolibrelab/soundcheck/internal/config"
)

// ErrUnloaded is returned when a handle is used after Unload
var ErrUnloaded = errors.New("playback handle already unloaded")

// Handle is one loaded audio file. Unload releases it and is safe to call more than once.
type Handle interface {
	URI() string
	Play() error
	Wait() error
	Unload() error
}

// preferred external players, in order
var players = []string{"vlc", "mpv", "ffplay", "aplay"}

type Player struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Player {
	return &Player{cfg: cfg}
}

// Load prepares uri for playback and starts it immediately when autoPlay is set
func (p *Player) Load(ctx context.Context, uri string, autoPlay bool) (Handle, error) {
	if _, err := os.Stat(uri); err != nil {
		return nil, fmt.Errorf("audio file not found: %s", uri)
	}

	player, err := p.findAudioPlayer()
	if err != nil {
		return nil, fmt.Errorf("no suitable audio player found: %w", err)
	}

	args, err := playerArgs(player, uri)
	if err != nil {
		return nil, err
	}

	h := &ProcessHandle{uri: uri, player: player, args: args}
	slog.Debug("Loaded audio file", "uri", uri, "player", player)

	if autoPlay {
		if err := h.Play(); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (p *Player) findAudioPlayer() (string, error) {
	candidates := players
	if p.cfg != nil && p.cfg.Playback.Player != "" {
		candidates = []string{p.cfg.Playback.Player}
	}

	for _, player := range candidates {
		if _, err := exec.LookPath(player); err == nil {
			return player, nil
		}
	}

	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(candidates, ", "))
}

func playerArgs(player, uri string) ([]string, error) {
	switch filepath.Base(player) {
	case "vlc":
		return []string{"--intf", "dummy", "--play-and-exit", uri}, nil
	case "mpv":
		return []string{"--no-video", "--really-quiet", uri}, nil
	case "ffplay":
		return []string{"-nodisp", "-autoexit", "-loglevel", "quiet", uri}, nil
	case "aplay":
		// aplay only understands WAV
		if !strings.EqualFold(filepath.Ext(uri), ".wav") {
			return nil, fmt.Errorf("aplay requires WAV format, got %s", filepath.Ext(uri))
		}
		return []string{"-q", uri}, nil
	default:
		return []string{uri}, nil
	}
}

// ProcessHandle plays a file through an external player process
type ProcessHandle struct {
	uri    string
	player string
	args   []string

	mu       sync.Mutex
	cmd      *exec.Cmd
	done     chan struct{}
	waitErr  error
	unloaded bool
}

func (h *ProcessHandle) URI() string {
	return h.uri
}

// Play starts the player. Calling it while already playing is a no-op.
func (h *ProcessHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.unloaded {
		return ErrUnloaded
	}
	if h.cmd != nil {
		select {
		case <-h.done:
		default:
			return nil
		}
	}

	cmd := exec.Command(h.player, h.args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("playback failed with %s: %w", h.player, err)
	}

	done := make(chan struct{})
	h.cmd = cmd
	h.done = done
	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.waitErr = err
		h.mu.Unlock()
		close(done)
	}()

	slog.Info("Playing", "file", h.uri, "player", h.player)
	return nil
}

// Wait blocks until the current playback finishes
func (h *ProcessHandle) Wait() error {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()

	if done == nil {
		return nil
	}
	<-done

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unloaded {
		return nil
	}
	if h.waitErr != nil {
		return fmt.Errorf("playback failed with %s: %w", h.player, h.waitErr)
	}
	return nil
}

// Unload stops playback and releases the player process
func (h *ProcessHandle) Unload() error {
	h.mu.Lock()
	if h.unloaded {
		h.mu.Unlock()
		return nil
	}
	h.unloaded = true
	cmd, done := h.cmd, h.done
	h.mu.Unlock()

	if cmd == nil {
		return nil
	}

	select {
	case <-done:
	default:
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		<-done
	}

	slog.Debug("Unloaded audio file", "uri", h.uri)
	return nil
}
