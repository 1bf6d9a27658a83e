package notify

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/ncruces/zenity"

	"github.com/audiolibrelab/soundcheck/internal/config"
)

// Notifier shows one-shot messages
type Notifier interface {
	Warn(title, message string)
	Alert(title, message string)
}

// New returns the notifier selected by screen.notifier
func New(cfg *config.Config, w io.Writer) Notifier {
	if cfg.Screen.Notifier == "dialog" {
		return &Dialog{fallback: NewTerminal(w)}
	}
	return NewTerminal(w)
}

// Terminal prints colored messages
type Terminal struct {
	w    io.Writer
	warn *color.Color
	err  *color.Color
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{
		w:    w,
		warn: color.New(color.FgYellow, color.Bold),
		err:  color.New(color.FgRed, color.Bold),
	}
}

func (t *Terminal) Warn(title, message string) {
	fmt.Fprintf(t.w, "%s %s\n", t.warn.Sprint(title+":"), message)
}

func (t *Terminal) Alert(title, message string) {
	fmt.Fprintf(t.w, "%s %s\n", t.err.Sprint(title+":"), message)
}

// Dialog shows native message boxes, falling back to the terminal when no display is available
type Dialog struct {
	fallback Notifier
}

func (d *Dialog) Warn(title, message string) {
	if err := zenity.Warning(message, zenity.Title(title), zenity.WarningIcon); err != nil {
		slog.Debug("Warning dialog unavailable", "error", err)
		d.fallback.Warn(title, message)
	}
}

func (d *Dialog) Alert(title, message string) {
	if err := zenity.Error(message, zenity.Title(title), zenity.ErrorIcon); err != nil {
		slog.Debug("Error dialog unavailable", "error", err)
		d.fallback.Alert(title, message)
	}
}
