package picker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ncruces/zenity"
	"github.com/sqweek/dialog"

	"github.com/audiolibrelab/soundcheck/internal/config"
)

var (
	ErrCancelled       = errors.New("no file was selected")
	ErrUnsupportedType = errors.New("file is not a supported audio type")
)

// Picked is a file copied into the cache together with its original display name
type Picked struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type Picker interface {
	Pick(ctx context.Context) (*Picked, error)
}

// DisplayName returns the final "/"-separated segment of a location
func DisplayName(location string) string {
	location = filepath.ToSlash(location)
	if i := strings.LastIndex(location, "/"); i >= 0 {
		return location[i+1:]
	}
	return location
}

// IsAudio reports whether name carries one of the given extensions
func IsAudio(name string, extensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, e := range extensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// CopyToCache copies src into cacheDir under a fresh name, keeping its extension
func CopyToCache(cacheDir, src string) (*Picked, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open picked file: %w", err)
	}
	defer f.Close()

	return CopyReaderToCache(cacheDir, f, DisplayName(src))
}

// CopyReaderToCache stores r in cacheDir; name is kept as the display name
func CopyReaderToCache(cacheDir string, r io.Reader, name string) (*Picked, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dst := filepath.Join(cacheDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	out, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache file: %w", err)
	}

	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return nil, fmt.Errorf("failed to copy into cache: %w", err)
	}

	slog.Debug("Copied file into cache", "name", name, "uri", dst, "bytes", n)
	return &Picked{URI: dst, Name: DisplayName(name)}, nil
}

// DialogPicker opens the native file chooser
type DialogPicker struct {
	cacheDir   string
	extensions []string
	choose     func(title string, extensions []string) (string, error)
}

// NewDialogPicker picks the chooser implementation from picker.backend
func NewDialogPicker(cfg *config.Config) *DialogPicker {
	p := &DialogPicker{
		cacheDir:   cfg.Picker.CacheDirectory,
		extensions: cfg.Picker.Extensions,
		choose:     chooseWithDialog,
	}
	if cfg.Picker.Backend == "zenity" {
		p.choose = chooseWithZenity
	}
	return p
}

func (p *DialogPicker) Pick(ctx context.Context) (*Picked, error) {
	type result struct {
		path string
		err  error
	}

	// the native dialog blocks; honour ctx by not waiting for it
	ch := make(chan result, 1)
	go func() {
		path, err := p.choose("Select an audio file", p.extensions)
		ch <- result{path, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	if res.err != nil {
		if errors.Is(res.err, dialog.ErrCancelled) || errors.Is(res.err, zenity.ErrCanceled) {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("file picker failed: %w", res.err)
	}
	if res.path == "" {
		return nil, ErrCancelled
	}

	return CopyToCache(p.cacheDir, res.path)
}

func chooseWithDialog(title string, extensions []string) (string, error) {
	return dialog.File().Title(title).Filter("Audio files", extensions...).Load()
}

func chooseWithZenity(title string, extensions []string) (string, error) {
	patterns := make([]string, len(extensions))
	for i, ext := range extensions {
		patterns[i] = "*." + ext
	}
	return zenity.SelectFile(
		zenity.Title(title),
		zenity.FileFilters{{Name: "Audio files", Patterns: patterns, CaseFold: true}},
	)
}

// PathPicker "picks" a path given on the command line
type PathPicker struct {
	Path       string
	CacheDir   string
	Extensions []string
}

func NewPathPicker(cfg *config.Config, path string) *PathPicker {
	return &PathPicker{Path: path, CacheDir: cfg.Picker.CacheDirectory, Extensions: cfg.Picker.Extensions}
}

func (p *PathPicker) Pick(ctx context.Context) (*Picked, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return nil, ErrCancelled
	}
	if len(p.Extensions) > 0 && !IsAudio(p.Path, p.Extensions) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, DisplayName(p.Path))
	}
	return CopyToCache(p.CacheDir, p.Path)
}
