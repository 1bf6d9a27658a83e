package picker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ncruces/zenity"
	"github.com/sqweek/dialog"
)

func writeAudio(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	return path
}

func TestDisplayName(t *testing.T) {
	testCases := map[string]string{
		"/var/cache/soundcheck/recording-1.m4a": "recording-1.m4a",
		"file:///sdcard/Music/cough.wav":        "cough.wav",
		"plain.mp3":                             "plain.mp3",
		"/trailing/":                            "",
	}

	for in, want := range testCases {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsAudio(t *testing.T) {
	exts := []string{"wav", "m4a"}

	if !IsAudio("clip.WAV", exts) {
		t.Error("Expected extension match to be case-insensitive")
	}
	if IsAudio("notes.txt", exts) {
		t.Error("Expected txt to be rejected")
	}
	if IsAudio("README", exts) {
		t.Error("Expected file without extension to be rejected")
	}
}

func TestCopyToCache(t *testing.T) {
	src := writeAudio(t, "My Cough.M4A", "audio-bytes")
	cacheDir := filepath.Join(t.TempDir(), "DocumentPicker")

	picked, err := CopyToCache(cacheDir, src)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if picked.Name != "My Cough.M4A" {
		t.Errorf("Expected original display name, got %q", picked.Name)
	}
	if filepath.Dir(picked.URI) != cacheDir {
		t.Errorf("Expected file inside cache dir, got %s", picked.URI)
	}
	if !strings.HasSuffix(picked.URI, ".m4a") {
		t.Errorf("Expected lower-cased extension to be kept, got %s", picked.URI)
	}

	data, err := os.ReadFile(picked.URI)
	if err != nil || string(data) != "audio-bytes" {
		t.Errorf("Expected copied content, got %q (%v)", data, err)
	}

	again, err := CopyToCache(cacheDir, src)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if again.URI == picked.URI {
		t.Error("Expected each copy to get a distinct cache name")
	}
}

func TestDialogPicker_Cancel(t *testing.T) {
	for _, cancelErr := range []error{dialog.ErrCancelled, zenity.ErrCanceled} {
		p := &DialogPicker{
			cacheDir: t.TempDir(),
			choose:   func(string, []string) (string, error) { return "", cancelErr },
		}

		_, err := p.Pick(context.Background())
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("Expected ErrCancelled for %v, got: %v", cancelErr, err)
		}
	}
}

func TestDialogPicker_Failure(t *testing.T) {
	p := &DialogPicker{
		cacheDir: t.TempDir(),
		choose:   func(string, []string) (string, error) { return "", errors.New("no display") },
	}

	_, err := p.Pick(context.Background())
	if err == nil || errors.Is(err, ErrCancelled) {
		t.Errorf("Expected a non-cancel error, got: %v", err)
	}
}

func TestDialogPicker_Success(t *testing.T) {
	src := writeAudio(t, "take.wav", "RIFF")
	var gotExts []string
	p := &DialogPicker{
		cacheDir:   t.TempDir(),
		extensions: []string{"wav"},
		choose: func(_ string, exts []string) (string, error) {
			gotExts = exts
			return src, nil
		},
	}

	picked, err := p.Pick(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if picked.Name != "take.wav" {
		t.Errorf("Expected display name take.wav, got %s", picked.Name)
	}
	if len(gotExts) != 1 || gotExts[0] != "wav" {
		t.Errorf("Expected picker to be scoped to audio extensions, got %v", gotExts)
	}
}

func TestPathPicker(t *testing.T) {
	cacheDir := t.TempDir()

	p := &PathPicker{CacheDir: cacheDir, Extensions: []string{"wav"}}
	if _, err := p.Pick(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Errorf("Expected ErrCancelled for empty path, got: %v", err)
	}

	p.Path = writeAudio(t, "notes.txt", "hello")
	if _, err := p.Pick(context.Background()); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Expected ErrUnsupportedType, got: %v", err)
	}

	p.Path = writeAudio(t, "take.wav", "RIFF")
	picked, err := p.Pick(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if picked.Name != "take.wav" {
		t.Errorf("Expected take.wav, got %s", picked.Name)
	}
}
