package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/audiolibrelab/soundcheck/internal/config"
)

const coughPayload = `{"class":"cough","audio_data":[{"x":0,"y":0},{"x":0.5,"y":5},{"x":1,"y":2}],"min_ydata":0,"max_ydata":5,"max_xdata":1}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.API.Timeout = 5 * time.Second
	return NewClient(cfg)
}

func writeUpload(t *testing.T, name, content string) Upload {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cached"+filepath.Ext(name))
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write upload: %v", err)
	}
	return Upload{URI: path, FileName: name}
}

func TestProcess_Success(t *testing.T) {
	var (
		gotPath, gotName, gotType, gotBody string
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("Expected multipart field 'file': %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotName = header.Filename
		gotType = header.Header.Get("Content-Type")
		gotBody = string(data)

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, coughPayload)
	})

	result, err := client.Process(context.Background(), writeUpload(t, "cough.m4a", "audio-bytes"))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if gotPath != "/process_file" {
		t.Errorf("Expected POST to /process_file, got %s", gotPath)
	}
	if gotName != "cough.m4a" {
		t.Errorf("Expected file name cough.m4a, got %s", gotName)
	}
	if gotType != "audio/x-m4a" {
		t.Errorf("Expected content type audio/x-m4a, got %s", gotType)
	}
	if gotBody != "audio-bytes" {
		t.Errorf("Expected file content to be uploaded, got %q", gotBody)
	}

	if result.Class != "cough" || len(result.AudioData) != 3 {
		t.Errorf("Unexpected result %+v", result)
	}
	if result.MaxX != 1 || result.MinY != 0 || result.MaxY != 5 {
		t.Errorf("Expected bounds from payload, got %+v", result)
	}
	if !result.Populated() {
		t.Error("Expected result to be populated")
	}
}

func TestProcess_NonOKStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, "boom")
	})

	_, err := client.Process(context.Background(), writeUpload(t, "a.wav", "x"))

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected *StatusError, got: %v", err)
	}
	if statusErr.Code != http.StatusInternalServerError || statusErr.Body != "boom" {
		t.Errorf("Unexpected status error %+v", statusErr)
	}
}

func TestProcess_MalformedJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{not json")
	})

	_, err := client.Process(context.Background(), writeUpload(t, "a.wav", "x"))
	if err == nil || !strings.Contains(err.Error(), "invalid analysis response") {
		t.Errorf("Expected invalid response error, got: %v", err)
	}
}

func TestProcess_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	srv.Close()

	_, err := NewClient(cfg).Process(context.Background(), writeUpload(t, "a.wav", "x"))
	if err == nil {
		t.Fatal("Expected transport error")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Errorf("Expected a transport error, not a status error: %v", err)
	}
}

func TestProcess_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Process(ctx, writeUpload(t, "a.wav", "x"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got: %v", err)
	}
}

func TestProcess_NoEndpoint(t *testing.T) {
	client := NewClient(config.DefaultConfig())

	_, err := client.Process(context.Background(), Upload{URI: "/nope", FileName: "nope.wav"})
	if !errors.Is(err, ErrNoEndpoint) {
		t.Errorf("Expected ErrNoEndpoint, got: %v", err)
	}
}

func TestContentSubtype(t *testing.T) {
	testCases := map[string]string{
		"cough.m4a":           "m4a",
		"archive.tar.gz":      "gz",
		"recording":           "recording",
		"trailing.":           "",
		"recording-1234.WAV":  "WAV",
		"/abs/path/voice.ogg": "ogg",
	}

	for in, want := range testCases {
		if got := ContentSubtype(in); got != want {
			t.Errorf("ContentSubtype(%q) = %q, want %q", in, got, want)
		}
	}

	if got := MIMEType("recording"); got != "audio/x-recording" {
		t.Errorf("Expected whole name as subtype, got %s", got)
	}
}

func TestResultPopulated(t *testing.T) {
	testCases := []struct {
		payload string
		want    bool
	}{
		{`{}`, false},
		{`null`, false},
		{`{"class":""}`, true},
		{`{"max_xdata":0}`, true},
		{coughPayload, true},
	}

	for _, tc := range testCases {
		var r Result
		if err := json.Unmarshal([]byte(tc.payload), &r); err != nil {
			t.Fatalf("Failed to decode %s: %v", tc.payload, err)
		}
		if got := r.Populated(); got != tc.want {
			t.Errorf("Populated(%s) = %v, want %v", tc.payload, got, tc.want)
		}
	}

	var nilResult *Result
	if nilResult.Populated() {
		t.Error("Expected nil result to be unpopulated")
	}
}
