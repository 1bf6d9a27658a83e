package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteWAV_HeaderLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, []int16{0, 1000, -1000, 32767}, 44100, 2); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	data := buf.Bytes()
	if len(data) != wavHeaderSize+8 {
		t.Fatalf("Expected %d bytes, got %d", wavHeaderSize+8, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Error("Expected RIFF/WAVE/data markers")
	}
	if got := binary.LittleEndian.Uint32(data[28:32]); got != 44100*4 {
		t.Errorf("Expected byte rate %d, got %d", 44100*4, got)
	}
	if got := binary.LittleEndian.Uint32(data[40:44]); got != 8 {
		t.Errorf("Expected data size 8, got %d", got)
	}
}

func TestReadWAV_MixesStereoDown(t *testing.T) {
	var buf bytes.Buffer
	// two frames: (16384, 0) and (-16384, -16384)
	if err := WriteWAV(&buf, []int16{16384, 0, -16384, -16384}, 8000, 2); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	pcm, err := ReadWAV(&buf)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if pcm.SampleRate != 8000 || pcm.Channels != 2 {
		t.Errorf("Unexpected format %+v", pcm)
	}
	if len(pcm.Samples) != 2 {
		t.Fatalf("Expected 2 mono frames, got %d", len(pcm.Samples))
	}
	if math.Abs(pcm.Samples[0]-0.25) > 1e-9 || math.Abs(pcm.Samples[1]+0.5) > 1e-9 {
		t.Errorf("Unexpected mixed samples %v", pcm.Samples)
	}
	if got := pcm.Duration(); got != 2.0/8000 {
		t.Errorf("Unexpected duration %f", got)
	}
}

func TestReadWAV_Float32(t *testing.T) {
	var buf bytes.Buffer
	fields := []any{
		[]byte("RIFF"), uint32(36 + 8), []byte("WAVE"),
		[]byte("fmt "), uint32(16), uint16(3), uint16(1), uint32(16000), uint32(64000), uint16(4), uint16(32),
		[]byte("data"), uint32(8), float32(0.5), float32(-1),
	}
	for _, f := range fields {
		binary.Write(&buf, binary.LittleEndian, f)
	}

	pcm, err := ReadWAV(&buf)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(pcm.Samples) != 2 || pcm.Samples[0] != 0.5 || pcm.Samples[1] != -1 {
		t.Errorf("Unexpected samples %v", pcm.Samples)
	}
}

func TestReadWAV_Invalid(t *testing.T) {
	_, err := ReadWAV(bytes.NewReader([]byte("ID3 this is an mp3")))
	if !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("Expected ErrInvalidWAV, got: %v", err)
	}
}

func TestEnsureWAVFile(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.wav")
	if err := ensureWAVFile(missing, 44100, 1); err != nil {
		t.Fatalf("Expected empty WAV to be written, got: %v", err)
	}
	pcm, err := ReadWAVFile(missing)
	if err != nil {
		t.Fatalf("Expected written WAV to decode, got: %v", err)
	}
	if len(pcm.Samples) != 0 {
		t.Errorf("Expected no samples, got %d", len(pcm.Samples))
	}

	existing := filepath.Join(dir, "existing.wav")
	if err := WriteWAVFile(existing, []int16{1, 2, 3}, 44100, 1); err != nil {
		t.Fatalf("Failed to write WAV: %v", err)
	}
	if err := ensureWAVFile(existing, 44100, 1); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	stat, _ := os.Stat(existing)
	if stat.Size() != wavHeaderSize+6 {
		t.Errorf("Expected existing recording to be left alone, got size %d", stat.Size())
	}
}

func TestFloatToPCM16(t *testing.T) {
	testCases := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, math.MaxInt16},
		{-1, -math.MaxInt16},
		{2.5, math.MaxInt16},
		{-3, -math.MaxInt16},
	}

	for _, tc := range testCases {
		if got := floatToPCM16(tc.in); got != tc.want {
			t.Errorf("floatToPCM16(%f) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
