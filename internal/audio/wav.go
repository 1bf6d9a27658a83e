package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const wavHeaderSize = 44

var ErrInvalidWAV = errors.New("not a RIFF/WAVE file")

// PCM is decoded audio with all channels mixed down to mono in [-1, 1]
type PCM struct {
	SampleRate int
	Channels   int
	Samples    []float64
}

// Duration returns the length of the decoded audio in seconds
func (p *PCM) Duration() float64 {
	if p.SampleRate == 0 {
		return 0
	}
	return float64(len(p.Samples)) / float64(p.SampleRate)
}

// WriteWAV encodes interleaved 16-bit samples as a PCM WAV stream
func WriteWAV(w io.Writer, samples []int16, sampleRate, channels int) error {
	if channels <= 0 || sampleRate <= 0 {
		return fmt.Errorf("invalid WAV parameters: rate=%d channels=%d", sampleRate, channels)
	}

	dataSize := uint32(len(samples) * 2)
	blockAlign := uint16(channels * 2)

	header := []any{
		[]byte("RIFF"), uint32(36) + dataSize, []byte("WAVE"),
		[]byte("fmt "), uint32(16), uint16(1), uint16(channels),
		uint32(sampleRate), uint32(sampleRate) * uint32(blockAlign), blockAlign, uint16(16),
		[]byte("data"), dataSize,
	}
	for _, field := range header {
		if err := binary.Write(w, binary.LittleEndian, field); err != nil {
			return fmt.Errorf("failed to write WAV header: %w", err)
		}
	}

	if err := binary.Write(w, binary.LittleEndian, samples); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	return nil
}

// WriteWAVFile writes samples to path, replacing any existing file
func WriteWAVFile(path string, samples []int16, sampleRate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}
	if err := WriteWAV(f, samples, sampleRate, channels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ensureWAVFile writes an empty but valid WAV when the capture produced nothing
func ensureWAVFile(path string, sampleRate, channels int) error {
	info, err := os.Stat(path)
	if err == nil && info.Size() >= wavHeaderSize {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("recording file not readable: %w", err)
	}
	return WriteWAVFile(path, nil, sampleRate, channels)
}

// ReadWAV decodes 16-bit PCM or 32-bit float WAV data
func ReadWAV(r io.Reader) (*PCM, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV data: %w", err)
	}
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrInvalidWAV
	}

	var (
		format, channels, bits uint16
		sampleRate             uint32
		payload                []byte
		haveFmt                bool
	)

	for pos := 12; pos+8 <= len(data); {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := data[pos+8:]
		if size > len(body) {
			size = len(body)
		}
		body = body[:size]

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: short fmt chunk", ErrInvalidWAV)
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			channels = binary.LittleEndian.Uint16(body[2:4])
			sampleRate = binary.LittleEndian.Uint32(body[4:8])
			bits = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true
		case "data":
			payload = body
		}

		// chunks are word aligned
		pos += 8 + size + size%2
	}

	if !haveFmt {
		return nil, fmt.Errorf("%w: missing fmt chunk", ErrInvalidWAV)
	}
	if channels == 0 {
		return nil, fmt.Errorf("%w: zero channels", ErrInvalidWAV)
	}

	pcm := &PCM{SampleRate: int(sampleRate), Channels: int(channels)}

	switch {
	case format == 1 && bits == 16:
		raw := make([]int16, len(payload)/2)
		if err := binary.Read(bytes.NewReader(payload[:len(raw)*2]), binary.LittleEndian, raw); err != nil {
			return nil, fmt.Errorf("failed to decode samples: %w", err)
		}
		pcm.Samples = mixDown(len(raw), int(channels), func(i int) float64 { return float64(raw[i]) / 32768 })
	case format == 3 && bits == 32:
		n := len(payload) / 4
		pcm.Samples = mixDown(n, int(channels), func(i int) float64 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:])))
		})
	default:
		return nil, fmt.Errorf("unsupported WAV encoding: format=%d bits=%d", format, bits)
	}

	return pcm, nil
}

// ReadWAVFile decodes the WAV file at path
func ReadWAVFile(path string) (*PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadWAV(f)
}

func mixDown(n, channels int, sample func(int) float64) []float64 {
	frames := n / channels
	out := make([]float64, frames)
	for f := 0; f < frames; f++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += sample(f*channels + c)
		}
		out[f] = sum / float64(channels)
	}
	return out
}

// floatToPCM16 converts a float sample in [-1, 1] to 16-bit PCM, clipping out of range input
func floatToPCM16(s float32) int16 {
	if s > 1 {
		s = 1
	} else if s < -1 {
		s = -1
	}
	return int16(s * math.MaxInt16)
}
