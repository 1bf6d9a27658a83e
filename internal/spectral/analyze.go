// Package spectral is a development stand-in for the remote analysis service:
// it computes a magnitude spectrum of uploaded audio and classifies it.
package spectral

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/audiolibrelab/soundcheck/internal/analysis"
	"github.com/audiolibrelab/soundcheck/internal/audio"
)

const (
	windowSize = 2048           // Size of each FFT window
	hopSize    = windowSize / 2 // Hop size between windows
	floorDB    = -120.0

	// RMS below this is treated as silence (about -46 dBFS)
	silenceRMS = 0.005
	lowMaxHz   = 300.0
	voiceMaxHz = 3400.0
)

// Classes returned by Classify
const (
	ClassSilence = "silence"
	ClassLow     = "low"
	ClassVoice   = "voice"
	ClassHigh    = "high"
)

// Spectrum averages Hann-windowed FFT frames and returns the magnitude of each bin up to Nyquist
func Spectrum(samples []float64) []float64 {
	window := make([]float64, windowSize)
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(windowSize-1))
	}

	mags := make([]float64, windowSize/2)
	frames := 0
	for start := 0; start == 0 || start+windowSize <= len(samples); start += hopSize {
		frame := make([]float64, windowSize)
		if start < len(samples) {
			copy(frame, samples[start:])
		}
		for i := range frame {
			frame[i] *= window[i]
		}

		fftResult := fft.FFTReal(frame)
		for j := range mags {
			// scale so a full-scale sine reads close to 1
			mags[j] += cmplx.Abs(fftResult[j]) / (windowSize / 4)
		}
		frames++
	}

	for j := range mags {
		mags[j] /= float64(frames)
	}
	return mags
}

// Analyze reduces the spectrum of pcm to points (frequency Hz, magnitude dB) and classifies it
func Analyze(pcm *audio.PCM, points int) *analysis.Result {
	if points < 2 {
		points = 2
	}

	mags := Spectrum(pcm.Samples)
	nyquist := float64(pcm.SampleRate) / 2
	bins := len(mags)

	result := &analysis.Result{
		AudioData: make([]analysis.Point, points),
		MinY:      math.Inf(1),
		MaxY:      math.Inf(-1),
		MaxX:      nyquist,
	}

	for i := 0; i < points; i++ {
		lo := i * bins / points
		hi := (i + 1) * bins / points
		if hi <= lo {
			hi = lo + 1
		}
		if hi > bins {
			hi = bins
		}

		peak := 0.0
		for _, m := range mags[lo:hi] {
			peak = math.Max(peak, m)
		}

		y := toDB(peak)
		result.AudioData[i] = analysis.Point{X: float64(i) * nyquist / float64(points-1), Y: y}
		result.MinY = math.Min(result.MinY, y)
		result.MaxY = math.Max(result.MaxY, y)
	}

	result.Class = Classify(rms(pcm.Samples), DominantFrequency(mags, pcm.SampleRate))
	return result
}

func toDB(m float64) float64 {
	if m <= 0 {
		return floorDB
	}
	return math.Max(20*math.Log10(m), floorDB)
}

// DominantFrequency returns the frequency of the strongest bin, ignoring DC
func DominantFrequency(mags []float64, sampleRate int) float64 {
	best := 0
	for k := 1; k < len(mags); k++ {
		if mags[k] > mags[best] || best == 0 {
			best = k
		}
	}
	resolution := float64(sampleRate) / windowSize
	return float64(best) * resolution
}

// Classify maps loudness and dominant frequency to a label
func Classify(rmsLevel, dominantHz float64) string {
	switch {
	case rmsLevel < silenceRMS:
		return ClassSilence
	case dominantHz < lowMaxHz:
		return ClassLow
	case dominantHz <= voiceMaxHz:
		return ClassVoice
	default:
		return ClassHigh
	}
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
