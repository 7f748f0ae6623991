// Package dsp provides a local, dependency-free voice.Analyzer.
//
// Features are extracted directly from the PCM signal: fundamental frequency
// via frame-wise autocorrelation (80–400 Hz search band), RMS energy, and a
// speaking-rate estimate from energy onsets. The dimensional emotion model
// then combines the normalized features:
//
//	arousal    = 0.4·pitch + 0.3·energy + 0.3·tempo          ∈ [-1, 1]
//	valence    = 0.5·stability + 0.3·energy − 0.2·|pitch|    ∈ [-1, 1]
//	confidence = 0.5·energy + 0.3·stability + 0.2·(1−|tempo|) ∈ [0, 1]
//	calmness   = 0.6·(1−|arousal|) + 0.4·stability           ∈ [0, 1]
//
// where stability = 1 − min(pitchVariation/30, 1) and the feature
// normalizations centre pitch around 150 Hz, energy around 0.05 RMS, and
// tempo around 120 onsets per minute.
package dsp

import (
	"math"

	"github.com/talentlens/talentlens/pkg/audio"
	"github.com/talentlens/talentlens/pkg/provider/voice"
)

const (
	// minSamples is the shortest chunk worth analysing (0.1 s at 16 kHz).
	minSamples = 1600

	// silenceRMS is the normalized energy floor below which a chunk is
	// treated as silence and skipped.
	silenceRMS = 1e-4

	frameSize = 1024
	frameHop  = 512

	pitchMinHz = 80
	pitchMaxHz = 400
)

// Compile-time assertion that Analyzer implements voice.Analyzer.
var _ voice.Analyzer = (*Analyzer)(nil)

// Analyzer is a local signal-processing implementation of voice.Analyzer.
// It holds no mutable state and is safe for concurrent use.
type Analyzer struct {
	sampleRate int
}

// New returns an Analyzer for the given sample rate. A non-positive rate
// defaults to 16000.
func New(sampleRate int) *Analyzer {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Analyzer{sampleRate: sampleRate}
}

// Analyze implements voice.Analyzer.
func (a *Analyzer) Analyze(samples []float32) (voice.Sample, bool) {
	if len(samples) < minSamples {
		return voice.Sample{}, false
	}

	energy := audio.RMS(samples)
	if energy < silenceRMS {
		return voice.Sample{}, false
	}

	pitches := a.framePitches(samples)
	if len(pitches) == 0 {
		return voice.Sample{}, false
	}
	pitchMean, pitchStd := meanStd(pitches)
	tempo := a.estimateTempo(samples)

	// Normalize around typical speech values.
	pitchNorm := (pitchMean - 150) / 100
	pitchVarNorm := pitchStd / 30
	energyNorm := energy / 0.05
	tempoNorm := (tempo - 120) / 30

	arousal := clip(0.4*pitchNorm+0.3*energyNorm+0.3*tempoNorm, -1, 1)
	stability := 1 - math.Min(pitchVarNorm, 1)
	valence := clip(0.5*stability+0.3*math.Min(energyNorm, 1)-0.2*math.Abs(pitchNorm), -1, 1)
	confidence := clip(0.5*math.Min(energyNorm, 1)+0.3*stability+0.2*(1-math.Abs(tempoNorm)), 0, 1)
	calmness := clip(0.6*(1-math.Abs(arousal))+0.4*stability, 0, 1)

	return voice.Sample{
		Emotion:        classify(arousal, valence),
		Arousal:        arousal,
		Valence:        valence,
		Confidence:     confidence,
		Calmness:       calmness,
		PitchHz:        pitchMean,
		PitchVariation: pitchStd,
		Energy:         energy,
		SpeakingRate:   tempo,
	}, true
}

// classify maps the arousal/valence plane onto a primary emotion label.
func classify(arousal, valence float64) string {
	switch {
	case arousal > 0.3 && valence > 0.2:
		return "confident"
	case arousal > 0.5 && valence < 0:
		return "nervous"
	case arousal > 0.5 && valence > 0:
		return "excited"
	case arousal < -0.3 && valence > 0:
		return "calm"
	case arousal < -0.3:
		return "tired"
	default:
		return "neutral"
	}
}

// framePitches estimates the fundamental frequency of each voiced frame via
// autocorrelation, searching lags corresponding to 80–400 Hz. Unvoiced frames
// (no clear periodicity) are omitted.
func (a *Analyzer) framePitches(samples []float32) []float64 {
	minLag := a.sampleRate / pitchMaxHz
	maxLag := a.sampleRate / pitchMinHz
	if maxLag >= frameSize {
		maxLag = frameSize - 1
	}

	var pitches []float64
	for off := 0; off+frameSize <= len(samples); off += frameHop {
		frame := samples[off : off+frameSize]

		var energy float64
		for _, v := range frame {
			energy += float64(v) * float64(v)
		}
		if energy == 0 {
			continue
		}

		bestLag, bestCorr := 0, 0.0
		for lag := minLag; lag <= maxLag; lag++ {
			var corr float64
			for i := 0; i+lag < frameSize; i++ {
				corr += float64(frame[i]) * float64(frame[i+lag])
			}
			if corr > bestCorr {
				bestCorr = corr
				bestLag = lag
			}
		}

		// Voicing check: the autocorrelation peak must carry a meaningful
		// share of the frame energy, otherwise the frame is noise.
		if bestLag == 0 || bestCorr < 0.3*energy {
			continue
		}
		pitches = append(pitches, float64(a.sampleRate)/float64(bestLag))
	}
	return pitches
}

// estimateTempo counts energy onsets (silence→speech transitions of short
// sub-frames) and scales the count to onsets per minute.
func (a *Analyzer) estimateTempo(samples []float32) float64 {
	const subFrame = 400 // 25 ms at 16 kHz

	var energies []float64
	for off := 0; off+subFrame <= len(samples); off += subFrame {
		energies = append(energies, audio.RMS(samples[off:off+subFrame]))
	}
	if len(energies) < 2 {
		return 0
	}

	mean, _ := meanStd(energies)
	threshold := mean * 1.2

	onsets := 0
	above := energies[0] > threshold
	for _, e := range energies[1:] {
		now := e > threshold
		if now && !above {
			onsets++
		}
		above = now
	}

	duration := audio.Duration(len(samples), a.sampleRate)
	if duration == 0 {
		return 0
	}
	return float64(onsets) * 60 / duration
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	for _, v := range values {
		d := v - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
