// Package audio provides PCM sample conversion helpers and the WAV capture
// recorder used by live interview sessions.
//
// All audio in the system is mono 16 kHz 16-bit signed little-endian PCM.
// Browser clients ship chunks as base64-encoded PCM16; these helpers convert
// between that wire form and normalized float32 samples used by the speech
// analyzers.
package audio

import (
	"encoding/binary"
	"math"
)

// DecodePCM16 converts 16-bit signed little-endian PCM bytes into normalized
// float32 samples in [-1, 1). A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
		out[i] = float32(s) / 32768.0
	}
	return out
}

// EncodePCM16 converts normalized float32 samples into 16-bit signed
// little-endian PCM bytes. Samples outside [-1, 1] are clamped.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(v * 32767)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}

// RMS returns the root-mean-square energy of normalized samples in [0, 1].
// Returns 0 for an empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Duration returns the play time in seconds of a sample buffer at the given
// sample rate. Returns 0 for a non-positive rate.
func Duration(sampleCount, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(sampleCount) / float64(sampleRate)
}
