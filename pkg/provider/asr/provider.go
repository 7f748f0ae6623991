// Package asr defines the Transcriber interface for batch speech-to-text
// backends.
//
// Unlike a streaming STT engine, a Transcriber consumes a complete recorded
// WAV file and returns the full transcript with per-segment timings and
// confidences. The batch analysis engine calls it exactly once per interview
// run.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package asr

import "context"

// Segment is a single timed span of transcribed speech.
type Segment struct {
	// Text is the transcribed text of the segment, whitespace-trimmed.
	Text string

	// Start and End are offsets into the recording, in seconds.
	Start float64
	End   float64

	// AvgLogProb is the decoder's mean log probability over the segment's
	// tokens. Values near 0 indicate high confidence; strongly negative
	// values indicate the decoder was guessing.
	AvgLogProb float64

	// Confidence is AvgLogProb shifted into [0, 1] via [SegmentConfidence].
	Confidence float64
}

// Result is the outcome of transcribing one audio file.
type Result struct {
	// Text is the full transcript with segments joined in order.
	Text string

	// Language is the detected or requested BCP-47 language code.
	Language string

	// Confidence is the mean of the segment confidences, 0 when there are
	// no segments.
	Confidence float64

	// Segments lists the timed spans in recording order.
	Segments []Segment
}

// Transcriber transcribes a complete recorded audio file.
type Transcriber interface {
	// TranscribeFile transcribes the WAV file at path. An empty transcript
	// is returned as a Result with empty Text, not as an error.
	TranscribeFile(ctx context.Context, path string) (Result, error)
}

// SegmentConfidence maps a decoder average log probability into [0, 1].
// An average log probability of -1 or below maps to 0; 0 or above maps to 1.
func SegmentConfidence(avgLogProb float64) float64 {
	c := avgLogProb + 1
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
