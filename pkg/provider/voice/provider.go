// Package voice defines the Analyzer interface for speech-characteristics
// analysis of short audio chunks.
//
// An Analyzer inspects a chunk of normalized PCM samples and derives a
// dimensional emotion reading: arousal (calm↔excited), valence
// (negative↔positive), vocal confidence, and calmness, together with the raw
// acoustic features (pitch, energy, speaking rate) the reading was derived
// from. The session coordinator calls it on every fifth audio chunk of a
// live interview.
package voice

// Sample is one speech-emotion reading derived from an audio chunk.
type Sample struct {
	// Emotion is the primary label derived from the dimensional values
	// (e.g., "confident", "nervous", "calm", "neutral").
	Emotion string

	// Arousal ranges from -1 (calm) to 1 (excited).
	Arousal float64

	// Valence ranges from -1 (negative) to 1 (positive).
	Valence float64

	// Confidence ranges from 0 (hesitant) to 1 (assertive).
	Confidence float64

	// Calmness ranges from 0 to 1.
	Calmness float64

	// PitchHz is the mean fundamental frequency of voiced frames.
	PitchHz float64

	// PitchVariation is the standard deviation of the frame pitches.
	PitchVariation float64

	// Energy is the RMS energy of the normalized chunk.
	Energy float64

	// SpeakingRate is the estimated tempo in onsets per minute.
	SpeakingRate float64
}

// Analyzer derives speech-emotion readings from audio chunks.
//
// Analyze returns ok=false when the chunk carries no usable signal (too
// short, silent, or no voiced frames); such chunks are skipped silently by
// callers.
type Analyzer interface {
	Analyze(samples []float32) (sample Sample, ok bool)
}
