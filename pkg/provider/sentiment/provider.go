// Package sentiment defines the Analyzer interface for per-sentence
// sentiment scoring of interview transcripts.
//
// Scores live in [0, 1] where 0 is strongly negative, 0.5 is neutral, and 1
// is strongly positive. Sentiment is decorative metadata on transcript
// entries: a failed analysis never fails the batch pipeline, callers fall
// back to [Neutral] instead.
package sentiment

import "context"

// Score is the sentiment reading for one piece of text.
type Score struct {
	// Value is the sentiment in [0, 1]; 0.5 is neutral.
	Value float64

	// Label is a coarse classification: "negative", "neutral", "positive".
	Label string
}

// Analyzer scores text sentiment.
//
// Implementors must be safe for concurrent use.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Score, error)
}

// Neutral is the fallback score used when analysis fails or no analyzer is
// configured.
func Neutral() Score {
	return Score{Value: 0.5, Label: "neutral"}
}

// LabelFor maps a score value onto the coarse label bands.
func LabelFor(value float64) string {
	switch {
	case value < 0.4:
		return "negative"
	case value > 0.6:
		return "positive"
	default:
		return "neutral"
	}
}
