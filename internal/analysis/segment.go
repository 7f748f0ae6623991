// Package analysis implements the offline scoring core of the interview
// pipeline: sentence segmentation of raw transcripts, hybrid indicator
// scoring (exact lexical matches combined with embedding similarity), and
// weighted score aggregation with recommendation tiers.
package analysis

import (
	"regexp"
	"strings"
)

const (
	// maxSegmentLength caps segment size when transcripts arrive without
	// punctuation and clause splitting still yields long runs.
	maxSegmentLength = 150

	// minSegmentLength drops fragments too short to carry evidence.
	minSegmentLength = 15
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// clauseMarkers are clause-boundary connectives used to split unpunctuated
// transcripts. Order matters: earlier markers split first and later markers
// run over the already-split pieces. Each marker is re-attached to the start
// of the clause that follows it.
var clauseMarkers = []string{
	" and ", " as well as ", " then ", " after that ",
	" besides that ", " however ", " but ", " even so ",
	" because ", " since ", " so that ", " in order to ",
	" if ", " when ", " while ", " during ",
	" in which ", " whereby ",
	" for ", " according to ",
}

// SplitSentences splits a raw transcript into analyzable segments.
//
// Automatic transcriptions often lack punctuation, so splitting happens in
// stages: sentence-ending punctuation first; when that yields two segments
// or fewer, clause-boundary markers; then a word-boundary length split for
// anything still longer than 150 characters. Segments of 15 characters or
// fewer (after trimming) are discarded. The result is deterministic for
// identical input.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// The raw split count includes empty trailing pieces; "A. B." counts
	// as three and is accepted, while a single unpunctuated run is not.
	segments := sentenceEnd.Split(text, -1)

	if len(segments) <= 2 {
		segments = splitOnClauses(text)

		var limited []string
		for _, s := range segments {
			if len(s) > maxSegmentLength {
				limited = append(limited, splitByLength(s)...)
			} else {
				limited = append(limited, s)
			}
		}
		segments = limited
	}

	var out []string
	for _, s := range segments {
		s = strings.TrimSpace(s)
		if len(s) > minSegmentLength {
			out = append(out, s)
		}
	}
	return out
}

// splitOnClauses splits text on every clause marker in order, keeping the
// marker at the head of the following clause.
func splitOnClauses(text string) []string {
	segments := []string{text}
	for _, marker := range clauseMarkers {
		var next []string
		for _, s := range segments {
			parts := strings.Split(s, marker)
			if len(parts) == 1 {
				next = append(next, s)
				continue
			}
			next = append(next, strings.TrimSpace(parts[0]))
			head := strings.TrimSpace(marker)
			for _, part := range parts[1:] {
				next = append(next, strings.TrimSpace(head+" "+part))
			}
		}
		segments = next
	}
	return segments
}

// splitByLength chops a long segment at word boundaries into chunks not
// exceeding maxSegmentLength.
func splitByLength(s string) []string {
	words := strings.Fields(s)

	var out []string
	var chunk []string
	length := 0
	for _, w := range words {
		wordLen := len(w) + 1 // +1 for the joining space
		if length+wordLen > maxSegmentLength && len(chunk) > 0 {
			out = append(out, strings.Join(chunk, " "))
			chunk = []string{w}
			length = wordLen
		} else {
			chunk = append(chunk, w)
			length += wordLen
		}
	}
	if len(chunk) > 0 {
		out = append(out, strings.Join(chunk, " "))
	}
	return out
}
