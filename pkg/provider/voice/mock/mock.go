// Package mock provides a test double for the voice.Analyzer interface.
package mock

import (
	"sync"

	"github.com/talentlens/talentlens/pkg/provider/voice"
)

// Compile-time assertion that Analyzer implements voice.Analyzer.
var _ voice.Analyzer = (*Analyzer)(nil)

// Analyzer is a mock implementation of voice.Analyzer.
type Analyzer struct {
	mu sync.Mutex

	// Sample is returned by Analyze when OK is true.
	Sample voice.Sample

	// OK is the second return value of Analyze. Defaults to false, which
	// models an analyzer that skips every chunk.
	OK bool

	// Chunks records the length of every analysed chunk.
	Chunks []int
}

// Analyze records the chunk length and returns Sample, OK.
func (a *Analyzer) Analyze(samples []float32) (voice.Sample, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Chunks = append(a.Chunks, len(samples))
	if !a.OK {
		return voice.Sample{}, false
	}
	return a.Sample, true
}

// CallCount returns the number of Analyze invocations.
func (a *Analyzer) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Chunks)
}
