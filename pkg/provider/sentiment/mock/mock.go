// Package mock provides a test double for the sentiment.Analyzer interface.
package mock

import (
	"context"
	"sync"

	"github.com/talentlens/talentlens/pkg/provider/sentiment"
)

// Compile-time assertion that Analyzer implements sentiment.Analyzer.
var _ sentiment.Analyzer = (*Analyzer)(nil)

// Analyzer is a mock implementation of sentiment.Analyzer.
type Analyzer struct {
	mu sync.Mutex

	// Score is returned by Analyze when Err is nil.
	Score sentiment.Score

	// Err, if non-nil, is returned as the error from Analyze.
	Err error

	// Texts records every analysed text in order.
	Texts []string
}

// Analyze records the text and returns Score, Err.
func (a *Analyzer) Analyze(_ context.Context, text string) (sentiment.Score, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Texts = append(a.Texts, text)
	if a.Err != nil {
		return sentiment.Score{}, a.Err
	}
	return a.Score, nil
}

// CallCount returns the number of Analyze invocations.
func (a *Analyzer) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.Texts)
}
