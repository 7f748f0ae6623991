// Package mock provides a test double for the embed.Provider interface.
//
// Use Provider to return pre-canned embedding vectors without a live model
// and to verify which texts were submitted for embedding. When VectorFor is
// set it takes precedence, allowing tests to script per-text vectors so that
// cosine similarities are deterministic.
package mock

import (
	"context"
	"sync"

	"github.com/talentlens/talentlens/pkg/provider/embed"
)

// Compile-time assertion that Provider implements embed.Provider.
var _ embed.Provider = (*Provider)(nil)

// Provider is a mock implementation of embed.Provider.
type Provider struct {
	mu sync.Mutex

	// VectorFor maps input text to the vector returned for it. Texts not
	// present fall back to Vector.
	VectorFor map[string][]float32

	// Vector is the fallback vector returned for any text.
	Vector []float32

	// Err, if non-nil, is returned from Embed and EmbedBatch.
	Err error

	// DimensionsValue is returned by Dimensions.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// EmbedCalls records every text passed to Embed.
	EmbedCalls []string

	// BatchCalls records every slice passed to EmbedBatch.
	BatchCalls [][]string
}

func (p *Provider) vectorFor(text string) []float32 {
	if v, ok := p.VectorFor[text]; ok {
		return v
	}
	return p.Vector
}

// Embed records the call and returns the scripted vector.
func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, text)
	if p.Err != nil {
		return nil, p.Err
	}
	return p.vectorFor(text), nil
}

// EmbedBatch records the call and returns one scripted vector per text.
func (p *Provider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	batch := make([]string, len(texts))
	copy(batch, texts)
	p.BatchCalls = append(p.BatchCalls, batch)
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vectorFor(t)
	}
	return out, nil
}

// Dimensions returns DimensionsValue.
func (p *Provider) Dimensions() int { return p.DimensionsValue }

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string { return p.ModelIDValue }
