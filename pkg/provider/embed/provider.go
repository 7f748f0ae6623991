// Package embed defines the Provider interface for text embedding backends.
//
// The indicator scorer embeds the enriched indicator query and every
// transcript sentence to compute cosine similarities, and the batch engine
// indexes segment vectors into the pgvector store for evidence search.
//
// Implementors must be safe for concurrent use.
package embed

import (
	"context"
	"math"
)

// Provider generates dense vector embeddings for text.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	// Passing an empty slice returns (nil, nil).
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length produced by this provider.
	// The pgvector column dimension must match this value.
	Dimensions() int

	// ModelID returns the identifier of the underlying embedding model,
	// for logging and diagnostics.
	ModelID() string
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either vector is zero or the lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
