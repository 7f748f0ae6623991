package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/talentlens/talentlens/pkg/provider/asr"
	"github.com/talentlens/talentlens/pkg/provider/embed"
	"github.com/talentlens/talentlens/pkg/provider/sentiment"
	"github.com/talentlens/talentlens/pkg/provider/vision"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	asr        map[string]func(ProviderEntry) (asr.Transcriber, error)
	vision     map[string]func(ProviderEntry) (vision.Classifier, error)
	embeddings map[string]func(ProviderEntry) (embed.Provider, error)
	sentiment  map[string]func(ProviderEntry) (sentiment.Analyzer, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		asr:        make(map[string]func(ProviderEntry) (asr.Transcriber, error)),
		vision:     make(map[string]func(ProviderEntry) (vision.Classifier, error)),
		embeddings: make(map[string]func(ProviderEntry) (embed.Provider, error)),
		sentiment:  make(map[string]func(ProviderEntry) (sentiment.Analyzer, error)),
	}
}

// RegisterASR registers a transcriber factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterASR(name string, factory func(ProviderEntry) (asr.Transcriber, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[name] = factory
}

// RegisterVision registers an emotion classifier factory under name.
func (r *Registry) RegisterVision(name string, factory func(ProviderEntry) (vision.Classifier, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vision[name] = factory
}

// RegisterEmbeddings registers an embeddings provider factory under name.
func (r *Registry) RegisterEmbeddings(name string, factory func(ProviderEntry) (embed.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embeddings[name] = factory
}

// RegisterSentiment registers a sentiment analyzer factory under name.
func (r *Registry) RegisterSentiment(name string, factory func(ProviderEntry) (sentiment.Analyzer, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sentiment[name] = factory
}

// CreateASR instantiates a transcriber using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateASR(entry ProviderEntry) (asr.Transcriber, error) {
	r.mu.RLock()
	factory, ok := r.asr[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateVision instantiates an emotion classifier using the factory registered under entry.Name.
func (r *Registry) CreateVision(entry ProviderEntry) (vision.Classifier, error) {
	r.mu.RLock()
	factory, ok := r.vision[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vision/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateEmbeddings instantiates an embeddings provider using the factory registered under entry.Name.
func (r *Registry) CreateEmbeddings(entry ProviderEntry) (embed.Provider, error) {
	r.mu.RLock()
	factory, ok := r.embeddings[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: embeddings/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSentiment instantiates a sentiment analyzer using the factory registered under entry.Name.
func (r *Registry) CreateSentiment(entry ProviderEntry) (sentiment.Analyzer, error) {
	r.mu.RLock()
	factory, ok := r.sentiment[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: sentiment/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}
