package main

import (
	"errors"
	"testing"

	"github.com/talentlens/talentlens/internal/config"
)

// Every provider name the config validator accepts must have a factory behind
// it, otherwise a config that validates cleanly still fails at startup.
func TestRegisterBuiltinProvidersCoversKnownNames(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			entry := config.ProviderEntry{
				Name:    name,
				APIKey:  "test-key",
				BaseURL: "http://localhost:9999",
				Model:   "test-model",
			}
			var err error
			switch kind {
			case "asr":
				_, err = reg.CreateASR(entry)
			case "vision":
				_, err = reg.CreateVision(entry)
			case "embeddings":
				_, err = reg.CreateEmbeddings(entry)
			case "sentiment":
				_, err = reg.CreateSentiment(entry)
			default:
				t.Fatalf("unhandled provider kind %q", kind)
			}
			if errors.Is(err, config.ErrProviderNotRegistered) {
				t.Errorf("%s provider %q has no registered factory", kind, name)
			}
		}
	}
}
