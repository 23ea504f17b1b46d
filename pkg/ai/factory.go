package ai

import (
	"fmt"
	"time"
)

// ProviderConfig selects and configures the text generation provider
type ProviderConfig struct {
	Provider       string // gemini, ollama or auto
	GeminiAPIKey   string
	OllamaBaseURL  string
	OllamaModel    string
	AuthorizedUser string
	Location       *time.Location
}

// NewScheduler builds the Scheduler for the configured provider. "auto"
// prefers Gemini with Ollama as fallback when both are configured.
func NewScheduler(cfg ProviderConfig) (Scheduler, error) {
	var gen generator
	switch cfg.Provider {
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini provider requires an API key")
		}
		gen = NewGeminiGenerator(cfg.GeminiAPIKey)
	case "ollama":
		gen = NewOllamaGenerator(cfg.OllamaBaseURL, cfg.OllamaModel)
	case "auto":
		ollama := NewOllamaGenerator(cfg.OllamaBaseURL, cfg.OllamaModel)
		if cfg.GeminiAPIKey != "" {
			gen = NewFallbackGenerator(NewGeminiGenerator(cfg.GeminiAPIKey), ollama)
		} else {
			gen = ollama
		}
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
	return NewService(gen, cfg.AuthorizedUser, cfg.Location), nil
}
