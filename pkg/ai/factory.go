package ai

import (
	"fmt"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "gemini", "ollama" or "auto"

	// Gemini config
	GeminiAPIKey string

	// Ollama config
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3", "mistral"
}

// NewTermExtractor creates a TermExtractor based on the config.
// This is the factory function - switch AI provider by changing config.Provider
func NewTermExtractor(cfg Config) (TermExtractor, error) {
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiService(cfg.GeminiAPIKey), nil

	case ProviderOllama:
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil

	case ProviderAuto:
		if cfg.GeminiAPIKey == "" {
			return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil
		}
		return NewFallbackService(
			NewGeminiService(cfg.GeminiAPIKey),
			NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel),
		), nil

	default:
		if cfg.GeminiAPIKey != "" {
			return NewGeminiService(cfg.GeminiAPIKey), nil
		}
		return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	}
}
