package llm

import (
	"fmt"
	"os"
)

// Providers lists the supported provider types.
var Providers = []string{"google", "openai", "openrouter", "anthropic", "ollama"}

// NewProvider creates a new LLM provider based on the given provider type and model.
// Supported provider types: "google", "openai", "openrouter", "anthropic", "ollama".
func NewProvider(providerType string, model string) (Provider, error) {
	switch providerType {
	case "google":
		apiKey := firstEnv("GOOGLE_API_KEY", "GEMINI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY or GEMINI_API_KEY: %w", ErrMissingAPIKey)
		}
		return NewGoogleProvider(apiKey, model), nil

	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY: %w", ErrMissingAPIKey)
		}
		return NewOpenAIProvider(apiKey, model), nil

	case "openrouter":
		apiKey := os.Getenv("OPENROUTER_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENROUTER_API_KEY: %w", ErrMissingAPIKey)
		}
		return NewOpenAICompatibleProvider("openrouter", apiKey, openRouterBaseURL, model), nil

	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY: %w", ErrMissingAPIKey)
		}
		return NewAnthropicProvider(apiKey, model), nil

	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = defaultOllamaHost
		}
		return NewOllamaProvider(host, model), nil

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
