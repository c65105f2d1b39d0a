package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/ziadkadry99/draw2ui/internal/generate"
)

// providerModels suggests a model list per provider.
var providerModels = map[string][]string{
	"google":     generate.DefaultModels,
	"openai":     {"gpt-4o", "gpt-4o-mini"},
	"openrouter": {"google/gemini-2.5-flash", "openai/gpt-4o-mini"},
	"anthropic":  {"claude-sonnet-4-5-20250929", "claude-haiku-4-5-20251001"},
	"ollama":     {"llava", "llama3.2-vision"},
}

// RunWizard runs an interactive configuration wizard and saves the result
// to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to draw2ui! Let's configure your workspace.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Provider selection.
	providerPrompt := promptui.Select{
		Label: "Select the vision model provider",
		Items: []string{"google", "openai", "openrouter", "anthropic", "ollama"},
	}
	_, provider, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.Generation.Provider = provider

	// 2. Models, in fallback order.
	modelsPrompt := promptui.Prompt{
		Label:   "Models to try, in order (comma-separated)",
		Default: strings.Join(providerModels[provider], ","),
	}
	modelsStr, err := modelsPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("models: %w", err)
	}
	cfg.Generation.Models = splitAndTrim(modelsStr)

	// 3. Storage backend.
	storagePrompt := promptui.Select{
		Label: "Where should projects be stored",
		Items: []string{
			"sqlite - a local database file",
			"redis  - a Redis server",
		},
	}
	storageIdx, _, err := storagePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("storage selection: %w", err)
	}
	if storageIdx == 1 {
		cfg.Storage.Backend = StorageRedis
		addrPrompt := promptui.Prompt{Label: "Redis address", Default: cfg.Storage.RedisAddr}
		if cfg.Storage.RedisAddr, err = addrPrompt.Run(); err != nil {
			return nil, fmt.Errorf("redis address: %w", err)
		}
	} else {
		pathPrompt := promptui.Prompt{Label: "Database file", Default: cfg.Storage.Path}
		if cfg.Storage.Path, err = pathPrompt.Run(); err != nil {
			return nil, fmt.Errorf("database path: %w", err)
		}
	}

	// 4. Server port.
	portPrompt := promptui.Prompt{
		Label:    "Server port",
		Default:  strconv.Itoa(cfg.Server.Port),
		Validate: validatePort,
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("server port: %w", err)
	}
	cfg.Server.Port, _ = strconv.Atoi(portStr)

	// 5. Daily limit.
	limitPrompt := promptui.Prompt{
		Label:    "Generations allowed per day",
		Default:  strconv.Itoa(cfg.Usage.DailyLimit),
		Validate: validatePositive,
	}
	limitStr, err := limitPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("daily limit: %w", err)
	}
	cfg.Usage.DailyLimit, _ = strconv.Atoi(limitStr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if envVar := APIKeyEnvVar(provider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment or .env file before generating.\n", envVar)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("enter a port between 1 and 65535")
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("enter a positive number")
	}
	return nil
}

// splitAndTrim splits a comma-separated string and drops empty entries.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}
