package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ziadkadry99/draw2ui/internal/llm"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// the section from the key: DRAW2UI_SERVER__PORT sets server.port.
const EnvPrefix = "DRAW2UI_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (DRAW2UI_*).
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	switch c.Storage.Backend {
	case StorageSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite backend")
		}
	case StorageRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid storage.backend %q: must be sqlite or redis", c.Storage.Backend)
	}

	if c.Generation.Provider != "" && !validProvider(c.Generation.Provider) {
		return fmt.Errorf("invalid generation.provider %q: must be one of %s",
			c.Generation.Provider, strings.Join(llm.Providers, ", "))
	}
	if c.Generation.Endpoint == "" && len(c.Generation.Models) == 0 {
		return fmt.Errorf("generation.models is required when no endpoint is set")
	}
	if c.Generation.RequestsPerMinute < 0 {
		return fmt.Errorf("generation.requests_per_minute must be non-negative")
	}
	if c.Generation.MaxTokens < 0 {
		return fmt.Errorf("generation.max_tokens must be non-negative")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be between 0 and 2")
	}
	if c.Generation.Timeout < 0 {
		return fmt.Errorf("generation.timeout must be non-negative")
	}

	if c.Usage.DailyLimit <= 0 {
		return fmt.Errorf("usage.daily_limit must be positive")
	}
	if c.Whiteboard.AutosaveDelay <= 0 {
		return fmt.Errorf("whiteboard.autosave_delay must be positive")
	}
	if c.Raster.MaxEdge < 0 {
		return fmt.Errorf("raster.max_edge must be non-negative")
	}

	return nil
}

func validProvider(name string) bool {
	for _, p := range llm.Providers {
		if p == name {
			return true
		}
	}
	return false
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider string) string {
	switch provider {
	case "google":
		return "GOOGLE_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return ""
	}
}
