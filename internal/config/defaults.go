package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ziadkadry99/draw2ui/internal/generate"
)

// DefaultConfigFile is the config file looked up in the working directory.
const DefaultConfigFile = ".draw2ui.yml"

// DefaultDataPath returns ~/.draw2ui/draw2ui.db, or a relative path when
// the home directory is unknown.
func DefaultDataPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".draw2ui", "draw2ui.db")
	}
	return filepath.Join(home, ".draw2ui", "draw2ui.db")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend:     StorageSQLite,
			Path:        DefaultDataPath(),
			RedisAddr:   "localhost:6379",
			RedisPrefix: "draw2ui:",
		},
		Generation: GenerationConfig{
			Provider:          "google",
			Models:            append([]string(nil), generate.DefaultModels...),
			RequestsPerMinute: 15,
			MaxTokens:         8192,
			Temperature:       0.2,
			Timeout:           2 * time.Minute,
		},
		Usage: UsageConfig{
			DailyLimit: 3,
		},
		Whiteboard: WhiteboardConfig{
			AutosaveDelay: time.Second,
		},
		Raster: RasterConfig{
			MaxEdge: 1600,
		},
	}
}
