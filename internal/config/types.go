package config

import "time"

// StorageBackend selects the durable key-value store.
type StorageBackend string

const (
	StorageSQLite StorageBackend = "sqlite"
	StorageRedis  StorageBackend = "redis"
)

// Config is the top-level draw2ui configuration, corresponding to .draw2ui.yml.
type Config struct {
	Server     ServerConfig     `yaml:"server" koanf:"server"`
	Storage    StorageConfig    `yaml:"storage" koanf:"storage"`
	Generation GenerationConfig `yaml:"generation" koanf:"generation"`
	Usage      UsageConfig      `yaml:"usage" koanf:"usage"`
	Whiteboard WhiteboardConfig `yaml:"whiteboard" koanf:"whiteboard"`
	Raster     RasterConfig     `yaml:"raster" koanf:"raster"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend       StorageBackend `yaml:"backend" koanf:"backend"`
	Path          string         `yaml:"path" koanf:"path"`
	RedisAddr     string         `yaml:"redis_addr" koanf:"redis_addr"`
	RedisPassword string         `yaml:"redis_password,omitempty" koanf:"redis_password"`
	RedisDB       int            `yaml:"redis_db" koanf:"redis_db"`
	RedisPrefix   string         `yaml:"redis_prefix" koanf:"redis_prefix"`
}

// GenerationConfig controls the model calls behind the generation endpoint.
type GenerationConfig struct {
	// Provider serves model entries without a "provider:" prefix.
	Provider string `yaml:"provider" koanf:"provider"`
	// Models are tried in order until one returns markup.
	Models []string `yaml:"models" koanf:"models"`
	// Endpoint, when set, is a remote generation endpoint used instead of
	// calling the models in-process.
	Endpoint          string        `yaml:"endpoint,omitempty" koanf:"endpoint"`
	RequestsPerMinute int           `yaml:"requests_per_minute" koanf:"requests_per_minute"`
	MaxTokens         int           `yaml:"max_tokens" koanf:"max_tokens"`
	Temperature       float64       `yaml:"temperature" koanf:"temperature"`
	Timeout           time.Duration `yaml:"timeout" koanf:"timeout"`
}

// UsageConfig holds the daily generation cap.
type UsageConfig struct {
	DailyLimit int `yaml:"daily_limit" koanf:"daily_limit"`
}

// WhiteboardConfig controls drawing persistence.
type WhiteboardConfig struct {
	AutosaveDelay time.Duration `yaml:"autosave_delay" koanf:"autosave_delay"`
}

// RasterConfig controls server-side sketch rendering.
type RasterConfig struct {
	MaxEdge int `yaml:"max_edge" koanf:"max_edge"`
}
