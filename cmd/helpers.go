package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ziadkadry99/draw2ui/internal/config"
	"github.com/ziadkadry99/draw2ui/internal/db"
	"github.com/ziadkadry99/draw2ui/internal/generate"
	"github.com/ziadkadry99/draw2ui/internal/kv"
	"github.com/ziadkadry99/draw2ui/internal/store"
	"github.com/ziadkadry99/draw2ui/internal/usage"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `draw2ui init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// openBackend opens the configured key-value backend.
func openBackend(cfg *config.Config) (kv.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		})
		return kv.NewRedisStore(client, cfg.Storage.RedisPrefix), nil
	default:
		database, err := db.Open(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		return kv.NewSQLiteStore(database), nil
	}
}

// openStores opens the backend and the stores built on it. The caller must
// close the returned backend.
func openStores(cfg *config.Config) (kv.Store, *store.Store, *usage.Limiter, error) {
	backend, err := openBackend(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return backend, store.New(backend), usage.New(backend, usage.WithLimit(cfg.Usage.DailyLimit)), nil
}

// buildGenerator returns a client for the configured remote endpoint, or an
// in-process service calling the configured models.
func buildGenerator(cfg *config.Config) (generate.Generator, error) {
	if cfg.Generation.Endpoint != "" {
		return generate.NewClient(cfg.Generation.Endpoint, cfg.Generation.Timeout), nil
	}
	return buildService(cfg)
}

func buildService(cfg *config.Config) (*generate.Service, error) {
	candidates, err := generate.BuildCandidates(generate.CandidatesConfig{
		Provider:          cfg.Generation.Provider,
		Models:            cfg.Generation.Models,
		RequestsPerMinute: cfg.Generation.RequestsPerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("creating model providers: %w", err)
	}
	return generate.NewService(candidates,
		generate.WithMaxTokens(cfg.Generation.MaxTokens),
		generate.WithTemperature(cfg.Generation.Temperature),
	), nil
}

func storageLabel(cfg *config.Config) string {
	if cfg.Storage.Backend == config.StorageRedis {
		return fmt.Sprintf("redis %s (db %d, prefix %q)", cfg.Storage.RedisAddr, cfg.Storage.RedisDB, cfg.Storage.RedisPrefix)
	}
	return "sqlite " + cfg.Storage.Path
}
