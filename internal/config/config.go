// Package config loads process configuration via envconfig, the same
// pattern as the teacher's config.LoadServerConfig.
package config

import "github.com/kelseyhightower/envconfig"

// Config is the process-wide configuration for a tilekit worker.
type Config struct {
	Queue QueueConfig
	Cache CacheConfig
}

// QueueConfig bounds the per-document message queue.
type QueueConfig struct {
	// MergeBudgetWidth/Height describe the invalidation-union bound of
	// callback coalescing (§4.1.1). They are only logged at startup:
	// TileQueue applies its own fixed mergeBudgetW/H constants (same
	// default values) and does not read these fields.
	MergeBudgetWidth  int `envconfig:"TILEKIT_MERGE_BUDGET_WIDTH" default:"15360"`
	MergeBudgetHeight int `envconfig:"TILEKIT_MERGE_BUDGET_HEIGHT" default:"7680"`
}

// CacheConfig bounds the per-document PngCache.
type CacheConfig struct {
	SoftBudgetBytes int `envconfig:"TILEKIT_CACHE_SOFT_BUDGET_BYTES" default:"131072"`
}

// Load reads configuration from the process environment, applying
// defaults for anything unset.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
