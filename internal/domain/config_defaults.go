package domain

import (
	"runtime"
)

func DefaultConfig() *Config {
	return &Config{
		DataDir:    "data",
		Engine:     DefaultEngineConfig(),
		Catalog:    DefaultCatalogConfig(),
		Checkpoint: DefaultCheckpointConfig(),
	}
}

func DefaultEngineConfig() EngineConfig {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	return EngineConfig{
		Workers:     workers,
		FailFast:    false,
		NodeTimeout: 0,
	}
}

func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		DefaultFormat: "json",
	}
}

func DefaultCheckpointConfig() CheckpointConfig {
	return CheckpointConfig{}
}
