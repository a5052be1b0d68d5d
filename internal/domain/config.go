package domain

import (
	"errors"
	"log/slog"
	"time"

	"dario.cat/mergo"
)

type Config struct {
	DataDir string       `json:"data_dir" yaml:"data_dir"`
	Logger  *slog.Logger `json:"-" yaml:"-"`

	Engine     EngineConfig     `json:"engine" yaml:"engine"`
	Catalog    CatalogConfig    `json:"catalog" yaml:"catalog"`
	Checkpoint CheckpointConfig `json:"checkpoint" yaml:"checkpoint"`
}

type EngineConfig struct {
	// Workers bounds how many nodes run concurrently within a level.
	Workers int `json:"workers" yaml:"workers"`
	// FailFast stops dispatching the rest of a level after the first
	// failure in it. The default keeps dispatching, so independent
	// level-mates of a failed node still run.
	FailFast bool `json:"fail_fast" yaml:"fail_fast"`
	// NodeTimeout caps a single node execution. Zero means no cap.
	NodeTimeout time.Duration `json:"node_timeout" yaml:"node_timeout"`
}

type CatalogConfig struct {
	// BaseDir anchors relative catalog locations.
	BaseDir string `json:"base_dir" yaml:"base_dir"`
	// DefaultFormat applies to entries that do not name one.
	DefaultFormat string         `json:"default_format" yaml:"default_format"`
	Entries       []CatalogEntry `json:"entries,omitempty" yaml:"entries,omitempty"`
}

type CheckpointConfig struct {
	// Dir overrides the store directory; empty means DataDir/checkpoints.
	Dir string `json:"dir" yaml:"dir"`
	// InMemory keeps the store off disk. Resume across processes is lost.
	InMemory bool `json:"in_memory" yaml:"in_memory"`
	// NoSync trades append durability for throughput. Appends are synced
	// to disk before returning unless this is set.
	NoSync bool `json:"no_sync" yaml:"no_sync"`
}

func (c *Config) WithDataDir(dir string) *Config {
	c.DataDir = dir
	return c
}

func (c *Config) WithLogger(logger *slog.Logger) *Config {
	c.Logger = logger
	return c
}

func (c *Config) WithWorkers(n int) *Config {
	c.Engine.Workers = n
	return c
}

func (c *Config) WithFailFast(on bool) *Config {
	c.Engine.FailFast = on
	return c
}

func (c *Config) WithNodeTimeout(d time.Duration) *Config {
	c.Engine.NodeTimeout = d
	return c
}

func (c *Config) WithEntries(entries ...CatalogEntry) *Config {
	c.Catalog.Entries = append(c.Catalog.Entries, entries...)
	return c
}

func (c *Config) WithInMemoryCheckpoints() *Config {
	c.Checkpoint.InMemory = true
	return c
}

// Normalize fills zero-valued fields from the defaults and resolves
// derived paths. It leaves explicitly set values alone.
func (c *Config) Normalize() error {
	defaults := DefaultConfig()
	if err := mergo.Merge(c, defaults); err != nil {
		return &ConfigError{Field: "config", Err: err}
	}
	if c.Checkpoint.Dir == "" && !c.Checkpoint.InMemory {
		c.Checkpoint.Dir = c.DataDir + "/checkpoints"
	}
	if c.Catalog.BaseDir == "" {
		c.Catalog.BaseDir = c.DataDir + "/catalog"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

func (c *Config) Validate() error {
	if c.DataDir == "" && !c.Checkpoint.InMemory {
		return &ConfigError{Field: "data_dir", Err: errors.New("must not be empty")}
	}
	if c.Engine.Workers < 1 {
		return &ConfigError{Field: "engine.workers", Err: errors.New("must be at least 1")}
	}
	if c.Engine.NodeTimeout < 0 {
		return &ConfigError{Field: "engine.node_timeout", Err: errors.New("must not be negative")}
	}
	seen := make(map[string]struct{}, len(c.Catalog.Entries))
	for _, entry := range c.Catalog.Entries {
		if err := entry.Validate(); err != nil {
			return &ConfigError{Field: "catalog.entries", Err: err}
		}
		if _, dup := seen[entry.Key]; dup {
			return &ConfigError{Field: "catalog.entries", Err: errors.New("duplicate key " + entry.Key)}
		}
		seen[entry.Key] = struct{}{}
	}
	return nil
}
