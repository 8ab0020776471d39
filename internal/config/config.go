package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Engine driver names accepted in config.
const (
	DriverFS     = "fs"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// DefaultMediaTimeoutSec is used when media_timeout_sec is unset.
const DefaultMediaTimeoutSec = 60

// Config represents the global ~/.wavault/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	// Driver selects the storage backend: fs (default), sqlite, memory.
	Driver string `toml:"driver"`
	// MediaTimeoutSec bounds a single media fetch. 0 means the default.
	MediaTimeoutSec int `toml:"media_timeout_sec"`
}

// Load reads config from the given path. Returns zero config and error if
// file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown driver names. An empty driver means fs.
func (c *Config) Validate() error {
	switch c.Driver {
	case "", DriverFS, DriverSQLite, DriverMemory:
		return nil
	default:
		return fmt.Errorf("unknown engine driver %q (want fs, sqlite, or memory)", c.Driver)
	}
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
