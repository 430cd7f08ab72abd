// Package config loads the repository settings file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/systemshift/memex-vcs/internal/errors"
	"github.com/systemshift/memex-vcs/internal/logging"
)

const (
	// Dir is the metadata directory kept at the root of a working directory.
	Dir = ".mvcs"

	// FileName is the settings file inside Dir.
	FileName = "config.yaml"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFS     = "fs"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Config holds every setting read from .mvcs/config.yaml.
type Config struct {
	Repository Repository `yaml:"repository"`
	Store      Store      `yaml:"store"`
	Log        Log        `yaml:"log"`
}

// Repository settings.
type Repository struct {
	// DefaultBranch is the nickname given to the branch created with a new repository.
	DefaultBranch string `yaml:"default_branch"`
}

// Store selects and tunes the content store backend.
type Store struct {
	Driver           string `yaml:"driver"`
	Path             string `yaml:"path"`
	WriteConcurrency int    `yaml:"write_concurrency"`
}

// Log settings.
type Log struct {
	Level string `yaml:"level"`
}

// Default configuration.
func Default() Config {
	return Config{
		Repository: Repository{DefaultBranch: "master"},
		Store: Store{
			Driver:           DriverFS,
			Path:             "objects",
			WriteConcurrency: 4,
		},
		Log: Log{Level: logging.LogLevelInfo},
	}
}

// Path of the settings file for a working directory.
func Path(workdir string) string {
	return filepath.Join(workdir, Dir, FileName)
}

// Load reads the settings file at path over the defaults. A missing file
// yields the defaults.
func Load(fsys afero.Fs, path string) (Config, error) {
	cfg := Default()
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory.
func Save(fsys afero.Fs, path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := fsys.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	return afero.WriteFile(fsys, path, data, 0o644)
}

// Validate checks the settings for values no component accepts.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverFS, DriverSQLite, DriverBadger:
	default:
		return errors.ErrInvalidArgument.Wrap(fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Store.Driver != DriverMemory && c.Store.Path == "" {
		return errors.ErrInvalidArgument.Wrap(fmt.Errorf("store path is required for driver %q", c.Store.Driver))
	}
	if c.Store.WriteConcurrency < 1 {
		return errors.ErrInvalidArgument.Wrap(fmt.Errorf("store write_concurrency must be positive, got %d", c.Store.WriteConcurrency))
	}
	if _, err := logging.GetLogger(c.Log.Level); err != nil {
		return errors.ErrInvalidArgument.Wrap(fmt.Errorf("log level %q: %v", c.Log.Level, err))
	}
	return nil
}
