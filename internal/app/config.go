package app

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v2"

	"cipherlink/internal/services/keygen"
	"cipherlink/internal/services/message"
)

// Store kinds accepted in Config.Store.
const (
	StoreFile   = "file"
	StoreBadger = "badger"
	StoreMemory = "memory"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home            string        `yaml:"home"`          // state directory, e.g. $HOME/.cipherlink
	DirectoryURL    string        `yaml:"directory_url"` // key directory base URL
	Store           string        `yaml:"store"`         // file | badger | memory
	HTTPTimeout     time.Duration `yaml:"http_timeout"`
	PublishRetries  uint64        `yaml:"publish_retries"`
	OneTimePreKeys  int           `yaml:"one_time_prekeys"`
	MaxAuthFailures int           `yaml:"max_auth_failures"`
	Log             LogConfig     `yaml:"log"`

	Passphrase string       `yaml:"-"` // seals the file store's keys; never read from disk
	HTTP       *http.Client `yaml:"-"` // optional; defaults to a client with HTTPTimeout
}

// LogConfig selects the logger's level, encoding and destination.
type LogConfig struct {
	Level      string `yaml:"level"`  // debug | info | warn | error
	Format     string `yaml:"format"` // console | json
	File       string `yaml:"file"`   // empty logs to stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		Home:            filepath.Join(home, ".cipherlink"),
		DirectoryURL:    "http://127.0.0.1:8080",
		Store:           StoreFile,
		HTTPTimeout:     15 * time.Second,
		PublishRetries:  5,
		OneTimePreKeys:  keygen.DefaultOneTimePreKeys,
		MaxAuthFailures: message.DefaultMaxAuthFailures,
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path yields the
// defaults; a named file that does not exist is an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that would fail later during wiring.
func (c Config) Validate() error {
	var errs []error
	switch c.Store {
	case StoreFile, StoreBadger, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.Store != StoreMemory && c.Home == "" {
		errs = append(errs, errors.New("home is required"))
	}
	if c.OneTimePreKeys < 0 {
		errs = append(errs, fmt.Errorf("one_time_prekeys must be >= 0, got %d", c.OneTimePreKeys))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, fmt.Errorf("http_timeout must be >= 0, got %s", c.HTTPTimeout))
	}
	return errors.Join(errs...)
}
