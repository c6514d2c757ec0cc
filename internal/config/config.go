// Package config loads user settings from ~/.opensig/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/majorcontext/opensig/internal/log"
	"github.com/majorcontext/opensig/internal/network"
)

// Config holds global settings.
type Config struct {
	// DefaultChain is used by commands that take --chain when it is omitted.
	DefaultChain network.ChainID `yaml:"default_chain"`

	CallTimeout    time.Duration `yaml:"call_timeout"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`

	// NetworksFile overlays the built-in network table. Relative paths are
	// resolved against the config directory.
	NetworksFile string `yaml:"networks_file"`

	Debug   DebugConfig   `yaml:"debug"`
	Journal JournalConfig `yaml:"journal"`
	Signer  SignerConfig  `yaml:"signer"`
}

// DebugConfig controls the debug log files.
type DebugConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

// JournalConfig controls the local activity journal.
type JournalConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// SignerConfig selects the signing key.
type SignerConfig struct {
	// Key names an entry in the keystore.
	Key string `yaml:"key"`
	// KeyRef is a secret reference (env://, awssm://) holding a hex private
	// key. It takes precedence over Key.
	KeyRef string `yaml:"key_ref"`
}

// Defaults.
const (
	DefaultCallTimeout    = 30 * time.Second
	DefaultConfirmTimeout = 10 * time.Minute
	DefaultPollInterval   = time.Second
	DefaultRetentionDays  = 14
	DefaultKeyName        = "default"
)

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultChain:   137,
		CallTimeout:    DefaultCallTimeout,
		ConfirmTimeout: DefaultConfirmTimeout,
		PollInterval:   DefaultPollInterval,
		Debug:          DebugConfig{RetentionDays: DefaultRetentionDays},
		Signer:         SignerConfig{Key: DefaultKeyName},
	}
}

// Dir returns the opensig home: $OPENSIG_HOME, else ~/.opensig.
func Dir() string {
	if d := os.Getenv("OPENSIG_HOME"); d != "" {
		return d
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".opensig")
	}
	return filepath.Join(home, ".opensig")
}

// Path returns the default config file path.
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads the config file at path ("" for the default) and applies
// environment overrides. A missing file yields defaults. A malformed file
// is logged and ignored.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		file := Default()
		if err := yaml.Unmarshal(data, file); err != nil {
			log.Warn("ignoring malformed config file", "path", path, "error", err)
		} else {
			cfg = file
		}
	}

	applyEnv(cfg)
	cfg.fill()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENSIG_CHAIN"); v != "" {
		if id, err := network.ParseChainID(v); err == nil {
			cfg.DefaultChain = id
		} else {
			log.Warn("ignoring OPENSIG_CHAIN", "value", v, "error", err)
		}
	}
	if v := os.Getenv("OPENSIG_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.CallTimeout = d
		} else {
			log.Warn("ignoring OPENSIG_CALL_TIMEOUT", "value", v)
		}
	}
}

// fill replaces zero or negative values with defaults.
func (c *Config) fill() {
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.ConfirmTimeout < 0 {
		c.ConfirmTimeout = DefaultConfirmTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Debug.RetentionDays <= 0 {
		c.Debug.RetentionDays = DefaultRetentionDays
	}
	if c.Signer.Key == "" {
		c.Signer.Key = DefaultKeyName
	}
}

func resolve(p, def string) string {
	if p == "" {
		return filepath.Join(Dir(), def)
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(Dir(), p)
}

// JournalPath returns the journal database path.
func (c *Config) JournalPath() string { return resolve(c.Journal.Path, "journal.db") }

// NetworksPath returns the network overlay path.
func (c *Config) NetworksPath() string { return resolve(c.NetworksFile, "networks.yaml") }

// DebugDir returns the debug log directory.
func DebugDir() string { return filepath.Join(Dir(), "debug") }

// KeysDir returns the file-backend keystore directory.
func KeysDir() string { return filepath.Join(Dir(), "keys") }
