package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Storage backends of the local cache.
const (
	StorageSQLite = "sqlite"
	StorageDiskv  = "diskv"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "JOURNAL"

// Config holds runtime settings for the journal CLI.
type Config struct {
	ServerURL           string        `mapstructure:"server_url"`
	HealthAddr          string        `mapstructure:"health_addr"`
	OnlineCheckInterval time.Duration `mapstructure:"online_check_interval"`
	DataDir             string        `mapstructure:"data_dir"`
	Storage             string        `mapstructure:"storage"`
	Debounce            time.Duration `mapstructure:"debounce"`
	Timezone            string        `mapstructure:"timezone"`
	Watch               bool          `mapstructure:"watch"`
	Notify              bool          `mapstructure:"notify"`
	Verbose             bool          `mapstructure:"verbose"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.HealthAddr = "127.0.0.1:50051"
	c.OnlineCheckInterval = 3 * time.Second
	c.DataDir = "~/.journalkeeper"
	c.Storage = StorageSQLite
	c.Debounce = 600 * time.Millisecond
	c.Watch = true
}

func setDefaults(v *viper.Viper) {
	var d Config
	d.LoadDefaults()

	v.SetDefault("server_url", d.ServerURL)
	v.SetDefault("health_addr", d.HealthAddr)
	v.SetDefault("online_check_interval", d.OnlineCheckInterval)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("storage", d.Storage)
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("watch", d.Watch)
	v.SetDefault("notify", d.Notify)
	v.SetDefault("verbose", d.Verbose)
}

// Load resolves the configuration from v, which may already carry bound
// flags. A missing config file is not an error.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		path, err := homedir.Expand(file)
		if err != nil {
			return nil, fmt.Errorf("config path: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		dir, err := homedir.Expand(v.GetString("data_dir"))
		if err != nil {
			return nil, fmt.Errorf("data dir: %w", err)
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal: %w", err)
	}

	dir, err := homedir.Expand(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	cfg.DataDir = filepath.Clean(dir)
	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageSQLite, StorageDiskv:
	default:
		return fmt.Errorf("storage %q: want %s or %s", c.Storage, StorageSQLite, StorageDiskv)
	}
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must not be negative: %s", c.Debounce)
	}
	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("timezone %q: %w", tz, err)
		}
	}
	return nil
}

// Location is the zone that decides which calendar day "today" is.
func (c *Config) Location() *time.Location {
	if tz := strings.TrimSpace(c.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			return loc
		}
	}
	return time.Local
}

// SQLitePath is the database file of the sqlite backend.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "journal.db")
}

// DiskvPath is the root directory of the diskv backend.
func (c *Config) DiskvPath() string {
	return filepath.Join(c.DataDir, "store")
}
