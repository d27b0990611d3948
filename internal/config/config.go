// Package config loads and saves the books configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

const appName = "books"

// Config holds all books configuration.
type Config struct {
	General   GeneralConfig   `toml:"general"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Trends    TrendsConfig    `toml:"trends"`
	Daemon    DaemonConfig    `toml:"daemon"`
	Security  SecurityConfig  `toml:"security"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	DBPath      string `toml:"db_path,omitempty"`
	Currency    string `toml:"currency"`
	DefaultUser string `toml:"default_user,omitempty"`
}

// DashboardConfig controls the payment overview.
type DashboardConfig struct {
	HorizonDays int `toml:"horizon_days"`
}

// TrendsConfig tunes overspend detection.
type TrendsConfig struct {
	Months           int     `toml:"months"`
	ThresholdPercent float64 `toml:"threshold_percent"`
}

// DaemonConfig holds the background service settings.
type DaemonConfig struct {
	Addr                string `toml:"addr"`
	PollSeconds         int    `toml:"poll_seconds"`
	InstantiateSchedule string `toml:"instantiate_schedule"`
	EventsBuffer        int    `toml:"events_buffer"`
}

// PollInterval returns PollSeconds as a duration.
func (d DaemonConfig) PollInterval() time.Duration {
	return time.Duration(d.PollSeconds) * time.Second
}

// SecurityConfig holds the PIN that authorizes destructive actions.
type SecurityConfig struct {
	PINHash string `toml:"pin_hash,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			Currency: "COP",
		},
		Dashboard: DashboardConfig{
			HorizonDays: 30,
		},
		Trends: TrendsConfig{
			Months:           3,
			ThresholdPercent: 110,
		},
		Daemon: DaemonConfig{
			Addr:                "127.0.0.1:8787",
			PollSeconds:         60,
			InstantiateSchedule: "5 0 1 * *",
			EventsBuffer:        200,
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DataDir returns the XDG-compliant data directory holding the database and
// daemon state.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFile(ConfigPath())
}

// LoadFile reads the config at path over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	return SaveFile(ConfigPath(), cfg)
}

// SaveFile writes cfg to path, creating the directory if needed.
func SaveFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// DBPath returns the database path from BOOKS_DB, the config, or the data
// directory, in that order.
func DBPath(cfg Config) string {
	if p := os.Getenv("BOOKS_DB"); p != "" {
		return p
	}
	if cfg.General.DBPath != "" {
		return cfg.General.DBPath
	}
	return filepath.Join(DataDir(), "books.db")
}

// GetPINHash returns the PIN hash from env var or config, in that order.
func GetPINHash(cfg Config) string {
	if h := os.Getenv("BOOKS_PIN_HASH"); h != "" {
		return h
	}
	return cfg.Security.PINHash
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
