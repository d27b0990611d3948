package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 3, cfg.Trends.Months)
	assert.Equal(t, "5 0 1 * *", cfg.Daemon.InstantiateSchedule)
}

func TestSaveThenLoadKeepsOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "books", "config.toml")
	cfg := DefaultConfig()
	cfg.General.DefaultUser = "ana"
	cfg.Dashboard.HorizonDays = 45
	cfg.Security.PINHash = "$2a$10$abc"

	require.NoError(t, SaveFile(path, cfg))
	got, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[trends]\nthreshold_percent = 120\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 120.0, cfg.Trends.ThresholdPercent)
	assert.Equal(t, 3, cfg.Trends.Months)
	assert.Equal(t, 30, cfg.Dashboard.HorizonDays)
}

func TestEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()
	cfg.General.DBPath = "/from/config.db"
	cfg.Security.PINHash = "config-hash"

	t.Setenv("BOOKS_DB", "")
	t.Setenv("BOOKS_PIN_HASH", "")
	assert.Equal(t, "/from/config.db", DBPath(cfg))
	assert.Equal(t, "config-hash", GetPINHash(cfg))

	t.Setenv("BOOKS_DB", "/from/env.db")
	t.Setenv("BOOKS_PIN_HASH", "env-hash")
	assert.Equal(t, "/from/env.db", DBPath(cfg))
	assert.Equal(t, "env-hash", GetPINHash(cfg))
}

func TestXDGDirs(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg")
	t.Setenv("XDG_DATA_HOME", "/tmp/data")
	t.Setenv("BOOKS_DB", "")

	assert.Equal(t, "/tmp/cfg/books/config.toml", ConfigPath())
	assert.Equal(t, "/tmp/data/books", DataDir())
	assert.Equal(t, "/tmp/data/books/books.db", DBPath(DefaultConfig()))
}
