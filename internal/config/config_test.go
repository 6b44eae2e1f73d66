package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/sqlentity/internal/codec"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqlentity.yaml")

	cfg := Default()
	cfg.Database = "/var/lib/catalog.db"
	cfg.DateFormat = DateTimestamp
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqlentity.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\ndatabase: books.db\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "books.db", cfg.Database)
	assert.Equal(t, DateString, cfg.DateFormat)
	assert.Equal(t, EnumByName, cfg.EnumStorage)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	cfg, err := LoadOrDefault(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("version: [1"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"version", func(c *Config) { c.Version = 2 }, "unsupported config version"},
		{"database", func(c *Config) { c.Database = " " }, "database path is required"},
		{"busy timeout", func(c *Config) { c.BusyTimeoutMillis = -1 }, "busy timeout must not be negative"},
		{"log level", func(c *Config) { c.LogLevel = "verbose" }, "invalid log level"},
		{"date format", func(c *Config) { c.DateFormat = "epoch" }, "date format must be"},
		{"enum storage", func(c *Config) { c.EnumStorage = "index" }, "enum storage must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"SQLENTITY_DATABASE=from-file.db\nSQLENTITY_LOG_LEVEL=debug\nOTHER=ignored\n",
	), 0o644))
	t.Setenv("SQLENTITY_LOG_LEVEL", "error")

	env, err := Environment(envFile, filepath.Join(dir, "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-file.db", env["SQLENTITY_DATABASE"])
	assert.Equal(t, "error", env["SQLENTITY_LOG_LEVEL"])
	assert.NotContains(t, env, "OTHER")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(map[string]string{
		"SQLENTITY_DATABASE":        "env.db",
		"SQLENTITY_BUSY_TIMEOUT_MS": "250",
		"SQLENTITY_DATE_FORMAT":     "TIMESTAMP",
		"SQLENTITY_ENUM_STORAGE":    "Ordinal",
	}))
	assert.Equal(t, "env.db", cfg.Database)
	assert.Equal(t, 250, cfg.BusyTimeoutMillis)
	assert.Equal(t, DateTimestamp, cfg.DateFormat)
	assert.Equal(t, EnumByOrdinal, cfg.EnumStorage)
	assert.NoError(t, cfg.Validate())

	err := cfg.ApplyEnv(map[string]string{"SQLENTITY_BUSY_TIMEOUT_MS": "soon"})
	assert.ErrorContains(t, err, "SQLENTITY_BUSY_TIMEOUT_MS")
}

type level int32

func TestConfigure(t *testing.T) {
	levels := codec.NewEnum[level]("LOW", "HIGH")
	timeType := reflect.TypeOf((*time.Time)(nil)).Elem()

	r := codec.NewRegistry()
	r.RegisterEnum(levels)
	Default().Configure(r, levels)

	s, err := r.Lookup(timeType, true)
	require.NoError(t, err)
	assert.Equal(t, codec.AffinityText, s.Affinity())
	s, err = r.Lookup(levels.Type(), true)
	require.NoError(t, err)
	assert.Equal(t, codec.AffinityText, s.Affinity())

	cfg := Default()
	cfg.DateFormat = DateTimestamp
	cfg.EnumStorage = EnumByOrdinal
	cfg.Configure(r, levels)

	s, err = r.Lookup(timeType, true)
	require.NoError(t, err)
	assert.Equal(t, codec.DateTimestamp, s)
	s, err = r.Lookup(levels.Type(), true)
	require.NoError(t, err)
	assert.Equal(t, codec.AffinityInteger, s.Affinity())
}
