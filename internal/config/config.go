// Package config handles sqlentity tool configuration.
//
// Values come from a YAML file, then from SQLENTITY_* variables found in
// .env files or the process environment, then from command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/koba/sqlentity/internal/codec"
	"github.com/koba/sqlentity/internal/logging"
)

// CurrentConfigVersion is the current version of the config file format.
const CurrentConfigVersion = 1

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SQLENTITY_"

// Date storage formats.
const (
	DateString    = "string"
	DateTimestamp = "timestamp"
)

// Enum storage formats.
const (
	EnumByName    = "name"
	EnumByOrdinal = "ordinal"
)

// Config represents the sqlentity.yaml configuration file.
type Config struct {
	Version           int    `yaml:"version"`
	Database          string `yaml:"database"`
	BusyTimeoutMillis int    `yaml:"busy_timeout_ms,omitempty"`
	LogLevel          string `yaml:"log_level,omitempty"`
	DateFormat        string `yaml:"date_format,omitempty"`
	EnumStorage       string `yaml:"enum_storage,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Version:     CurrentConfigVersion,
		Database:    "sqlentity.db",
		LogLevel:    logging.DefaultLevel,
		DateFormat:  DateString,
		EnumStorage: EnumByName,
	}
}

// Load reads a Config from a file path. Keys missing from the file keep
// their default value.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault reads path, or returns Default when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes the Config to a file path.
func (c *Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	return enc.Encode(c)
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	if c.Version != CurrentConfigVersion {
		return errors.New("unsupported config version")
	}
	if strings.TrimSpace(c.Database) == "" {
		return errors.New("database path is required")
	}
	if c.BusyTimeoutMillis < 0 {
		return fmt.Errorf("busy timeout must not be negative, got %d", c.BusyTimeoutMillis)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.DateFormat {
	case DateString, DateTimestamp:
	default:
		return fmt.Errorf("date format must be %q or %q, got %q", DateString, DateTimestamp, c.DateFormat)
	}
	switch c.EnumStorage {
	case EnumByName, EnumByOrdinal:
	default:
		return fmt.Errorf("enum storage must be %q or %q, got %q", EnumByName, EnumByOrdinal, c.EnumStorage)
	}
	return nil
}

// Environment collects SQLENTITY_* variables from the given .env files and the
// process environment. Process variables win over file entries; missing files
// are skipped.
func Environment(files ...string) (map[string]string, error) {
	env := make(map[string]string)
	for _, file := range files {
		values, err := godotenv.Read(file)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		for k, v := range values {
			if strings.HasPrefix(k, EnvPrefix) {
				env[k] = v
			}
		}
	}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}
	return env, nil
}

// ApplyEnv overrides c with the SQLENTITY_* entries of env.
func (c *Config) ApplyEnv(env map[string]string) error {
	if v, ok := env[EnvPrefix+"DATABASE"]; ok {
		c.Database = v
	}
	if v, ok := env[EnvPrefix+"BUSY_TIMEOUT_MS"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sBUSY_TIMEOUT_MS: %w", EnvPrefix, err)
		}
		c.BusyTimeoutMillis = n
	}
	if v, ok := env[EnvPrefix+"LOG_LEVEL"]; ok {
		c.LogLevel = v
	}
	if v, ok := env[EnvPrefix+"DATE_FORMAT"]; ok {
		c.DateFormat = strings.ToLower(v)
	}
	if v, ok := env[EnvPrefix+"ENUM_STORAGE"]; ok {
		c.EnumStorage = strings.ToLower(v)
	}
	return nil
}

// Configure installs on r the serializers selected by c. enums are the
// enums whose storage follows EnumStorage; they must already be registered.
func (c *Config) Configure(r *codec.Registry, enums ...*codec.Enum) {
	if c.DateFormat == DateTimestamp {
		codec.RegisterFor[time.Time](r, codec.DateTimestamp)
	}
	if c.EnumStorage == EnumByOrdinal {
		for _, e := range enums {
			r.Register(e.Type(), codec.NewEnumInt(e))
		}
	}
}
