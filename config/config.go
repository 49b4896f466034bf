/*
Package config loads repledger configuration.

LAYERS (later wins):
  1. Defaults
  2. TOML file (optional, path from --config)
  3. .env file in the working directory (optional)
  4. Environment variables

ENVIRONMENT:
  REPLEDGER_PORT          HTTP port
  REPLEDGER_STORE         memory | sqlite
  REPLEDGER_SQLITE_PATH   database file (":memory:" allowed)
  REPLEDGER_LOG_LEVEL     debug | info | warn | error
  REPLEDGER_LOG_FORMAT    json | text

EXAMPLE FILE:
  [http]
  port = 8080
  allowed_origins = ["http://localhost:5173"]

  [store]
  backend = "sqlite"
  sqlite_path = "./data/repledger.db"

  [log]
  level = "info"
  format = "json"
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config is the full application configuration.
type Config struct {
	HTTP  HTTPConfig  `toml:"http"`
	Store StoreConfig `toml:"store"`
	Log   LogConfig   `toml:"log"`
}

type HTTPConfig struct {
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type StoreConfig struct {
	Backend    string `toml:"backend"`
	SQLitePath string `toml:"sqlite_path"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Port:           8080,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Store: StoreConfig{
			Backend:    BackendSQLite,
			SQLitePath: "repledger.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. An empty path skips the TOML layer; a
// missing .env file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("REPLEDGER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REPLEDGER_PORT %q: %w", v, err)
		}
		c.HTTP.Port = port
	}
	if v := os.Getenv("REPLEDGER_STORE"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("REPLEDGER_SQLITE_PATH"); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv("REPLEDGER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REPLEDGER_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want %s or %s)", c.Store.Backend, BackendMemory, BackendSQLite)
	}
	return nil
}
