// Package config loads engine settings from an optional YAML file, an
// optional .env file and the environment, in that order of precedence
// (environment wins).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"deal_engine/pkg/core/dscr"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// DefaultPath is read when no path is given.
const DefaultPath = "config/engine.yaml"

// Environment overrides.
const (
	EnvAddr           = "DEAL_ENGINE_ADDR"
	EnvDatabaseURL    = "DATABASE_URL"
	EnvTables         = "DEAL_ENGINE_TABLES"
	EnvLogLevel       = "DEAL_ENGINE_LOG_LEVEL"
	EnvLogFormat      = "DEAL_ENGINE_LOG_FORMAT"
	EnvScenarioDir    = "DEAL_ENGINE_SCENARIO_DIR"
	EnvConnectRetries = "DEAL_ENGINE_DB_RETRIES"
)

type Server struct {
	Addr string `yaml:"addr"`
}

type Database struct {
	URL            string `yaml:"url"`
	ConnectRetries uint   `yaml:"connect_retries"`
	// ScenarioDir is the file vault used when URL is empty.
	ScenarioDir string `yaml:"scenario_dir"`
}

type Tables struct {
	// Path replaces the embedded industry tables when set.
	Path string `yaml:"path"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Config is the full engine configuration.
type Config struct {
	Server   Server          `yaml:"server"`
	Database Database        `yaml:"database"`
	Tables   Tables          `yaml:"tables"`
	Log      Log             `yaml:"log"`
	DSCR     dscr.Thresholds `yaml:"dscr"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server:   Server{Addr: ":8080"},
		Database: Database{ConnectRetries: 5, ScenarioDir: ".cache/deal_scenarios"},
		Log:      Log{Level: "info", Format: "json"},
		DSCR:     dscr.DefaultThresholds(),
	}
}

// Load reads .env (if present), then the YAML file at path (if present),
// then applies environment overrides. A missing file is not an error; a
// malformed one is.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}

	if path == "" {
		path = DefaultPath
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if cfg, err = Parse(data); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&c.Server.Addr, EnvAddr)
	set(&c.Database.URL, EnvDatabaseURL)
	set(&c.Database.ScenarioDir, EnvScenarioDir)
	set(&c.Tables.Path, EnvTables)
	set(&c.Log.Level, EnvLogLevel)
	set(&c.Log.Format, EnvLogFormat)

	if v, ok := lookup(EnvConnectRetries); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConnectRetries, err)
		}
		c.Database.ConnectRetries = uint(n)
	}
	return nil
}

// Validate checks values the rest of the engine relies on.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is empty")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return c.DSCR.Validate()
}
