package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ConfigVersion is written by SaveConfig for new configs.
const ConfigVersion = "1"

// Config represents the flat dispatch configuration
type Config struct {
	Version       string `json:"version"`
	DBDriver      string `json:"db_driver,omitempty"`      // "sqlite" or "postgres"
	DBPath        string `json:"db_path,omitempty"`        // sqlite file
	DBDSN         string `json:"db_dsn,omitempty"`         // postgres DSN
	RedisAddr     string `json:"redis_addr,omitempty"`     // empty disables Redis
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
	EventChannel  string `json:"event_channel,omitempty"` // Redis pub/sub channel
	LogLevel      string `json:"log_level,omitempty"`
	LogFormat     string `json:"log_format,omitempty"` // "text" or "json"
	HTTPAddr      string `json:"http_addr,omitempty"`
	Operator      string `json:"operator,omitempty"` // default scanned_by for CLI commands
}

// Default returns a config with every optional field filled in.
func Default() *Config {
	return &Config{
		Version:   ConfigVersion,
		DBDriver:  DriverSQLite,
		LogLevel:  logrus.InfoLevel.String(),
		LogFormat: FormatText,
		HTTPAddr:  ":8080",
	}
}

// LoadConfig reads .dispatch/config.json from the specified directory.
// Returns error if no config found - caller should handle accordingly.
func LoadConfig(dir string) (*Config, error) {
	path := filepath.Join(dir, ".dispatch", "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes config.json to directory
func SaveConfig(dir string, cfg *Config) error {
	dispatchDir := filepath.Join(dir, ".dispatch")
	if err := os.MkdirAll(dispatchDir, 0755); err != nil {
		return fmt.Errorf("failed to create .dispatch dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dispatchDir, "config.json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Resolve builds the effective configuration for dir: defaults, then
// .dispatch/config.json if present, then dir/.env, then DISPATCH_*
// environment variables. Variables already set in the environment win
// over .env entries.
func Resolve(dir string) (*Config, error) {
	cfg := Default()

	fileCfg, err := LoadConfig(dir)
	switch {
	case err == nil:
		cfg.merge(fileCfg)
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge copies the non-empty fields of other onto c.
func (c *Config) merge(other *Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&c.Version, other.Version)
	setString(&c.DBDriver, other.DBDriver)
	setString(&c.DBPath, other.DBPath)
	setString(&c.DBDSN, other.DBDSN)
	setString(&c.RedisAddr, other.RedisAddr)
	setString(&c.RedisPassword, other.RedisPassword)
	setString(&c.EventChannel, other.EventChannel)
	setString(&c.LogLevel, other.LogLevel)
	setString(&c.LogFormat, other.LogFormat)
	setString(&c.HTTPAddr, other.HTTPAddr)
	setString(&c.Operator, other.Operator)
	if other.RedisDB != 0 {
		c.RedisDB = other.RedisDB
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	fields := map[string]*string{
		"DISPATCH_DB_DRIVER":      &c.DBDriver,
		"DISPATCH_DB_PATH":        &c.DBPath,
		"DISPATCH_DB_DSN":         &c.DBDSN,
		"DISPATCH_REDIS_ADDR":     &c.RedisAddr,
		"DISPATCH_REDIS_PASSWORD": &c.RedisPassword,
		"DISPATCH_EVENT_CHANNEL":  &c.EventChannel,
		"DISPATCH_LOG_LEVEL":      &c.LogLevel,
		"DISPATCH_LOG_FORMAT":     &c.LogFormat,
		"DISPATCH_HTTP_ADDR":      &c.HTTPAddr,
		"DISPATCH_OPERATOR":       &c.Operator,
	}
	for key, dst := range fields {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("DISPATCH_REDIS_DB"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DISPATCH_REDIS_DB %q: %w", v, err)
		}
		c.RedisDB = n
	}
	return nil
}

// Validate checks that the driver settings are consistent.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("db_driver %q requires db_dsn", c.DBDriver)
		}
	default:
		return fmt.Errorf("unknown db_driver %q", c.DBDriver)
	}

	switch c.LogFormat {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

// NewLogger builds the process logger described by c. Logs go to stderr so
// command output on stdout stays clean.
func NewLogger(c *Config) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log_level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	if c.LogFormat == FormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
