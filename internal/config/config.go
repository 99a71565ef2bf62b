package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const appName = "oracle"

// Defaults written to a fresh config file
const (
	DefaultUserID         = "local"
	DefaultBaseURL        = "https://openrouter.ai/api/v1"
	DefaultModel          = "anthropic/claude-3.5-sonnet"
	DefaultTemperature    = 0.7
	DefaultFullMaxTokens  = 1000
	DefaultQuickMaxTokens = 200
	DefaultTimeout        = "30s"
	DefaultAppTitle       = "Oracle Tarot"
	DefaultLogLevel       = "warn"
)

// Config represents the application configuration
type Config struct {
	UserID      string           `toml:"user_id"`
	CatalogPath string           `toml:"catalog_path"`
	Completion  CompletionConfig `toml:"completion"`
	Storage     StorageConfig    `toml:"storage"`
	Images      ImagesConfig     `toml:"images"`
	Log         LogConfig        `toml:"log"`
}

// CompletionConfig points at an OpenAI-compatible chat completions API
type CompletionConfig struct {
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	FullMaxTokens  int     `toml:"full_max_tokens"`
	QuickMaxTokens int     `toml:"quick_max_tokens"`
	Timeout        string  `toml:"timeout"`
	Referer        string  `toml:"referer"`
	AppTitle       string  `toml:"app_title"`
}

type StorageConfig struct {
	Database string `toml:"database"`
}

type ImagesConfig struct {
	Dir string `toml:"dir"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns the configuration used when no file exists yet
func Default() *Config {
	return &Config{
		UserID: DefaultUserID,
		Completion: CompletionConfig{
			BaseURL:        DefaultBaseURL,
			Model:          DefaultModel,
			Temperature:    DefaultTemperature,
			FullMaxTokens:  DefaultFullMaxTokens,
			QuickMaxTokens: DefaultQuickMaxTokens,
			Timeout:        DefaultTimeout,
			AppTitle:       DefaultAppTitle,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// GetXDGDataHome returns XDG_DATA_HOME or default path
func GetXDGDataHome() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return xdgData
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".local", "share")
}

// GetXDGConfigHome returns XDG_CONFIG_HOME or default path
func GetXDGConfigHome() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return xdgConfig
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config")
}

// GetXDGCacheHome returns XDG_CACHE_HOME or default path
func GetXDGCacheHome() string {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return xdgCache
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".cache")
}

// GetConfigFilePath returns the path to the config file
func GetConfigFilePath() string {
	return filepath.Join(GetXDGConfigHome(), appName, "config.toml")
}

// GetDataDir returns the directory holding the history database
func GetDataDir() string {
	return filepath.Join(GetXDGDataHome(), appName)
}

// GetCacheDir returns the directory for rendered card art
func GetCacheDir() string {
	return filepath.Join(GetXDGCacheHome(), appName)
}

// DatabasePath returns the configured history database or the default one
func (c *Config) DatabasePath() string {
	if c.Storage.Database != "" {
		return c.Storage.Database
	}
	return filepath.Join(GetDataDir(), "history.db")
}

// Timeout parses completion.timeout; empty means the default
func (c *Config) Timeout() (time.Duration, error) {
	raw := strings.TrimSpace(c.Completion.Timeout)
	if raw == "" {
		raw = DefaultTimeout
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid completion.timeout %q: %w", c.Completion.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid completion.timeout %q: must be positive", c.Completion.Timeout)
	}
	return d, nil
}

// Load loads the config file from the default location
func Load() (*Config, error) {
	return LoadFrom(GetConfigFilePath())
}

// LoadFrom reads the config at path, creating it with defaults if missing,
// then applies .env and environment overrides.
func LoadFrom(path string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadFile reads the config at path without environment overrides.
// A missing file is created with defaults.
func LoadFile(path string) (*Config, error) {
	// Create default config if it doesn't exist
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config as TOML, creating parent directories
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(c); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	return nil
}

// Keys lists the settings accepted by Set
var Keys = []string{
	"user_id",
	"catalog_path",
	"completion.api_key",
	"completion.base_url",
	"completion.model",
	"completion.temperature",
	"completion.full_max_tokens",
	"completion.quick_max_tokens",
	"completion.timeout",
	"completion.referer",
	"completion.app_title",
	"storage.database",
	"images.dir",
	"log.level",
}

// Set updates one setting by its dotted TOML key
func (c *Config) Set(key, value string) error {
	switch key {
	case "user_id":
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("user_id cannot be empty")
		}
		c.UserID = value
	case "catalog_path":
		c.CatalogPath = value
	case "completion.api_key":
		c.Completion.APIKey = value
	case "completion.base_url":
		c.Completion.BaseURL = value
	case "completion.model":
		c.Completion.Model = value
	case "completion.temperature":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 || f > 2 {
			return fmt.Errorf("completion.temperature must be greater than 0 and at most 2, got %q", value)
		}
		c.Completion.Temperature = f
	case "completion.full_max_tokens", "completion.quick_max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %q", key, value)
		}
		if key == "completion.full_max_tokens" {
			c.Completion.FullMaxTokens = n
		} else {
			c.Completion.QuickMaxTokens = n
		}
	case "completion.timeout":
		prev := c.Completion.Timeout
		c.Completion.Timeout = value
		if _, err := c.Timeout(); err != nil {
			c.Completion.Timeout = prev
			return err
		}
	case "completion.referer":
		c.Completion.Referer = value
	case "completion.app_title":
		c.Completion.AppTitle = value
	case "storage.database":
		c.Storage.Database = value
	case "images.dir":
		c.Images.Dir = value
	case "log.level":
		c.Log.Level = strings.ToLower(value)
	default:
		return fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}

// applyEnv overrides file settings with the environment
func (c *Config) applyEnv() {
	if v := firstEnv("OPENROUTER_API_KEY", "ORACLE_API_KEY"); v != "" {
		c.Completion.APIKey = v
	}
	if v := os.Getenv("ORACLE_BASE_URL"); v != "" {
		c.Completion.BaseURL = v
	}
	if v := os.Getenv("ORACLE_MODEL"); v != "" {
		c.Completion.Model = v
	}
	if v := os.Getenv("ORACLE_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("ORACLE_DATABASE"); v != "" {
		c.Storage.Database = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// loadDotEnv reads .env from the working directory. Variables already set in
// the environment win; a missing file is not an error.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env: %w", err)
	}
	return nil
}
