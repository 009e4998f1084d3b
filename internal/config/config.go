// Package config handles configuration for querychat.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/diogo/querychat/internal/models"
)

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style" env:"GLAMOUR_STYLE"` // "dark", "light", "notty" or path to JSON theme
	EnableEmoji      bool   `json:"enable_emoji"`              // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines"`         // Preserve original line breaks
	TableWrap        bool   `json:"table_wrap"`                // Enable word wrap in table cells
	InlineTableLinks bool   `json:"inline_table_links"`        // Render links inline in tables
}

// Config represents the user configuration
type Config struct {
	// BaseURL is the scheme://host[:port] of the chat backend.
	BaseURL string `json:"base_url" env:"QUERYCHAT_BASE_URL"`
	// Endpoint selects which backend route answers queries: "chat" or "analyze".
	Endpoint string `json:"endpoint" env:"QUERYCHAT_ENDPOINT"`
	// TimeoutSeconds bounds a single request. Zero disables the client timeout.
	TimeoutSeconds int `json:"timeout_seconds" env:"QUERYCHAT_TIMEOUT_SECONDS"`
	// Verbose switches the diagnostic log to development mode at debug level.
	Verbose bool `json:"verbose" env:"QUERYCHAT_VERBOSE"`
	// LogFile receives diagnostics. "stderr" is accepted for line-mode use.
	LogFile         string         `json:"log_file,omitempty" env:"QUERYCHAT_LOG_FILE"`
	SaveImages      bool           `json:"save_images" env:"QUERYCHAT_SAVE_IMAGES"`
	DownloadDir     string         `json:"download_dir,omitempty" env:"QUERYCHAT_DOWNLOAD_DIR"` // Directory for saving images
	CopyToClipboard bool           `json:"copy_to_clipboard"`
	Markdown        MarkdownConfig `json:"markdown,omitempty"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
		InlineTableLinks: false,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		BaseURL:         models.DefaultBaseURL,
		Endpoint:        models.EndpointNameChat,
		TimeoutSeconds:  120,
		Verbose:         false,
		LogFile:         filepath.Join(homeDir, ".querychat", "querychat.log"),
		SaveImages:      false,
		DownloadDir:     filepath.Join(homeDir, ".querychat", "images"),
		CopyToClipboard: false,
		Markdown:        DefaultMarkdownConfig(),
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".querychat"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetDownloadDir returns the download directory from config, creating it if necessary
func GetDownloadDir(cfg Config) (string, error) {
	dir := cfg.DownloadDir
	if dir == "" {
		configDir, err := GetConfigDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(configDir, "images")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	return dir, nil
}

// LoadConfig loads the configuration from disk and applies .env and
// environment overrides on top of it.
func LoadConfig() (Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom loads the configuration from an explicit path
func LoadConfigFrom(configPath string) (Config, error) {
	cfg, err := ReadConfigFile(configPath)
	if err != nil {
		return cfg, err
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// ReadConfigFile reads the file at configPath over the defaults, without
// environment overrides. A missing file yields the defaults.
func ReadConfigFile(configPath string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// Use defaults if config doesn't exist
	default:
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	return cfg, nil
}

// applyEnv overlays .env and process environment values.
// godotenv never overrides variables that are already set.
func applyEnv(cfg *Config) error {
	_ = godotenv.Load()

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	if _, err := EnsureConfigDir(); err != nil {
		return err
	}
	return SaveConfigTo(cfg, configPath)
}

// SaveConfigTo saves the configuration to an explicit path
func SaveConfigTo(cfg Config, configPath string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration is usable
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url must start with http:// or https://, got %q", c.BaseURL)
	}
	if c.Endpoint != models.EndpointNameChat && c.Endpoint != models.EndpointNameAnalyze {
		return fmt.Errorf("endpoint must be %q or %q, got %q", models.EndpointNameChat, models.EndpointNameAnalyze, c.Endpoint)
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds cannot be negative")
	}
	return nil
}

// SettableKeys lists the keys accepted by Set
func SettableKeys() []string {
	return []string{
		"base_url",
		"endpoint",
		"timeout_seconds",
		"verbose",
		"log_file",
		"save_images",
		"download_dir",
		"copy_to_clipboard",
		"markdown.style",
	}
}

// Set assigns a single key from its string form
func (c *Config) Set(key, value string) error {
	switch key {
	case "base_url":
		c.BaseURL = strings.TrimRight(value, "/")
	case "endpoint":
		c.Endpoint = value
	case "timeout_seconds":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("timeout_seconds: %w", err)
		}
		c.TimeoutSeconds = n
	case "verbose", "save_images", "copy_to_clipboard":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		switch key {
		case "verbose":
			c.Verbose = b
		case "save_images":
			c.SaveImages = b
		default:
			c.CopyToClipboard = b
		}
	case "log_file":
		c.LogFile = value
	case "download_dir":
		c.DownloadDir = value
	case "markdown.style":
		c.Markdown.Style = value
	default:
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(SettableKeys(), ", "))
	}
	return c.Validate()
}
