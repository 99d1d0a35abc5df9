package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the content server endpoint configuration
type ServerConfig struct {
	URL                string `mapstructure:"url"`                  // Base URL of the content server
	DataTimeout        int    `mapstructure:"data_timeout"`         // Archive download timeout, seconds
	LaunchParamTimeout int    `mapstructure:"launch_param_timeout"` // Launch parameter download timeout, seconds
}

// CacheConfig holds the local download cache configuration
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
}

// SyncConfig holds synchronization behavior configuration
type SyncConfig struct {
	LocalOnly bool   `mapstructure:"local_only"` // Treat existing local data as authoritative, skip all network calls
	TargetDir string `mapstructure:"target_dir"` // Root under which per-title target directories live
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:                "https://api.boxcat.dev",
			DataTimeout:        30,
			LaunchParamTimeout: 10,
		},
		Cache: CacheConfig{
			Dir: defaultCachePath(),
		},
		Sync: SyncConfig{
			LocalOnly: false,
			TargetDir: defaultTargetPath(),
		},
		Logging: LoggingConfig{
			File:  defaultLogPath(),
			Level: "INFO",
		},
	}
}

// defaultLogPath returns the default log file path for the current OS
func defaultLogPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "boxcat", "boxcat.log")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "boxcat", "boxcat.log")
	}
}

// defaultConfigPath returns the default config file path for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "boxcat")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "boxcat")
	}
}

// defaultCachePath returns the default cache directory path for the current OS
func defaultCachePath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "boxcat", "cache")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "boxcat", "cache")
	}
}

// defaultTargetPath returns the default target directory root for the current OS
func defaultTargetPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("LOCALAPPDATA"), "boxcat", "titles")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "boxcat", "titles")
	}
}

// LoadConfig loads configuration from file and environment
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultConfigPath())
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("BOXCAT")
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the current configuration to file
func SaveConfig(cfg *Config) error {
	configPath := defaultConfigPath()

	// Ensure config directory exists
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set fields individually to ensure correct key names (snake_case)
	viper.Set("server.url", cfg.Server.URL)
	viper.Set("server.data_timeout", cfg.Server.DataTimeout)
	viper.Set("server.launch_param_timeout", cfg.Server.LaunchParamTimeout)

	viper.Set("cache.dir", cfg.Cache.Dir)

	viper.Set("sync.local_only", cfg.Sync.LocalOnly)
	viper.Set("sync.target_dir", cfg.Sync.TargetDir)

	viper.Set("logging.file", cfg.Logging.File)
	viper.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(configPath, "config.yaml")
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ClearCache removes all cached downloads
func ClearCache(cfg *Config) error {
	if err := os.RemoveAll(cfg.Cache.Dir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}
