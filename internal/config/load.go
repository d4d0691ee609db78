package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/ponchovillalobos/maity-desktop/internal/logging"
)

// GetConfigPath returns the config file location, creating the parent
// directory if needed.
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	maityDir := filepath.Join(configDir, "maity")
	if err := os.MkdirAll(maityDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(maityDir, "config.toml"), nil
}

// Load reads the config file, filling in defaults. A missing file is
// not an error: the daemon runs with defaults until one is written.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom reads configuration from an explicit path.
func LoadFrom(configPath string) (*Config, error) {
	log := logging.Component("config")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Info().Str("path", configPath).Msg("no config file, using defaults")
		return DefaultConfig(), nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	config := DefaultConfig()
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if config.Providers == nil {
		config.Providers = make(map[string]ProviderConfig)
	}
	config.applyDefaults()

	log.Info().Str("path", configPath).Str("provider", config.Transcription.Provider).Msg("configuration loaded")
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Recording.SampleRate == 0 {
		c.Recording.SampleRate = 16000
	}
	if c.Recording.Channels == 0 {
		c.Recording.Channels = 1
	}
	if c.Recording.ChannelBufferSize == 0 {
		c.Recording.ChannelBufferSize = 64
	}
	if c.Pipeline.QueueCapacity == 0 {
		c.Pipeline.QueueCapacity = 2000
	}
	if c.Pipeline.EnqueueTimeout == 0 {
		c.Pipeline.EnqueueTimeout = DefaultConfig().Pipeline.EnqueueTimeout
	}
	if c.Pipeline.DrainTimeout == 0 {
		c.Pipeline.DrainTimeout = DefaultConfig().Pipeline.DrainTimeout
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9464"
	}
}

// MeetingDir resolves the directory meeting folders are written under.
func (c *Config) MeetingDir() (string, error) {
	if c.Recording.MeetingDir != "" {
		return c.Recording.MeetingDir, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(configDir, "maity", "meetings"), nil
}
