package app

import (
	"credbroker/internal/config"
	"credbroker/internal/secrets"
)

// Config holds the application configuration
type Config struct {
	// Debug forces debug logging regardless of logging.level.
	Debug bool

	// Silent discards log output, for CLI commands that print their own results.
	Silent bool

	// ConfigPath is the YAML file to load. A missing file means defaults.
	ConfigPath string

	// Broker is loaded from ConfigPath when nil.
	Broker *config.Config

	// Secrets is loaded from Broker.Secrets when nil.
	Secrets *secrets.Material
}

// NewConfig creates a new application configuration
func NewConfig(debug, silent bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		Silent:     silent,
		ConfigPath: configPath,
	}
}
