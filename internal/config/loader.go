package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"credbroker/pkg/logging"
)

// EnvPrefix prefixes every environment override, e.g. CREDBROKER_SERVER_PORT.
const EnvPrefix = "CREDBROKER"

// Load reads the YAML file at path on top of the defaults and then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logging.Info("Config", "No config file found at %s, using defaults", path)
		case err != nil:
			return Config{}, fmt.Errorf("reading config from %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("error loading config from %s: %w", path, err)
			}
			logging.Info("Config", "Loaded configuration from %s", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("applying environment overrides: %w", err)
	}

	return cfg, nil
}
