package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// Validate checks the configuration and reports every problem at once.
func (c Config) Validate() error {
	var result *multierror.Error
	add := func(field, format string, args ...interface{}) {
		result = multierror.Append(result, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port", "must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		add("database.driver", "must be sqlite or postgres, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		add("database.dsn", "is required")
	}

	if c.State.Validity <= 0 {
		add("state.validity", "must be positive")
	}
	if c.State.SingleUse {
		switch c.State.Ledger {
		case LedgerMemory, LedgerDatabase:
		default:
			add("state.ledger", "must be %s or %s, got %q", LedgerMemory, LedgerDatabase, c.State.Ledger)
		}
	}

	if c.Google.Enabled || c.Slack.Enabled {
		u, err := url.Parse(c.Server.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			add("server.publicUrl", "must be an absolute URL when an OAuth flow is enabled")
		}
	}
	if c.Google.Enabled {
		if c.Google.ClientID == "" {
			add("google.clientId", "is required when google is enabled")
		}
		validatePath(add, "google.startPath", c.Google.StartPath)
		validatePath(add, "google.callbackPath", c.Google.CallbackPath)
	}
	if c.Slack.Enabled {
		if c.Slack.ClientID == "" {
			add("slack.clientId", "is required when slack is enabled")
		}
		if len(c.Slack.BotScopes) == 0 && len(c.Slack.UserScopes) == 0 {
			add("slack.botScopes", "at least one bot or user scope is required")
		}
		validatePath(add, "slack.installPath", c.Slack.InstallPath)
		validatePath(add, "slack.callbackPath", c.Slack.CallbackPath)
	}

	switch c.Secrets.Source {
	case SecretsSourceEnv:
	case SecretsSourceKubernetes:
		if c.Secrets.Name == "" {
			add("secrets.name", "is required for the kubernetes source")
		}
	default:
		add("secrets.source", "must be %s or %s, got %q", SecretsSourceEnv, SecretsSourceKubernetes, c.Secrets.Source)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		add("logging.format", "must be text or json, got %q", c.Logging.Format)
	}

	if c.HTTP.Timeout <= 0 {
		add("http.timeout", "must be positive")
	}

	return result.ErrorOrNil()
}

func validatePath(add func(string, string, ...interface{}), field, path string) {
	if !strings.HasPrefix(path, "/") {
		add(field, "must start with /, got %q", path)
	}
}
