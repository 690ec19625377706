package config

import "time"

const (
	DefaultGoogleStartPath    = "/oauth/google/start"
	DefaultGoogleCallbackPath = "/oauth/google/callback"
	DefaultSlackInstallPath   = "/slack/install"
	DefaultSlackCallbackPath  = "/slack/oauth_redirect"

	SecretsSourceEnv        = "env"
	SecretsSourceKubernetes = "kubernetes"

	LedgerMemory   = "memory"
	LedgerDatabase = "database"
)

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			PublicURL:       "http://localhost:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 20 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "data/credbroker.db",
		},
		State: StateConfig{
			Validity: 10 * time.Minute,
			Ledger:   LedgerDatabase,
		},
		Google: GoogleConfig{
			StartPath:    DefaultGoogleStartPath,
			CallbackPath: DefaultGoogleCallbackPath,
		},
		Slack: SlackConfig{
			BotScopes:    []string{"commands", "chat:write"},
			InstallPath:  DefaultSlackInstallPath,
			CallbackPath: DefaultSlackCallbackPath,
		},
		Secrets: SecretsConfig{
			Source: SecretsSourceEnv,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		HTTP: HTTPClientConfig{
			Timeout: 30 * time.Second,
		},
	}
}
