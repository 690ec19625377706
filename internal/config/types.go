package config

import (
	"strings"
	"time"
)

// Config is the top-level configuration structure for credbroker.
type Config struct {
	Server   ServerConfig     `yaml:"server" split_words:"true"`
	Database DatabaseConfig   `yaml:"database" split_words:"true"`
	State    StateConfig      `yaml:"state" split_words:"true"`
	Google   GoogleConfig     `yaml:"google" split_words:"true"`
	Slack    SlackConfig      `yaml:"slack" split_words:"true"`
	Secrets  SecretsConfig    `yaml:"secrets" split_words:"true"`
	Logging  LoggingConfig    `yaml:"logging" split_words:"true"`
	HTTP     HTTPClientConfig `yaml:"http" split_words:"true"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host,omitempty" split_words:"true"`
	Port            int           `yaml:"port,omitempty" split_words:"true"`
	PublicURL       string        `yaml:"publicUrl,omitempty" split_words:"true"` // Externally reachable base URL used for redirect URIs
	ReadTimeout     time.Duration `yaml:"readTimeout,omitempty" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"writeTimeout,omitempty" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty" split_words:"true"`
}

// DatabaseConfig selects the credential store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver,omitempty" split_words:"true"` // sqlite or postgres
	DSN    string `yaml:"dsn,omitempty" split_words:"true"`
}

// StateConfig configures OAuth state tokens.
type StateConfig struct {
	Validity  time.Duration `yaml:"validity,omitempty" split_words:"true"`
	SingleUse bool          `yaml:"singleUse,omitempty" split_words:"true"`
	Ledger    string        `yaml:"ledger,omitempty" split_words:"true"` // memory or database, used when singleUse is set
}

// GoogleConfig configures the Google Sheets authorization flow. The client
// secret is secret material and is loaded by the secrets package.
type GoogleConfig struct {
	Enabled      bool     `yaml:"enabled,omitempty" split_words:"true"`
	ClientID     string   `yaml:"clientId,omitempty" split_words:"true"`
	Scopes       []string `yaml:"scopes,omitempty" split_words:"true"`
	StartPath    string   `yaml:"startPath,omitempty" split_words:"true"`
	CallbackPath string   `yaml:"callbackPath,omitempty" split_words:"true"`
	AuthURL      string   `yaml:"authUrl,omitempty" split_words:"true"`
	TokenURL     string   `yaml:"tokenUrl,omitempty" split_words:"true"`
	RevokeURL    string   `yaml:"revokeUrl,omitempty" split_words:"true"`
}

// SlackConfig configures the Slack installation flow.
type SlackConfig struct {
	Enabled      bool     `yaml:"enabled,omitempty" split_words:"true"`
	ClientID     string   `yaml:"clientId,omitempty" split_words:"true"`
	BotScopes    []string `yaml:"botScopes,omitempty" split_words:"true"`
	UserScopes   []string `yaml:"userScopes,omitempty" split_words:"true"`
	InstallPath  string   `yaml:"installPath,omitempty" split_words:"true"`
	CallbackPath string   `yaml:"callbackPath,omitempty" split_words:"true"`
	AuthorizeURL string   `yaml:"authorizeUrl,omitempty" split_words:"true"`
	AccessURL    string   `yaml:"accessUrl,omitempty" split_words:"true"`
}

// SecretsConfig selects where key material and client secrets come from.
type SecretsConfig struct {
	Source     string `yaml:"source,omitempty" split_words:"true"` // env or kubernetes
	Namespace  string `yaml:"namespace,omitempty" split_words:"true"`
	Name       string `yaml:"name,omitempty" split_words:"true"`
	Kubeconfig string `yaml:"kubeconfig,omitempty" split_words:"true"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" split_words:"true"`
	Format string `yaml:"format,omitempty" split_words:"true"`
}

// HTTPClientConfig configures outbound calls to Slack and Google.
type HTTPClientConfig struct {
	Timeout time.Duration `yaml:"timeout,omitempty" split_words:"true"`
}

// RedirectURL joins the public URL with a callback path.
func (s ServerConfig) RedirectURL(path string) string {
	return strings.TrimSuffix(s.PublicURL, "/") + path
}
