// Package formatting renders CLI output for stored credentials. Secrets never
// reach a formatter: installations are rendered from summaries and tokens are
// wrapped in oauth.RedactedToken.
package formatting

import (
	"fmt"
	"io"
	"os"
	"time"

	"credbroker/internal/oauth"
	"credbroker/internal/store"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Output io.Writer // defaults to os.Stdout
}

// Formatter renders broker records.
type Formatter interface {
	FormatInstallations(installations []store.InstallationSummary) error
	FormatToken(token TokenView) error
}

// TokenView describes a Google access token after a refresh.
type TokenView struct {
	WorkspaceID string              `json:"workspaceId" yaml:"workspaceId"`
	UserID      string              `json:"userId" yaml:"userId"`
	AccessToken oauth.RedactedToken `json:"accessToken" yaml:"accessToken"`
	Expiry      time.Time           `json:"expiry,omitzero" yaml:"expiry,omitempty"`
}

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want table, json or yaml)", s)
	}
}

// New creates the formatter for options.Format.
func New(options Options) Formatter {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	switch options.Format {
	case FormatJSON:
		return &JSONFormatter{options: options}
	case FormatYAML:
		return &YAMLFormatter{options: options}
	default:
		return &TableFormatter{options: options}
	}
}

// installationView is the serialized form of an installation summary.
type installationView struct {
	TeamID       string    `json:"teamId,omitempty" yaml:"teamId,omitempty"`
	TeamName     string    `json:"teamName,omitempty" yaml:"teamName,omitempty"`
	EnterpriseID string    `json:"enterpriseId,omitempty" yaml:"enterpriseId,omitempty"`
	AppID        string    `json:"appId,omitempty" yaml:"appId,omitempty"`
	BotUserID    string    `json:"botUserId,omitempty" yaml:"botUserId,omitempty"`
	HasBotToken  bool      `json:"hasBotToken" yaml:"hasBotToken"`
	HasUserToken bool      `json:"hasUserToken" yaml:"hasUserToken"`
	InstalledAt  time.Time `json:"installedAt" yaml:"installedAt"`
}

func installationViews(in []store.InstallationSummary) []installationView {
	out := make([]installationView, 0, len(in))
	for _, s := range in {
		out = append(out, installationView(s))
	}
	return out
}
