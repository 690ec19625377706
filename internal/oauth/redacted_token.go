package oauth

import (
	"log/slog"
	"strings"
)

// tokenKinds are the public prefixes of Slack and Google tokens. They say
// which kind of credential a value is without revealing any of it.
var tokenKinds = []string{"xoxb-", "xoxp-", "xoxe-", "xoxa-", "ya29.", "1//"}

// RedactedToken holds a credential that must not reach logs or CLI output.
// fmt, slog, JSON, YAML and text encoding all see the redacted form; only
// Value returns the secret.
type RedactedToken struct {
	value string
}

// NewRedactedToken wraps value.
func NewRedactedToken(value string) RedactedToken {
	return RedactedToken{value: value}
}

// Value returns the wrapped credential. Never log the result.
func (t RedactedToken) Value() string {
	return t.value
}

// IsEmpty reports whether no credential is held.
func (t RedactedToken) IsEmpty() bool {
	return t.value == ""
}

func (t RedactedToken) redacted() string {
	if t.value == "" {
		return ""
	}
	for _, kind := range tokenKinds {
		if strings.HasPrefix(t.value, kind) {
			return kind + "[REDACTED]"
		}
	}
	return "[REDACTED]"
}

func (t RedactedToken) String() string {
	return t.redacted()
}

func (t RedactedToken) GoString() string {
	return "oauth.RedactedToken{" + t.redacted() + "}"
}

// LogValue implements slog.LogValuer.
func (t RedactedToken) LogValue() slog.Value {
	return slog.StringValue(t.redacted())
}

func (t RedactedToken) MarshalText() ([]byte, error) {
	return []byte(t.redacted()), nil
}
