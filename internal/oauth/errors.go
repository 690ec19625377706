package oauth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoAccessToken is returned when the provider completed the exchange
	// without issuing an access token. Nothing is stored in that case.
	ErrNoAccessToken = errors.New("provider returned no access token")
	// ErrNoRefreshToken is returned when a refresh is requested for an
	// integration that never received a refresh token.
	ErrNoRefreshToken = errors.New("no refresh token stored")
	// ErrTeamMismatch is returned when Slack installed the app into a
	// different workspace than the one the authorization was started for.
	ErrTeamMismatch = errors.New("installed workspace does not match the authorization request")
)

// ProviderError is a failure reported by Slack or Google, or a transport
// failure talking to them. The upstream message is kept.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err came from an identity provider.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// missingAccessToken matches the error x/oauth2 produces for a token
// response without an access_token.
func missingAccessToken(err error) bool {
	return err != nil && strings.Contains(err.Error(), "missing access_token")
}
