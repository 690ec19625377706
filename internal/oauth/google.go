package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"credbroker/internal/state"
	"credbroker/internal/store"
	"credbroker/pkg/logging"
)

const (
	// DefaultGoogleRevokeURL is Google's token revocation endpoint.
	DefaultGoogleRevokeURL = "https://oauth2.googleapis.com/revoke"
	// DefaultHTTPTimeout bounds every outbound provider call.
	DefaultHTTPTimeout = 30 * time.Second
)

// DefaultGoogleScopes is the minimal scope set needed to write report rows.
var DefaultGoogleScopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.file",
}

// GoogleConfig configures the Google authorization flow. Empty endpoint
// URLs fall back to Google's production endpoints.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	RevokeURL    string
}

func (c GoogleConfig) oauth2Config() *oauth2.Config {
	endpoint := google.Endpoint
	if c.AuthURL != "" {
		endpoint.AuthURL = c.AuthURL
	}
	if c.TokenURL != "" {
		endpoint.TokenURL = c.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	scopes := c.Scopes
	if len(scopes) == 0 {
		scopes = DefaultGoogleScopes
	}

	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       scopes,
		Endpoint:     endpoint,
	}
}

// Identity is the tenant a completed authorization belongs to.
type Identity struct {
	WorkspaceID     string
	UserID          string
	Scope           string
	HasRefreshToken bool
}

// GoogleExchanger drives the Google authorization code flow: it builds
// consent URLs and turns callbacks into stored credentials.
type GoogleExchanger struct {
	config     *oauth2.Config
	codec      *state.Codec
	ledger     state.NonceLedger
	repo       *store.GoogleIntegrations
	httpClient *http.Client
}

// ExchangerOption configures a GoogleExchanger or SlackInstaller.
type ExchangerOption func(*exchangerOptions)

type exchangerOptions struct {
	ledger     state.NonceLedger
	httpClient *http.Client
}

// WithNonceLedger makes every state single use.
func WithNonceLedger(l state.NonceLedger) ExchangerOption {
	return func(o *exchangerOptions) { o.ledger = l }
}

// WithHTTPClient sets the client used for provider calls.
func WithHTTPClient(c *http.Client) ExchangerOption {
	return func(o *exchangerOptions) { o.httpClient = c }
}

func applyOptions(opts []ExchangerOption) exchangerOptions {
	o := exchangerOptions{httpClient: &http.Client{Timeout: DefaultHTTPTimeout}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewGoogleExchanger creates a GoogleExchanger.
func NewGoogleExchanger(cfg GoogleConfig, codec *state.Codec, repo *store.GoogleIntegrations, opts ...ExchangerOption) *GoogleExchanger {
	o := applyOptions(opts)
	return &GoogleExchanger{
		config:     cfg.oauth2Config(),
		codec:      codec,
		ledger:     o.ledger,
		repo:       repo,
		httpClient: o.httpClient,
	}
}

// AuthorizationURL returns the consent URL for a user of a workspace. It
// always requests offline access with forced consent so that Google issues
// a refresh token.
func (e *GoogleExchanger) AuthorizationURL(workspaceID, userID string) (string, error) {
	if workspaceID == "" || userID == "" {
		return "", state.ErrMissingFields
	}

	s, err := e.codec.Encode(workspaceID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	logging.Debug("OAuth", "Generated google authorization URL for workspace=%s user=%s", workspaceID, userID)
	return e.config.AuthCodeURL(s, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent")), nil
}

// HandleCallback verifies the state, exchanges the code and stores the
// encrypted credentials. State errors are returned unchanged.
func (e *GoogleExchanger) HandleCallback(ctx context.Context, code, rawState string) (*Identity, error) {
	payload, err := verifyState(ctx, e.codec, e.ledger, rawState)
	if err != nil {
		return nil, err
	}

	tok, err := e.config.Exchange(context.WithValue(ctx, oauth2.HTTPClient, e.httpClient), code)
	if missingAccessToken(err) || (err == nil && tok.AccessToken == "") {
		logging.Warn("OAuth", "Google returned no access token for workspace=%s user=%s", payload.WorkspaceID, payload.UserID)
		return nil, ErrNoAccessToken
	}
	if err != nil {
		return nil, &ProviderError{Provider: "google", Op: "code exchange", Err: err}
	}

	scope, _ := tok.Extra("scope").(string)
	err = e.repo.Upsert(ctx, &store.GoogleIntegration{
		WorkspaceID:  payload.WorkspaceID,
		UserID:       payload.UserID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		Scope:        scope,
	})
	if err != nil {
		return nil, fmt.Errorf("storing google credentials: %w", err)
	}

	logging.Info("OAuth", "Google authorization completed for workspace=%s user=%s", payload.WorkspaceID, payload.UserID)
	return &Identity{
		WorkspaceID:     payload.WorkspaceID,
		UserID:          payload.UserID,
		Scope:           scope,
		HasRefreshToken: tok.RefreshToken != "",
	}, nil
}

func verifyState(ctx context.Context, codec *state.Codec, ledger state.NonceLedger, rawState string) (*state.Payload, error) {
	payload, err := codec.Decode(rawState)
	if err != nil {
		logging.Warn("OAuth", "Rejected OAuth state: %v", err)
		return nil, err
	}

	if ledger != nil {
		if err := ledger.Consume(ctx, payload.Nonce, payload.IssuedAt); err != nil {
			if errors.Is(err, state.ErrReplayed) {
				logging.Warn("OAuth", "Rejected replayed OAuth state for workspace=%s user=%s", payload.WorkspaceID, payload.UserID)
				return nil, err
			}
			return nil, fmt.Errorf("consuming state nonce: %w", err)
		}
	}

	return payload, nil
}
