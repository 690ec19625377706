package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"credbroker/internal/state"
	"credbroker/internal/store"
	"credbroker/pkg/logging"
)

const (
	// DefaultSlackAuthorizeURL is the Slack OAuth v2 authorization endpoint.
	DefaultSlackAuthorizeURL = "https://slack.com/oauth/v2/authorize"
	// DefaultSlackAccessURL is the Slack OAuth v2 token endpoint.
	DefaultSlackAccessURL = "https://slack.com/api/oauth.v2.access"
)

// SlackConfig configures the Slack installation flow.
type SlackConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	BotScopes    []string
	UserScopes   []string
	AuthorizeURL string
	AccessURL    string
}

type slackAccessResponse struct {
	OK                  bool   `json:"ok"`
	Error               string `json:"error,omitempty"`
	AppID               string `json:"app_id"`
	AccessToken         string `json:"access_token"`
	Scope               string `json:"scope"`
	BotUserID           string `json:"bot_user_id"`
	IsEnterpriseInstall bool   `json:"is_enterprise_install"`
	Team                *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"team"`
	Enterprise *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"enterprise"`
	AuthedUser struct {
		ID          string `json:"id"`
		Scope       string `json:"scope"`
		AccessToken string `json:"access_token"`
	} `json:"authed_user"`
}

// SlackInstaller runs the "Add to Slack" flow and owns the lifecycle of
// Slack installations.
type SlackInstaller struct {
	cfg        SlackConfig
	codec      *state.Codec
	ledger     state.NonceLedger
	store      *store.InstallationStore
	httpClient *http.Client
}

// NewSlackInstaller creates a SlackInstaller.
func NewSlackInstaller(cfg SlackConfig, codec *state.Codec, installations *store.InstallationStore, opts ...ExchangerOption) *SlackInstaller {
	if cfg.AuthorizeURL == "" {
		cfg.AuthorizeURL = DefaultSlackAuthorizeURL
	}
	if cfg.AccessURL == "" {
		cfg.AccessURL = DefaultSlackAccessURL
	}
	o := applyOptions(opts)
	return &SlackInstaller{
		cfg:        cfg,
		codec:      codec,
		ledger:     o.ledger,
		store:      installations,
		httpClient: o.httpClient,
	}
}

// InstallURL returns the Slack authorization URL for installing the app
// into teamID on behalf of userID.
func (s *SlackInstaller) InstallURL(teamID, userID string) (string, error) {
	if teamID == "" || userID == "" {
		return "", state.ErrMissingFields
	}

	st, err := s.codec.Encode(teamID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	authURL, err := url.Parse(s.cfg.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("invalid authorization endpoint: %w", err)
	}

	query := authURL.Query()
	query.Set("client_id", s.cfg.ClientID)
	query.Set("scope", strings.Join(s.cfg.BotScopes, ","))
	if len(s.cfg.UserScopes) > 0 {
		query.Set("user_scope", strings.Join(s.cfg.UserScopes, ","))
	}
	if s.cfg.RedirectURL != "" {
		query.Set("redirect_uri", s.cfg.RedirectURL)
	}
	query.Set("state", st)
	authURL.RawQuery = query.Encode()

	return authURL.String(), nil
}

// HandleCallback verifies the state, exchanges the code and stores the
// resulting installation.
func (s *SlackInstaller) HandleCallback(ctx context.Context, code, rawState string) (*store.Installation, error) {
	payload, err := verifyState(ctx, s.codec, s.ledger, rawState)
	if err != nil {
		return nil, err
	}

	resp, err := s.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	if resp.AccessToken == "" && resp.AuthedUser.AccessToken == "" {
		logging.Warn("Slack", "Slack returned no access token for workspace=%s", payload.WorkspaceID)
		return nil, ErrNoAccessToken
	}

	inst := &store.Installation{
		AppID:               resp.AppID,
		IsEnterpriseInstall: resp.IsEnterpriseInstall,
		InstalledAt:         time.Now().UTC(),
	}
	if resp.Team != nil {
		inst.TeamID, inst.TeamName = resp.Team.ID, resp.Team.Name
	}
	if resp.Enterprise != nil {
		inst.EnterpriseID = resp.Enterprise.ID
	}

	installedInto := inst.TeamID
	if installedInto == "" {
		installedInto = inst.EnterpriseID
	}
	if installedInto != payload.WorkspaceID {
		logging.Warn("Slack", "Installation for workspace=%s landed in %s, rejecting", payload.WorkspaceID, installedInto)
		return nil, ErrTeamMismatch
	}

	if resp.AccessToken != "" {
		inst.Bot = &store.BotCredentials{
			Token:  resp.AccessToken,
			UserID: resp.BotUserID,
			Scopes: splitList(resp.Scope),
		}
	}
	if resp.AuthedUser.AccessToken != "" {
		inst.User = &store.UserCredentials{
			Token:  resp.AuthedUser.AccessToken,
			ID:     resp.AuthedUser.ID,
			Scopes: splitList(resp.AuthedUser.Scope),
		}
	}

	if err := s.store.Store(ctx, inst); err != nil {
		return nil, fmt.Errorf("storing slack installation: %w", err)
	}

	logging.Info("Slack", "Installed app into workspace=%s (requested by user=%s)", installedInto, payload.UserID)
	return inst, nil
}

// Uninstall forgets the installation. It is safe to call repeatedly, which
// matters because Slack may deliver app_uninstalled and tokens_revoked for
// the same workspace.
func (s *SlackInstaller) Uninstall(ctx context.Context, q store.InstallationQuery) error {
	return s.store.Delete(ctx, q)
}

// Installation returns the stored installation for a workspace.
func (s *SlackInstaller) Installation(ctx context.Context, q store.InstallationQuery) (*store.Installation, error) {
	return s.store.Fetch(ctx, q)
}

func (s *SlackInstaller) exchange(ctx context.Context, code string) (*slackAccessResponse, error) {
	data := url.Values{}
	data.Set("client_id", s.cfg.ClientID)
	data.Set("client_secret", s.cfg.ClientSecret)
	data.Set("code", code)
	if s.cfg.RedirectURL != "" {
		data.Set("redirect_uri", s.cfg.RedirectURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.AccessURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: "slack", Op: "code exchange", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ProviderError{Provider: "slack", Op: "code exchange", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{Provider: "slack", Op: "code exchange", Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var out slackAccessResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &ProviderError{Provider: "slack", Op: "code exchange", Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if !out.OK {
		return nil, &ProviderError{Provider: "slack", Op: "code exchange", Err: errors.New(out.Error)}
	}

	return &out, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
