package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"credbroker/internal/crypto"
	"credbroker/internal/metrics"
	"credbroker/internal/store"
	"credbroker/pkg/logging"
)

// DefaultRefreshTimeout bounds a shared forced refresh, including the write
// of the new token.
const DefaultRefreshTimeout = 30 * time.Second

// GoogleClient is a ready to use authenticated client for one tenant.
// Token rotations performed through HTTPClient or TokenSource are written
// back to the credential store.
type GoogleClient struct {
	WorkspaceID   string
	UserID        string
	HTTPClient    *http.Client
	TokenSource   oauth2.TokenSource
	Scope         string
	Status        store.IntegrationStatus
	SpreadsheetID string
}

// GoogleService hands out authenticated Google clients and manages the
// lifecycle of stored Google credentials.
type GoogleService struct {
	config     *oauth2.Config
	repo       *store.GoogleIntegrations
	httpClient *http.Client
	revokeURL  string
	metrics    *metrics.Metrics

	group   singleflight.Group
	pending sync.WaitGroup
}

// NewGoogleService creates a GoogleService. httpClient may be nil.
func NewGoogleService(cfg GoogleConfig, repo *store.GoogleIntegrations, httpClient *http.Client, m *metrics.Metrics) *GoogleService {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	revokeURL := cfg.RevokeURL
	if revokeURL == "" {
		revokeURL = DefaultGoogleRevokeURL
	}
	return &GoogleService{
		config:     cfg.oauth2Config(),
		repo:       repo,
		httpClient: httpClient,
		revokeURL:  revokeURL,
		metrics:    m,
	}
}

func (s *GoogleService) get(ctx context.Context, workspaceID, userID string) (*store.GoogleIntegration, error) {
	gi, err := s.repo.Get(ctx, workspaceID, userID)
	if errors.Is(err, crypto.ErrCrypto) {
		s.metrics.CryptoFailure()
	}
	return gi, err
}

// Client returns an authenticated client for the tenant, or store.ErrNotFound
// when the user has not authorized Google yet.
func (s *GoogleService) Client(ctx context.Context, workspaceID, userID string) (*GoogleClient, error) {
	gi, err := s.get(ctx, workspaceID, userID)
	if err != nil {
		return nil, err
	}

	seed := &oauth2.Token{
		AccessToken:  gi.AccessToken,
		RefreshToken: gi.RefreshToken,
		Expiry:       gi.Expiry,
		TokenType:    "Bearer",
	}

	// The client outlives the request that created it.
	srcCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, s.httpClient)
	broker := NewRefreshBroker(workspaceID, userID, seed, s.config.TokenSource(srcCtx, seed), s.repo, &s.pending, s.metrics)

	return &GoogleClient{
		WorkspaceID: workspaceID,
		UserID:      userID,
		HTTPClient: &http.Client{
			Transport: &oauth2.Transport{Source: broker, Base: s.httpClient.Transport},
			Timeout:   s.httpClient.Timeout,
		},
		TokenSource:   broker,
		Scope:         gi.Scope,
		Status:        gi.Status,
		SpreadsheetID: gi.SpreadsheetID,
	}, nil
}

// Refresh forces a token refresh and persists the result before returning.
// Provider errors are returned as reported by x/oauth2. Concurrent calls for
// the same tenant share one refresh, which keeps running when the caller that
// started it goes away; each caller stops waiting when its own ctx is done.
func (s *GoogleService) Refresh(ctx context.Context, workspaceID, userID string) (*oauth2.Token, error) {
	ch := s.group.DoChan(workspaceID+"/"+userID, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultRefreshTimeout)
		defer cancel()

		gi, err := s.get(ctx, workspaceID, userID)
		if err != nil {
			return nil, err
		}
		if gi.RefreshToken == "" {
			return nil, ErrNoRefreshToken
		}

		known := &oauth2.Token{AccessToken: gi.AccessToken, RefreshToken: gi.RefreshToken}
		// A token without an access token is never valid, so the source refreshes.
		src := s.config.TokenSource(context.WithValue(ctx, oauth2.HTTPClient, s.httpClient), &oauth2.Token{RefreshToken: gi.RefreshToken})
		tok, err := src.Token()
		if err != nil {
			s.metrics.Refresh(metrics.ResultProviderError)
			logging.Warn("Broker", "Google refresh failed for workspace=%s user=%s: %v", workspaceID, userID, err)
			return nil, err
		}

		broker := NewRefreshBroker(workspaceID, userID, known, src, s.repo, &s.pending, s.metrics)
		if err := broker.Persist(ctx, tok); err != nil {
			return nil, err
		}
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	}
}

// Revoke revokes the tenant's grant at Google and deletes the stored
// credentials. A failed provider revocation is logged and does not prevent
// the local delete.
func (s *GoogleService) Revoke(ctx context.Context, workspaceID, userID string) error {
	gi, err := s.get(ctx, workspaceID, userID)
	switch {
	case errors.Is(err, crypto.ErrCrypto):
		logging.Warn("OAuth", "Stored google credentials for workspace=%s user=%s are unreadable, deleting without provider revocation", workspaceID, userID)
	case err != nil:
		return err
	default:
		token := gi.RefreshToken
		if token == "" {
			token = gi.AccessToken
		}
		if err := s.revokeAtProvider(ctx, token); err != nil {
			s.metrics.Revocation(metrics.ResultProviderError)
			logging.Warn("OAuth", "Google revocation failed for workspace=%s user=%s, deleting local credentials anyway: %v", workspaceID, userID, err)
		} else {
			s.metrics.Revocation(metrics.ResultSuccess)
		}
	}

	if err := s.repo.Delete(ctx, workspaceID, userID); err != nil {
		return err
	}
	logging.Info("OAuth", "Removed google integration for workspace=%s user=%s", workspaceID, userID)
	return nil
}

func (s *GoogleService) revokeAtProvider(ctx context.Context, token string) error {
	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &ProviderError{Provider: "google", Op: "revocation", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &ProviderError{
			Provider: "google",
			Op:       "revocation",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}
	return nil
}

// Configure attaches a spreadsheet to the integration.
func (s *GoogleService) Configure(ctx context.Context, workspaceID, userID, spreadsheetID string) error {
	return s.repo.Configure(ctx, workspaceID, userID, spreadsheetID)
}

// Wait blocks until background token writes have finished.
func (s *GoogleService) Wait() {
	s.pending.Wait()
}
