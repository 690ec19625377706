package app

import (
	"context"
	"fmt"
	"net/http"

	"credbroker/internal/config"
	"credbroker/internal/crypto"
	"credbroker/internal/metrics"
	"credbroker/internal/oauth"
	"credbroker/internal/server"
	"credbroker/internal/state"
	"credbroker/internal/store"
	"credbroker/pkg/logging"
)

// Services holds every initialized component.
type Services struct {
	DB            *store.DB
	Cipher        *crypto.Cipher
	Codec         *state.Codec
	Installations *store.InstallationStore
	Integrations  *store.GoogleIntegrations
	Metrics       *metrics.Metrics

	// Google is always present so stored integrations can be refreshed or
	// revoked even when the browser flow is disabled.
	Google          *oauth.GoogleService
	GoogleExchanger *oauth.GoogleExchanger
	Slack           *oauth.SlackInstaller

	// NonceLedger is set when single-use states are backed by the database.
	NonceLedger *store.NonceLedger

	Server *server.Server
}

// InitializeServices builds the component graph from cfg.Broker and
// cfg.Secrets, which must both be set.
func InitializeServices(ctx context.Context, cfg *Config) (*Services, error) {
	bc := cfg.Broker

	cipher, err := crypto.NewCipher(cfg.Secrets.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	codec, err := state.NewCodec(cfg.Secrets.StateSecret, state.WithValidity(bc.State.Validity))
	if err != nil {
		return nil, fmt.Errorf("failed to create state codec: %w", err)
	}

	db, err := store.Open(ctx, bc.Database.Driver, bc.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	s := &Services{
		DB:            db,
		Cipher:        cipher,
		Codec:         codec,
		Installations: store.NewInstallationStore(db, cipher),
		Integrations:  store.NewGoogleIntegrations(db, cipher),
		Metrics:       metrics.New(),
	}

	httpClient := &http.Client{Timeout: bc.HTTP.Timeout}
	opts := []oauth.ExchangerOption{oauth.WithHTTPClient(httpClient)}

	if ledger := s.newLedger(bc.State); ledger != nil {
		opts = append(opts, oauth.WithNonceLedger(ledger))
	}

	googleCfg := googleConfig(bc, cfg.Secrets.GoogleClientSecret)
	s.Google = oauth.NewGoogleService(googleCfg, s.Integrations, httpClient, s.Metrics)

	if bc.Google.Enabled {
		if googleCfg.ClientSecret == "" {
			_ = db.Close()
			return nil, fmt.Errorf("google is enabled but no google client secret was loaded")
		}
		s.GoogleExchanger = oauth.NewGoogleExchanger(googleCfg, codec, s.Integrations, opts...)
		logging.Info("Bootstrap", "Google Sheets flow enabled (callback %s)", googleCfg.RedirectURL)
	}

	if bc.Slack.Enabled {
		if cfg.Secrets.SlackClientSecret == "" {
			_ = db.Close()
			return nil, fmt.Errorf("slack is enabled but no slack client secret was loaded")
		}
		s.Slack = oauth.NewSlackInstaller(slackConfig(bc, cfg.Secrets.SlackClientSecret), codec, s.Installations, opts...)
		logging.Info("Bootstrap", "Slack install flow enabled (callback %s)", bc.Server.RedirectURL(bc.Slack.CallbackPath))
	}

	handler := oauth.NewHandler(s.GoogleExchanger, s.Slack, s.Metrics)
	s.Server = server.New(*bc, handler, db, s.Metrics)

	return s, nil
}

func (s *Services) newLedger(cfg config.StateConfig) state.NonceLedger {
	if !cfg.SingleUse {
		return nil
	}
	if cfg.Ledger == config.LedgerMemory {
		logging.Info("Bootstrap", "Single-use states tracked in memory")
		return state.NewMemoryLedger(cfg.Validity)
	}
	logging.Info("Bootstrap", "Single-use states tracked in the database")
	s.NonceLedger = store.NewNonceLedger(s.DB)
	return s.NonceLedger
}

func googleConfig(bc *config.Config, clientSecret string) oauth.GoogleConfig {
	return oauth.GoogleConfig{
		ClientID:     bc.Google.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  bc.Server.RedirectURL(bc.Google.CallbackPath),
		Scopes:       bc.Google.Scopes,
		AuthURL:      bc.Google.AuthURL,
		TokenURL:     bc.Google.TokenURL,
		RevokeURL:    bc.Google.RevokeURL,
	}
}

func slackConfig(bc *config.Config, clientSecret string) oauth.SlackConfig {
	return oauth.SlackConfig{
		ClientID:     bc.Slack.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  bc.Server.RedirectURL(bc.Slack.CallbackPath),
		BotScopes:    bc.Slack.BotScopes,
		UserScopes:   bc.Slack.UserScopes,
		AuthorizeURL: bc.Slack.AuthorizeURL,
		AccessURL:    bc.Slack.AccessURL,
	}
}
