package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credbroker/internal/config"
	"credbroker/internal/crypto"
	"credbroker/internal/secrets"
	"credbroker/internal/state"
)

func testMaterial(t *testing.T) *secrets.Material {
	t.Helper()
	hexKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	key, err := crypto.ParseKey(hexKey)
	require.NoError(t, err)
	return &secrets.Material{
		EncryptionKey:      key,
		StateSecret:        []byte("app-test-secret"),
		GoogleClientSecret: "google-secret",
		SlackClientSecret:  "slack-secret",
	}
}

func testBrokerConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(t.TempDir(), "app.db")
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 18080
	cfg.Google.Enabled = true
	cfg.Google.ClientID = "google-client"
	cfg.Slack.Enabled = true
	cfg.Slack.ClientID = "slack-client"
	return &cfg
}

func newTestApplication(t *testing.T, mutate func(*Config)) (*Application, error) {
	t.Helper()
	cfg := NewConfig(false, true, "")
	cfg.Broker = testBrokerConfig(t)
	cfg.Secrets = testMaterial(t)
	if mutate != nil {
		mutate(cfg)
	}
	a, err := NewApplication(context.Background(), cfg)
	if a != nil {
		t.Cleanup(func() { _ = a.Close() })
	}
	return a, err
}

func TestNewApplication(t *testing.T) {
	a, err := newTestApplication(t, nil)
	require.NoError(t, err)

	s := a.Services()
	assert.NotNil(t, s.DB)
	assert.NotNil(t, s.Google)
	assert.NotNil(t, s.GoogleExchanger)
	assert.NotNil(t, s.Slack)
	assert.NotNil(t, s.Server)
	assert.Nil(t, s.NonceLedger)
	assert.Equal(t, 10*time.Minute, s.Codec.Validity())
}

func TestNewApplication_DisabledFlows(t *testing.T) {
	a, err := newTestApplication(t, func(c *Config) {
		c.Broker.Google.Enabled = false
		c.Broker.Slack.Enabled = false
	})
	require.NoError(t, err)

	s := a.Services()
	assert.NotNil(t, s.Google, "stored integrations stay manageable")
	assert.Nil(t, s.GoogleExchanger)
	assert.Nil(t, s.Slack)
}

func TestNewApplication_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "invalid config",
			mutate:  func(c *Config) { c.Broker.Server.Port = 0 },
			wantErr: "invalid configuration",
		},
		{
			name:    "missing slack secret",
			mutate:  func(c *Config) { c.Secrets.SlackClientSecret = "" },
			wantErr: "slack client secret",
		},
		{
			name:    "missing google secret",
			mutate:  func(c *Config) { c.Secrets.GoogleClientSecret = "" },
			wantErr: "google client secret",
		},
		{
			name:    "short encryption key",
			mutate:  func(c *Config) { c.Secrets.EncryptionKey = []byte("short") },
			wantErr: "cipher",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestApplication(t, tt.mutate)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewApplication_Ledgers(t *testing.T) {
	a, err := newTestApplication(t, func(c *Config) {
		c.Broker.State.SingleUse = true
		c.Broker.State.Ledger = config.LedgerDatabase
	})
	require.NoError(t, err)
	require.NotNil(t, a.Services().NonceLedger)

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, a.Services().NonceLedger.Consume(ctx, "n1", now))
	assert.ErrorIs(t, a.Services().NonceLedger.Consume(ctx, "n1", now), state.ErrReplayed)

	a, err = newTestApplication(t, func(c *Config) {
		c.Broker.State.SingleUse = true
		c.Broker.State.Ledger = config.LedgerMemory
	})
	require.NoError(t, err)
	assert.Nil(t, a.Services().NonceLedger)
}

func TestApplicationRun(t *testing.T) {
	a, err := newTestApplication(t, func(c *Config) {
		c.Broker.Server.Port = 0
		c.Broker.Server.ShutdownTimeout = time.Second
		c.Broker.State.SingleUse = true
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	select {
	case <-a.Services().Server.Listening():
	case err := <-done:
		t.Fatalf("run exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}
