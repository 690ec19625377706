package oauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"credbroker/internal/metrics"
	"credbroker/internal/store"
	"credbroker/pkg/logging"
)

// DefaultPersistTimeout bounds a background token write.
const DefaultPersistTimeout = 10 * time.Second

// TokenPersister stores rotated token material.
type TokenPersister interface {
	UpdateTokens(ctx context.Context, u store.TokenUpdate) error
}

// RefreshBroker wraps a token source and writes every rotation back to the
// credential store. Writes triggered from Token run in the background and
// never fail or delay the caller; Wait drains them. Writes are serialised and
// always carry the newest observed token, so a slow write can never replace a
// newer access token with an older one.
type RefreshBroker struct {
	workspaceID string
	userID      string
	base        oauth2.TokenSource
	persister   TokenPersister
	metrics     *metrics.Metrics
	pending     *sync.WaitGroup
	timeout     time.Duration

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiry       time.Time
	seq          uint64

	writeMu          sync.Mutex
	writtenSeq       uint64
	persistedRefresh string
}

// NewRefreshBroker creates a broker for one tenant. seed is the token the
// base source was created from. pending may be shared between brokers so
// that a single Wait drains all of them; nil allocates a private one.
func NewRefreshBroker(workspaceID, userID string, seed *oauth2.Token, base oauth2.TokenSource, persister TokenPersister, pending *sync.WaitGroup, m *metrics.Metrics) *RefreshBroker {
	if pending == nil {
		pending = &sync.WaitGroup{}
	}
	b := &RefreshBroker{
		workspaceID: workspaceID,
		userID:      userID,
		base:        base,
		persister:   persister,
		metrics:     m,
		pending:     pending,
		timeout:     DefaultPersistTimeout,
	}
	if seed != nil {
		b.accessToken = seed.AccessToken
		b.refreshToken = seed.RefreshToken
		b.persistedRefresh = seed.RefreshToken
	}
	return b
}

// Token implements oauth2.TokenSource.
func (b *RefreshBroker) Token() (*oauth2.Token, error) {
	tok, err := b.base.Token()
	if err != nil {
		return nil, err
	}

	if b.observe(tok) {
		b.pending.Add(1)
		go func() {
			defer b.pending.Done()
			ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
			defer cancel()
			_ = b.write(ctx)
		}()
	}
	return tok, nil
}

// Persist records tok synchronously if it differs from the last known token.
func (b *RefreshBroker) Persist(ctx context.Context, tok *oauth2.Token) error {
	if !b.observe(tok) {
		return nil
	}
	return b.write(ctx)
}

// Wait blocks until every background write started by this broker, or by
// any broker sharing its WaitGroup, has finished.
func (b *RefreshBroker) Wait() {
	b.pending.Wait()
}

// observe records tok as the newest token and reports whether it needs to be
// written. x/oauth2 copies the previous refresh token into refreshed tokens
// that came without one, so an unchanged refresh token is not a rotation.
func (b *RefreshBroker) observe(tok *oauth2.Token) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if tok == nil || tok.AccessToken == "" || tok.AccessToken == b.accessToken {
		return false
	}

	b.accessToken = tok.AccessToken
	b.expiry = tok.Expiry
	if tok.RefreshToken != "" {
		b.refreshToken = tok.RefreshToken
	}
	b.seq++
	return true
}

// write persists the newest observed token unless a previous write already
// covered it. The refresh token is only sent when it differs from the one
// last persisted.
func (b *RefreshBroker) write(ctx context.Context) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	b.mu.Lock()
	seq := b.seq
	update := store.TokenUpdate{
		WorkspaceID: b.workspaceID,
		UserID:      b.userID,
		AccessToken: b.accessToken,
		Expiry:      b.expiry,
	}
	refresh := b.refreshToken
	b.mu.Unlock()

	if seq <= b.writtenSeq {
		return nil
	}
	if refresh != b.persistedRefresh {
		update.RefreshToken = refresh
	}

	if err := b.persister.UpdateTokens(ctx, update); err != nil {
		b.metrics.Refresh(metrics.ResultError)
		logging.Error("Broker", err, "Failed to persist rotated google token for workspace=%s user=%s", b.workspaceID, b.userID)
		return fmt.Errorf("persisting rotated token: %w", err)
	}
	b.writtenSeq = seq
	b.persistedRefresh = refresh

	b.metrics.Refresh(metrics.ResultSuccess)
	logging.Debug("Broker", "Persisted rotated google token for workspace=%s user=%s (refresh_token_rotated=%t)",
		b.workspaceID, b.userID, update.RefreshToken != "")
	return nil
}
