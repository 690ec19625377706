package state

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// NonceLedger records consumed state nonces so a state can be redeemed once.
// Consume returns ErrReplayed when the nonce was seen before.
type NonceLedger interface {
	Consume(ctx context.Context, nonce string, issuedAt time.Time) error
}

// MemoryLedger is a process local NonceLedger. Entries expire after the
// validity window, at which point the state itself is rejected as expired.
type MemoryLedger struct {
	cache *cache.Cache
}

// NewMemoryLedger creates a ledger retaining nonces for validity.
func NewMemoryLedger(validity time.Duration) *MemoryLedger {
	return &MemoryLedger{cache: cache.New(validity, validity)}
}

// Consume implements NonceLedger.
func (l *MemoryLedger) Consume(_ context.Context, nonce string, _ time.Time) error {
	if err := l.cache.Add(nonce, struct{}{}, cache.DefaultExpiration); err != nil {
		return ErrReplayed
	}
	return nil
}
