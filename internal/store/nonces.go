package store

import (
	"context"
	"fmt"
	"time"

	"credbroker/internal/state"
)

// NonceLedger is a state.NonceLedger backed by the oauth_state_nonces table,
// shared by every process using the same database.
type NonceLedger struct {
	db *DB
}

// NewNonceLedger creates a NonceLedger.
func NewNonceLedger(db *DB) *NonceLedger {
	return &NonceLedger{db: db}
}

var _ state.NonceLedger = (*NonceLedger)(nil)

const consumeNonceSQL = `
INSERT INTO oauth_state_nonces (nonce, issued_at, consumed_at) VALUES (?, ?, ?)
ON CONFLICT (nonce) DO NOTHING`

// Consume records the nonce, returning state.ErrReplayed if it was already recorded.
func (l *NonceLedger) Consume(ctx context.Context, nonce string, issuedAt time.Time) error {
	res, err := l.db.sql.ExecContext(ctx, l.db.rebind(consumeNonceSQL), nonce, issuedAt.UTC(), l.db.now())
	if err != nil {
		return fmt.Errorf("recording state nonce: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recording state nonce: %w", err)
	}
	if n == 0 {
		return state.ErrReplayed
	}
	return nil
}

// Purge deletes nonces issued before cutoff and returns how many were removed.
func (l *NonceLedger) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.sql.ExecContext(ctx, l.db.rebind(`DELETE FROM oauth_state_nonces WHERE issued_at < ?`), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purging state nonces: %w", err)
	}
	return res.RowsAffected()
}
