// Package state produces and verifies the signed, time bounded state
// parameter carried through OAuth redirects.
//
// A state is "<payload>.<signature>" where payload is the base64url (no
// padding) encoding of {"workspaceId","userId","ts","nonce"} and signature
// is HMAC-SHA256 over the encoded payload, also base64url. Nothing is stored
// server side unless a NonceLedger is used to enforce single use.
package state

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// DefaultValidity is how long a state is accepted after it was issued.
const DefaultValidity = 10 * time.Minute

const nonceSize = 16

// signaturesEqual compares signatures in constant time.
var signaturesEqual = hmac.Equal

// Payload is the decoded content of a verified state.
type Payload struct {
	WorkspaceID string
	UserID      string
	Nonce       string
	IssuedAt    time.Time
}

type wirePayload struct {
	WorkspaceID string `json:"workspaceId"`
	UserID      string `json:"userId"`
	TS          int64  `json:"ts"`
	Nonce       string `json:"nonce"`
}

// Codec encodes and decodes state tokens. It holds only immutable data and
// is safe for concurrent use.
type Codec struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
	rand     io.Reader
}

// Option configures a Codec.
type Option func(*Codec)

// WithValidity overrides DefaultValidity.
func WithValidity(d time.Duration) Option {
	return func(c *Codec) {
		if d > 0 {
			c.validity = d
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) { c.now = now }
}

// WithRandom replaces the nonce source.
func WithRandom(r io.Reader) Option {
	return func(c *Codec) { c.rand = r }
}

// NewCodec creates a Codec signing with secret.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("state secret must not be empty")
	}
	c := &Codec{
		secret:   append([]byte(nil), secret...),
		validity: DefaultValidity,
		now:      time.Now,
		rand:     rand.Reader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Validity returns the configured validity window.
func (c *Codec) Validity() time.Duration {
	return c.validity
}

// Encode mints a new state for the given workspace and user.
func (c *Codec) Encode(workspaceID, userID string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	raw, err := json.Marshal(wirePayload{
		WorkspaceID: workspaceID,
		UserID:      userID,
		TS:          c.now().UnixMilli(),
		Nonce:       hex.EncodeToString(nonce),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode state payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + c.sign(encoded), nil
}

// Decode verifies a state and returns its payload.
//
// Checks run in a fixed order: shape, signature, payload decoding, age,
// required fields. The first failure wins.
func (c *Codec) Decode(state string) (*Payload, error) {
	parts := strings.Split(state, ".")
	if len(parts) != 2 {
		return nil, ErrInvalidFormat
	}
	encoded, signature := parts[0], parts[1]

	if !signaturesEqual([]byte(signature), []byte(c.sign(encoded))) {
		return nil, ErrInvalidSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	var wp wirePayload
	if err := json.Unmarshal(raw, &wp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	issuedAt := time.UnixMilli(wp.TS)
	if c.now().Sub(issuedAt) > c.validity {
		return nil, ErrExpired
	}

	if wp.WorkspaceID == "" || wp.UserID == "" {
		return nil, ErrMissingFields
	}

	return &Payload{
		WorkspaceID: wp.WorkspaceID,
		UserID:      wp.UserID,
		Nonce:       wp.Nonce,
		IssuedAt:    issuedAt,
	}, nil
}

func (c *Codec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
