package state

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-state-secret")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func newTestCodec(t *testing.T, clock *fakeClock) *Codec {
	t.Helper()
	c, err := NewCodec(testSecret, WithClock(clock.Now))
	require.NoError(t, err)
	return c
}

// signed builds a state for an arbitrary payload document.
func signed(secret []byte, doc []byte) string {
	encoded := base64.RawURLEncoding.EncodeToString(doc)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(encoded))
	return encoded + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestNewCodec_EmptySecret(t *testing.T) {
	_, err := NewCodec(nil)
	assert.Error(t, err)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	clock := newClock()
	codec := newTestCodec(t, clock)

	s, err := codec.Encode("T123", "U456")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(s, "."))

	p, err := codec.Decode(s)
	require.NoError(t, err)
	assert.Equal(t, "T123", p.WorkspaceID)
	assert.Equal(t, "U456", p.UserID)
	assert.Len(t, p.Nonce, 2*nonceSize)
	assert.True(t, p.IssuedAt.Equal(clock.Now()))
}

func TestEncode_PayloadShape(t *testing.T) {
	clock := newClock()
	codec := newTestCodec(t, clock)

	s, err := codec.Encode("W1", "U1")
	require.NoError(t, err)

	raw, err := base64.RawURLEncoding.DecodeString(strings.Split(s, ".")[0])
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "W1", doc["workspaceId"])
	assert.Equal(t, "U1", doc["userId"])
	assert.EqualValues(t, clock.Now().UnixMilli(), doc["ts"])
	assert.NotEmpty(t, doc["nonce"])
}

func TestEncode_NonceUniqueness(t *testing.T) {
	codec := newTestCodec(t, newClock())

	a, err := codec.Encode("W1", "U1")
	require.NoError(t, err)
	b, err := codec.Encode("W1", "U1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	pa, err := codec.Decode(a)
	require.NoError(t, err)
	pb, err := codec.Decode(b)
	require.NoError(t, err)
	assert.NotEqual(t, pa.Nonce, pb.Nonce)
}

func TestEncode_RandomFailure(t *testing.T) {
	codec, err := NewCodec(testSecret, WithRandom(bytes.NewReader(nil)))
	require.NoError(t, err)

	_, err = codec.Encode("W1", "U1")
	assert.Error(t, err)
}

func TestDecode_SignatureMutation(t *testing.T) {
	codec := newTestCodec(t, newClock())
	s, err := codec.Encode("W1", "U1")
	require.NoError(t, err)

	last := s[len(s)-1]
	replacement := byte('A')
	if last == 'A' {
		replacement = 'B'
	}
	mutated := s[:len(s)-1] + string(replacement)

	_, err = codec.Decode(mutated)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecode_SignatureComparedInConstantTime(t *testing.T) {
	codec := newTestCodec(t, newClock())
	s, err := codec.Encode("W1", "U1")
	require.NoError(t, err)
	parts := strings.Split(s, ".")
	sig := parts[1]

	type comparison struct{ got, want []byte }
	var calls []comparison
	orig := signaturesEqual
	signaturesEqual = func(a, b []byte) bool {
		calls = append(calls, comparison{a, b})
		return orig(a, b)
	}
	t.Cleanup(func() { signaturesEqual = orig })

	flip := func(c byte) string {
		if c == 'A' {
			return "B"
		}
		return "A"
	}

	tests := []struct {
		name      string
		signature string
	}{
		{"first character", flip(sig[0]) + sig[1:]},
		{"last character", sig[:len(sig)-1] + flip(sig[len(sig)-1])},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = nil
			_, err := codec.Decode(parts[0] + "." + tt.signature)
			assert.ErrorIs(t, err, ErrInvalidSignature)

			require.Len(t, calls, 1)
			assert.Equal(t, tt.signature, string(calls[0].got))
			assert.Equal(t, sig, string(calls[0].want))
		})
	}
}

func TestDecode_PayloadMutation(t *testing.T) {
	codec := newTestCodec(t, newClock())
	s, err := codec.Encode("W1", "U1")
	require.NoError(t, err)

	parts := strings.Split(s, ".")
	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"workspaceId":"W2","userId":"U1","ts":0,"nonce":"x"}`))

	_, err = codec.Decode(forged + "." + parts[1])
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecode_DifferentSecret(t *testing.T) {
	clock := newClock()
	codec := newTestCodec(t, clock)
	other, err := NewCodec([]byte("other-secret"), WithClock(clock.Now))
	require.NoError(t, err)

	s, err := other.Encode("W1", "U1")
	require.NoError(t, err)

	_, err = codec.Decode(s)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestDecode_Expiry(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{"fresh", 0, nil},
		{"nine minutes", 9 * time.Minute, nil},
		{"exactly ten minutes", 10 * time.Minute, nil},
		{"eleven minutes", 11 * time.Minute, ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newClock()
			codec := newTestCodec(t, clock)

			s, err := codec.Encode("W1", "U1")
			require.NoError(t, err)

			clock.Advance(tt.elapsed)
			_, err = codec.Decode(s)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDecode_CustomValidity(t *testing.T) {
	clock := newClock()
	codec, err := NewCodec(testSecret, WithClock(clock.Now), WithValidity(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, codec.Validity())

	s, err := codec.Encode("W1", "U1")
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	_, err = codec.Decode(s)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestDecode_Malformed(t *testing.T) {
	clock := newClock()
	codec := newTestCodec(t, clock)
	ts := clock.Now().UnixMilli()

	tests := []struct {
		name    string
		state   string
		wantErr error
	}{
		{"empty", "", ErrInvalidFormat},
		{"no separator", "abcdef", ErrInvalidFormat},
		{"three parts", "a.b.c", ErrInvalidFormat},
		{"unsigned", "a.b", ErrInvalidSignature},
		{"signed non-json", signed(testSecret, []byte("not json")), ErrInvalidFormat},
		{"signed but expired before fields checked", signed(testSecret, []byte(`{"workspaceId":"","userId":"","ts":0}`)), ErrExpired},
		{"missing workspace", signed(testSecret, mustJSON(t, wirePayload{UserID: "U1", TS: ts})), ErrMissingFields},
		{"missing user", signed(testSecret, mustJSON(t, wirePayload{WorkspaceID: "W1", TS: ts})), ErrMissingFields},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.state)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsStateError(err))
		})
	}
}

func TestIsStateError(t *testing.T) {
	assert.False(t, IsStateError(nil))
	assert.False(t, IsStateError(assert.AnError))
	assert.True(t, IsStateError(ErrReplayed))
}

func TestMemoryLedger(t *testing.T) {
	ledger := NewMemoryLedger(time.Minute)
	ctx := context.Background()

	require.NoError(t, ledger.Consume(ctx, "n1", time.Now()))
	assert.ErrorIs(t, ledger.Consume(ctx, "n1", time.Now()), ErrReplayed)
	assert.NoError(t, ledger.Consume(ctx, "n2", time.Now()))
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}
