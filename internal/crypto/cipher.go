// Package crypto implements authenticated encryption of secrets at rest.
//
// Secrets are sealed with AES-256-GCM and stored as three colon separated
// lowercase hex segments: "<iv>:<tag>:<ciphertext>".
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize is the required key length in bytes (AES-256).
	KeySize = 32
	ivSize  = 12
	tagSize = 16
)

// ErrCrypto is returned for every decryption failure: malformed input,
// invalid or non-lowercase hex, or a failed authentication check.
var ErrCrypto = errors.New("crypto: decryption failed")

// Cipher seals and opens secrets with a single process-wide key.
// It is safe for concurrent use.
type Cipher struct {
	block cipher.Block
	gcm   cipher.AEAD
	rand  io.Reader
}

// NewCipher creates a Cipher for a 32 byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Cipher{block: block, gcm: gcm, rand: rand.Reader}, nil
}

// Encrypt seals plaintext with a fresh random IV.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return "", fmt.Errorf("failed to generate IV: %w", err)
	}

	sealed := c.gcm.Seal(nil, iv, []byte(plaintext), nil)
	body, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(tag) + ":" + hex.EncodeToString(body), nil
}

// Decrypt opens a value produced by Encrypt. Values written with a
// non-standard IV length are accepted.
func (c *Cipher) Decrypt(value string) (string, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: expected 3 segments, got %d", ErrCrypto, len(parts))
	}

	iv, err := decodeSegment(parts[0])
	if err != nil || len(iv) == 0 {
		return "", fmt.Errorf("%w: invalid iv", ErrCrypto)
	}
	tag, err := decodeSegment(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", fmt.Errorf("%w: invalid tag", ErrCrypto)
	}
	body, err := decodeSegment(parts[2])
	if err != nil {
		return "", fmt.Errorf("%w: invalid ciphertext", ErrCrypto)
	}

	gcm := c.gcm
	if len(iv) != ivSize {
		gcm, err = cipher.NewGCMWithNonceSize(c.block, len(iv))
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCrypto, err)
		}
	}

	plaintext, err := gcm.Open(nil, iv, append(body, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrCrypto)
	}
	return string(plaintext), nil
}

// decodeSegment decodes one lowercase hex segment. Uppercase digits are
// rejected so that every encoding of a value is the one Encrypt wrote.
func decodeSegment(segment string) ([]byte, error) {
	b, err := hex.DecodeString(segment)
	if err != nil {
		return nil, err
	}
	if hex.EncodeToString(b) != segment {
		return nil, errors.New("segment is not lowercase hex")
	}
	return b, nil
}

// EncryptOptional encrypts a secret that may be absent. The empty string
// stands for "no secret" and is returned unchanged.
func (c *Cipher) EncryptOptional(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	return c.Encrypt(plaintext)
}

// DecryptOptional is the inverse of EncryptOptional.
func (c *Cipher) DecryptOptional(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return c.Decrypt(value)
}

// ParseKey decodes key material given as 64 hex characters or as base64
// (standard or URL alphabet, padded or not).
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("encryption key is empty")
	}
	if len(s) == hex.EncodedLen(KeySize) {
		if key, err := hex.DecodeString(s); err == nil {
			return key, nil
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		key, err := enc.DecodeString(s)
		if err == nil && len(key) == KeySize {
			return key, nil
		}
	}
	return nil, fmt.Errorf("encryption key must be %d bytes encoded as hex or base64", KeySize)
}

// GenerateKey returns a new random key, hex encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
