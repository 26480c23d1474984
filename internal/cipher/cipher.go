// Package cipher encrypts sync payloads with AES-256-GCM. The output format
// is base64(iv || ciphertext || tag) with a 12-byte random IV, and the shared
// key travels between devices as the base64url "k" member of a JWK, so other
// clients can decrypt what this one writes and the other way round.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// KeySize is the raw key length in bytes.
const KeySize = 32

const nonceSize = 12

// ErrInvalidKey is returned when a shared key cannot be decoded.
var ErrInvalidKey = errors.New("invalid shared key")

// ErrInvalidCiphertext is returned for input too short or not base64.
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// Cipher provides an interface for payload encryption.
type Cipher interface {
	// Encrypt seals plaintext and returns the base64 envelope.
	Encrypt(plaintext []byte) (string, error)

	// Decrypt opens a base64 envelope. Authentication failures are errors.
	Decrypt(envelope string) ([]byte, error)
}

// AESGCM is the AES-256-GCM implementation of Cipher.
type AESGCM struct {
	aead gocipher.AEAD
}

// New builds a cipher from a base64url-encoded key.
func New(key string) (*AESGCM, error) {
	raw, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	return NewFromBytes(raw)
}

// NewFromBytes builds a cipher from a raw 32-byte key.
func NewFromBytes(raw []byte) (*AESGCM, error) {
	if len(raw) != KeySize {
		return nil, fmt.Errorf("NewFromBytes: %w: want %d bytes, got %d", ErrInvalidKey, KeySize, len(raw))
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("NewFromBytes: aes: %w", err)
	}
	aead, err := gocipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("NewFromBytes: gcm: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

// Encrypt implements Cipher.
func (c *AESGCM) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, nonceSize, nonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("Encrypt: nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt implements Cipher.
func (c *AESGCM) Decrypt(envelope string) ([]byte, error) {
	combined, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envelope))
	if err != nil {
		return nil, fmt.Errorf("Decrypt: %w: %v", ErrInvalidCiphertext, err)
	}
	if len(combined) < nonceSize+c.aead.Overhead() {
		return nil, fmt.Errorf("Decrypt: %w: %d bytes", ErrInvalidCiphertext, len(combined))
	}
	plaintext, err := c.aead.Open(nil, combined[:nonceSize], combined[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("Decrypt: open: %w", err)
	}
	return plaintext, nil
}

// GenerateKey returns a fresh random key in its shared (base64url) form.
func GenerateKey() (string, error) {
	raw := make([]byte, KeySize)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("GenerateKey: %w", err)
	}
	return FormatKey(raw), nil
}

// FormatKey encodes a raw key the way a JWK "k" member is encoded.
func FormatKey(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseKey decodes a shared key. Padded input and a JSON-quoted key (the
// way some clients persist it) are accepted too.
func ParseKey(key string) ([]byte, error) {
	k := strings.Trim(strings.TrimSpace(key), `"`)
	k = strings.TrimRight(k, "=")
	raw, err := base64.RawURLEncoding.DecodeString(k)
	if err != nil {
		return nil, fmt.Errorf("ParseKey: %w: %v", ErrInvalidKey, err)
	}
	if len(raw) != KeySize {
		return nil, fmt.Errorf("ParseKey: %w: want %d bytes, got %d", ErrInvalidKey, KeySize, len(raw))
	}
	return raw, nil
}

// Ensure AESGCM implements Cipher.
var _ Cipher = (*AESGCM)(nil)
