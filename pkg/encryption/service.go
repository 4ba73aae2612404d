// Package encryption provides AES-256-GCM encryption for OAuth credentials
// at rest. Tokens are never stored in plaintext.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Common errors
var (
	ErrKeyNotConfigured = errors.New("encryption key not configured")
	ErrDecryptionFailed = errors.New("failed to decrypt data")
)

// Service encrypts and decrypts credential material with AES-256-GCM.
// The key is a 64-character hex string (32 bytes).
type Service struct {
	key []byte
}

// New creates a Service from a hex-encoded 256-bit key. An empty key yields
// a disabled service that errors on use; callers check IsConfigured.
func New(hexKey string) (*Service, error) {
	if hexKey == "" {
		return &Service{}, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: must be hex-encoded: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("invalid encryption key: must be 256 bits (32 bytes), got %d bytes", len(key))
	}
	return &Service{key: key}, nil
}

// IsConfigured returns true if an encryption key has been set.
func (s *Service) IsConfigured() bool {
	return len(s.key) == 32
}

// EncryptString encrypts plaintext and returns base64(nonce || ciphertext).
func (s *Service) EncryptString(plaintext string) (string, error) {
	if !s.IsConfigured() {
		return "", ErrKeyNotConfigured
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptString reverses EncryptString.
func (s *Service) DecryptString(encoded string) (string, error) {
	if !s.IsConfigured() {
		return "", ErrKeyNotConfigured
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64", ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecryptionFailed)
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}
