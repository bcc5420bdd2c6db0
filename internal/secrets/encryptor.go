// Package secrets encrypts download client credentials at rest.
//
// Values are sealed with XChaCha20-Poly1305 under a key derived from the
// configured passphrase and stored as "enc:v1:" + base64(nonce||ciphertext).
// Values without the prefix are treated as legacy plaintext: Decrypt returns
// them unchanged so that definitions stored before encryption was enabled
// keep working.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

const prefix = "enc:v1:"

// ErrNoKey is returned by Encrypt when no encryption key is configured.
var ErrNoKey = errors.New("no encryption key configured")

// Encryptor seals and opens credential strings. A nil *Encryptor is valid
// and means "no encryption configured": Encrypt stores plaintext and
// Decrypt passes values through.
type Encryptor struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// New derives a key from the passphrase and returns an Encryptor.
// An empty passphrase yields nil, the "no encryption" variant.
func New(passphrase string) (*Encryptor, error) {
	if passphrase == "" {
		return nil, nil
	}
	key := sha256.Sum256([]byte(passphrase))
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	return &Encryptor{aead: aead}, nil
}

// Encrypt seals plaintext. With no key configured the value is returned
// unchanged, so callers never need to special-case the nil encryptor.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if e == nil {
		return plaintext, nil
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a stored value. Legacy plaintext (no prefix) is returned
// as-is with ok=false so the caller can log the fallback.
func (e *Encryptor) Decrypt(stored string) (value string, encrypted bool, err error) {
	if !strings.HasPrefix(stored, prefix) {
		return stored, false, nil
	}
	if e == nil {
		return "", true, ErrNoKey
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, prefix))
	if err != nil {
		return "", true, fmt.Errorf("malformed encrypted value: %w", err)
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return "", true, errors.New("malformed encrypted value: too short")
	}
	nonce, ciphertext := raw[:chacha20poly1305.NonceSizeX], raw[chacha20poly1305.NonceSizeX:]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", true, fmt.Errorf("failed to decrypt value: %w", err)
	}
	return string(plaintext), true, nil
}

// IsEncrypted reports whether a stored value carries the encryption prefix.
func IsEncrypted(stored string) bool {
	return strings.HasPrefix(stored, prefix)
}
