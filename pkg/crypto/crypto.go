package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

var (
	// ErrNoKey is returned when no encryption key has been configured.
	ErrNoKey = errors.New("encryption key not configured")
	// ErrMalformedCiphertext is returned when a stored value does not match
	// the nonce:ciphertext layout. Distinct from ErrNoKey so callers can tell
	// corrupted storage apart from missing configuration.
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
)

// Encrypt seals plaintext with AES-GCM under a key derived from the
// configured secret. Output is base64(nonce) + ":" + base64(ciphertext);
// the nonce is random per call, so encrypting the same value twice yields
// different results.
func Encrypt(plaintext, key string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(nonce) + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func Decrypt(encrypted, key string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	parts := strings.Split(encrypted, ":")
	if len(parts) != 2 {
		return "", ErrMalformedCiphertext
	}

	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	sealed, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	if len(nonce) != gcm.NonceSize() {
		return "", ErrMalformedCiphertext
	}

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	return string(plaintext), nil
}

func newGCM(key string) (cipher.AEAD, error) {
	if key == "" {
		return nil, ErrNoKey
	}

	// Derive a fixed-size AES-256 key from the configured secret
	derived := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(derived[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
