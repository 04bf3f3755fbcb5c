// Package crypto encrypts OAuth tokens before they reach the database.
// Rows carry the GCM nonce as a prefix, so no extra column is needed.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

// keySize is fixed at AES-256.
const keySize = 32

// ErrCiphertextTooShort is returned when a stored value is shorter than
// the nonce prefix, which means the row was truncated or never encrypted.
var ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce")

// Encrypter encrypts and decrypts token material at rest.
type Encrypter interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// AESEncrypter is an AES-256-GCM Encrypter. The zero value is unusable;
// construct it with NewAESGCMFromBase64Key.
type AESEncrypter struct {
	aead cipher.AEAD
}

// NewAESGCMFromBase64Key builds an AESEncrypter from a base64 standard
// encoding of a 32-byte key, the form GOALPOST_ENCRYPTION_KEY uses.
func NewAESGCMFromBase64Key(encodedKey string) (*AESEncrypter, error) {
	if encodedKey == "" {
		return nil, errors.New("encryption key is not set")
	}
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("encryption key is %d bytes, want %d", len(key), keySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing GCM: %w", err)
	}
	return &AESEncrypter{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. The nonce leads the
// returned slice so Decrypt can recover it.
func (e *AESEncrypter) Encrypt(plaintext []byte) ([]byte, error) {
	buf := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return e.aead.Seal(buf, buf, plaintext, nil), nil
}

// Decrypt opens a value produced by Encrypt.
func (e *AESEncrypter) Decrypt(ciphertext []byte) ([]byte, error) {
	n := e.aead.NonceSize()
	if len(ciphertext) < n {
		return nil, ErrCiphertextTooShort
	}
	plaintext, err := e.aead.Open(nil, ciphertext[:n], ciphertext[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("opening ciphertext: %w", err)
	}
	return plaintext, nil
}

// NoopEncrypter stores values as-is. The container falls back to it in
// local development when no key is configured.
type NoopEncrypter struct{}

func (NoopEncrypter) Encrypt(plaintext []byte) ([]byte, error)  { return plaintext, nil }
func (NoopEncrypter) Decrypt(ciphertext []byte) ([]byte, error) { return ciphertext, nil }
