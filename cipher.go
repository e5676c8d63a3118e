package stegano

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// NonceSize is the AEAD nonce length carried at the front of every payload
	NonceSize = 12

	// TagSize is the AEAD authentication tag length
	TagSize = 16
)

// CipherEngine provides AEAD encryption/decryption
type CipherEngine interface {
	// Encrypt seals plaintext with the given nonce; the tag is appended
	Encrypt(nonce, plaintext []byte) ([]byte, error)

	// Decrypt opens ciphertext||tag with the given nonce
	Decrypt(nonce, ciphertext []byte) ([]byte, error)

	// NonceSize returns the size of nonces in bytes
	NonceSize() int

	// Overhead returns the authentication tag size
	Overhead() int
}

// aeadEngine adapts a cipher.AEAD to CipherEngine
type aeadEngine struct {
	suite CipherSuite
	aead  cipher.AEAD
}

// NewCipherEngine creates a cipher engine for suite keyed with a 32-byte key.
// CipherAuto resolves to ChaCha20-Poly1305.
func NewCipherEngine(suite CipherSuite, key []byte) (CipherEngine, error) {
	if err := ValidateKey(key, DerivedKeySize); err != nil {
		return nil, err
	}

	switch suite {
	case CipherAuto, CipherChaCha20Poly1305:
		aead, err := chacha20poly1305.New(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
		}
		return &aeadEngine{suite: CipherChaCha20Poly1305, aead: aead}, nil
	case CipherAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create AES cipher: %w", err)
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM: %w", err)
		}
		return &aeadEngine{suite: CipherAES256GCM, aead: aead}, nil
	default:
		return nil, ErrUnsupportedCipher
	}
}

// Encrypt encrypts plaintext
func (e *aeadEngine) Encrypt(nonce, plaintext []byte) ([]byte, error) {
	if err := ValidateNonce(nonce, e.suite); err != nil {
		return nil, err
	}
	return e.aead.Seal(nil, nonce, plaintext, nil), nil
}

// Decrypt decrypts and authenticates ciphertext
func (e *aeadEngine) Decrypt(nonce, ciphertext []byte) ([]byte, error) {
	if err := ValidateNonce(nonce, e.suite); err != nil {
		return nil, err
	}

	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// NonceSize returns the nonce size (12 bytes for both suites)
func (e *aeadEngine) NonceSize() int {
	return e.aead.NonceSize()
}

// Overhead returns the authentication tag size (16 bytes)
func (e *aeadEngine) Overhead() int {
	return e.aead.Overhead()
}

// String names the suite behind the engine
func (e *aeadEngine) String() string {
	return e.suite.String()
}

// GenerateNonce draws a fresh nonce for engine from the system CSPRNG.
// Every call is independent, so concurrent sealers never coordinate.
func GenerateNonce(engine CipherEngine) ([]byte, error) {
	nonce := make([]byte, engine.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}
