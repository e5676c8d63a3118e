package stegano

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// MasterKeySize is the decoded size of the hex master key
	MasterKeySize = 32

	// DerivedKeySize is the size of the AEAD key derived from the master key
	DerivedKeySize = 32

	// KeyDerivationInfo is the HKDF info label used for domain separation
	KeyDerivationInfo = "stegano-chacha20-key-derivation"

	// DefaultMasterKeyEnv is the environment variable read by NewEnvKeyProvider("")
	DefaultMasterKeyEnv = "CRYPTO_MASTER_KEY"
)

// KeyProvider supplies the raw master key
type KeyProvider interface {
	// MasterKey returns the 32-byte master key
	MasterKey() ([]byte, error)
}

// HexKeyProvider implements KeyProvider over a 64 character hex string
type HexKeyProvider struct {
	hexKey string
}

// NewHexKeyProvider creates a provider for a hex encoded master key
func NewHexKeyProvider(hexKey string) *HexKeyProvider {
	return &HexKeyProvider{hexKey: hexKey}
}

// MasterKey decodes and validates the key
func (p *HexKeyProvider) MasterKey() ([]byte, error) {
	return ParseMasterKey(p.hexKey)
}

// EnvKeyProvider implements KeyProvider using an environment variable
type EnvKeyProvider struct {
	envVar string
}

// NewEnvKeyProvider creates a new environment variable key provider.
// An empty name selects CRYPTO_MASTER_KEY.
func NewEnvKeyProvider(envVar string) *EnvKeyProvider {
	if envVar == "" {
		envVar = DefaultMasterKeyEnv
	}
	return &EnvKeyProvider{envVar: envVar}
}

// MasterKey reads the hex key from the environment variable
func (e *EnvKeyProvider) MasterKey() ([]byte, error) {
	keyHex := os.Getenv(e.envVar)
	if keyHex == "" {
		return nil, &ValidationError{
			Field:   e.envVar,
			Message: "environment variable not set; generate a 32-byte random key and set it as hex",
			Err:     ErrInvalidKey,
		}
	}
	return ParseMasterKey(keyHex)
}

// ParseMasterKey decodes a 64 character hex string into a 32-byte key
func ParseMasterKey(hexKey string) ([]byte, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, &ValidationError{Field: "master_key", Message: "master key is empty", Err: ErrInvalidKey}
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, &ValidationError{Field: "master_key", Message: "master key must be a valid hex string", Err: ErrInvalidKey}
	}

	if len(key) != MasterKeySize {
		return nil, &ValidationError{
			Field:   "master_key",
			Value:   len(key),
			Message: fmt.Sprintf("master key must be %d bytes (%d hex chars), got %d bytes", MasterKeySize, MasterKeySize*2, len(key)),
			Err:     ErrInvalidKey,
		}
	}
	return key, nil
}

// DeriveKey derives the 256-bit AEAD key from master with HKDF-SHA-256, an
// empty salt and the KeyDerivationInfo label. The result is deterministic.
func DeriveKey(master []byte) ([]byte, error) {
	if err := ValidateKey(master, MasterKeySize); err != nil {
		return nil, err
	}

	reader := hkdf.New(sha256.New, master, nil, []byte(KeyDerivationInfo))
	key := make([]byte, DerivedKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// GenerateMasterKey returns a fresh random master key in hex
func GenerateMasterKey() (string, error) {
	key := make([]byte, MasterKeySize)
	if _, err := rand.Read(key); err != nil {
		return "", fmt.Errorf("failed to generate master key: %w", err)
	}
	return hex.EncodeToString(key), nil
}
