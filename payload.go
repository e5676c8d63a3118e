package stegano

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"unicode/utf8"
)

// PayloadCipher turns numeric identifiers into embeddable text and back
type PayloadCipher interface {
	EncryptIdentifier(id uint64) (string, error)
	DecryptIdentifier(payload string) (string, error)
}

// CipherConfig configures an IdentifierCipher
type CipherConfig struct {
	// Suite selects the AEAD (default ChaCha20-Poly1305)
	Suite CipherSuite

	// KeyProvider supplies the master key
	KeyProvider KeyProvider

	// SubstitutionShift rotates identifiers before sealing (default 5)
	SubstitutionShift int
}

// Validate checks if the configuration is valid
func (c *CipherConfig) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.KeyProvider == nil {
		return ErrNilKeyProvider
	}
	if c.Suite > CipherChaCha20Poly1305 {
		return ErrUnsupportedCipher
	}
	return nil
}

// IdentifierCipher seals identifiers as base64(nonce || ciphertext || tag).
// The derived key is computed once at construction; the type is safe for
// concurrent use.
type IdentifierCipher struct {
	engine CipherEngine
	shift  int
}

// NewIdentifierCipher derives the AEAD key from the configured master key.
// A missing or malformed master key fails here, at service start.
func NewIdentifierCipher(config *CipherConfig) (*IdentifierCipher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cipher config: %w", err)
	}

	master, err := config.KeyProvider.MasterKey()
	if err != nil {
		return nil, err
	}

	key, err := DeriveKey(master)
	if err != nil {
		return nil, err
	}

	engine, err := NewCipherEngine(config.Suite, key)
	if err != nil {
		return nil, err
	}

	shift := config.SubstitutionShift
	if shift == 0 {
		shift = DefaultSubstitutionShift
	}

	return &IdentifierCipher{engine: engine, shift: shift}, nil
}

// EncryptIdentifier seals the decimal form of id
func (c *IdentifierCipher) EncryptIdentifier(id uint64) (string, error) {
	return c.EncryptString(strconv.FormatUint(id, 10))
}

// EncryptString substitutes s, seals it under a fresh nonce and returns the
// base64 payload
func (c *IdentifierCipher) EncryptString(s string) (string, error) {
	nonce, err := GenerateNonce(c.engine)
	if err != nil {
		return "", err
	}

	ciphertext, err := c.engine.Encrypt(nonce, []byte(Substitute(s, c.shift)))
	if err != nil {
		return "", fmt.Errorf("failed to seal payload: %w", err)
	}

	combined := make([]byte, 0, len(nonce)+len(ciphertext))
	combined = append(combined, nonce...)
	combined = append(combined, ciphertext...)
	return base64.StdEncoding.EncodeToString(combined), nil
}

// DecryptIdentifier opens a payload produced by EncryptIdentifier or
// EncryptString. It fails with ErrMalformedPayload when the text is not base64
// or is shorter than nonce+tag, and with an *AuthenticationError when the tag
// does not verify.
func (c *IdentifierCipher) DecryptIdentifier(payload string) (string, error) {
	combined, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base64: %v", ErrMalformedPayload, err)
	}

	if len(combined) < c.engine.NonceSize()+c.engine.Overhead() {
		return "", fmt.Errorf("%w: payload too short (%d bytes)", ErrMalformedPayload, len(combined))
	}

	nonce := combined[:c.engine.NonceSize()]
	plaintext, err := c.engine.Decrypt(nonce, combined[c.engine.NonceSize():])
	if err != nil {
		return "", NewAuthenticationError(err)
	}
	if !utf8.Valid(plaintext) {
		return "", NewAuthenticationError(ErrAuthFailed)
	}

	return Unsubstitute(string(plaintext), c.shift), nil
}

// DecryptUserID opens payload and parses the identifier as an unsigned integer
func (c *IdentifierCipher) DecryptUserID(payload string) (uint64, error) {
	return decryptUserID(c, payload)
}

func decryptUserID(pc PayloadCipher, payload string) (uint64, error) {
	s, err := pc.DecryptIdentifier(payload)
	if err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: identifier %q is not numeric", ErrMalformedPayload, s)
	}
	return id, nil
}

var _ PayloadCipher = (*IdentifierCipher)(nil)
