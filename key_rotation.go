package stegano

import (
	"errors"
	"fmt"
)

// KeyRing holds the current identifier cipher and the ciphers of retired
// master keys. New payloads are always sealed with the primary; opening tries
// each cipher in order, so images signed before a rotation keep verifying.
type KeyRing struct {
	ciphers []*IdentifierCipher
}

// NewKeyRing creates a key ring. The first cipher is the primary.
func NewKeyRing(ciphers ...*IdentifierCipher) (*KeyRing, error) {
	if len(ciphers) == 0 {
		return nil, fmt.Errorf("at least one identifier cipher required")
	}
	for i, c := range ciphers {
		if c == nil {
			return nil, fmt.Errorf("identifier cipher %d is nil", i)
		}
	}
	return &KeyRing{ciphers: ciphers}, nil
}

// NewKeyRingFromHex builds a key ring from hex master keys, primary first
func NewKeyRingFromHex(suite CipherSuite, primary string, previous ...string) (*KeyRing, error) {
	hexKeys := append([]string{primary}, previous...)
	ciphers := make([]*IdentifierCipher, 0, len(hexKeys))
	for i, k := range hexKeys {
		c, err := NewIdentifierCipher(&CipherConfig{Suite: suite, KeyProvider: NewHexKeyProvider(k)})
		if err != nil {
			return nil, fmt.Errorf("master key %d: %w", i, err)
		}
		ciphers = append(ciphers, c)
	}
	return NewKeyRing(ciphers...)
}

// Primary returns the cipher used for new payloads
func (k *KeyRing) Primary() *IdentifierCipher {
	return k.ciphers[0]
}

// Len returns the number of ciphers in the ring
func (k *KeyRing) Len() int {
	return len(k.ciphers)
}

// EncryptIdentifier seals id with the primary cipher
func (k *KeyRing) EncryptIdentifier(id uint64) (string, error) {
	return k.Primary().EncryptIdentifier(id)
}

// DecryptIdentifier tries every cipher in order. A malformed payload fails
// immediately since no key can open it.
func (k *KeyRing) DecryptIdentifier(payload string) (string, error) {
	var lastErr error
	for _, c := range k.ciphers {
		id, err := c.DecryptIdentifier(payload)
		if err == nil {
			return id, nil
		}
		if errors.Is(err, ErrMalformedPayload) {
			return "", err
		}
		lastErr = err
	}
	return "", lastErr
}

// DecryptUserID opens payload with the ring and parses the numeric identifier
func (k *KeyRing) DecryptUserID(payload string) (uint64, error) {
	return decryptUserID(k, payload)
}

// Rotate re-seals payload under the primary cipher
func (k *KeyRing) Rotate(payload string) (string, error) {
	id, err := k.DecryptIdentifier(payload)
	if err != nil {
		return "", err
	}
	return k.Primary().EncryptString(id)
}

var _ PayloadCipher = (*KeyRing)(nil)
