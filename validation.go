package stegano

import (
	"fmt"
)

// Input validation helpers for defensive programming

// ValidateImageData checks that an input image is present
func ValidateImageData(data []byte) error {
	if len(data) == 0 {
		return &ValidationError{
			Field:   "image",
			Message: "image data cannot be empty",
		}
	}
	return nil
}

// ValidateDimensions checks that a carrier holds at least one full 8x8 block.
// Only the block embedders need this; QIM accepts any non-empty image.
func ValidateDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return &ValidationError{
			Field:   "dimensions",
			Value:   fmt.Sprintf("%dx%d", width, height),
			Message: "image has no pixels",
		}
	}
	if width < blockSize || height < blockSize {
		return &ValidationError{
			Field:   "dimensions",
			Value:   fmt.Sprintf("%dx%d", width, height),
			Message: fmt.Sprintf("image must be at least %dx%d for block embedding", blockSize, blockSize),
			Err:     ErrImageTooSmall,
		}
	}
	return nil
}

// ValidateNonce checks if a nonce has the correct size for a cipher
func ValidateNonce(nonce []byte, cipher CipherSuite) error {
	if nonce == nil {
		return &ValidationError{
			Field:   "nonce",
			Message: "nonce cannot be nil",
		}
	}

	switch cipher {
	case CipherAuto, CipherAES256GCM, CipherChaCha20Poly1305:
	default:
		return &ValidationError{
			Field:   "cipher",
			Value:   cipher,
			Message: "unsupported cipher suite for nonce validation",
			Err:     ErrUnsupportedCipher,
		}
	}

	if len(nonce) != NonceSize {
		return &ValidationError{
			Field:   "nonce",
			Value:   len(nonce),
			Message: fmt.Sprintf("invalid nonce size: got %d bytes, expected %d bytes for %s", len(nonce), NonceSize, cipher.String()),
		}
	}

	return nil
}

// ValidateKey checks if a key has the correct size
func ValidateKey(key []byte, expectedSize int) error {
	if key == nil {
		return &ValidationError{
			Field:   "key",
			Message: "key cannot be nil",
			Err:     ErrInvalidKey,
		}
	}

	if len(key) != expectedSize {
		return &ValidationError{
			Field:   "key",
			Value:   len(key),
			Message: fmt.Sprintf("invalid key size: got %d bytes, expected %d bytes", len(key), expectedSize),
			Err:     ErrInvalidKey,
		}
	}

	return nil
}

// ValidateFilePath checks if a file path is valid (not empty)
func ValidateFilePath(path string) error {
	if path == "" {
		return &ValidationError{
			Field:   "path",
			Message: "file path cannot be empty",
		}
	}
	return nil
}
