package stegano

import (
	"errors"
	"fmt"
)

// Error types represent different categories of errors

// ValidationError represents a configuration or parameter validation error
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DecodeError is returned when input bytes are not an image the façade can read
type DecodeError struct {
	Format  string // Container reported by the decoder, if it got that far
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("image decode error: %s: %s", e.Format, e.Message)
	}
	return fmt.Sprintf("image decode error: %s", e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeError is returned when a valid carrier could not be written in the
// requested container
type EncodeError struct {
	Format  string // Requested output container
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *EncodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("image encode error: %s: %s", e.Format, e.Message)
	}
	return fmt.Sprintf("image encode error: %s", e.Message)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// CapacityError reports a payload that does not fit the carrier
type CapacityError struct {
	Algorithm Algorithm // Embedder that rejected the payload
	Needed    int       // Payload size in bits, headers and terminators included
	Available int       // Bits the carrier can hold
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity: %s needs %d bits, carrier holds %d", e.Algorithm, e.Needed, e.Available)
}

func (e *CapacityError) Unwrap() error {
	return ErrInsufficientCapacity
}

// AuthenticationError represents a payload whose AEAD tag did not verify
type AuthenticationError struct {
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication error: %s", e.Message)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IOError represents a file system I/O error
type IOError struct {
	Operation string // "read", "write", "open", "close", etc.
	Path      string // File path
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("io error: %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Common sentinel errors
var (
	ErrInvalidKey           = errors.New("invalid master key")
	ErrMalformedPayload     = errors.New("malformed payload")
	ErrAuthFailed           = errors.New("authentication failed - payload may be corrupted or tampered")
	ErrUnsupportedCipher    = errors.New("unsupported cipher suite")
	ErrUnsupportedAlgorithm = errors.New("unsupported steganography algorithm")
	ErrUnsupportedFormat    = errors.New("unsupported image format")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrImageTooSmall        = errors.New("image smaller than one 8x8 block")
	ErrNoPayload            = errors.New("no payload found in image")
	ErrUnstableCarrier      = errors.New("carrier cannot hold the payload after pixel clamping")
	ErrNilConfig            = errors.New("config cannot be nil")
	ErrNilKeyProvider       = errors.New("key provider cannot be nil")
	ErrPoolClosed           = errors.New("worker pool is closed")
)

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewDecodeError creates a new image decode error
func NewDecodeError(format string, err error) error {
	return &DecodeError{
		Format:  format,
		Message: err.Error(),
		Err:     err,
	}
}

// NewEncodeError creates a new image encode error
func NewEncodeError(format string, err error) error {
	return &EncodeError{
		Format:  format,
		Message: err.Error(),
		Err:     err,
	}
}

// NewIOError creates a new I/O error
func NewIOError(operation, path string, err error) error {
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(err error) error {
	return &AuthenticationError{
		Message: err.Error(),
		Err:     err,
	}
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsDecodeError checks if an error is an image decode error
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsEncodeError checks if an error is an image encode error
func IsEncodeError(err error) bool {
	var ee *EncodeError
	return errors.As(err, &ee)
}

// IsCapacityError checks if an error is a capacity error
func IsCapacityError(err error) bool {
	var ce *CapacityError
	return errors.As(err, &ce)
}

// IsIOError checks if an error is an I/O error
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	var ae *AuthenticationError
	return errors.As(err, &ae)
}
