package stegano

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Algorithm selects the embedding scheme used by a Stegano instance
type Algorithm uint8

const (
	// AlgorithmF5 embeds with a (1, 15, 4) matrix code over quantized DCT coefficients
	AlgorithmF5 Algorithm = iota
	// AlgorithmDCT forces the sign of one mid-frequency luma coefficient per 8x8 block
	AlgorithmDCT
	// AlgorithmQIM rounds samples of one RGB channel onto one of two interleaved lattices
	AlgorithmQIM
)

// String returns the configuration name of the algorithm
func (a Algorithm) String() string {
	switch a {
	case AlgorithmF5:
		return "f5"
	case AlgorithmDCT:
		return "dct"
	case AlgorithmQIM:
		return "qim"
	default:
		return "unknown"
	}
}

// ParseAlgorithm resolves a configuration selector. Matching is case-insensitive,
// "dct_stegano" is accepted as an alias of "dct" and the empty string selects F5.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "f5":
		return AlgorithmF5, nil
	case "dct", "dct_stegano":
		return AlgorithmDCT, nil
	case "qim":
		return AlgorithmQIM, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s)
	}
}

// Format is an image container the façade can write
type Format uint8

const (
	FormatPNG Format = iota
	FormatJPEG
	FormatBMP
	FormatTIFF
)

// String returns the canonical lowercase name of the format
func (f Format) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatJPEG:
		return "jpeg"
	case FormatBMP:
		return "bmp"
	case FormatTIFF:
		return "tiff"
	default:
		return "unknown"
	}
}

// Extension returns the file extension without the leading dot
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return f.String()
}

// MIMEType returns the media type of the format, or application/octet-stream
func (f Format) MIMEType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPEG:
		return "image/jpeg"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}

// ParseFormat resolves an output format name such as "PNG", ".jpg" or "jpeg".
// The empty string selects PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "bmp":
		return FormatBMP, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Channel names one plane of an RGB carrier. The zero value means "use the
// algorithm's default channel".
type Channel uint8

const (
	channelDefault Channel = iota
	ChannelRed
	ChannelGreen
	ChannelBlue
)

// String returns the channel name
func (c Channel) String() string {
	switch c {
	case channelDefault:
		return "default"
	case ChannelRed:
		return "red"
	case ChannelGreen:
		return "green"
	case ChannelBlue:
		return "blue"
	default:
		return "unknown"
	}
}

func (c Channel) index() int {
	return int(c) - 1
}

// CipherSuite represents the AEAD used for identifier payloads
type CipherSuite uint8

const (
	// CipherAuto selects ChaCha20-Poly1305
	CipherAuto CipherSuite = iota
	// CipherAES256GCM uses AES-256 with Galois/Counter Mode
	CipherAES256GCM
	// CipherChaCha20Poly1305 uses ChaCha20 stream cipher with Poly1305 MAC
	CipherChaCha20Poly1305
)

// String returns the string representation of the cipher suite
func (c CipherSuite) String() string {
	switch c {
	case CipherAuto:
		return "auto"
	case CipherAES256GCM:
		return "aes-256-gcm"
	case CipherChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}

// ParseCipherSuite resolves a cipher suite name; the empty string selects CipherAuto
func ParseCipherSuite(s string) (CipherSuite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return CipherAuto, nil
	case "aes-256-gcm", "aes256gcm", "aes":
		return CipherAES256GCM, nil
	case "chacha20-poly1305", "chacha20poly1305", "chacha":
		return CipherChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCipher, s)
	}
}

const (
	// DefaultDCTStrength is the amplitude forced onto the embedding coefficient
	DefaultDCTStrength = 35.0

	// DefaultQIMDelta is the lattice step of the QIM embedder
	DefaultQIMDelta = 4.0

	// DefaultJPEGQuality is used when writing JPEG output
	DefaultJPEGQuality = 100
)

// Config contains configuration for the steganography façade
type Config struct {
	// Algorithm selects the embedder
	Algorithm Algorithm

	// Strength is the DCT embedding amplitude (default 35)
	Strength float64

	// Delta is the QIM lattice step (default 4)
	Delta float64

	// QIMChannel is the plane the QIM embedder writes (default blue)
	QIMChannel Channel

	// F5Channel is the plane the matrix-code embedder writes (default green)
	F5Channel Channel

	// JPEGQuality is used for JPEG output (default 100)
	JPEGQuality int

	// Logger receives debug output; logrus.New() when nil
	Logger *logrus.Logger
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.Algorithm > AlgorithmQIM {
		return &ValidationError{Field: "algorithm", Value: c.Algorithm, Message: "unsupported algorithm", Err: ErrUnsupportedAlgorithm}
	}
	if c.Strength < 0 {
		return NewValidationError("strength", c.Strength, "strength cannot be negative")
	}
	if c.Delta < 0 || c.Delta >= 256 {
		return NewValidationError("delta", c.Delta, "delta must be in [0, 256)")
	}
	if c.QIMChannel > ChannelBlue {
		return NewValidationError("qim_channel", c.QIMChannel, "unknown channel")
	}
	if c.F5Channel > ChannelBlue {
		return NewValidationError("f5_channel", c.F5Channel, "unknown channel")
	}
	if c.JPEGQuality < 0 || c.JPEGQuality > 100 {
		return NewValidationError("jpeg_quality", c.JPEGQuality, "quality must be in [0, 100]")
	}
	return nil
}

// withDefaults returns a copy with zero values replaced by defaults
func (c Config) withDefaults() Config {
	if c.Strength == 0 {
		c.Strength = DefaultDCTStrength
	}
	if c.Delta == 0 {
		c.Delta = DefaultQIMDelta
	}
	if c.QIMChannel == channelDefault {
		c.QIMChannel = ChannelBlue
	}
	if c.F5Channel == channelDefault {
		c.F5Channel = ChannelGreen
	}
	if c.JPEGQuality == 0 {
		c.JPEGQuality = DefaultJPEGQuality
	}
	if c.Logger == nil {
		c.Logger = logrus.New()
	}
	return c
}
