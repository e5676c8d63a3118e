package stegano

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Embedder is one steganographic scheme operating on a decoded carrier
type Embedder interface {
	// Algorithm identifies the scheme
	Algorithm() Algorithm

	// Embed writes message into c in place
	Embed(c *Carrier, message string) error

	// Extract reads the message back from c
	Extract(c *Carrier) (string, error)

	// Capacity returns the message bits c can carry
	Capacity(c *Carrier) int
}

// NewEmbedder builds the embedder selected by config
func NewEmbedder(config *Config) (Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cfg := config.withDefaults()

	switch cfg.Algorithm {
	case AlgorithmF5:
		return NewF5Embedder(cfg.F5Channel), nil
	case AlgorithmDCT:
		return NewDCTEmbedder(cfg.Strength), nil
	case AlgorithmQIM:
		return NewQIMEmbedder(cfg.Delta, cfg.QIMChannel), nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// Stegano decodes image bytes, runs the configured embedder and re-encodes
// the result. The algorithm is fixed at construction, so an image must be
// revealed by a Stegano configured the same way it was hidden. A Stegano holds
// no mutable state and is safe for concurrent use.
type Stegano struct {
	config   Config
	embedder Embedder
	logger   *logrus.Logger
}

// New creates a façade for config
func New(config *Config) (*Stegano, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	embedder, err := NewEmbedder(config)
	if err != nil {
		return nil, err
	}

	cfg := config.withDefaults()
	return &Stegano{
		config:   cfg,
		embedder: embedder,
		logger:   cfg.Logger,
	}, nil
}

// Algorithm returns the configured algorithm
func (s *Stegano) Algorithm() Algorithm {
	return s.embedder.Algorithm()
}

// Hide embeds message into image and encodes the result as format
func (s *Stegano) Hide(image []byte, message string, format Format) ([]byte, error) {
	c, err := DecodeCarrier(image)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"algorithm": s.embedder.Algorithm(),
		"width":     c.Width,
		"height":    c.Height,
		"bits":      8 * len(message),
		"format":    format,
	}).Debug("hiding payload")

	if err := s.embedder.Embed(c, message); err != nil {
		return nil, err
	}

	out, err := c.Bytes(format, s.config.JPEGQuality)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Reveal extracts the message hidden in image
func (s *Stegano) Reveal(image []byte) (string, error) {
	c, err := DecodeCarrier(image)
	if err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"algorithm": s.embedder.Algorithm(),
		"width":     c.Width,
		"height":    c.Height,
	}).Debug("revealing payload")

	return s.embedder.Extract(c)
}

// Capacity returns the message bits image can carry with the configured algorithm
func (s *Stegano) Capacity(image []byte) (int, error) {
	c, err := DecodeCarrier(image)
	if err != nil {
		return 0, err
	}
	return s.embedder.Capacity(c), nil
}

// Hide is a convenience wrapper that selects the algorithm by name
func Hide(image []byte, message string, format Format, algorithm string) ([]byte, error) {
	s, err := newForSelector(algorithm)
	if err != nil {
		return nil, err
	}
	return s.Hide(image, message, format)
}

// Reveal is a convenience wrapper that selects the algorithm by name
func Reveal(image []byte, algorithm string) (string, error) {
	s, err := newForSelector(algorithm)
	if err != nil {
		return "", err
	}
	return s.Reveal(image)
}

func newForSelector(algorithm string) (*Stegano, error) {
	alg, err := ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	return New(&Config{Algorithm: alg})
}
