// Package signing stamps images with the encrypted identity of the user who
// signed them and resolves stamped images back to that user.
package signing

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldfiller/stegano"
	"github.com/fieldfiller/stegano/internal/store"
	"github.com/sirupsen/logrus"
)

// Filename is the base name suggested for signed images
const Filename = "stego_image"

var (
	ErrSessionRevoked = errors.New("session revoked")
	ErrInvalidSession = errors.New("invalid session")
)

// IdentityCipher seals user IDs into embeddable text.
// *stegano.IdentifierCipher and *stegano.KeyRing implement it.
type IdentityCipher interface {
	EncryptIdentifier(id uint64) (string, error)
	DecryptUserID(payload string) (uint64, error)
}

// Engine runs the steganography façade; *stegano.Pool implements it
type Engine interface {
	Hide(ctx context.Context, image []byte, message string, format stegano.Format) ([]byte, error)
	Reveal(ctx context.Context, image []byte) (string, error)
}

// Records resolves users and records issued payloads; *store.Store implements it
type Records interface {
	GetUser(id uint64) (store.User, error)
	CreateSignature(userID uint64, payload string) (store.Signature, error)
}

// Revocations tracks logged-out tokens; *revocation.Set implements it
type Revocations interface {
	Revoke(token string) bool
	IsRevoked(token string) bool
}

// Session is an authenticated caller
type Session struct {
	Token  string
	UserID uint64
}

// SignedImage is the result of Sign
type SignedImage struct {
	Data      []byte
	Format    stegano.Format
	MIMEType  string
	Filename  string
	Signature store.Signature
}

// Config wires a Service
type Config struct {
	Cipher      IdentityCipher
	Engine      Engine
	Records     Records
	Revocations Revocations

	// Logger receives signing events; logrus.New() when nil
	Logger *logrus.Logger
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch {
	case c == nil:
		return errors.New("config cannot be nil")
	case c.Cipher == nil:
		return errors.New("cipher cannot be nil")
	case c.Engine == nil:
		return errors.New("engine cannot be nil")
	case c.Records == nil:
		return errors.New("records cannot be nil")
	case c.Revocations == nil:
		return errors.New("revocations cannot be nil")
	}
	return nil
}

// Service is safe for concurrent use
type Service struct {
	cipher  IdentityCipher
	engine  Engine
	records Records
	revoked Revocations
	log     *logrus.Logger
}

// New creates a Service
func New(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid signing config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	return &Service{
		cipher:  config.Cipher,
		engine:  config.Engine,
		records: config.Records,
		revoked: config.Revocations,
		log:     config.Logger,
	}, nil
}

func (s *Service) authorize(sess Session) (store.User, error) {
	if sess.Token == "" {
		return store.User{}, ErrInvalidSession
	}
	if s.revoked.IsRevoked(sess.Token) {
		return store.User{}, ErrSessionRevoked
	}
	user, err := s.records.GetUser(sess.UserID)
	if err != nil {
		return store.User{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return user, nil
}

// Sign hides the encrypted ID of the session user in image and records the
// payload
func (s *Service) Sign(ctx context.Context, sess Session, image []byte, format stegano.Format) (SignedImage, error) {
	user, err := s.authorize(sess)
	if err != nil {
		return SignedImage{}, err
	}

	payload, err := s.cipher.EncryptIdentifier(user.ID)
	if err != nil {
		return SignedImage{}, fmt.Errorf("error sealing identifier: %w", err)
	}

	out, err := s.engine.Hide(ctx, image, payload, format)
	if err != nil {
		return SignedImage{}, err
	}

	sig, err := s.records.CreateSignature(user.ID, payload)
	if err != nil {
		return SignedImage{}, fmt.Errorf("error recording signature: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":      user.ID,
		"signature_id": sig.ID,
		"format":       format,
		"bytes":        len(out),
	}).Info("image signed")

	return SignedImage{
		Data:      out,
		Format:    format,
		MIMEType:  format.MIMEType(),
		Filename:  Filename + "." + format.Extension(),
		Signature: sig,
	}, nil
}

// Verify extracts the payload from image and returns the user it names
func (s *Service) Verify(ctx context.Context, image []byte) (store.User, error) {
	payload, err := s.engine.Reveal(ctx, image)
	if err != nil {
		return store.User{}, err
	}

	id, err := s.cipher.DecryptUserID(payload)
	if err != nil {
		return store.User{}, err
	}

	user, err := s.records.GetUser(id)
	if err != nil {
		return store.User{}, err
	}

	s.log.WithField("user_id", user.ID).Debug("image verified")
	return user, nil
}

// Logout revokes the session token
func (s *Service) Logout(sess Session) error {
	if sess.Token == "" {
		return ErrInvalidSession
	}
	if s.revoked.Revoke(sess.Token) {
		s.log.WithField("user_id", sess.UserID).Info("session revoked")
	}
	return nil
}
