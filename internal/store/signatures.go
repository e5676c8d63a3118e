package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxPayloadLen = 500

// Signature records a payload hidden in an image on behalf of a user
type Signature struct {
	ID      uuid.UUID `json:"id"`
	UserID  uint64    `json:"user_id"`
	Payload string    `json:"payload"`
	Date    time.Time `json:"date"`
}

// SignatureUpdate holds the fields to change; nil fields are left alone
type SignatureUpdate struct {
	UserID  *uint64
	Payload *string
}

func validatePayload(p string) error {
	if p == "" || len(p) > maxPayloadLen {
		return fmt.Errorf("%w: payload must be 1 to %d characters", ErrInvalidInput, maxPayloadLen)
	}
	return nil
}

func getSignature(txn *badger.Txn, id uuid.UUID) (*Signature, error) {
	item, err := txn.Get(sigKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrSignatureNotFound
	}
	if err != nil {
		return nil, err
	}

	var sig Signature
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &sig)
	})
	if err != nil {
		return nil, fmt.Errorf("error decoding signature %s: %w", id, err)
	}
	return &sig, nil
}

func putSignature(txn *badger.Txn, sig *Signature) error {
	val, err := json.Marshal(sig)
	if err != nil {
		return err
	}
	return txn.Set(sigKey(sig.ID), val)
}

func userExists(txn *badger.Txn, id uint64) error {
	_, err := txn.Get(userKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrUserNotFound
	}
	return err
}

// CreateSignature records payload for an existing user. IDs are time-ordered
// UUIDs and the date is the UTC creation day.
func (s *Store) CreateSignature(userID uint64, payload string) (Signature, error) {
	if err := validatePayload(payload); err != nil {
		return Signature{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Signature{}, fmt.Errorf("error generating signature id: %w", err)
	}
	now := s.now().UTC()
	sig := Signature{
		ID:      id,
		UserID:  userID,
		Payload: payload,
		Date:    time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := userExists(txn, userID); err != nil {
			return err
		}
		if err := txn.Set(userSigKey(userID, id), nil); err != nil {
			return err
		}
		return putSignature(txn, &sig)
	})
	if err != nil {
		return Signature{}, err
	}

	s.log.WithFields(logrus.Fields{"signature_id": id, "user_id": userID}).Debug("signature recorded")
	return sig, nil
}

// GetSignature loads a signature by ID
func (s *Store) GetSignature(id uuid.UUID) (Signature, error) {
	var sig Signature
	err := s.db.View(func(txn *badger.Txn) error {
		got, err := getSignature(txn, id)
		if err != nil {
			return err
		}
		sig = *got
		return nil
	})
	return sig, err
}

// ListSignatures returns signatures in creation order
func (s *Store) ListSignatures(skip, limit int) ([]Signature, error) {
	var sigs []Signature
	err := s.db.View(func(txn *badger.Txn) error {
		return page(txn, prefixSig, skip, limit, func(val []byte) error {
			var sig Signature
			if err := json.Unmarshal(val, &sig); err != nil {
				return err
			}
			sigs = append(sigs, sig)
			return nil
		})
	})
	return sigs, err
}

// ListSignaturesByUser returns every signature of a user in creation order
func (s *Store) ListSignaturesByUser(userID uint64) ([]Signature, error) {
	var sigs []Signature
	err := s.db.View(func(txn *badger.Txn) error {
		if err := userExists(txn, userID); err != nil {
			return err
		}

		prefix := userSigPrefix(userID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			id, err := uuid.FromBytes(it.Item().Key()[len(prefix):])
			if err != nil {
				return err
			}
			sig, err := getSignature(txn, id)
			if err != nil {
				return err
			}
			sigs = append(sigs, *sig)
		}
		return nil
	})
	return sigs, err
}

// UpdateSignature applies the non-nil fields of upd. Moving a signature to
// another user requires that user to exist.
func (s *Store) UpdateSignature(id uuid.UUID, upd SignatureUpdate) (Signature, error) {
	if upd.Payload != nil {
		if err := validatePayload(*upd.Payload); err != nil {
			return Signature{}, err
		}
	}

	var out Signature
	err := s.db.Update(func(txn *badger.Txn) error {
		sig, err := getSignature(txn, id)
		if err != nil {
			return err
		}

		if upd.UserID != nil && *upd.UserID != sig.UserID {
			if err := userExists(txn, *upd.UserID); err != nil {
				return err
			}
			if err := txn.Delete(userSigKey(sig.UserID, id)); err != nil {
				return err
			}
			if err := txn.Set(userSigKey(*upd.UserID, id), nil); err != nil {
				return err
			}
			sig.UserID = *upd.UserID
		}
		if upd.Payload != nil {
			sig.Payload = *upd.Payload
		}

		out = *sig
		return putSignature(txn, sig)
	})
	return out, err
}

// DeleteSignature removes a signature
func (s *Store) DeleteSignature(id uuid.UUID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		sig, err := getSignature(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(userSigKey(sig.UserID, id)); err != nil {
			return err
		}
		return txn.Delete(sigKey(id))
	})
}
