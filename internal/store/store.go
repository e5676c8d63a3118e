// Package store persists users and the signature payloads issued to them in
// an embedded badger database.
//
// Key layout:
//
//	user/<id:8 BE>              -> userRecord (JSON)
//	login/<login>               -> id:8 BE
//	sig/<uuid:16>               -> Signature (JSON)
//	usersig/<id:8 BE><uuid:16>  -> empty
//	seq/user                    -> badger sequence for user IDs
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	prefixUser    = []byte("user/")
	prefixLogin   = []byte("login/")
	prefixSig     = []byte("sig/")
	prefixUserSig = []byte("usersig/")
	keyUserSeq    = []byte("seq/user")
)

// DefaultListLimit is used when a list call passes a non-positive limit
const DefaultListLimit = 100

// Config configures a Store
type Config struct {
	// Dir is the badger directory; ignored when InMemory is set
	Dir string

	// InMemory keeps all data in memory, for tests and throwaway runs
	InMemory bool

	// Password tunes the argon2id login hashes
	Password Argon2idParams

	// Logger receives store events; logrus.New() when nil
	Logger *logrus.Logger
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config cannot be nil")
	}
	if !c.InMemory && c.Dir == "" {
		return errors.New("data directory must be set unless running in memory")
	}
	return c.Password.Validate()
}

// Store is safe for concurrent use
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	params Argon2idParams
	log    *logrus.Logger
	now    func() time.Time
}

// Open opens or creates the database described by config
func Open(config Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = logrus.New()
	}

	opts := badger.DefaultOptions(config.Dir)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("error opening badger at %q: %w", config.Dir, err)
	}

	seq, err := db.GetSequence(keyUserSeq, 16)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating user sequence: %w", err)
	}

	config.Logger.WithFields(logrus.Fields{
		"dir":       config.Dir,
		"in_memory": config.InMemory,
	}).Debug("store opened")

	return &Store{
		db:     db,
		seq:    seq,
		params: config.Password.withDefaults(),
		log:    config.Logger,
		now:    time.Now,
	}, nil
}

// Close releases the ID sequence and closes the database
func (s *Store) Close() error {
	seqErr := s.seq.Release()
	if err := s.db.Close(); err != nil {
		return err
	}
	return seqErr
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func join(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	key := make([]byte, 0, n)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

func userKey(id uint64) []byte {
	return join(prefixUser, uint64Bytes(id))
}

func loginKey(login string) []byte {
	return join(prefixLogin, []byte(login))
}

func sigKey(id uuid.UUID) []byte {
	return join(prefixSig, id[:])
}

func userSigPrefix(userID uint64) []byte {
	return join(prefixUserSig, uint64Bytes(userID))
}

func userSigKey(userID uint64, id uuid.UUID) []byte {
	return join(prefixUserSig, uint64Bytes(userID), id[:])
}

// page walks the keys under prefix in order, skipping the first skip entries
// and stopping after limit, and hands each value to fn
func page(txn *badger.Txn, prefix []byte, skip, limit int, fn func(val []byte) error) error {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	seen := 0
	for it.Rewind(); it.Valid() && seen < skip+limit; it.Next() {
		if seen < skip {
			seen++
			continue
		}
		seen++
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(val); err != nil {
			return err
		}
	}
	return nil
}
