package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

const (
	maxNameLen  = 100
	maxLoginLen = 50
)

// User is a registered signer
type User struct {
	ID        uint64 `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Login     string `json:"login"`
}

// userRecord is the stored form of a User
type userRecord struct {
	User
	PasswordHash string `json:"password_hash"`
}

// UserInput holds the fields of a new user
type UserInput struct {
	FirstName string
	LastName  string
	Login     string
	Password  string
}

// UserUpdate holds the fields to change; nil fields are left alone
type UserUpdate struct {
	FirstName *string
	LastName  *string
	Login     *string
	Password  *string
}

func validateName(field, v string) error {
	if v == "" || len(v) > maxNameLen {
		return fmt.Errorf("%w: %s must be 1 to %d characters", ErrInvalidInput, field, maxNameLen)
	}
	return nil
}

func validateLogin(v string) error {
	if v == "" || len(v) > maxLoginLen {
		return fmt.Errorf("%w: login must be 1 to %d characters", ErrInvalidInput, maxLoginLen)
	}
	return nil
}

func validatePassword(v string) error {
	if v == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrInvalidInput)
	}
	return nil
}

func (in UserInput) validate() error {
	if err := validateName("first name", in.FirstName); err != nil {
		return err
	}
	if err := validateName("last name", in.LastName); err != nil {
		return err
	}
	if err := validateLogin(in.Login); err != nil {
		return err
	}
	return validatePassword(in.Password)
}

func getUserRecord(txn *badger.Txn, id uint64) (*userRecord, error) {
	item, err := txn.Get(userKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec userRecord
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("error decoding user %d: %w", id, err)
	}
	return &rec, nil
}

func putUserRecord(txn *badger.Txn, rec *userRecord) error {
	val, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(userKey(rec.ID), val)
}

// loginOwner returns the ID holding login, or 0 when it is free
func loginOwner(txn *badger.Txn, login string) (uint64, error) {
	item, err := txn.Get(loginKey(login))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(val), nil
}

// CreateUser stores a new user under the next sequential ID. Logins are unique.
func (s *Store) CreateUser(in UserInput) (User, error) {
	if err := in.validate(); err != nil {
		return User{}, err
	}

	hash, err := hashPassword(in.Password, s.params)
	if err != nil {
		return User{}, err
	}

	next, err := s.seq.Next()
	if err != nil {
		return User{}, fmt.Errorf("error allocating user id: %w", err)
	}
	// badger sequences start at zero and zero is reserved for "no owner"
	rec := userRecord{
		User: User{
			ID:        next + 1,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Login:     in.Login,
		},
		PasswordHash: hash,
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		owner, err := loginOwner(txn, in.Login)
		if err != nil {
			return err
		}
		if owner != 0 {
			return ErrLoginExists
		}
		if err := txn.Set(loginKey(in.Login), uint64Bytes(rec.ID)); err != nil {
			return err
		}
		return putUserRecord(txn, &rec)
	})
	if err != nil {
		return User{}, err
	}

	s.log.WithFields(logrus.Fields{"user_id": rec.ID, "login": rec.Login}).Info("user created")
	return rec.User, nil
}

// GetUser loads a user by ID
func (s *Store) GetUser(id uint64) (User, error) {
	var user User
	err := s.db.View(func(txn *badger.Txn) error {
		rec, err := getUserRecord(txn, id)
		if err != nil {
			return err
		}
		user = rec.User
		return nil
	})
	return user, err
}

// GetUserByLogin loads a user by login
func (s *Store) GetUserByLogin(login string) (User, error) {
	var user User
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := loginOwner(txn, login)
		if err != nil {
			return err
		}
		if id == 0 {
			return ErrUserNotFound
		}
		rec, err := getUserRecord(txn, id)
		if err != nil {
			return err
		}
		user = rec.User
		return nil
	})
	return user, err
}

// ListUsers returns users in ID order
func (s *Store) ListUsers(skip, limit int) ([]User, error) {
	var users []User
	err := s.db.View(func(txn *badger.Txn) error {
		return page(txn, prefixUser, skip, limit, func(val []byte) error {
			var rec userRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			users = append(users, rec.User)
			return nil
		})
	})
	return users, err
}

// UpdateUser applies the non-nil fields of upd. A changed login must still
// be unique.
func (s *Store) UpdateUser(id uint64, upd UserUpdate) (User, error) {
	if upd.FirstName != nil {
		if err := validateName("first name", *upd.FirstName); err != nil {
			return User{}, err
		}
	}
	if upd.LastName != nil {
		if err := validateName("last name", *upd.LastName); err != nil {
			return User{}, err
		}
	}
	if upd.Login != nil {
		if err := validateLogin(*upd.Login); err != nil {
			return User{}, err
		}
	}

	var hash string
	if upd.Password != nil {
		if err := validatePassword(*upd.Password); err != nil {
			return User{}, err
		}
		h, err := hashPassword(*upd.Password, s.params)
		if err != nil {
			return User{}, err
		}
		hash = h
	}

	var user User
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := getUserRecord(txn, id)
		if err != nil {
			return err
		}

		if upd.Login != nil && *upd.Login != rec.Login {
			owner, err := loginOwner(txn, *upd.Login)
			if err != nil {
				return err
			}
			if owner != 0 && owner != id {
				return ErrLoginExists
			}
			if err := txn.Delete(loginKey(rec.Login)); err != nil {
				return err
			}
			if err := txn.Set(loginKey(*upd.Login), uint64Bytes(id)); err != nil {
				return err
			}
			rec.Login = *upd.Login
		}
		if upd.FirstName != nil {
			rec.FirstName = *upd.FirstName
		}
		if upd.LastName != nil {
			rec.LastName = *upd.LastName
		}
		if hash != "" {
			rec.PasswordHash = hash
		}

		user = rec.User
		return putUserRecord(txn, rec)
	})
	if err != nil {
		return User{}, err
	}

	s.log.WithField("user_id", id).Debug("user updated")
	return user, nil
}

// DeleteUser removes a user together with every signature issued to them
func (s *Store) DeleteUser(id uint64) error {
	var removed int
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := getUserRecord(txn, id)
		if err != nil {
			return err
		}

		prefix := userSigPrefix(id)
		var keys [][]byte
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(join(prefixSig, k[len(prefix):])); err != nil {
				return err
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		removed = len(keys)

		if err := txn.Delete(loginKey(rec.Login)); err != nil {
			return err
		}
		return txn.Delete(userKey(id))
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"user_id": id, "signatures": removed}).Info("user deleted")
	return nil
}

// Authenticate checks a login and password. Unknown logins and wrong
// passwords both yield ErrInvalidCredentials.
func (s *Store) Authenticate(login, password string) (User, error) {
	var rec *userRecord
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := loginOwner(txn, login)
		if err != nil {
			return err
		}
		if id == 0 {
			return ErrInvalidCredentials
		}
		rec, err = getUserRecord(txn, id)
		return err
	})
	if err != nil {
		return User{}, err
	}

	ok, err := verifyPassword(password, rec.PasswordHash)
	if err != nil {
		return User{}, fmt.Errorf("error verifying password for user %d: %w", rec.ID, err)
	}
	if !ok {
		s.log.WithField("login", login).Warn("failed login")
		return User{}, ErrInvalidCredentials
	}
	return rec.User, nil
}
