package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/mnhsh/time-capsule/internal/user"
)

type userRecord struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func userKey(id uuid.UUID) []byte {
	return []byte("user/" + id.String())
}

func emailKey(email string) []byte {
	return []byte("email/" + email)
}

// Users is a user.Repository backed by BadgerDB.
type Users struct {
	db *DB
}

func NewUsers(db *DB) *Users {
	return &Users{db: db}
}

func (s *Users) Create(ctx context.Context, u *user.User) error {
	now := time.Now().UTC()
	rec := userRecord{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	err = s.db.update(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(rec.Email)); err == nil {
			return user.ErrEmailTaken
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(userKey(rec.ID), data); err != nil {
			return err
		}
		return txn.Set(emailKey(rec.Email), []byte(rec.ID.String()))
	})
	if errors.Is(err, badger.ErrConflict) {
		return user.ErrEmailTaken
	}
	if err != nil {
		return err
	}

	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

func (s *Users) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	var u *user.User
	err := s.db.view(ctx, func(txn *badger.Txn) error {
		var err error
		u, err = getUser(txn, id)
		return err
	})
	return u, err
}

func (s *Users) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var u *user.User
	err := s.db.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return user.ErrNotFound
		}
		if err != nil {
			return err
		}
		var id uuid.UUID
		if err := item.Value(func(val []byte) error {
			id, err = uuid.ParseBytes(val)
			return err
		}); err != nil {
			return fmt.Errorf("bad email index for %s: %w", email, err)
		}
		u, err = getUser(txn, id)
		return err
	})
	return u, err
}

func getUser(txn *badger.Txn, id uuid.UUID) (*user.User, error) {
	item, err := txn.Get(userKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var rec userRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, err
	}
	return &user.User{
		ID:           rec.ID,
		Username:     rec.Username,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}
