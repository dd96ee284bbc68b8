package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mnhsh/time-capsule/internal/user"
)

// Users is an in-memory user.Repository.
type Users struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]user.User
	byEmail map[string]uuid.UUID
}

func NewUsers() *Users {
	return &Users{
		byID:    make(map[uuid.UUID]user.User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *Users) Create(ctx context.Context, u *user.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[u.Email]; ok {
		return user.ErrEmailTaken
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	s.byID[u.ID] = *u
	s.byEmail[u.Email] = u.ID
	return nil
}

func (s *Users) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return &u, nil
}

func (s *Users) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	u := s.byID[id]
	return &u, nil
}
