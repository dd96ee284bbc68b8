// Package memstore keeps capsules and users in process memory. It backs the
// test suites and STORE_BACKEND=memory.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mnhsh/time-capsule/internal/capsule"
)

type capsuleEntry struct {
	c   capsule.Capsule
	seq uint64
}

// Capsules is an in-memory capsule.Repository.
type Capsules struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*capsuleEntry
	seq   uint64
	now   func() time.Time
}

func NewCapsules() *Capsules {
	return &Capsules{
		items: make(map[uuid.UUID]*capsuleEntry),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Capsules) Create(ctx context.Context, c *capsule.Capsule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[c.ID]; ok {
		return fmt.Errorf("capsule %s already exists", c.ID)
	}
	now := s.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Version = 1
	s.seq++
	s.items[c.ID] = &capsuleEntry{c: *c, seq: s.seq}
	return nil
}

func (s *Capsules) GetByID(ctx context.Context, id uuid.UUID) (*capsule.Capsule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.items[id]
	if !ok {
		return nil, capsule.ErrNotFound
	}
	c := e.c
	return &c, nil
}

func (s *Capsules) FindByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]*capsule.Capsule, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if offset < 0 || limit < 0 {
		return nil, 0, fmt.Errorf("invalid page window offset=%d limit=%d", offset, limit)
	}
	s.mu.RLock()
	owned := make([]*capsuleEntry, 0)
	for _, e := range s.items {
		if e.c.OwnerID == ownerID {
			owned = append(owned, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if !a.c.CreatedAt.Equal(b.c.CreatedAt) {
			return a.c.CreatedAt.After(b.c.CreatedAt)
		}
		return a.seq > b.seq
	})

	total := len(owned)
	if offset >= total {
		return []*capsule.Capsule{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]*capsule.Capsule, 0, end-offset)
	for _, e := range owned[offset:end] {
		c := e.c
		out = append(out, &c)
	}
	return out, total, nil
}

func (s *Capsules) FindExpiringCandidates(ctx context.Context, cutoff time.Time) ([]*capsule.Capsule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*capsule.Capsule
	for _, e := range s.items {
		if !e.c.Expired && e.c.UnlockAt.Before(cutoff) {
			c := e.c
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *Capsules) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, patch capsule.Patch) (*capsule.Capsule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok {
		return nil, capsule.ErrNotFound
	}
	if e.c.Version != expectedVersion {
		return nil, capsule.ErrConflict
	}
	patch.Apply(&e.c)
	e.c.Version++
	e.c.UpdatedAt = s.now()
	c := e.c
	return &c, nil
}

func (s *Capsules) Delete(ctx context.Context, id uuid.UUID, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok {
		return capsule.ErrNotFound
	}
	if e.c.Version != expectedVersion {
		return capsule.ErrConflict
	}
	delete(s.items, id)
	return nil
}

// Put stores c as-is, bypassing the timestamp and version bookkeeping of
// Create. Zero Version is stored as 1.
func (s *Capsules) Put(c capsule.Capsule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.Version == 0 {
		c.Version = 1
	}
	s.seq++
	s.items[c.ID] = &capsuleEntry{c: c, seq: s.seq}
}
