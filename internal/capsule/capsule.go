// Package capsule holds the time capsule entity, its storage contract and
// the lifecycle gate that decides which operations a caller may perform.
package capsule

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// RetentionWindow is how long an unlocked capsule stays readable.
const RetentionWindow = 30 * 24 * time.Hour

const previewLength = 30

type Capsule struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	Message    string
	UnlockAt   time.Time
	SecretHash string
	// Expired is the stored flag set by the sweeper. Use IsExpired for the
	// effective state.
	Expired   bool
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsUnlockable reports whether the unlock time has been reached.
func (c *Capsule) IsUnlockable(now time.Time) bool {
	return !now.Before(c.UnlockAt)
}

// IsExpired reports whether the capsule has been flagged expired or the
// retention window after its unlock time has elapsed.
func (c *Capsule) IsExpired(now time.Time) bool {
	return c.Expired || now.After(c.ExpiresAt())
}

func (c *Capsule) ExpiresAt() time.Time {
	return c.UnlockAt.Add(RetentionWindow)
}

// Preview returns the first characters of the message followed by an
// ellipsis.
func (c *Capsule) Preview() string {
	msg := c.Message
	if utf8.RuneCountInString(msg) > previewLength {
		msg = string([]rune(msg)[:previewLength])
	}
	return msg + "..."
}

// Patch lists the fields of an update. Nil fields keep their stored value.
type Patch struct {
	Message  *string
	UnlockAt *time.Time
	Expired  *bool
}

func (p Patch) Empty() bool {
	return p.Message == nil && p.UnlockAt == nil && p.Expired == nil
}

// Apply copies the set fields of p onto c.
func (p Patch) Apply(c *Capsule) {
	if p.Message != nil {
		c.Message = *p.Message
	}
	if p.UnlockAt != nil {
		c.UnlockAt = *p.UnlockAt
	}
	if p.Expired != nil {
		c.Expired = *p.Expired
	}
}

// Repository is durable capsule storage keyed by ID. Every call is atomic.
//
// Create assigns CreatedAt, UpdatedAt and Version 1. Update and Delete only
// succeed when the stored version equals expectedVersion and return
// ErrConflict otherwise; a successful Update increments Version and sets
// UpdatedAt. Lookups of unknown IDs return ErrNotFound.
type Repository interface {
	Create(ctx context.Context, c *Capsule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Capsule, error)
	// FindByOwner returns one page of the owner's capsules, newest created
	// first, and the owner's total capsule count.
	FindByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]*Capsule, int, error)
	// FindExpiringCandidates returns capsules not yet flagged expired whose
	// unlock time is before cutoff.
	FindExpiringCandidates(ctx context.Context, cutoff time.Time) ([]*Capsule, error)
	Update(ctx context.Context, id uuid.UUID, expectedVersion int64, patch Patch) (*Capsule, error)
	Delete(ctx context.Context, id uuid.UUID, expectedVersion int64) error
}
