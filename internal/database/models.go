package database

import (
	"time"

	"github.com/google/uuid"
)

type Capsule struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Message    string
	UnlockAt   time.Time
	UnlockCode string
	IsExpired  bool
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
