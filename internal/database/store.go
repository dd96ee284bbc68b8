package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mnhsh/time-capsule/internal/capsule"
	"github.com/mnhsh/time-capsule/internal/user"
)

const uniqueViolation = "23505"

// SQLStore provides all functions to execute SQL queries and transactions
type SQLStore struct {
	db *sql.DB
	*Queries
}

// NewStore creates a new store
func NewStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:      db,
		Queries: New(db),
	}
}

func (s *SQLStore) execTx(ctx context.Context, fn func(*Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	q := New(tx)
	err = fn(q)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %v, rb err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// Capsules adapts the store to capsule.Repository.
func (s *SQLStore) Capsules() *CapsuleRepository {
	return &CapsuleRepository{store: s}
}

// Users adapts the store to user.Repository.
func (s *SQLStore) Users() *UserRepository {
	return &UserRepository{store: s}
}

type CapsuleRepository struct {
	store *SQLStore
}

func (r *CapsuleRepository) Create(ctx context.Context, c *capsule.Capsule) error {
	row, err := r.store.CreateCapsule(ctx, CreateCapsuleParams{
		ID:         c.ID,
		UserID:     c.OwnerID,
		Message:    c.Message,
		UnlockAt:   c.UnlockAt,
		UnlockCode: c.SecretHash,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to create capsule: %w", err)
	}
	c.CreatedAt, c.UpdatedAt, c.Version = row.CreatedAt, row.UpdatedAt, row.Version
	return nil
}

func (r *CapsuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*capsule.Capsule, error) {
	row, err := r.store.GetCapsule(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, capsule.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return toDomainCapsule(row), nil
}

func (r *CapsuleRepository) FindByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]*capsule.Capsule, int, error) {
	if offset < 0 || limit < 0 || offset > math.MaxInt32 || limit > math.MaxInt32 {
		return nil, 0, fmt.Errorf("invalid page window offset=%d limit=%d", offset, limit)
	}
	var (
		rows  []Capsule
		total int64
	)
	err := r.store.execTx(ctx, func(q *Queries) error {
		var err error
		total, err = q.CountCapsulesByUser(ctx, ownerID)
		if err != nil {
			return err
		}
		rows, err = q.ListCapsulesByUser(ctx, ListCapsulesByUserParams{
			UserID: ownerID,
			Limit:  int32(limit),
			Offset: int32(offset),
		})
		return err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list capsules: %w", err)
	}
	return toDomainCapsules(rows), int(total), nil
}

func (r *CapsuleRepository) FindExpiringCandidates(ctx context.Context, cutoff time.Time) ([]*capsule.Capsule, error) {
	rows, err := r.store.ListExpiringCapsules(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring capsules: %w", err)
	}
	return toDomainCapsules(rows), nil
}

func (r *CapsuleRepository) Update(ctx context.Context, id uuid.UUID, expectedVersion int64, patch capsule.Patch) (*capsule.Capsule, error) {
	arg := UpdateCapsuleParams{
		ID:        id,
		Version:   expectedVersion,
		UpdatedAt: time.Now().UTC(),
	}
	if patch.Message != nil {
		arg.Message = sql.NullString{String: *patch.Message, Valid: true}
	}
	if patch.UnlockAt != nil {
		arg.UnlockAt = sql.NullTime{Time: *patch.UnlockAt, Valid: true}
	}
	if patch.Expired != nil {
		arg.IsExpired = sql.NullBool{Bool: *patch.Expired, Valid: true}
	}

	var row Capsule
	err := r.store.execTx(ctx, func(q *Queries) error {
		var err error
		row, err = q.UpdateCapsule(ctx, arg)
		if errors.Is(err, sql.ErrNoRows) {
			return missingOrConflict(ctx, q, id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return toDomainCapsule(row), nil
}

func (r *CapsuleRepository) Delete(ctx context.Context, id uuid.UUID, expectedVersion int64) error {
	return r.store.execTx(ctx, func(q *Queries) error {
		n, err := q.DeleteCapsule(ctx, id, expectedVersion)
		if err != nil {
			return err
		}
		if n == 0 {
			return missingOrConflict(ctx, q, id)
		}
		return nil
	})
}

// missingOrConflict explains why a versioned write matched no row.
func missingOrConflict(ctx context.Context, q *Queries, id uuid.UUID) error {
	exists, err := q.CapsuleExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return capsule.ErrNotFound
	}
	return capsule.ErrConflict
}

func toDomainCapsule(row Capsule) *capsule.Capsule {
	return &capsule.Capsule{
		ID:         row.ID,
		OwnerID:    row.UserID,
		Message:    row.Message,
		UnlockAt:   row.UnlockAt.UTC(),
		SecretHash: row.UnlockCode,
		Expired:    row.IsExpired,
		Version:    row.Version,
		CreatedAt:  row.CreatedAt.UTC(),
		UpdatedAt:  row.UpdatedAt.UTC(),
	}
}

func toDomainCapsules(rows []Capsule) []*capsule.Capsule {
	out := make([]*capsule.Capsule, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainCapsule(row))
	}
	return out
}

type UserRepository struct {
	store *SQLStore
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	row, err := r.store.CreateUser(ctx, CreateUserParams{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	})
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return user.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.CreatedAt, u.UpdatedAt = row.CreatedAt, row.UpdatedAt
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	return toDomainUser(r.store.GetUser(ctx, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return toDomainUser(r.store.GetUserByEmail(ctx, email))
}

func toDomainUser(row User, err error) (*user.User, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user.User{
		ID:           row.ID,
		Username:     row.Username,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}
