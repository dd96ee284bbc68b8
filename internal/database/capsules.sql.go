package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const capsuleColumns = `id, user_id, message, unlock_at, unlock_code, is_expired, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCapsule(row rowScanner) (Capsule, error) {
	var i Capsule
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Message,
		&i.UnlockAt,
		&i.UnlockCode,
		&i.IsExpired,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createCapsule = `-- name: CreateCapsule :one
INSERT INTO capsules (id, user_id, message, unlock_at, unlock_code, is_expired, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, FALSE, 1, $6, $6)
RETURNING ` + capsuleColumns

type CreateCapsuleParams struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Message    string
	UnlockAt   time.Time
	UnlockCode string
	CreatedAt  time.Time
}

func (q *Queries) CreateCapsule(ctx context.Context, arg CreateCapsuleParams) (Capsule, error) {
	row := q.db.QueryRowContext(ctx, createCapsule,
		arg.ID,
		arg.UserID,
		arg.Message,
		arg.UnlockAt,
		arg.UnlockCode,
		arg.CreatedAt,
	)
	return scanCapsule(row)
}

const getCapsule = `-- name: GetCapsule :one
SELECT ` + capsuleColumns + ` FROM capsules WHERE id = $1`

func (q *Queries) GetCapsule(ctx context.Context, id uuid.UUID) (Capsule, error) {
	return scanCapsule(q.db.QueryRowContext(ctx, getCapsule, id))
}

const listCapsulesByUser = `-- name: ListCapsulesByUser :many
SELECT ` + capsuleColumns + ` FROM capsules
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3`

type ListCapsulesByUserParams struct {
	UserID uuid.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListCapsulesByUser(ctx context.Context, arg ListCapsulesByUserParams) ([]Capsule, error) {
	rows, err := q.db.QueryContext(ctx, listCapsulesByUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCapsules(rows)
}

const countCapsulesByUser = `-- name: CountCapsulesByUser :one
SELECT count(*) FROM capsules WHERE user_id = $1`

func (q *Queries) CountCapsulesByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countCapsulesByUser, userID).Scan(&count)
	return count, err
}

const listExpiringCapsules = `-- name: ListExpiringCapsules :many
SELECT ` + capsuleColumns + ` FROM capsules
WHERE NOT is_expired AND unlock_at < $1`

func (q *Queries) ListExpiringCapsules(ctx context.Context, cutoff time.Time) ([]Capsule, error) {
	rows, err := q.db.QueryContext(ctx, listExpiringCapsules, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCapsules(rows)
}

const updateCapsule = `-- name: UpdateCapsule :one
UPDATE capsules
SET message    = COALESCE($3, message),
    unlock_at  = COALESCE($4, unlock_at),
    is_expired = COALESCE($5, is_expired),
    version    = version + 1,
    updated_at = $6
WHERE id = $1 AND version = $2
RETURNING ` + capsuleColumns

type UpdateCapsuleParams struct {
	ID        uuid.UUID
	Version   int64
	Message   sql.NullString
	UnlockAt  sql.NullTime
	IsExpired sql.NullBool
	UpdatedAt time.Time
}

func (q *Queries) UpdateCapsule(ctx context.Context, arg UpdateCapsuleParams) (Capsule, error) {
	row := q.db.QueryRowContext(ctx, updateCapsule,
		arg.ID,
		arg.Version,
		arg.Message,
		arg.UnlockAt,
		arg.IsExpired,
		arg.UpdatedAt,
	)
	return scanCapsule(row)
}

const deleteCapsule = `-- name: DeleteCapsule :execrows
DELETE FROM capsules WHERE id = $1 AND version = $2`

func (q *Queries) DeleteCapsule(ctx context.Context, id uuid.UUID, version int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteCapsule, id, version)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const capsuleExists = `-- name: CapsuleExists :one
SELECT EXISTS (SELECT 1 FROM capsules WHERE id = $1)`

func (q *Queries) CapsuleExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, capsuleExists, id).Scan(&exists)
	return exists, err
}

func scanCapsules(rows *sql.Rows) ([]Capsule, error) {
	var items []Capsule
	for rows.Next() {
		i, err := scanCapsule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
