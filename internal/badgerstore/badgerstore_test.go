package badgerstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnhsh/time-capsule/internal/capsule"
	"github.com/mnhsh/time-capsule/internal/user"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newCapsule(owner uuid.UUID, unlockAt time.Time) *capsule.Capsule {
	return &capsule.Capsule{
		ID:         uuid.New(),
		OwnerID:    owner,
		Message:    "hello",
		UnlockAt:   unlockAt,
		SecretHash: "$2a$04$hash",
	}
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path is required")
}

func TestOpenPersistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	db, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	c := newCapsule(uuid.New(), time.Now().Add(time.Hour).UTC())
	require.NoError(t, NewCapsules(db).Create(ctx, c))
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	db, err = Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer db.Close()
	got, err := NewCapsules(db).GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Message)
}

func TestCapsules_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewCapsules(openTestDB(t))
	c := newCapsule(uuid.New(), time.Now().Add(time.Hour).UTC())

	require.NoError(t, repo.Create(ctx, c))
	assert.Equal(t, int64(1), c.Version)
	assert.False(t, c.CreatedAt.IsZero())
	assert.Error(t, repo.Create(ctx, c), "duplicate id")

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.SecretHash, got.SecretHash)
	assert.True(t, c.UnlockAt.Equal(got.UnlockAt))

	msg := "edited"
	updated, err := repo.Update(ctx, c.ID, 1, capsule.Patch{Message: &msg})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Message)
	assert.Equal(t, int64(2), updated.Version)
	assert.True(t, c.UnlockAt.Equal(updated.UnlockAt))

	_, err = repo.Update(ctx, c.ID, 1, capsule.Patch{Message: &msg})
	assert.ErrorIs(t, err, capsule.ErrConflict)
	assert.ErrorIs(t, repo.Delete(ctx, c.ID, 1), capsule.ErrConflict)

	require.NoError(t, repo.Delete(ctx, c.ID, 2))
	_, err = repo.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, capsule.ErrNotFound)
	_, err = repo.Update(ctx, c.ID, 2, capsule.Patch{})
	assert.ErrorIs(t, err, capsule.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, c.ID, 2), capsule.ErrNotFound)

	_, total, err := repo.FindByOwner(ctx, c.OwnerID, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total, "delete removes the owner index entry")
}

func TestCapsules_FindByOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewCapsules(openTestDB(t))
	owner := uuid.New()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		c := newCapsule(owner, base.Add(time.Hour))
		require.NoError(t, repo.Create(ctx, c))
		ids = append(ids, c.ID)
	}
	require.NoError(t, repo.Create(ctx, newCapsule(uuid.New(), base.Add(time.Hour))))

	page, total, err := repo.FindByOwner(ctx, owner, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	page, total, err = repo.FindByOwner(ctx, owner, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	page, _, err = repo.FindByOwner(ctx, owner, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, _, err = repo.FindByOwner(ctx, owner, -2, 2)
	assert.Error(t, err)
}

func TestCapsules_FindExpiringCandidates(t *testing.T) {
	ctx := context.Background()
	repo := NewCapsules(openTestDB(t))
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cutoff := now.Add(-capsule.RetentionWindow)

	old := newCapsule(uuid.New(), cutoff.Add(-time.Hour))
	fresh := newCapsule(uuid.New(), cutoff.Add(time.Hour))
	flagged := newCapsule(uuid.New(), cutoff.Add(-time.Hour))
	for _, c := range []*capsule.Capsule{old, fresh, flagged} {
		require.NoError(t, repo.Create(ctx, c))
	}
	expired := true
	_, err := repo.Update(ctx, flagged.ID, 1, capsule.Patch{Expired: &expired})
	require.NoError(t, err)

	got, err := repo.FindExpiringCandidates(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, old.ID, got[0].ID)
}

func TestCapsules_CancelledContext(t *testing.T) {
	repo := NewCapsules(openTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	repo := NewUsers(openTestDB(t))
	u := &user.User{ID: uuid.New(), Username: "alice", Email: "alice@example.com", PasswordHash: "h"}

	require.NoError(t, repo.Create(ctx, u))
	assert.False(t, u.CreatedAt.IsZero())

	dup := &user.User{ID: uuid.New(), Username: "other", Email: "alice@example.com"}
	assert.ErrorIs(t, repo.Create(ctx, dup), user.ErrEmailTaken)

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = repo.GetByEmail(ctx, "bob@example.com")
	assert.ErrorIs(t, err, user.ErrNotFound)
	_, err = repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, user.ErrNotFound)
}
