package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnhsh/time-capsule/internal/auth"
	"github.com/mnhsh/time-capsule/internal/memstore"
	"github.com/mnhsh/time-capsule/internal/user"
)

func newService() *user.Service {
	return user.NewService(memstore.NewUsers(), "secret", time.Hour, nil)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	sess, err := svc.Register(ctx, "alice", " Alice@Example.com ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.NotEqual(t, "hunter22", sess.User.PasswordHash)

	id, err := auth.ValidateJWT(sess.Token, "secret")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, id)

	login, err := svc.Login(ctx, "alice@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, login.User.ID)

	ok, err := svc.Exists(ctx, sess.User.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)
	_, err = svc.Register(ctx, "alice2", "ALICE@example.com", "hunter22")
	assert.ErrorIs(t, err, user.ErrEmailTaken)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	_, err := svc.Register(ctx, "alice", "alice@example.com", "hunter22")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "bob@example.com", "hunter22")
	assert.ErrorIs(t, err, user.ErrInvalidCredentials)
}
