package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	known map[uuid.UUID]bool
	err   error
}

func (f fakeUsers) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	return f.known[id], f.err
}

func serveWithAuth(t *testing.T, a *Authenticator, header string) (*httptest.ResponseRecorder, uuid.UUID) {
	t.Helper()
	var seen uuid.UUID
	h := WithAuthMiddleware(a, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		seen = id
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestWithAuthMiddleware(t *testing.T) {
	userID := uuid.New()
	a := NewAuthenticator("secret", fakeUsers{known: map[uuid.UUID]bool{userID: true}})

	valid, err := MakeJWT(userID, "secret", time.Hour)
	require.NoError(t, err)
	expired, err := MakeJWT(userID, "secret", -time.Hour)
	require.NoError(t, err)
	stranger, err := MakeJWT(uuid.New(), "secret", time.Hour)
	require.NoError(t, err)

	rec, seen := serveWithAuth(t, a, "Bearer "+valid)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, userID, seen)

	for name, header := range map[string]string{
		"missing":      "",
		"expired":      "Bearer " + expired,
		"invalid":      "Bearer nope",
		"unknown user": "Bearer " + stranger,
	} {
		t.Run(name, func(t *testing.T) {
			rec, _ := serveWithAuth(t, a, header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}

	rec, _ = serveWithAuth(t, a, "Bearer "+expired)
	assert.Contains(t, rec.Body.String(), "Token expired")
}

func TestWithAuthMiddleware_UserStoreDown(t *testing.T) {
	userID := uuid.New()
	a := NewAuthenticator("secret", fakeUsers{err: errors.New("db down")})
	token, err := MakeJWT(userID, "secret", time.Hour)
	require.NoError(t, err)

	rec, _ := serveWithAuth(t, a, "Bearer "+token)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	h := CORSMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/v1/capsules", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
