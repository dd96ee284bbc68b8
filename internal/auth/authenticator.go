package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// UserChecker reports whether a user account still exists.
type UserChecker interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Authenticator turns a request's bearer token into a caller identity.
type Authenticator struct {
	secret string
	users  UserChecker
}

func NewAuthenticator(secret string, users UserChecker) *Authenticator {
	return &Authenticator{secret: secret, users: users}
}

// Authenticate returns the caller's user ID, or ErrUnauthenticated,
// ErrTokenExpired or ErrInvalidToken. Any other error means the user store
// could not be reached.
func (a *Authenticator) Authenticate(r *http.Request) (uuid.UUID, error) {
	token, err := GetBearerToken(r.Header)
	if err != nil {
		return uuid.Nil, err
	}
	userID, err := ValidateJWT(token, a.secret)
	if err != nil {
		return uuid.Nil, err
	}
	if a.users == nil {
		return userID, nil
	}

	ok, err := a.users.Exists(r.Context(), userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("look up user: %w", err)
	}
	if !ok {
		return uuid.Nil, fmt.Errorf("%w: user not found", ErrUnauthenticated)
	}
	return userID, nil
}
