package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/mnhsh/time-capsule/internal/response"
)

type contextKey string

const UserIDKey contextKey = "userID"

func WithAuthMiddleware(a *Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.Authenticate(r)
		switch {
		case err == nil:
		case errors.Is(err, ErrTokenExpired):
			response.RespondWithError(w, http.StatusUnauthorized, "Token expired. Please login again.", err)
			return
		case errors.Is(err, ErrInvalidToken):
			response.RespondWithError(w, http.StatusUnauthorized, "Invalid token. Please login again.", err)
			return
		case errors.Is(err, ErrUnauthenticated):
			response.RespondWithError(w, http.StatusUnauthorized, "Authentication required. Please provide a valid token.", err)
			return
		default:
			response.RespondWithError(w, http.StatusInternalServerError, "Server error", err)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the caller set by WithAuthMiddleware.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	return userID, ok
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
