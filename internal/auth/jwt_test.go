package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeAndValidateJWT(t *testing.T) {
	userID := uuid.New()
	token, err := MakeJWT(userID, "secret", time.Hour)
	require.NoError(t, err)

	got, err := ValidateJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestValidateJWT_Expired(t *testing.T) {
	token, err := MakeJWT(uuid.New(), "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "secret")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	token, err := MakeJWT(uuid.New(), "secret", time.Hour)
	require.NoError(t, err)

	_, err = ValidateJWT(token, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateJWT_Garbage(t *testing.T) {
	_, err := ValidateJWT("not.a.token", "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGetBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc.def", "abc.def", false},
		{"missing", "", "", true},
		{"wrong scheme", "Basic abc", "", true},
		{"empty token", "Bearer   ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Authorization", tt.header)
			}
			got, err := GetBearerToken(h)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthenticated)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NoError(t, CheckPasswordHash("hunter22", hash))
	assert.Error(t, CheckPasswordHash("hunter23", hash))
}
