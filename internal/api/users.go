package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/mnhsh/time-capsule/internal/response"
	"github.com/mnhsh/time-capsule/internal/user"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
}

type sessionResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
}

func newSessionResponse(msg string, s *user.Session) sessionResponse {
	return sessionResponse{
		Message: msg,
		Token:   s.Token,
		User: userResponse{
			ID:       s.User.ID,
			Username: s.User.Username,
			Email:    s.User.Email,
		},
	}
}

func (a *API) handlerUsers(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !a.decodeBody(w, r, &req) {
		return
	}

	session, err := a.users.Register(r.Context(), req.Username, req.Email, req.Password)
	if errors.Is(err, user.ErrEmailTaken) {
		response.RespondWithError(w, http.StatusConflict, "User with this email already exists", err)
		return
	}
	if err != nil {
		response.RespondWithError(w, http.StatusInternalServerError, "Server error during registration", err)
		return
	}
	response.RespondWithJSON(w, http.StatusCreated, newSessionResponse("User registered successfully", session))
}

func (a *API) handlerLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.decodeBody(w, r, &req) {
		return
	}

	session, err := a.users.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, user.ErrInvalidCredentials) {
		response.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials", err)
		return
	}
	if err != nil {
		response.RespondWithError(w, http.StatusInternalServerError, "Server error during login", err)
		return
	}
	response.RespondWithJSON(w, http.StatusOK, newSessionResponse("Login successful", session))
}
