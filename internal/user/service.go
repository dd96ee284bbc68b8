package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mnhsh/time-capsule/internal/auth"
)

// Service registers users and signs them in.
type Service struct {
	repo      Repository
	jwtSecret string
	tokenTTL  time.Duration
	logger    *slog.Logger
}

func NewService(repo Repository, jwtSecret string, tokenTTL time.Duration, logger *slog.Logger) *Service {
	if tokenTTL <= 0 {
		tokenTTL = auth.DefaultTokenTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, jwtSecret: jwtSecret, tokenTTL: tokenTTL, logger: logger}
}

// Session is a signed-in user and their access token.
type Session struct {
	User  *User
	Token string
}

func (s *Service) Register(ctx context.Context, username, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", u.ID)
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if err := auth.CheckPasswordHash(password, u.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

// Exists reports whether a user with the given ID is registered. It lets
// the authenticator reject tokens of deleted accounts.
func (s *Service) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	_, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) session(u *User) (*Session, error) {
	token, err := auth.MakeJWT(u.ID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: u, Token: token}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
