package capsule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/mnhsh/time-capsule/internal/secret"
)

const (
	DefaultStorageTimeout = 5 * time.Second
	DefaultPageLimit      = 10
	MaxPageLimit          = 100
)

// SecretHasher hashes freshly minted unlock codes and checks presented ones.
type SecretHasher interface {
	Hash(code string) (string, error)
	Verify(code, hash string) bool
}

type Options struct {
	// SecretLength is the length of minted unlock codes. Zero means
	// secret.DefaultLength.
	SecretLength int
	// StorageTimeout bounds every repository call. Zero means
	// DefaultStorageTimeout.
	StorageTimeout time.Duration
	Logger         *slog.Logger
}

// Service is the lifecycle gate. Every operation runs its checks in a fixed
// order and the first failing check decides the returned error.
type Service struct {
	repo         Repository
	clock        Clock
	secrets      SecretHasher
	secretLength int
	timeout      time.Duration
	logger       *slog.Logger
}

func NewService(repo Repository, clock Clock, secrets SecretHasher, opts Options) *Service {
	if clock == nil {
		clock = SystemClock
	}
	if opts.SecretLength <= 0 {
		opts.SecretLength = secret.DefaultLength
	}
	if opts.StorageTimeout <= 0 {
		opts.StorageTimeout = DefaultStorageTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		repo:         repo,
		clock:        clock,
		secrets:      secrets,
		secretLength: opts.SecretLength,
		timeout:      opts.StorageTimeout,
		logger:       opts.Logger,
	}
}

// Created is the result of Create. Secret is the plaintext unlock code; it
// is not stored and cannot be recovered later.
type Created struct {
	Capsule *Capsule
	Secret  string
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, message string, unlockAt time.Time) (*Created, error) {
	now := s.clock.Now()
	if !unlockAt.After(now) {
		return nil, ErrInvalidSchedule
	}

	code, err := secret.Mint(s.secretLength)
	if err != nil {
		return nil, fmt.Errorf("mint unlock code: %w", err)
	}
	hash, err := s.secrets.Hash(code)
	if err != nil {
		return nil, err
	}

	c := &Capsule{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		Message:    message,
		UnlockAt:   unlockAt.UTC(),
		SecretHash: hash,
	}
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, c)
	})
	if err != nil {
		return nil, s.storageErr("create capsule", err)
	}

	s.logger.Info("capsule created", "capsule_id", c.ID, "owner_id", ownerID, "unlock_at", c.UnlockAt)
	return &Created{Capsule: c, Secret: code}, nil
}

// Read returns the full capsule once it is unlockable, not expired, and the
// presented code matches.
func (s *Service) Read(ctx context.Context, callerID, id uuid.UUID, code string) (*Capsule, error) {
	c, err := s.load(ctx, callerID, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if c.IsExpired(now) {
		return nil, ErrGone
	}
	if !c.IsUnlockable(now) {
		return nil, &NotYetUnlockableError{UnlockAt: c.UnlockAt}
	}
	if !s.secrets.Verify(code, c.SecretHash) {
		return nil, ErrInvalidSecret
	}
	return c, nil
}

// Summary is one entry of a List page. MessagePreview is nil unless the
// capsule is unlockable and not expired.
type Summary struct {
	ID             uuid.UUID
	UnlockAt       time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	IsUnlockable   bool
	IsExpired      bool
	MessagePreview *string
}

type Page struct {
	Items      []Summary
	Total      int
	Page       int
	Limit      int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// List returns the caller's capsules, newest first. Out of range page and
// limit values are normalized.
func (s *Service) List(ctx context.Context, callerID uuid.UUID, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	// Keep the offset within the range every backend can address.
	if maxPage := math.MaxInt32/limit + 1; page > maxPage {
		page = maxPage
	}

	var (
		items []*Capsule
		total int
	)
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		items, total, err = s.repo.FindByOwner(ctx, callerID, (page-1)*limit, limit)
		return err
	})
	if err != nil {
		return nil, s.storageErr("list capsules", err)
	}

	now := s.clock.Now()
	summaries := make([]Summary, 0, len(items))
	for _, c := range items {
		sum := Summary{
			ID:           c.ID,
			UnlockAt:     c.UnlockAt,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
			IsUnlockable: c.IsUnlockable(now),
			IsExpired:    c.IsExpired(now),
		}
		if sum.IsUnlockable && !sum.IsExpired {
			preview := c.Preview()
			sum.MessagePreview = &preview
		}
		summaries = append(summaries, sum)
	}

	totalPages := (total + limit - 1) / limit
	return &Page{
		Items:      summaries,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}, nil
}

// UpdateParams carries the optional new values of an update. An empty
// message is treated as absent.
type UpdateParams struct {
	Message  *string
	UnlockAt *time.Time
}

func (s *Service) Update(ctx context.Context, callerID, id uuid.UUID, code string, params UpdateParams) (*Capsule, error) {
	c, err := s.loadForWrite(ctx, callerID, id, code)
	if err != nil {
		return nil, err
	}

	var patch Patch
	if params.UnlockAt != nil {
		if !params.UnlockAt.After(s.clock.Now()) {
			return nil, ErrInvalidSchedule
		}
		unlockAt := params.UnlockAt.UTC()
		patch.UnlockAt = &unlockAt
	}
	if params.Message != nil && *params.Message != "" {
		patch.Message = params.Message
	}
	if patch.Empty() {
		return c, nil
	}

	var updated *Capsule
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.Update(ctx, c.ID, c.Version, patch)
		return err
	})
	if err != nil {
		return nil, s.storageErr("update capsule", err)
	}

	s.logger.Info("capsule updated", "capsule_id", c.ID, "version", updated.Version)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, callerID, id uuid.UUID, code string) error {
	c, err := s.loadForWrite(ctx, callerID, id, code)
	if err != nil {
		return err
	}

	err = s.withTimeout(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, c.ID, c.Version)
	})
	if err != nil {
		return s.storageErr("delete capsule", err)
	}

	s.logger.Info("capsule deleted", "capsule_id", c.ID)
	return nil
}

// load fetches the capsule and enforces ownership before any state is
// inspected.
func (s *Service) load(ctx context.Context, callerID, id uuid.UUID) (*Capsule, error) {
	var c *Capsule
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, s.storageErr("get capsule", err)
	}
	if c.OwnerID != callerID {
		return nil, ErrForbidden
	}
	return c, nil
}

// loadForWrite runs the shared prefix of Update and Delete: lookup,
// ownership, the write window, then the unlock code. The window is closed
// once the capsule is unlockable or expired.
func (s *Service) loadForWrite(ctx context.Context, callerID, id uuid.UUID, code string) (*Capsule, error) {
	c, err := s.load(ctx, callerID, id)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if c.IsUnlockable(now) {
		return nil, ErrAlreadyUnlockable
	}
	if c.IsExpired(now) {
		return nil, ErrGone
	}
	if !s.secrets.Verify(code, c.SecretHash) {
		return nil, ErrInvalidSecret
	}
	return c, nil
}

func (s *Service) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}

// storageErr passes through the repository errors that carry meaning for
// the caller and marks everything else as a storage failure.
func (s *Service) storageErr(op string, err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	s.logger.Warn("capsule storage failure", "op", op, "error", err)
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
