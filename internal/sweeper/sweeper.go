// Package sweeper flags capsules whose retention window has elapsed.
//
// A sweep loads every capsule that is past its window but not yet flagged
// and marks each one expired with its own versioned repository update, so a
// failure on one capsule never stops the others. The periodic loop runs one
// sweep at start and then one per interval until stopped.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mnhsh/time-capsule/internal/capsule"
)

// DefaultInterval runs the sweep once a day.
const DefaultInterval = 24 * time.Hour

// ExpiryRecord describes a capsule the sweeper flagged. It never carries the
// message or the secret hash.
type ExpiryRecord struct {
	CapsuleID uuid.UUID `json:"capsule_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	UnlockAt  time.Time `json:"unlock_at"`
	ExpiredAt time.Time `json:"expired_at"`
}

// Archiver keeps a record of expired capsules. Archive errors are logged and
// never undo the expiry.
type Archiver interface {
	Archive(ctx context.Context, rec ExpiryRecord) error
}

// Observer is told about every finished sweep.
type Observer interface {
	ObserveSweep(res Result, err error)
}

type Result struct {
	StartTime time.Time
	EndTime   time.Time
	Found     int
	Expired   int
	Failed    int
}

func (r Result) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

type Option func(*Sweeper)

func WithArchiver(a Archiver) Option {
	return func(s *Sweeper) { s.archiver = a }
}

func WithObserver(o Observer) Option {
	return func(s *Sweeper) { s.observer = o }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = l }
}

// WithStorageTimeout bounds each repository and archive call. Non-positive
// values keep capsule.DefaultStorageTimeout.
func WithStorageTimeout(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.timeout = d
		}
	}
}

type Sweeper struct {
	repo     capsule.Repository
	clock    capsule.Clock
	interval time.Duration
	timeout  time.Duration
	archiver Archiver
	observer Observer
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New returns a stopped Sweeper. A non-positive interval means
// DefaultInterval.
func New(repo capsule.Repository, clock capsule.Clock, interval time.Duration, opts ...Option) *Sweeper {
	if clock == nil {
		clock = capsule.SystemClock
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Sweeper{
		repo:     repo,
		clock:    clock,
		interval: interval,
		timeout:  capsule.DefaultStorageTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs a sweep immediately and then every interval in a background
// goroutine until Stop is called or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("sweeper is already running")
	}
	s.running = true
	s.done = make(chan struct{})

	s.logger.Info("expiration sweeper starting", "interval", s.interval.String())
	s.wg.Add(1)
	go s.loop(ctx, s.done)
	return nil
}

// Stop halts the loop and waits for an in-flight sweep to finish. It is
// safe to call more than once.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.done)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("expiration sweeper stopped")
}

// RunNow performs one sweep synchronously.
func (s *Sweeper) RunNow(ctx context.Context) (Result, error) {
	return s.Sweep(ctx)
}

func (s *Sweeper) loop(ctx context.Context, done <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.execute(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			s.execute(ctx)
		}
	}
}

// execute runs a sweep and only logs its failure so the schedule goes on.
func (s *Sweeper) execute(ctx context.Context) {
	res, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("expiration sweep failed", "error", err)
		return
	}
	if res.Found > 0 {
		s.logger.Info("expiration sweep completed",
			"found", res.Found,
			"expired", res.Expired,
			"failed", res.Failed,
			"duration_ms", res.Duration().Milliseconds(),
		)
	} else {
		s.logger.Debug("expiration sweep completed (nothing to expire)")
	}
}

// Sweep flags every capsule whose retention window elapsed before now.
// Running it twice without the clock moving changes nothing the second time.
func (s *Sweeper) Sweep(ctx context.Context) (res Result, err error) {
	now := s.clock.Now()
	res.StartTime = now
	defer func() {
		res.EndTime = s.clock.Now()
		if s.observer != nil {
			s.observer.ObserveSweep(res, err)
		}
	}()

	cutoff := now.Add(-capsule.RetentionWindow)
	var candidates []*capsule.Capsule
	err = s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		candidates, err = s.repo.FindExpiringCandidates(ctx, cutoff)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("find expiring capsules: %w", err)
	}
	res.Found = len(candidates)

	expired := true
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		err := s.withTimeout(ctx, func(ctx context.Context) error {
			_, err := s.repo.Update(ctx, c.ID, c.Version, capsule.Patch{Expired: &expired})
			return err
		})
		if err != nil {
			res.Failed++
			s.logger.Warn("failed to expire capsule", "capsule_id", c.ID, "error", err)
			continue
		}
		res.Expired++
		s.archive(ctx, ExpiryRecord{
			CapsuleID: c.ID,
			OwnerID:   c.OwnerID,
			UnlockAt:  c.UnlockAt,
			ExpiredAt: now,
		})
	}
	return res, nil
}

func (s *Sweeper) archive(ctx context.Context, rec ExpiryRecord) {
	if s.archiver == nil {
		return
	}
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.archiver.Archive(ctx, rec)
	})
	if err != nil {
		s.logger.Warn("failed to archive expiry record", "capsule_id", rec.CapsuleID, "error", err)
	}
}

func (s *Sweeper) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return fn(ctx)
}
