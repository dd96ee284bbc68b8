package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mnhsh/time-capsule/internal/badgerstore"
	"github.com/mnhsh/time-capsule/internal/capsule"
	"github.com/mnhsh/time-capsule/internal/config"
	"github.com/mnhsh/time-capsule/internal/database"
	"github.com/mnhsh/time-capsule/internal/memstore"
	"github.com/mnhsh/time-capsule/internal/storage"
	"github.com/mnhsh/time-capsule/internal/sweeper"
	"github.com/mnhsh/time-capsule/internal/user"
)

type stores struct {
	capsules capsule.Repository
	users    user.Repository
	close    func() error
}

func (s *stores) Close() {
	if err := s.close(); err != nil {
		slog.Warn("closing store", "error", err)
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := database.Open(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store := database.NewStore(db)
		return &stores{capsules: store.Capsules(), users: store.Users(), close: db.Close}, nil

	case config.BackendBadger:
		bcfg := badgerstore.DefaultConfig(cfg.Store.BadgerPath)
		bcfg.Logger = slog.Default().With("component", "badger")
		db, err := badgerstore.Open(bcfg)
		if err != nil {
			return nil, err
		}
		return &stores{capsules: badgerstore.NewCapsules(db), users: badgerstore.NewUsers(db), close: db.Close}, nil

	case config.BackendMemory:
		slog.Warn("using in-memory store, data is lost on exit")
		return &stores{
			capsules: memstore.NewCapsules(),
			users:    memstore.NewUsers(),
			close:    func() error { return nil },
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

// newSweeper attaches the S3 expiry archive when a bucket is configured.
func newSweeper(ctx context.Context, cfg *config.Config, repo capsule.Repository, opts ...sweeper.Option) (*sweeper.Sweeper, error) {
	opts = append(opts,
		sweeper.WithLogger(slog.Default().With("component", "sweeper")),
		sweeper.WithStorageTimeout(cfg.Store.Timeout),
	)
	if cfg.Archive.Bucket != "" {
		archive, err := storage.NewS3Storage(ctx, cfg.Archive.Bucket, cfg.Archive.Region, cfg.Archive.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("couldn't create S3 client: %w", err)
		}
		opts = append(opts, sweeper.WithArchiver(archive))
	}
	return sweeper.New(repo, capsule.SystemClock, cfg.Capsule.SweepInterval, opts...), nil
}
