package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mnhsh/time-capsule/internal/api"
	"github.com/mnhsh/time-capsule/internal/auth"
	"github.com/mnhsh/time-capsule/internal/capsule"
	"github.com/mnhsh/time-capsule/internal/metrics"
	"github.com/mnhsh/time-capsule/internal/secret"
	"github.com/mnhsh/time-capsule/internal/sweeper"
	"github.com/mnhsh/time-capsule/internal/user"
)

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	users := user.NewService(st.users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, slog.Default())
	capsules := capsule.NewService(st.capsules, capsule.SystemClock, secret.NewHasher(cfg.Capsule.BcryptCost), capsule.Options{
		SecretLength:   cfg.Capsule.SecretLength,
		StorageTimeout: cfg.Store.Timeout,
		Logger:         slog.Default(),
	})
	sw, err := newSweeper(ctx, cfg, st.capsules, sweeper.WithObserver(m))
	if err != nil {
		return err
	}

	app := api.NewAPI(capsules, users, auth.NewAuthenticator(cfg.Auth.JWTSecret, users), m)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           app.Handler(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "addr", srv.Addr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		if err := sw.Start(gCtx); err != nil {
			return err
		}
		<-gCtx.Done()
		sw.Stop()
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		slog.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
