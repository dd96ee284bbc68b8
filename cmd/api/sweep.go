package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	sw, err := newSweeper(ctx, cfg, st.capsules)
	if err != nil {
		return err
	}
	res, err := sw.RunNow(ctx)
	if err != nil {
		return err
	}
	slog.Info("manual sweep finished",
		"found", res.Found,
		"expired", res.Expired,
		"failed", res.Failed,
		"duration", res.Duration().String())
	return nil
}
