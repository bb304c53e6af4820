package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smartpool/internal/activity"
	"smartpool/internal/config"
	"smartpool/internal/model"
	"smartpool/internal/storage/postgres"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Roll an events JSONL (from apply or index) into per-pool block windows",
		RunE:  runStats,
	}

	cmd.Flags().String("in", "", "input events JSONL")
	cmd.Flags().String("out", "./data/activity.jsonl", "output activity windows JSONL")
	cmd.Flags().Uint64("window-blocks", 100, "blocks per window")
	cmd.Flags().Uint64("from", 0, "ignore events before this block")
	cmd.Flags().Int("batch-size", 1000, "windows per write")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().Bool("pg-migrate", true, "create Postgres tables when missing")

	return cmd
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadStats(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if cfg.PGMigrate {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
		}
	}

	input, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer input.Close()

	out, err := newJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer out.Close()

	aggregator := activity.NewAggregator(activity.Config{
		WindowBlocks: cfg.WindowBlocks,
		BatchSize:    cfg.BatchSize,
		FromBlock:    cfg.FromBlock,
	}, logger)

	logger.Info("stats start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.Uint64("window_blocks", cfg.WindowBlocks),
		zap.Bool("postgres", store != nil),
	)

	_, err = aggregator.Run(ctx, input, func(ctx context.Context, windows []model.ActivityWindow) error {
		for _, w := range windows {
			if err := out.Write(w); err != nil {
				return err
			}
		}
		if store != nil {
			return store.UpsertActivity(ctx, windows)
		}
		return nil
	})
	return err
}
