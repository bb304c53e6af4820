package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smartpool/internal/config"
	"smartpool/internal/engine"
	"smartpool/internal/model"
	"smartpool/internal/snapshot"
	"smartpool/internal/storage"
	"smartpool/internal/storage/postgres"
)

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Replay a JSONL call script against the smart pool engine",
		RunE:  runApply,
	}

	cmd.Flags().String("in", "", "input calls JSONL")
	cmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	cmd.Flags().String("errors", "./data/call_errors.jsonl", "failed calls JSONL")
	cmd.Flags().String("seed", "", "pool state JSON written by inspect, loaded before the script")
	cmd.Flags().String("snapshot", "", "snapshot file written after the run")
	cmd.Flags().Bool("resume", false, "restore engine state from the snapshot (file, or Postgres when no file is set)")
	cmd.Flags().Uint64("chain-id", 1, "chain id stamped on events")
	cmd.Flags().String("pool", config.DefaultPoolAddress, "smart pool address")
	cmd.Flags().String("underlying", config.DefaultUnderlyingAddress, "underlying pool address")
	cmd.Flags().Bool("stop-on-error", false, "abort on the first failed call")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN")
	cmd.Flags().Bool("pg-migrate", true, "create Postgres tables when missing")
	cmd.Flags().String("state-name", "default", "name for the Postgres snapshot and progress rows")

	return cmd
}

func runApply(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadApply(cfgFile, cmd.Flags())
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
	if !common.IsHexAddress(cfg.Pool) || !common.IsHexAddress(cfg.Underlying) {
		return fmt.Errorf("pool and underlying must be hex addresses")
	}

	stopMetrics := serveMetrics(cfg.MetricsAddr, logger)
	defer stopMetrics()

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

	eng, resumed, err := buildEngine(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	if cfg.Seed != "" {
		state, err := snapshot.LoadPoolState(cfg.Seed)
		if err != nil {
			return err
		}
		if err := eng.Seed(state); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	if !resumed {
		if err := os.Remove(cfg.Out); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("reset output: %w", err)
		}
	}
	sinks := storage.Fanout{storage.NewJsonlStorage(cfg.Out)}
	if store != nil {
		sinks = append(sinks, store)
	}

	errWriter, err := newJSONLWriter(cfg.Errors, resumed)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	input, err := os.Open(cfg.In)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer input.Close()

	logger.Info("apply start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("pool", cfg.Pool),
		zap.Uint64("chain_id", cfg.ChainID),
		zap.Bool("resumed", resumed),
		zap.Uint64("seq", eng.Seq()),
	)

	res, runErr := eng.Replay(ctx, input, engine.ReplayOptions{
		Sink:        sinks,
		OnError:     func(ce model.CallError) error { return errWriter.Write(ce) },
		StopOnError: cfg.StopOnError,
	})

	if err := persist(ctx, cfg, eng, store); err != nil {
		if runErr == nil {
			runErr = err
		} else {
			logger.Error("persist failed", zap.Error(err))
		}
	}

	logger.Info("apply complete",
		zap.Int("calls", res.Calls),
		zap.Int("applied", res.Applied),
		zap.Int("failed", res.Failed),
		zap.Int("events", res.Events),
		zap.Uint64("seq", eng.Seq()),
		zap.Uint64("block", eng.Block()),
	)
	return runErr
}

// buildEngine restores from a snapshot when asked and one exists, and starts
// fresh otherwise.
func buildEngine(ctx context.Context, cfg config.ApplyConfig, store *postgres.Store, logger *zap.Logger) (*engine.Engine, bool, error) {
	if cfg.Resume {
		var (
			snap model.Snapshot
			ok   bool
			err  error
		)
		switch {
		case cfg.Snapshot != "":
			snap, ok, err = snapshot.NewFileStore(cfg.Snapshot).Load()
		case store != nil:
			snap, ok, err = store.LoadSnapshot(ctx, cfg.StateName)
		default:
			return nil, false, fmt.Errorf("resume needs --snapshot or --pg-dsn")
		}
		if err != nil {
			return nil, false, err
		}
		if ok {
			eng, err := engine.Restore(cfg.ChainID, snap, logger.Named("engine"))
			if err != nil {
				return nil, false, err
			}
			logger.Info("engine restored", zap.Uint64("seq", snap.Seq), zap.Uint64("block", snap.Block))
			return eng, true, nil
		}
		logger.Info("no snapshot found, starting fresh")
	}

	return engine.New(engine.Config{
		ChainID:    cfg.ChainID,
		Pool:       common.HexToAddress(cfg.Pool),
		Underlying: common.HexToAddress(cfg.Underlying),
	}, logger.Named("engine")), false, nil
}

func persist(ctx context.Context, cfg config.ApplyConfig, eng *engine.Engine, store *postgres.Store) error {
	snap := eng.Snapshot()
	if cfg.Snapshot != "" {
		if err := snapshot.NewFileStore(cfg.Snapshot).Save(snap); err != nil {
			return err
		}
	}
	if store == nil {
		return nil
	}
	if err := store.SaveSnapshot(ctx, cfg.StateName, snap); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := store.SaveState(ctx, cfg.StateName, eng.Seq()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	if eng.Pool().Initialized() {
		if err := store.UpsertPool(ctx, cfg.ChainID, eng.Pool().Record()); err != nil {
			return fmt.Errorf("upsert pool: %w", err)
		}
	}
	return nil
}
