package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"smartpool/internal/chain"
	"smartpool/internal/config"
	"smartpool/internal/indexer"
	"smartpool/internal/model"
	"smartpool/internal/onchain"
	"smartpool/internal/storage"
	"smartpool/internal/storage/postgres"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index swap, join, exit and share transfer logs of pools",
		RunE:  runIndex,
	}

	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().Uint64("from", 0, "start block (inclusive)")
	cmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	cmd.Flags().StringSlice("address", nil, "pool addresses (comma-separated)")
	cmd.Flags().StringSlice("topic0", nil, "restrict to these event names or topic0 hashes")
	cmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	cmd.Flags().String("out", "./data/chain_events.jsonl", "output events JSONL")
	cmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	cmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	cmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN; also keeps the checkpoint there")
	cmd.Flags().Bool("pg-migrate", true, "create Postgres tables when missing")

	return cmd
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadIndex(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	addresses, err := indexer.ParseAddresses(cfg.Addresses)
	if err != nil {
		return err
	}
	if len(addresses) == 0 {
		return fmt.Errorf("address list is required")
	}

	decoder, err := onchain.NewDecoder()
	if err != nil {
		return err
	}
	topic0, err := indexer.ParseTopic0(cfg.Topic0, decoder.TopicFor)
	if err != nil {
		return err
	}

	stopMetrics := serveMetrics(cfg.MetricsAddr, logger)
	defer stopMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	sinks := storage.Fanout{storage.NewJsonlStorage(cfg.Out)}
	var checkpoint indexer.Checkpointer = indexer.NewCheckpointStore(cfg.Checkpoint, cfg.CheckpointEnabled)
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if cfg.PGMigrate {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
		}
		sinks = append(sinks, store)
		if cfg.CheckpointEnabled {
			checkpoint = &indexer.DBCheckpoint{Store: store, Name: "index"}
		}
	}

	errWriter, err := newJSONLWriter(cfg.Errors, true)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:    cfg.FromBlock,
		ToBlock:      cfg.ToBlock,
		Addresses:    addresses,
		Topic0:       topic0,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, chainClient, decoder, sinks, checkpoint, func(de model.DecodeError) {
		if err := errWriter.Write(de); err != nil {
			logger.Warn("write decode error failed", zap.Error(err))
		}
	}, logger)

	logger.Info("index start",
		zap.String("rpc", cfg.RPCURL),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Int("topic0", len(topic0)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	written, err := runner.Run(ctx)
	logger.Info("index complete", zap.Int("events", written))
	return err
}
