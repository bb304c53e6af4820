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

	"smartpool/internal/chain"
	"smartpool/internal/config"
	"smartpool/internal/onchain"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read an underlying pool's bindings and settings from chain",
		RunE:  runInspect,
	}

	cmd.Flags().String("rpc", "", "RPC URL")
	cmd.Flags().String("pool", "", "underlying pool address")
	cmd.Flags().Uint64("block", 0, "block to read at, 0 means latest")
	cmd.Flags().String("out", "", "output pool state JSON, stdout when empty")

	return cmd
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadInspect(cfgFile, cmd.Flags())
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
	if !common.IsHexAddress(cfg.Pool) {
		return fmt.Errorf("pool address is required")
	}
	pool := common.HexToAddress(cfg.Pool)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	block := cfg.Block
	if block == 0 {
		block, err = chainClient.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
	}

	state, err := onchain.FetchPoolState(ctx, chainClient, chainID, pool, block, onchain.NewTokenMetaCache(), logger)
	if err != nil {
		return fmt.Errorf("fetch pool state: %w", err)
	}

	logger.Info("pool inspected",
		zap.String("pool", pool.Hex()),
		zap.Uint64("chain_id", chainID),
		zap.Uint64("block", block),
		zap.Int("tokens", len(state.Underlying.Tokens)),
		zap.String("controller", state.Underlying.Controller),
	)
	return writeJSONFile(cfg.Out, state)
}
