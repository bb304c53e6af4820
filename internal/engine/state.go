package engine

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"smartpool/internal/bpool"
	"smartpool/internal/model"
	"smartpool/internal/smartpool"
	"smartpool/internal/token"
)

// Snapshot captures the full engine state.
func (e *Engine) Snapshot() model.Snapshot {
	return model.Snapshot{
		Seq:        e.seq,
		Block:      e.block,
		Tokens:     e.tokens.State(),
		Underlying: e.underlying.State(),
		Pool:       e.pool.State(),
		UpdatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
}

// Restore rebuilds an engine from a snapshot.
func Restore(chainID uint64, snap model.Snapshot, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens, err := token.RegistryFromState(snap.Tokens)
	if err != nil {
		return nil, fmt.Errorf("restore tokens: %w", err)
	}
	underlying, err := bpool.FromState(snap.Underlying, tokens, logger.Named("bpool"))
	if err != nil {
		return nil, fmt.Errorf("restore underlying: %w", err)
	}
	if !common.IsHexAddress(snap.Pool.Record.Address) {
		return nil, fmt.Errorf("restore pool: bad address %q", snap.Pool.Record.Address)
	}
	poolAddr := common.HexToAddress(snap.Pool.Record.Address)

	var pool *smartpool.Pool
	if snap.Pool.Record.Underlying == "" {
		pool = smartpool.New(poolAddr, tokens, logger.Named("smartpool"))
	} else {
		pool, err = smartpool.FromState(snap.Pool, underlying, tokens, logger.Named("smartpool"))
		if err != nil {
			return nil, err
		}
	}

	return &Engine{
		cfg:        Config{ChainID: chainID, Pool: poolAddr, Underlying: underlying.Address()},
		logger:     logger,
		tokens:     tokens,
		underlying: underlying,
		pool:       pool,
		seq:        snap.Seq,
		block:      snap.Block,
	}, nil
}

// Seed loads an underlying pool read from chain into a fresh engine. Token
// metadata is registered, the pool's balances are minted to it, and control
// passes to the engine's smart pool so Init can follow.
func (e *Engine) Seed(state model.PoolState) error {
	if len(e.underlying.CurrentTokens()) > 0 || e.pool.Initialized() {
		return ErrAlreadySeeded
	}
	for _, meta := range state.TokenMeta {
		addr, err := address(meta.Address, "token_meta.address")
		if err != nil {
			return err
		}
		if _, err := e.tokens.Ledger(addr); err == nil {
			continue
		}
		if _, err := e.tokens.Register(token.Meta{Address: addr, Name: meta.Name, Symbol: meta.Symbol, Decimals: meta.Decimals}); err != nil {
			return err
		}
	}

	underlying := state.Underlying
	underlying.Address = e.cfg.Underlying.Hex()
	underlying.Controller = e.cfg.Pool.Hex()
	for _, bt := range underlying.Tokens {
		addr, err := address(bt.Address, "underlying.tokens.address")
		if err != nil {
			return err
		}
		ledger, err := e.tokens.Ledger(addr)
		if err != nil {
			ledger, err = e.tokens.Register(token.Meta{Address: addr, Decimals: 18})
			if err != nil {
				return err
			}
		}
		balance, ok := new(big.Int).SetString(bt.Balance, 10)
		if !ok {
			return fmt.Errorf("%w: balance %q", ErrBadArgs, bt.Balance)
		}
		if err := ledger.Mint(e.cfg.Underlying, balance); err != nil {
			return err
		}
	}

	seeded, err := bpool.FromState(underlying, e.tokens, e.logger.Named("bpool"))
	if err != nil {
		return fmt.Errorf("seed underlying: %w", err)
	}
	e.underlying = seeded
	if state.BlockNumber > e.block {
		e.block = state.BlockNumber
	}
	e.logger.Info("underlying seeded",
		zap.String("source", state.Underlying.Address),
		zap.Uint64("block", state.BlockNumber),
		zap.Int("tokens", len(underlying.Tokens)),
	)
	return nil
}
