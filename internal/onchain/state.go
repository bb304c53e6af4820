package onchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"smartpool/internal/model"
)

// FetchPoolState reads an underlying pool's configuration and bindings at a
// block, plus metadata for each bound token. Token metadata failures are logged
// and leave only the address filled in.
func FetchPoolState(
	ctx context.Context,
	caller Caller,
	chainID uint64,
	pool common.Address,
	blockNumber uint64,
	tokenCache *TokenMetaCache,
	logger *zap.Logger,
) (model.PoolState, error) {
	if caller == nil {
		return model.PoolState{}, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if tokenCache == nil {
		tokenCache = NewTokenMetaCache()
	}

	poolABI, err := BPoolABI()
	if err != nil {
		return model.PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}

	var block *big.Int
	if blockNumber > 0 {
		block = new(big.Int).SetUint64(blockNumber)
	}
	read := func(method string, args ...interface{}) (interface{}, error) {
		values, err := call(ctx, caller, pool, poolABI, method, block, args...)
		if err != nil {
			return nil, err
		}
		return values[0], nil
	}
	readInt := func(method string, args ...interface{}) (*big.Int, error) {
		v, err := read(method, args...)
		if err != nil {
			return nil, err
		}
		n, err := asBigInt(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}
		return n, nil
	}

	v, err := read("getCurrentTokens")
	if err != nil {
		return model.PoolState{}, err
	}
	tokens, ok := v.([]common.Address)
	if !ok {
		return model.PoolState{}, fmt.Errorf("getCurrentTokens: unsupported type %T", v)
	}

	v, err = read("getController")
	if err != nil {
		return model.PoolState{}, err
	}
	controller, err := asAddress(v)
	if err != nil {
		return model.PoolState{}, fmt.Errorf("getController: %w", err)
	}

	v, err = read("isPublicSwap")
	if err != nil {
		return model.PoolState{}, err
	}
	publicSwap, ok := v.(bool)
	if !ok {
		return model.PoolState{}, fmt.Errorf("isPublicSwap: unsupported type %T", v)
	}

	swapFee, err := readInt("getSwapFee")
	if err != nil {
		return model.PoolState{}, err
	}
	totalWeight, err := readInt("getTotalDenormalizedWeight")
	if err != nil {
		return model.PoolState{}, err
	}

	state := model.PoolState{
		ChainID:     chainID,
		BlockNumber: blockNumber,
		Underlying: model.UnderlyingState{
			Address:     pool.Hex(),
			Controller:  controller.Hex(),
			SwapFee:     swapFee.String(),
			PublicSwap:  publicSwap,
			TotalWeight: totalWeight.String(),
			Tokens:      make([]model.BoundToken, 0, len(tokens)),
		},
		TokenMeta: make([]model.TokenMeta, 0, len(tokens)),
	}

	for _, token := range tokens {
		balance, err := readInt("getBalance", token)
		if err != nil {
			return model.PoolState{}, fmt.Errorf("token %s: %w", token.Hex(), err)
		}
		weight, err := readInt("getDenormalizedWeight", token)
		if err != nil {
			return model.PoolState{}, fmt.Errorf("token %s: %w", token.Hex(), err)
		}
		state.Underlying.Tokens = append(state.Underlying.Tokens, model.BoundToken{
			Address: token.Hex(),
			Balance: balance.String(),
			Weight:  weight.String(),
		})

		meta, ok := tokenCache.Get(token)
		if !ok {
			meta, err = FetchTokenMeta(ctx, caller, token, logger)
			if err != nil {
				logger.Warn("token metadata fetch failed", zap.String("token", token.Hex()), zap.Error(err))
			}
			tokenCache.Set(token, meta)
		}
		state.TokenMeta = append(state.TokenMeta, meta)
	}

	return state, nil
}
