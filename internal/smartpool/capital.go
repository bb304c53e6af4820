package smartpool

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"smartpool/internal/entryexit"
	"smartpool/internal/model"
	"smartpool/internal/weights"
)

// JoinPool mints poolAmountOut shares for a proportional deposit of every
// bound token. It returns the amounts pulled, in CurrentTokens order.
func (p *Pool) JoinPool(ctx context.Context, caller common.Address, poolAmountOut *big.Int, maxAmountsIn []*big.Int) ([]*big.Int, error) {
	var amounts []*big.Int
	err := p.guarded(ctx, "join_pool", func(ctx context.Context) error {
		ee, err := p.entryExit()
		if err != nil {
			return err
		}
		amounts, err = entryexit.JoinPool(ctx, ee, caller, poolAmountOut, maxAmountsIn)
		return err
	})
	if err == nil {
		p.logger.Debug("join", zap.String("caller", caller.Hex()), zap.String("pool_amount_out", poolAmountOut.String()))
	}
	return amounts, err
}

// ExitPool burns poolAmountIn shares for a proportional withdrawal.
func (p *Pool) ExitPool(ctx context.Context, caller common.Address, poolAmountIn *big.Int, minAmountsOut []*big.Int) ([]*big.Int, error) {
	var amounts []*big.Int
	err := p.guarded(ctx, "exit_pool", func(ctx context.Context) error {
		ee, err := p.entryExit()
		if err != nil {
			return err
		}
		amounts, err = entryexit.ExitPool(ctx, ee, caller, poolAmountIn, minAmountsOut)
		return err
	})
	if err == nil {
		p.logger.Debug("exit", zap.String("caller", caller.Hex()), zap.String("pool_amount_in", poolAmountIn.String()))
	}
	return amounts, err
}

// ExitPoolTakingLoss exits without withdrawing lossTokens.
func (p *Pool) ExitPoolTakingLoss(ctx context.Context, caller common.Address, poolAmountIn *big.Int, lossTokens []common.Address) ([]*big.Int, error) {
	var amounts []*big.Int
	err := p.guarded(ctx, "exit_pool_taking_loss", func(ctx context.Context) error {
		ee, err := p.entryExit()
		if err != nil {
			return err
		}
		amounts, err = entryexit.ExitPoolTakingLoss(ctx, ee, caller, poolAmountIn, lossTokens)
		return err
	})
	return amounts, err
}

func (p *Pool) JoinswapExternAmountIn(ctx context.Context, caller, tok common.Address, tokenAmountIn, minPoolAmountOut *big.Int) (*big.Int, error) {
	return p.singleAsset(ctx, "joinswap_extern_amount_in", func(ctx context.Context, ee entryexit.Pool) (*big.Int, error) {
		return entryexit.JoinswapExternAmountIn(ctx, ee, caller, tok, tokenAmountIn, minPoolAmountOut)
	})
}

func (p *Pool) JoinswapPoolAmountOut(ctx context.Context, caller, tok common.Address, poolAmountOut, maxAmountIn *big.Int) (*big.Int, error) {
	return p.singleAsset(ctx, "joinswap_pool_amount_out", func(ctx context.Context, ee entryexit.Pool) (*big.Int, error) {
		return entryexit.JoinswapPoolAmountOut(ctx, ee, caller, tok, poolAmountOut, maxAmountIn)
	})
}

func (p *Pool) ExitswapPoolAmountIn(ctx context.Context, caller, tok common.Address, poolAmountIn, minAmountOut *big.Int) (*big.Int, error) {
	return p.singleAsset(ctx, "exitswap_pool_amount_in", func(ctx context.Context, ee entryexit.Pool) (*big.Int, error) {
		return entryexit.ExitswapPoolAmountIn(ctx, ee, caller, tok, poolAmountIn, minAmountOut)
	})
}

func (p *Pool) ExitswapExternAmountOut(ctx context.Context, caller, tok common.Address, tokenAmountOut, maxPoolAmountIn *big.Int) (*big.Int, error) {
	return p.singleAsset(ctx, "exitswap_extern_amount_out", func(ctx context.Context, ee entryexit.Pool) (*big.Int, error) {
		return entryexit.ExitswapExternAmountOut(ctx, ee, caller, tok, tokenAmountOut, maxPoolAmountIn)
	})
}

func (p *Pool) singleAsset(ctx context.Context, op string, fn func(context.Context, entryexit.Pool) (*big.Int, error)) (*big.Int, error) {
	var out *big.Int
	err := p.guarded(ctx, op, func(ctx context.Context) error {
		ee, err := p.entryExit()
		if err != nil {
			return err
		}
		out, err = fn(ctx, ee)
		return err
	})
	return out, err
}

// UpdateWeightsGradually schedules a linear move to newWeights between
// startBlock and endBlock. newWeights follow CurrentTokens order.
func (p *Pool) UpdateWeightsGradually(ctx context.Context, caller common.Address, newWeights []*big.Int, startBlock, endBlock, currentBlock uint64) error {
	return p.guarded(ctx, "update_weights_gradually", func(ctx context.Context) error {
		if err := p.requireRole(model.RoleController, caller); err != nil {
			return err
		}
		u, err := p.ready()
		if err != nil {
			return err
		}
		schedule, err := weights.Plan(u, newWeights, startBlock, endBlock, currentBlock)
		if err != nil {
			return err
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		p.schedule = schedule
		p.emitLocked(model.EventWeightsSchedule, model.WeightsScheduleEventData{
			Caller:     caller.Hex(),
			StartBlock: schedule.StartBlock,
			EndBlock:   schedule.EndBlock,
			NewWeights: weights.TokenWeights(schedule.Tokens, schedule.NewWeights),
		})
		return nil
	})
}

// PokeWeights applies the scheduled weights for block. Anyone may call it.
func (p *Pool) PokeWeights(ctx context.Context, caller common.Address, block uint64) error {
	return p.guarded(ctx, "poke_weights", func(ctx context.Context) error {
		u, err := p.ready()
		if err != nil {
			return err
		}
		p.mu.RLock()
		schedule := p.schedule
		p.mu.RUnlock()

		applied, done, err := weights.Poke(ctx, u, p.address, schedule, block)
		if err != nil {
			return err
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if done {
			p.schedule = nil
		}
		p.emitLocked(model.EventWeightsPoked, model.WeightsPokedEventData{
			Block:   block,
			Weights: weights.TokenWeights(schedule.Tokens, applied),
		})
		p.logger.Debug("weights poked", zap.String("caller", caller.Hex()), zap.Uint64("block", block), zap.Bool("done", done))
		return nil
	})
}
