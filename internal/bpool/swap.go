package bpool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"smartpool/internal/bmath"
	"smartpool/internal/model"
)

// SwapResult is the outcome of a public swap.
type SwapResult struct {
	AmountIn       *big.Int
	AmountOut      *big.Int
	SpotPriceAfter *big.Int
}

type swapSide struct {
	balance *big.Int
	denorm  *big.Int
}

// SpotPrice returns the fee-inclusive price of tokenOut in tokenIn.
func (p *Pool) SpotPrice(tokenIn, tokenOut common.Address) (*big.Int, error) {
	in, out, _, err := p.swapSides(tokenIn, tokenOut, false)
	if err != nil {
		return nil, err
	}
	return bmath.SpotPrice(in.balance, in.denorm, out.balance, out.denorm, p.SwapFee())
}

// SwapExactAmountIn trades a fixed amountIn of tokenIn for at least minAmountOut of tokenOut.
func (p *Pool) SwapExactAmountIn(ctx context.Context, caller, tokenIn common.Address, amountIn *big.Int, tokenOut common.Address, minAmountOut, maxPrice *big.Int) (SwapResult, error) {
	ctx, release, err := p.lock.Enter(ctx)
	if err != nil {
		return SwapResult{}, err
	}
	defer release()

	in, out, fee, err := p.swapSides(tokenIn, tokenOut, true)
	if err != nil {
		return SwapResult{}, err
	}
	if amountIn.Cmp(bmath.Mul(in.balance, bmath.MaxInRatio)) > 0 {
		return SwapResult{}, ErrMaxInRatio
	}

	spotBefore, err := bmath.SpotPrice(in.balance, in.denorm, out.balance, out.denorm, fee)
	if err != nil {
		return SwapResult{}, err
	}
	if spotBefore.Cmp(maxPrice) > 0 {
		return SwapResult{}, ErrBadLimitPrice
	}

	amountOut, err := bmath.OutGivenIn(in.balance, in.denorm, out.balance, out.denorm, amountIn, fee)
	if err != nil {
		return SwapResult{}, err
	}
	if amountOut.Cmp(minAmountOut) < 0 {
		return SwapResult{}, ErrLimitOut
	}

	return p.settleSwap(ctx, caller, tokenIn, tokenOut, in, out, fee, spotBefore, amountIn, amountOut, maxPrice)
}

// SwapExactAmountOut trades at most maxAmountIn of tokenIn for a fixed amountOut of tokenOut.
func (p *Pool) SwapExactAmountOut(ctx context.Context, caller, tokenIn common.Address, maxAmountIn *big.Int, tokenOut common.Address, amountOut, maxPrice *big.Int) (SwapResult, error) {
	ctx, release, err := p.lock.Enter(ctx)
	if err != nil {
		return SwapResult{}, err
	}
	defer release()

	in, out, fee, err := p.swapSides(tokenIn, tokenOut, true)
	if err != nil {
		return SwapResult{}, err
	}
	if amountOut.Cmp(bmath.Mul(out.balance, bmath.MaxOutRatio)) > 0 {
		return SwapResult{}, ErrMaxOutRatio
	}

	spotBefore, err := bmath.SpotPrice(in.balance, in.denorm, out.balance, out.denorm, fee)
	if err != nil {
		return SwapResult{}, err
	}
	if spotBefore.Cmp(maxPrice) > 0 {
		return SwapResult{}, ErrBadLimitPrice
	}

	amountIn, err := bmath.InGivenOut(in.balance, in.denorm, out.balance, out.denorm, amountOut, fee)
	if err != nil {
		return SwapResult{}, err
	}
	if amountIn.Cmp(maxAmountIn) > 0 {
		return SwapResult{}, ErrLimitIn
	}

	return p.settleSwap(ctx, caller, tokenIn, tokenOut, in, out, fee, spotBefore, amountIn, amountOut, maxPrice)
}

func (p *Pool) settleSwap(
	ctx context.Context,
	caller, tokenIn, tokenOut common.Address,
	in, out swapSide,
	fee, spotBefore, amountIn, amountOut, maxPrice *big.Int,
) (SwapResult, error) {
	newIn := bmath.Add(in.balance, amountIn)
	newOut, err := bmath.Sub(out.balance, amountOut)
	if err != nil {
		return SwapResult{}, err
	}

	spotAfter, err := bmath.SpotPrice(newIn, in.denorm, newOut, out.denorm, fee)
	if err != nil {
		return SwapResult{}, err
	}
	if spotAfter.Cmp(spotBefore) < 0 {
		return SwapResult{}, ErrMathApprox
	}
	if spotAfter.Cmp(maxPrice) > 0 {
		return SwapResult{}, ErrLimitPrice
	}
	effective, err := bmath.Div(amountIn, amountOut)
	if err != nil {
		return SwapResult{}, err
	}
	if spotBefore.Cmp(effective) > 0 {
		return SwapResult{}, ErrMathApprox
	}

	if err := p.pull(ctx, tokenIn, caller, amountIn); err != nil {
		return SwapResult{}, err
	}

	p.mu.Lock()
	p.records[tokenIn].balance = newIn
	p.records[tokenOut].balance = newOut
	p.mu.Unlock()

	if err := p.push(ctx, tokenOut, caller, amountOut); err != nil {
		return SwapResult{}, err
	}

	p.emit(model.EventSwap, model.SwapEventData{
		Caller:    caller.Hex(),
		TokenIn:   tokenIn.Hex(),
		TokenOut:  tokenOut.Hex(),
		AmountIn:  amountIn.String(),
		AmountOut: amountOut.String(),
	})
	p.logger.Debug("swap",
		zap.String("caller", caller.Hex()),
		zap.String("token_in", tokenIn.Hex()),
		zap.String("token_out", tokenOut.Hex()),
		zap.String("amount_in", amountIn.String()),
		zap.String("amount_out", amountOut.String()),
	)

	return SwapResult{AmountIn: amountIn, AmountOut: amountOut, SpotPriceAfter: spotAfter}, nil
}

func (p *Pool) swapSides(tokenIn, tokenOut common.Address, requirePublic bool) (swapSide, swapSide, *big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if requirePublic && !p.publicSwap {
		return swapSide{}, swapSide{}, nil, ErrSwapNotPublic
	}
	inRec, ok := p.records[tokenIn]
	if !ok {
		return swapSide{}, swapSide{}, nil, fmt.Errorf("%s: %w", tokenIn.Hex(), ErrNotBound)
	}
	outRec, ok := p.records[tokenOut]
	if !ok {
		return swapSide{}, swapSide{}, nil, fmt.Errorf("%s: %w", tokenOut.Hex(), ErrNotBound)
	}
	in := swapSide{balance: new(big.Int).Set(inRec.balance), denorm: new(big.Int).Set(inRec.denorm)}
	out := swapSide{balance: new(big.Int).Set(outRec.balance), denorm: new(big.Int).Set(outRec.denorm)}
	return in, out, new(big.Int).Set(p.swapFee), nil
}
