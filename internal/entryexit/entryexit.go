// Package entryexit converts underlying assets into pool shares and back.
//
// Every operation runs against a Pool value describing the smart pool that
// owns the share ledger. Checks and amount calculations happen before any
// token moves, so a rejected call leaves balances untouched.
package entryexit

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"smartpool/internal/bmath"
	"smartpool/internal/model"
	"smartpool/internal/token"
)

var (
	ErrZeroRatio      = errors.New("entryexit: ratio rounds to zero")
	ErrMathApprox     = errors.New("entryexit: amount rounds to zero")
	ErrLimitIn        = errors.New("entryexit: amount in above limit")
	ErrLimitOut       = errors.New("entryexit: amount out below limit")
	ErrMaxInRatio     = errors.New("entryexit: amount in above max ratio")
	ErrMaxOutRatio    = errors.New("entryexit: amount out above max ratio")
	ErrCapExceeded    = errors.New("entryexit: supply cap exceeded")
	ErrNotBound       = errors.New("entryexit: token not bound")
	ErrLimitsMismatch = errors.New("entryexit: limits length does not match tokens")
	ErrNoSupply       = errors.New("entryexit: pool has no supply")
	ErrNoTokens       = errors.New("entryexit: no tokens bound")
	ErrMinBalance     = errors.New("entryexit: remaining balance below minimum")
)

// Underlying is the part of the underlying pool the entry/exit paths need.
type Underlying interface {
	Address() common.Address
	CurrentTokens() []common.Address
	IsBound(tok common.Address) bool
	Balance(tok common.Address) (*big.Int, error)
	DenormalizedWeight(tok common.Address) (*big.Int, error)
	TotalDenormalizedWeight() *big.Int
	SwapFee() *big.Int
	Rebind(ctx context.Context, caller, tok common.Address, balance, denorm *big.Int) error
}

// Pool is the smart pool as seen by this package.
type Pool struct {
	Self       common.Address
	Underlying Underlying
	Shares     *token.Ledger
	Tokens     *token.Registry
	// Cap bounds total share supply after a join. Nil means unlimited.
	Cap  *big.Int
	Emit func(name string, data interface{})
}

type leg struct {
	token   common.Address
	balance *big.Int
	denorm  *big.Int
	amount  *big.Int
}

// JoinPool mints poolAmountOut shares to caller in exchange for a proportional
// deposit of every bound token. maxAmountsIn may be nil; otherwise it lists
// one limit per token in CurrentTokens order.
func JoinPool(ctx context.Context, p Pool, caller common.Address, poolAmountOut *big.Int, maxAmountsIn []*big.Int) ([]*big.Int, error) {
	tokens := p.Underlying.CurrentTokens()
	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}
	if err := p.checkCap(poolAmountOut); err != nil {
		return nil, err
	}
	ratio, err := p.ratio(poolAmountOut)
	if err != nil {
		return nil, err
	}

	if maxAmountsIn != nil && len(maxAmountsIn) != len(tokens) {
		return nil, ErrLimitsMismatch
	}
	legs := make([]leg, 0, len(tokens))
	for i, tok := range tokens {
		l, err := p.leg(tok)
		if err != nil {
			return nil, err
		}
		l.amount = bmath.Mul(ratio, l.balance)
		if l.amount.Sign() == 0 {
			return nil, fmt.Errorf("%s: %w", tok.Hex(), ErrMathApprox)
		}
		if maxAmountsIn != nil && l.amount.Cmp(maxAmountsIn[i]) > 0 {
			return nil, fmt.Errorf("%s: %w", tok.Hex(), ErrLimitIn)
		}
		if err := p.checkPull(caller, l); err != nil {
			return nil, err
		}
		legs = append(legs, l)
	}

	amounts := make([]*big.Int, 0, len(legs))
	for _, l := range legs {
		if err := p.deposit(ctx, caller, l); err != nil {
			return nil, err
		}
		p.emit(model.EventJoin, model.JoinEventData{Caller: caller.Hex(), TokenIn: l.token.Hex(), AmountIn: l.amount.String()})
		amounts = append(amounts, l.amount)
	}
	if err := p.Shares.Mint(caller, poolAmountOut); err != nil {
		return nil, err
	}
	return amounts, nil
}

// ExitPool burns poolAmountIn shares from caller and returns a proportional
// share of every bound token. minAmountsOut may be nil.
func ExitPool(ctx context.Context, p Pool, caller common.Address, poolAmountIn *big.Int, minAmountsOut []*big.Int) ([]*big.Int, error) {
	tokens := p.Underlying.CurrentTokens()
	if minAmountsOut != nil && len(minAmountsOut) != len(tokens) {
		return nil, ErrLimitsMismatch
	}
	return p.exit(ctx, caller, poolAmountIn, tokens, minAmountsOut, nil)
}

// ExitPoolTakingLoss behaves like ExitPool but leaves lossTokens in the pool.
// The caller's claim on them is forfeited to the remaining holders.
func ExitPoolTakingLoss(ctx context.Context, p Pool, caller common.Address, poolAmountIn *big.Int, lossTokens []common.Address) ([]*big.Int, error) {
	skip := make(map[common.Address]struct{}, len(lossTokens))
	for _, tok := range lossTokens {
		skip[tok] = struct{}{}
	}
	return p.exit(ctx, caller, poolAmountIn, p.Underlying.CurrentTokens(), nil, skip)
}

func (p Pool) exit(ctx context.Context, caller common.Address, poolAmountIn *big.Int, tokens []common.Address, minAmountsOut []*big.Int, skip map[common.Address]struct{}) ([]*big.Int, error) {
	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}
	ratio, err := p.ratio(poolAmountIn)
	if err != nil {
		return nil, err
	}
	if p.Shares.BalanceOf(caller).Cmp(poolAmountIn) < 0 {
		return nil, token.ErrInsufficientBalance
	}

	legs := make([]leg, 0, len(tokens))
	amounts := make([]*big.Int, len(tokens))
	for i, tok := range tokens {
		amounts[i] = big.NewInt(0)
		if _, ok := skip[tok]; ok {
			continue
		}
		l, err := p.leg(tok)
		if err != nil {
			return nil, err
		}
		l.amount = bmath.Mul(ratio, l.balance)
		if l.amount.Sign() == 0 {
			return nil, fmt.Errorf("%s: %w", tok.Hex(), ErrMathApprox)
		}
		if minAmountsOut != nil && l.amount.Cmp(minAmountsOut[i]) < 0 {
			return nil, fmt.Errorf("%s: %w", tok.Hex(), ErrLimitOut)
		}
		if err := checkRemaining(l); err != nil {
			return nil, err
		}
		amounts[i] = l.amount
		legs = append(legs, l)
	}

	if err := p.Shares.Burn(caller, poolAmountIn); err != nil {
		return nil, err
	}
	for _, l := range legs {
		if err := p.withdraw(ctx, caller, l); err != nil {
			return nil, err
		}
		p.emit(model.EventExit, model.ExitEventData{Caller: caller.Hex(), TokenOut: l.token.Hex(), AmountOut: l.amount.String()})
	}
	return amounts, nil
}

// JoinswapExternAmountIn deposits a fixed amount of one token and mints the
// shares it is worth, at least minPoolAmountOut.
func JoinswapExternAmountIn(ctx context.Context, p Pool, caller, tok common.Address, tokenAmountIn, minPoolAmountOut *big.Int) (*big.Int, error) {
	l, err := p.leg(tok)
	if err != nil {
		return nil, err
	}
	if tokenAmountIn.Cmp(bmath.Mul(l.balance, bmath.MaxInRatio)) > 0 {
		return nil, ErrMaxInRatio
	}
	poolAmountOut, err := bmath.PoolOutGivenSingleIn(l.balance, l.denorm, p.Shares.TotalSupply(), p.Underlying.TotalDenormalizedWeight(), tokenAmountIn, p.Underlying.SwapFee())
	if err != nil {
		return nil, err
	}
	if poolAmountOut.Cmp(minPoolAmountOut) < 0 {
		return nil, ErrLimitOut
	}
	if err := p.checkCap(poolAmountOut); err != nil {
		return nil, err
	}

	l.amount = tokenAmountIn
	if err := p.checkPull(caller, l); err != nil {
		return nil, err
	}
	if err := p.deposit(ctx, caller, l); err != nil {
		return nil, err
	}
	p.emit(model.EventJoin, model.JoinEventData{Caller: caller.Hex(), TokenIn: tok.Hex(), AmountIn: tokenAmountIn.String()})
	if err := p.Shares.Mint(caller, poolAmountOut); err != nil {
		return nil, err
	}
	return poolAmountOut, nil
}

// JoinswapPoolAmountOut mints a fixed number of shares for a single-token
// deposit of at most maxAmountIn.
func JoinswapPoolAmountOut(ctx context.Context, p Pool, caller, tok common.Address, poolAmountOut, maxAmountIn *big.Int) (*big.Int, error) {
	if err := p.checkCap(poolAmountOut); err != nil {
		return nil, err
	}
	l, err := p.leg(tok)
	if err != nil {
		return nil, err
	}
	tokenAmountIn, err := bmath.SingleInGivenPoolOut(l.balance, l.denorm, p.Shares.TotalSupply(), p.Underlying.TotalDenormalizedWeight(), poolAmountOut, p.Underlying.SwapFee())
	if err != nil {
		return nil, err
	}
	if tokenAmountIn.Sign() == 0 {
		return nil, ErrMathApprox
	}
	if tokenAmountIn.Cmp(maxAmountIn) > 0 {
		return nil, ErrLimitIn
	}
	if tokenAmountIn.Cmp(bmath.Mul(l.balance, bmath.MaxInRatio)) > 0 {
		return nil, ErrMaxInRatio
	}

	l.amount = tokenAmountIn
	if err := p.checkPull(caller, l); err != nil {
		return nil, err
	}
	if err := p.deposit(ctx, caller, l); err != nil {
		return nil, err
	}
	p.emit(model.EventJoin, model.JoinEventData{Caller: caller.Hex(), TokenIn: tok.Hex(), AmountIn: tokenAmountIn.String()})
	if err := p.Shares.Mint(caller, poolAmountOut); err != nil {
		return nil, err
	}
	return tokenAmountIn, nil
}

// ExitswapPoolAmountIn burns a fixed number of shares for at least
// minAmountOut of one token.
func ExitswapPoolAmountIn(ctx context.Context, p Pool, caller, tok common.Address, poolAmountIn, minAmountOut *big.Int) (*big.Int, error) {
	l, err := p.leg(tok)
	if err != nil {
		return nil, err
	}
	tokenAmountOut, err := bmath.SingleOutGivenPoolIn(l.balance, l.denorm, p.Shares.TotalSupply(), p.Underlying.TotalDenormalizedWeight(), poolAmountIn, p.Underlying.SwapFee())
	if err != nil {
		return nil, err
	}
	if tokenAmountOut.Cmp(minAmountOut) < 0 {
		return nil, ErrLimitOut
	}
	if tokenAmountOut.Cmp(bmath.Mul(l.balance, bmath.MaxOutRatio)) > 0 {
		return nil, ErrMaxOutRatio
	}
	l.amount = tokenAmountOut
	if err := checkRemaining(l); err != nil {
		return nil, err
	}

	if err := p.Shares.Burn(caller, poolAmountIn); err != nil {
		return nil, err
	}
	if err := p.withdraw(ctx, caller, l); err != nil {
		return nil, err
	}
	p.emit(model.EventExit, model.ExitEventData{Caller: caller.Hex(), TokenOut: tok.Hex(), AmountOut: tokenAmountOut.String()})
	return tokenAmountOut, nil
}

// ExitswapExternAmountOut withdraws a fixed amount of one token, burning at
// most maxPoolAmountIn shares.
func ExitswapExternAmountOut(ctx context.Context, p Pool, caller, tok common.Address, tokenAmountOut, maxPoolAmountIn *big.Int) (*big.Int, error) {
	l, err := p.leg(tok)
	if err != nil {
		return nil, err
	}
	if tokenAmountOut.Cmp(bmath.Mul(l.balance, bmath.MaxOutRatio)) > 0 {
		return nil, ErrMaxOutRatio
	}
	poolAmountIn, err := bmath.PoolInGivenSingleOut(l.balance, l.denorm, p.Shares.TotalSupply(), p.Underlying.TotalDenormalizedWeight(), tokenAmountOut, p.Underlying.SwapFee())
	if err != nil {
		return nil, err
	}
	if poolAmountIn.Sign() == 0 {
		return nil, ErrMathApprox
	}
	if poolAmountIn.Cmp(maxPoolAmountIn) > 0 {
		return nil, ErrLimitIn
	}
	l.amount = tokenAmountOut
	if err := checkRemaining(l); err != nil {
		return nil, err
	}

	if err := p.Shares.Burn(caller, poolAmountIn); err != nil {
		return nil, err
	}
	if err := p.withdraw(ctx, caller, l); err != nil {
		return nil, err
	}
	p.emit(model.EventExit, model.ExitEventData{Caller: caller.Hex(), TokenOut: tok.Hex(), AmountOut: tokenAmountOut.String()})
	return poolAmountIn, nil
}

func (p Pool) ratio(poolAmount *big.Int) (*big.Int, error) {
	supply := p.Shares.TotalSupply()
	if supply.Sign() == 0 {
		return nil, ErrNoSupply
	}
	ratio, err := bmath.Div(poolAmount, supply)
	if err != nil {
		return nil, err
	}
	if ratio.Sign() == 0 {
		return nil, ErrZeroRatio
	}
	return ratio, nil
}

func (p Pool) checkCap(poolAmountOut *big.Int) error {
	if p.Cap == nil {
		return nil
	}
	after := new(big.Int).Add(p.Shares.TotalSupply(), poolAmountOut)
	if after.Cmp(p.Cap) > 0 {
		return ErrCapExceeded
	}
	return nil
}

func (p Pool) leg(tok common.Address) (leg, error) {
	if !p.Underlying.IsBound(tok) {
		return leg{}, fmt.Errorf("%s: %w", tok.Hex(), ErrNotBound)
	}
	balance, err := p.Underlying.Balance(tok)
	if err != nil {
		return leg{}, err
	}
	denorm, err := p.Underlying.DenormalizedWeight(tok)
	if err != nil {
		return leg{}, err
	}
	return leg{token: tok, balance: balance, denorm: denorm}, nil
}

// checkPull fails when deposit could not pull l.amount from caller, so a
// multi-token join never moves a token before every leg is known to succeed.
func (p Pool) checkPull(caller common.Address, l leg) error {
	ledger, err := p.Tokens.Ledger(l.token)
	if err != nil {
		return err
	}
	if ledger.BalanceOf(caller).Cmp(l.amount) < 0 {
		return fmt.Errorf("pull %s: %w", l.token.Hex(), token.ErrInsufficientBalance)
	}
	if caller != p.Self && ledger.Allowance(caller, p.Self).Cmp(l.amount) < 0 {
		return fmt.Errorf("pull %s: %w", l.token.Hex(), token.ErrInsufficientAllowance)
	}
	return nil
}

// checkRemaining rejects a withdrawal that would leave the bound balance
// under bmath.MinBalance; the underlying pool would refuse the rebind after
// shares were already burned.
func checkRemaining(l leg) error {
	remaining := new(big.Int).Sub(l.balance, l.amount)
	if remaining.Cmp(bmath.MinBalance) < 0 {
		return fmt.Errorf("%s: %w", l.token.Hex(), ErrMinBalance)
	}
	return nil
}

// deposit moves l.amount from caller to the smart pool and on into the
// underlying pool by raising the bound balance.
func (p Pool) deposit(ctx context.Context, caller common.Address, l leg) error {
	ledger, err := p.Tokens.Ledger(l.token)
	if err != nil {
		return err
	}
	if err := ledger.TransferFrom(ctx, p.Self, caller, p.Self, l.amount); err != nil {
		return fmt.Errorf("pull %s: %w", l.token.Hex(), err)
	}
	spender := p.Underlying.Address()
	if ledger.Allowance(p.Self, spender).Cmp(l.amount) < 0 {
		if err := ledger.Approve(p.Self, spender, token.MaxAllowance()); err != nil {
			return err
		}
	}
	return p.Underlying.Rebind(ctx, p.Self, l.token, bmath.Add(l.balance, l.amount), l.denorm)
}

// withdraw lowers the bound balance by l.amount, which returns the tokens to
// the smart pool, then forwards them to caller.
func (p Pool) withdraw(ctx context.Context, caller common.Address, l leg) error {
	remaining, err := bmath.Sub(l.balance, l.amount)
	if err != nil {
		return err
	}
	if err := p.Underlying.Rebind(ctx, p.Self, l.token, remaining, l.denorm); err != nil {
		return err
	}
	ledger, err := p.Tokens.Ledger(l.token)
	if err != nil {
		return err
	}
	if err := ledger.Transfer(ctx, p.Self, caller, l.amount); err != nil {
		return fmt.Errorf("push %s: %w", l.token.Hex(), err)
	}
	return nil
}

func (p Pool) emit(name string, data interface{}) {
	if p.Emit != nil {
		p.Emit(name, data)
	}
}
