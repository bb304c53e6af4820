package smartpool

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"smartpool/internal/model"
)

// Transfer moves pool shares from caller to to.
func (p *Pool) Transfer(ctx context.Context, caller, to common.Address, amount *big.Int) error {
	return p.guarded(ctx, "transfer", func(ctx context.Context) error {
		if _, err := p.ready(); err != nil {
			return err
		}
		if err := p.shares.Transfer(ctx, caller, to, amount); err != nil {
			return err
		}
		p.emit(model.EventTransfer, model.TransferEventData{From: caller.Hex(), To: to.Hex(), Amount: amount.String()})
		return nil
	})
}

// Approve lets spender move up to amount of caller's shares.
func (p *Pool) Approve(ctx context.Context, caller, spender common.Address, amount *big.Int) error {
	return p.guarded(ctx, "approve", func(ctx context.Context) error {
		if _, err := p.ready(); err != nil {
			return err
		}
		return p.shares.Approve(caller, spender, amount)
	})
}

// TransferFrom moves shares from from to to on behalf of caller.
func (p *Pool) TransferFrom(ctx context.Context, caller, from, to common.Address, amount *big.Int) error {
	return p.guarded(ctx, "transfer_from", func(ctx context.Context) error {
		if _, err := p.ready(); err != nil {
			return err
		}
		if err := p.shares.TransferFrom(ctx, caller, from, to, amount); err != nil {
			return err
		}
		p.emit(model.EventTransfer, model.TransferEventData{From: from.Hex(), To: to.Hex(), Amount: amount.String()})
		return nil
	})
}

func (p *Pool) Address() common.Address {
	return p.address
}

func (p *Pool) Initialized() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.underlying != nil
}

func (p *Pool) BalanceOf(holder common.Address) *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.shares == nil {
		return big.NewInt(0)
	}
	return p.shares.BalanceOf(holder)
}

func (p *Pool) TotalSupply() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.shares == nil {
		return big.NewInt(0)
	}
	return p.shares.TotalSupply()
}

func (p *Pool) Allowance(owner, spender common.Address) *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.shares == nil {
		return big.NewInt(0)
	}
	return p.shares.Allowance(owner, spender)
}

func (p *Pool) Controller() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.controller
}

func (p *Pool) SwapFeeSetter() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.swapFeeSetter
}

func (p *Pool) TokenBinder() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tokenBinder
}

// Underlying returns the underlying pool address, or the zero address before Init.
func (p *Pool) Underlying() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.underlying == nil {
		return common.Address{}
	}
	return p.underlying.Address()
}

// Cap returns the supply cap, nil when unlimited.
func (p *Pool) Cap() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cap == nil {
		return nil
	}
	return new(big.Int).Set(p.cap)
}

func (p *Pool) Tokens() ([]common.Address, error) {
	u, err := p.ready()
	if err != nil {
		return nil, err
	}
	return u.CurrentTokens(), nil
}

func (p *Pool) SwapFee() (*big.Int, error) {
	u, err := p.ready()
	if err != nil {
		return nil, err
	}
	return u.SwapFee(), nil
}

func (p *Pool) IsPublicSwap() (bool, error) {
	u, err := p.ready()
	if err != nil {
		return false, err
	}
	return u.IsPublicSwap(), nil
}

// Record returns the registration record.
func (p *Pool) Record() model.PoolRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec := model.PoolRecord{
		Address:       p.address.Hex(),
		Controller:    p.controller.Hex(),
		SwapFeeSetter: p.swapFeeSetter.Hex(),
		TokenBinder:   p.tokenBinder.Hex(),
		Name:          p.name,
		Symbol:        p.symbol,
	}
	if p.underlying != nil {
		rec.Underlying = p.underlying.Address().Hex()
	}
	if p.cap != nil {
		rec.Cap = p.cap.String()
	}
	return rec
}
