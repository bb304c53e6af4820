package smartpool

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"smartpool/internal/model"
	"smartpool/internal/token"
)

// Bind adds tok to the underlying pool, funding it with balance pulled from caller.
func (p *Pool) Bind(ctx context.Context, caller, tok common.Address, balance, denorm *big.Int) error {
	return p.guarded(ctx, "bind", func(ctx context.Context) error {
		u, err := p.binderCall(caller)
		if err != nil {
			return err
		}
		ledger, err := p.tokens.Ledger(tok)
		if err != nil {
			return err
		}
		if err := p.pullUnderlying(ctx, ledger, caller, balance); err != nil {
			return err
		}
		if err := p.approveUnderlying(ledger, u); err != nil {
			return err
		}
		if err := u.Bind(ctx, p.address, tok, balance, denorm); err != nil {
			return p.refund(ctx, ledger, caller, balance, err)
		}

		p.emit(model.EventTokenBound, model.BindEventData{
			Caller:  caller.Hex(),
			Token:   tok.Hex(),
			Balance: balance.String(),
			Weight:  denorm.String(),
		})
		p.logger.Info("token bound", zap.String("token", tok.Hex()), zap.String("balance", balance.String()), zap.String("denorm", denorm.String()))
		return nil
	})
}

// Rebind sets a bound token's balance and weight. A balance increase is pulled
// from caller; a decrease is returned to caller.
func (p *Pool) Rebind(ctx context.Context, caller, tok common.Address, balance, denorm *big.Int) error {
	return p.guarded(ctx, "rebind", func(ctx context.Context) error {
		u, err := p.binderCall(caller)
		if err != nil {
			return err
		}
		ledger, err := p.tokens.Ledger(tok)
		if err != nil {
			return err
		}
		current, err := u.Balance(tok)
		if err != nil {
			return err
		}

		diff := new(big.Int).Sub(balance, current)
		if diff.Sign() > 0 {
			if err := p.pullUnderlying(ctx, ledger, caller, diff); err != nil {
				return err
			}
			if err := p.approveUnderlying(ledger, u); err != nil {
				return err
			}
		}
		if err := u.Rebind(ctx, p.address, tok, balance, denorm); err != nil {
			if diff.Sign() > 0 {
				return p.refund(ctx, ledger, caller, diff, err)
			}
			return err
		}
		if diff.Sign() < 0 {
			if err := ledger.Transfer(ctx, p.address, caller, diff.Neg(diff)); err != nil {
				return fmt.Errorf("push %s: %w", tok.Hex(), err)
			}
		}

		p.emit(model.EventTokenRebound, model.BindEventData{
			Caller:  caller.Hex(),
			Token:   tok.Hex(),
			Balance: balance.String(),
			Weight:  denorm.String(),
		})
		return nil
	})
}

// Unbind removes tok from the underlying pool and returns its balance to caller.
func (p *Pool) Unbind(ctx context.Context, caller, tok common.Address) error {
	return p.guarded(ctx, "unbind", func(ctx context.Context) error {
		u, err := p.binderCall(caller)
		if err != nil {
			return err
		}
		ledger, err := p.tokens.Ledger(tok)
		if err != nil {
			return err
		}
		amount, err := u.Unbind(ctx, p.address, tok)
		if err != nil {
			return err
		}
		if err := ledger.Transfer(ctx, p.address, caller, amount); err != nil {
			return fmt.Errorf("push %s: %w", tok.Hex(), err)
		}

		p.emit(model.EventTokenUnbound, model.UnbindEventData{Caller: caller.Hex(), Token: tok.Hex(), Amount: amount.String()})
		p.logger.Info("token unbound", zap.String("token", tok.Hex()), zap.String("amount", amount.String()))
		return nil
	})
}

// binderCall checks the token binder role and that no weight update would be
// invalidated by a change to the bound set.
func (p *Pool) binderCall(caller common.Address) (UnderlyingPool, error) {
	if err := p.requireRole(model.RoleTokenBinder, caller); err != nil {
		return nil, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.schedule != nil {
		return nil, ErrScheduleActive
	}
	return p.underlying, nil
}

func (p *Pool) pullUnderlying(ctx context.Context, ledger *token.Ledger, from common.Address, amount *big.Int) error {
	if err := ledger.TransferFrom(ctx, p.address, from, p.address, amount); err != nil {
		return fmt.Errorf("pull %s: %w", ledger.Address().Hex(), err)
	}
	return nil
}

func (p *Pool) approveUnderlying(ledger *token.Ledger, u UnderlyingPool) error {
	return ledger.Approve(p.address, u.Address(), token.MaxAllowance())
}

// refund returns tokens pulled for a call the underlying pool rejected and
// reports the original failure.
func (p *Pool) refund(ctx context.Context, ledger *token.Ledger, to common.Address, amount *big.Int, cause error) error {
	if err := ledger.Transfer(ctx, p.address, to, amount); err != nil {
		p.logger.Error("refund failed", zap.String("token", ledger.Address().Hex()), zap.String("to", to.Hex()), zap.Error(err))
	}
	return cause
}
