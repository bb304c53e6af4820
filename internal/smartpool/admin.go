package smartpool

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"smartpool/internal/model"
)

func (p *Pool) SetController(ctx context.Context, caller, controller common.Address) error {
	return p.setRole(ctx, model.RoleController, caller, controller)
}

func (p *Pool) SetSwapFeeSetter(ctx context.Context, caller, setter common.Address) error {
	return p.setRole(ctx, model.RoleSwapFeeSetter, caller, setter)
}

func (p *Pool) SetTokenBinder(ctx context.Context, caller, binder common.Address) error {
	return p.setRole(ctx, model.RoleTokenBinder, caller, binder)
}

// setRole reassigns role. Only the controller may reassign any role,
// including its own.
func (p *Pool) setRole(ctx context.Context, role string, caller, next common.Address) error {
	return p.guarded(ctx, "set_"+role, func(ctx context.Context) error {
		if err := p.requireRole(model.RoleController, caller); err != nil {
			return err
		}
		if next == (common.Address{}) {
			return ErrZeroAddress
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		var slot *common.Address
		switch role {
		case model.RoleController:
			slot = &p.controller
		case model.RoleSwapFeeSetter:
			slot = &p.swapFeeSetter
		default:
			slot = &p.tokenBinder
		}
		previous := *slot
		*slot = next

		p.emitLocked(model.EventRoleChanged, model.RoleChangedEventData{
			Role:     role,
			Caller:   caller.Hex(),
			Previous: previous.Hex(),
			Current:  next.Hex(),
		})
		p.logger.Info("role changed", zap.String("role", role), zap.String("previous", previous.Hex()), zap.String("current", next.Hex()))
		return nil
	})
}

// SetSwapFee forwards a new swap fee to the underlying pool.
func (p *Pool) SetSwapFee(ctx context.Context, caller common.Address, fee *big.Int) error {
	return p.guarded(ctx, "set_swap_fee", func(ctx context.Context) error {
		if err := p.requireRole(model.RoleSwapFeeSetter, caller); err != nil {
			return err
		}
		u, err := p.ready()
		if err != nil {
			return err
		}
		if err := u.SetSwapFee(ctx, p.address, fee); err != nil {
			return err
		}
		p.emit(model.EventSwapFeeSet, model.SwapFeeEventData{Caller: caller.Hex(), SwapFee: fee.String()})
		return nil
	})
}

// SetPublicSwap enables or disables public swaps on the underlying pool.
func (p *Pool) SetPublicSwap(ctx context.Context, caller common.Address, enabled bool) error {
	return p.guarded(ctx, "set_public_swap", func(ctx context.Context) error {
		if err := p.requireRole(model.RoleSwapFeeSetter, caller); err != nil {
			return err
		}
		u, err := p.ready()
		if err != nil {
			return err
		}
		if err := u.SetPublicSwap(ctx, p.address, enabled); err != nil {
			return err
		}
		p.emit(model.EventPublicSwapSet, model.PublicSwapEventData{Caller: caller.Hex(), Enabled: enabled})
		return nil
	})
}

// SetCap limits total share supply reachable through joins. A nil cap
// removes the limit.
func (p *Pool) SetCap(ctx context.Context, caller common.Address, cap *big.Int) error {
	return p.guarded(ctx, "set_cap", func(ctx context.Context) error {
		if err := p.requireRole(model.RoleController, caller); err != nil {
			return err
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		data := model.CapEventData{Caller: caller.Hex()}
		if cap == nil {
			p.cap = nil
		} else {
			p.cap = new(big.Int).Set(cap)
			data.Cap = cap.String()
		}
		p.emitLocked(model.EventCapSet, data)
		return nil
	})
}
