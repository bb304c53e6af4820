package bpool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"smartpool/internal/bmath"
	"smartpool/internal/model"
	"smartpool/internal/token"
)

// State returns the pool configuration and bindings in binding order.
func (p *Pool) State() model.UnderlyingState {
	p.mu.RLock()
	defer p.mu.RUnlock()

	state := model.UnderlyingState{
		Address:     p.address.Hex(),
		Controller:  p.controller.Hex(),
		SwapFee:     p.swapFee.String(),
		PublicSwap:  p.publicSwap,
		TotalWeight: p.totalWeight.String(),
		Tokens:      make([]model.BoundToken, 0, len(p.bound)),
	}
	for _, tok := range p.bound {
		rec := p.records[tok]
		state.Tokens = append(state.Tokens, model.BoundToken{
			Address: tok.Hex(),
			Balance: rec.balance.String(),
			Weight:  rec.denorm.String(),
		})
	}
	return state
}

// FromState rebuilds a pool from its serialized form. Token balances are taken
// as recorded; the caller is responsible for the registry holding them.
func FromState(state model.UnderlyingState, tokens *token.Registry, logger *zap.Logger) (*Pool, error) {
	if !common.IsHexAddress(state.Address) || !common.IsHexAddress(state.Controller) {
		return nil, fmt.Errorf("%w: address %q controller %q", ErrUnsupportedState, state.Address, state.Controller)
	}
	if len(state.Tokens) > bmath.MaxBoundTokens {
		return nil, ErrMaxTokens
	}

	p := New(common.HexToAddress(state.Address), common.HexToAddress(state.Controller), tokens, logger)
	p.publicSwap = state.PublicSwap
	if state.SwapFee != "" {
		fee, ok := new(big.Int).SetString(state.SwapFee, 10)
		if !ok {
			return nil, fmt.Errorf("%w: swap fee %q", ErrUnsupportedState, state.SwapFee)
		}
		p.swapFee = fee
	}

	for i, bt := range state.Tokens {
		if !common.IsHexAddress(bt.Address) {
			return nil, fmt.Errorf("%w: token %q", ErrUnsupportedState, bt.Address)
		}
		tok := common.HexToAddress(bt.Address)
		if _, ok := p.records[tok]; ok {
			return nil, fmt.Errorf("%s: %w", tok.Hex(), ErrIsBound)
		}
		balance, ok := new(big.Int).SetString(bt.Balance, 10)
		if !ok {
			return nil, fmt.Errorf("%w: balance %q", ErrUnsupportedState, bt.Balance)
		}
		denorm, ok := new(big.Int).SetString(bt.Weight, 10)
		if !ok {
			return nil, fmt.Errorf("%w: weight %q", ErrUnsupportedState, bt.Weight)
		}
		p.records[tok] = &record{index: i, denorm: denorm, balance: balance}
		p.bound = append(p.bound, tok)
		p.totalWeight.Add(p.totalWeight, denorm)
	}
	return p, nil
}
