package smartpool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"smartpool/internal/model"
	"smartpool/internal/token"
	"smartpool/internal/weights"
)

// State captures the smart pool for persistence. Pending events are not included.
func (p *Pool) State() model.SmartPoolState {
	state := model.SmartPoolState{Record: p.Record()}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.shares != nil {
		state.Shares = p.shares.State()
	}
	state.Schedule = p.schedule.Model()
	return state
}

// FromState restores an initialized smart pool wrapping underlying.
func FromState(state model.SmartPoolState, underlying UnderlyingPool, tokens *token.Registry, logger *zap.Logger) (*Pool, error) {
	rec := state.Record
	for _, addr := range []string{rec.Address, rec.Controller, rec.SwapFeeSetter, rec.TokenBinder} {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("restore pool: bad address %q", addr)
		}
	}
	if underlying == nil || !common.IsHexAddress(rec.Underlying) || common.HexToAddress(rec.Underlying) != underlying.Address() {
		return nil, fmt.Errorf("restore pool: underlying %q does not match", rec.Underlying)
	}

	shares, err := token.LedgerFromState(state.Shares)
	if err != nil {
		return nil, fmt.Errorf("restore pool shares: %w", err)
	}
	schedule, err := weights.FromModel(state.Schedule)
	if err != nil {
		return nil, fmt.Errorf("restore pool schedule: %w", err)
	}

	p := New(common.HexToAddress(rec.Address), tokens, logger)
	p.underlying = underlying
	p.controller = common.HexToAddress(rec.Controller)
	p.swapFeeSetter = common.HexToAddress(rec.SwapFeeSetter)
	p.tokenBinder = common.HexToAddress(rec.TokenBinder)
	p.name = rec.Name
	p.symbol = rec.Symbol
	p.shares = shares
	p.schedule = schedule
	if rec.Cap != "" {
		c, ok := new(big.Int).SetString(rec.Cap, 10)
		if !ok {
			return nil, fmt.Errorf("restore pool: bad cap %q", rec.Cap)
		}
		p.cap = c
	}
	return p, nil
}
