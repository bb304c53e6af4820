// Package weights moves bound token weights toward a target over a block range.
package weights

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"smartpool/internal/bmath"
	"smartpool/internal/model"
)

var (
	ErrNoSchedule      = errors.New("weights: no update scheduled")
	ErrTooEarly        = errors.New("weights: schedule has not started")
	ErrBadRange        = errors.New("weights: end block must be after start block")
	ErrLengthMismatch  = errors.New("weights: weights do not match bound tokens")
	ErrTokensChanged   = errors.New("weights: bound tokens changed since schedule")
	ErrWeightRange     = errors.New("weights: weight out of range")
	ErrTotalWeight     = errors.New("weights: total weight above maximum")
	ErrInvalidSchedule = errors.New("weights: invalid schedule")
)

// Underlying is the pool whose weights are adjusted.
type Underlying interface {
	CurrentTokens() []common.Address
	Balance(tok common.Address) (*big.Int, error)
	DenormalizedWeight(tok common.Address) (*big.Int, error)
	Rebind(ctx context.Context, caller, tok common.Address, balance, denorm *big.Int) error
}

// Schedule is a pending linear weight update.
type Schedule struct {
	StartBlock   uint64
	EndBlock     uint64
	Tokens       []common.Address
	StartWeights []*big.Int
	NewWeights   []*big.Int
}

// Plan validates newWeights against the bound tokens and captures the
// current weights as the starting point. A start block in the past is moved
// up to currentBlock.
func Plan(u Underlying, newWeights []*big.Int, startBlock, endBlock, currentBlock uint64) (*Schedule, error) {
	if startBlock < currentBlock {
		startBlock = currentBlock
	}
	if endBlock <= startBlock {
		return nil, ErrBadRange
	}
	tokens := u.CurrentTokens()
	if len(newWeights) != len(tokens) {
		return nil, ErrLengthMismatch
	}

	total := big.NewInt(0)
	start := make([]*big.Int, len(tokens))
	target := make([]*big.Int, len(tokens))
	for i, tok := range tokens {
		w := newWeights[i]
		if w.Cmp(bmath.MinWeight) < 0 || w.Cmp(bmath.MaxWeight) > 0 {
			return nil, fmt.Errorf("%s: %w", tok.Hex(), ErrWeightRange)
		}
		total.Add(total, w)
		cur, err := u.DenormalizedWeight(tok)
		if err != nil {
			return nil, err
		}
		start[i] = cur
		target[i] = new(big.Int).Set(w)
	}
	if total.Cmp(bmath.MaxTotalWeight) > 0 {
		return nil, ErrTotalWeight
	}

	return &Schedule{
		StartBlock:   startBlock,
		EndBlock:     endBlock,
		Tokens:       tokens,
		StartWeights: start,
		NewWeights:   target,
	}, nil
}

// WeightsAt returns the interpolated weights at block, clamped to the schedule range.
func (s *Schedule) WeightsAt(block uint64) []*big.Int {
	if block < s.StartBlock {
		block = s.StartBlock
	}
	if block > s.EndBlock {
		block = s.EndBlock
	}
	elapsed := new(big.Int).SetUint64(block - s.StartBlock)
	period := new(big.Int).SetUint64(s.EndBlock - s.StartBlock)

	out := make([]*big.Int, len(s.Tokens))
	for i := range s.Tokens {
		delta := new(big.Int).Sub(s.NewWeights[i], s.StartWeights[i])
		delta.Mul(delta, elapsed)
		// floor division keeps the interpolated total at or below the exact line
		delta.Div(delta, period)
		out[i] = delta.Add(delta, s.StartWeights[i])
	}
	return out
}

// Poke rebinds every scheduled token at its weight for block, keeping
// balances unchanged. It reports whether the schedule has completed.
func Poke(ctx context.Context, u Underlying, self common.Address, s *Schedule, block uint64) ([]*big.Int, bool, error) {
	if s == nil {
		return nil, false, ErrNoSchedule
	}
	if block < s.StartBlock {
		return nil, false, ErrTooEarly
	}
	current := u.CurrentTokens()
	if len(current) != len(s.Tokens) {
		return nil, false, ErrTokensChanged
	}
	for i, tok := range current {
		if tok != s.Tokens[i] {
			return nil, false, ErrTokensChanged
		}
	}

	weights := s.WeightsAt(block)
	// Lower weights first so the running total never exceeds the maximum.
	for _, raising := range []bool{false, true} {
		for i, tok := range s.Tokens {
			cur, err := u.DenormalizedWeight(tok)
			if err != nil {
				return nil, false, err
			}
			if (weights[i].Cmp(cur) > 0) != raising {
				continue
			}
			balance, err := u.Balance(tok)
			if err != nil {
				return nil, false, err
			}
			if err := u.Rebind(ctx, self, tok, balance, weights[i]); err != nil {
				return nil, false, fmt.Errorf("rebind %s: %w", tok.Hex(), err)
			}
		}
	}
	return weights, block >= s.EndBlock, nil
}

// Model converts the schedule to its serialized form.
func (s *Schedule) Model() *model.WeightSchedule {
	if s == nil {
		return nil
	}
	out := &model.WeightSchedule{StartBlock: s.StartBlock, EndBlock: s.EndBlock}
	for i, tok := range s.Tokens {
		out.StartWeights = append(out.StartWeights, model.TokenWeight{Token: tok.Hex(), Weight: s.StartWeights[i].String()})
		out.NewWeights = append(out.NewWeights, model.TokenWeight{Token: tok.Hex(), Weight: s.NewWeights[i].String()})
	}
	return out
}

// FromModel parses a serialized schedule. A nil input yields a nil schedule.
func FromModel(m *model.WeightSchedule) (*Schedule, error) {
	if m == nil {
		return nil, nil
	}
	if len(m.StartWeights) != len(m.NewWeights) || m.EndBlock <= m.StartBlock {
		return nil, ErrInvalidSchedule
	}
	s := &Schedule{StartBlock: m.StartBlock, EndBlock: m.EndBlock}
	for i, sw := range m.StartWeights {
		nw := m.NewWeights[i]
		if sw.Token != nw.Token || !common.IsHexAddress(sw.Token) {
			return nil, fmt.Errorf("%w: token %q", ErrInvalidSchedule, sw.Token)
		}
		start, ok := new(big.Int).SetString(sw.Weight, 10)
		if !ok {
			return nil, fmt.Errorf("%w: weight %q", ErrInvalidSchedule, sw.Weight)
		}
		target, ok := new(big.Int).SetString(nw.Weight, 10)
		if !ok {
			return nil, fmt.Errorf("%w: weight %q", ErrInvalidSchedule, nw.Weight)
		}
		s.Tokens = append(s.Tokens, common.HexToAddress(sw.Token))
		s.StartWeights = append(s.StartWeights, start)
		s.NewWeights = append(s.NewWeights, target)
	}
	return s, nil
}

// TokenWeights pairs tokens with weights for events.
func TokenWeights(tokens []common.Address, weights []*big.Int) []model.TokenWeight {
	out := make([]model.TokenWeight, len(tokens))
	for i, tok := range tokens {
		out[i] = model.TokenWeight{Token: tok.Hex(), Weight: weights[i].String()}
	}
	return out
}
