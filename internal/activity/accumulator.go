package activity

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"smartpool/internal/model"
)

// record is a stored event with its payload left undecoded.
type record struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	Address     string          `json:"address"`
	EventName   string          `json:"event_name"`
	Decoded     json.RawMessage `json:"decoded"`
}

// Accumulator holds totals for one pool window.
type Accumulator struct {
	ChainID       uint64
	Address       string
	WindowStart   uint64
	WindowEnd     uint64
	FirstBlock    uint64
	LastBlock     uint64
	SwapCount     uint64
	JoinCount     uint64
	ExitCount     uint64
	TransferCount uint64
	TokensIn      map[string]*big.Int
	TokensOut     map[string]*big.Int
}

func newAccumulator(rec record, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:     rec.ChainID,
		Address:     rec.Address,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		FirstBlock:  rec.BlockNumber,
		LastBlock:   rec.BlockNumber,
		TokensIn:    make(map[string]*big.Int),
		TokensOut:   make(map[string]*big.Int),
	}
}

func (a *Accumulator) add(rec record) error {
	if rec.BlockNumber < a.FirstBlock {
		a.FirstBlock = rec.BlockNumber
	}
	if rec.BlockNumber > a.LastBlock {
		a.LastBlock = rec.BlockNumber
	}

	switch rec.EventName {
	case model.EventSwap:
		var swap model.SwapEventData
		if err := json.Unmarshal(rec.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		if err := addAmount(a.TokensIn, swap.TokenIn, swap.AmountIn); err != nil {
			return err
		}
		if err := addAmount(a.TokensOut, swap.TokenOut, swap.AmountOut); err != nil {
			return err
		}
		a.SwapCount++
	case model.EventJoin:
		var join model.JoinEventData
		if err := json.Unmarshal(rec.Decoded, &join); err != nil {
			return fmt.Errorf("decode join: %w", err)
		}
		if err := addAmount(a.TokensIn, join.TokenIn, join.AmountIn); err != nil {
			return err
		}
		a.JoinCount++
	case model.EventExit:
		var exit model.ExitEventData
		if err := json.Unmarshal(rec.Decoded, &exit); err != nil {
			return fmt.Errorf("decode exit: %w", err)
		}
		if err := addAmount(a.TokensOut, exit.TokenOut, exit.AmountOut); err != nil {
			return err
		}
		a.ExitCount++
	case model.EventTransfer:
		a.TransferCount++
	}
	return nil
}

// Window returns the serializable totals.
func (a *Accumulator) Window() model.ActivityWindow {
	return model.ActivityWindow{
		ChainID:       a.ChainID,
		Address:       a.Address,
		WindowStart:   a.WindowStart,
		WindowEnd:     a.WindowEnd,
		FirstBlock:    a.FirstBlock,
		LastBlock:     a.LastBlock,
		SwapCount:     a.SwapCount,
		JoinCount:     a.JoinCount,
		ExitCount:     a.ExitCount,
		TransferCount: a.TransferCount,
		TokensIn:      amountStrings(a.TokensIn),
		TokensOut:     amountStrings(a.TokensOut),
	}
}

func addAmount(target map[string]*big.Int, token, value string) error {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return fmt.Errorf("invalid amount: %q", value)
	}
	key := strings.ToLower(token)
	if cur, ok := target[key]; ok {
		cur.Add(cur, amount)
		return nil
	}
	target[key] = amount
	return nil
}

func amountStrings(in map[string]*big.Int) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v.String()
	}
	return out
}
