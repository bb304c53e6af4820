package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Amount is a non-negative integer accepted as a JSON number, a decimal
// string, or a 0x-prefixed hex string.
type Amount struct {
	*big.Int
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		a.Int = nil
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	raw = strings.TrimSpace(raw)

	var (
		v   *big.Int
		err error
	)
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		v, err = hexutil.DecodeBig(raw)
		if err != nil {
			return fmt.Errorf("amount %q: %w", raw, err)
		}
	} else {
		var ok bool
		v, ok = new(big.Int).SetString(raw, 10)
		if !ok {
			return fmt.Errorf("amount %q: not an integer", raw)
		}
	}
	if v.Sign() < 0 {
		return fmt.Errorf("amount %q: negative", raw)
	}
	a.Int = v
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if a.Int == nil {
		return []byte("null"), nil
	}
	return json.Marshal(a.Int.String())
}

// value returns the amount, failing when it was omitted.
func (a Amount) value(field string) (*big.Int, error) {
	if a.Int == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingArg, field)
	}
	return a.Int, nil
}

// optional returns nil when the amount was omitted.
func (a Amount) optional() *big.Int {
	return a.Int
}

func amounts(list []Amount, field string) ([]*big.Int, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]*big.Int, len(list))
	for i, a := range list {
		v, err := a.value(fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func address(raw, field string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%w: %s %q", ErrBadAddress, field, raw)
	}
	return common.HexToAddress(raw), nil
}

func addresses(raw []string, field string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(raw))
	for i, r := range raw {
		addr, err := address(r, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

type registerTokenArgs struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type tokenAmountArgs struct {
	Token   string `json:"token"`
	To      string `json:"to"`
	Spender string `json:"spender"`
	Amount  Amount `json:"amount"`
}

type initArgs struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	InitialSupply Amount `json:"initial_supply"`
}

type roleArgs struct {
	Address string `json:"address"`
}

type swapFeeArgs struct {
	Fee Amount `json:"fee"`
}

type publicSwapArgs struct {
	Enabled bool `json:"enabled"`
}

type capArgs struct {
	Cap Amount `json:"cap"`
}

type bindArgs struct {
	Token   string `json:"token"`
	Balance Amount `json:"balance"`
	Denorm  Amount `json:"denorm"`
}

type joinArgs struct {
	PoolAmountOut Amount   `json:"pool_amount_out"`
	MaxAmountsIn  []Amount `json:"max_amounts_in"`
}

type exitArgs struct {
	PoolAmountIn  Amount   `json:"pool_amount_in"`
	MinAmountsOut []Amount `json:"min_amounts_out"`
	LossTokens    []string `json:"loss_tokens"`
}

type singleAssetArgs struct {
	Token            string `json:"token"`
	TokenAmountIn    Amount `json:"token_amount_in"`
	TokenAmountOut   Amount `json:"token_amount_out"`
	PoolAmountIn     Amount `json:"pool_amount_in"`
	PoolAmountOut    Amount `json:"pool_amount_out"`
	MinPoolAmountOut Amount `json:"min_pool_amount_out"`
	MaxPoolAmountIn  Amount `json:"max_pool_amount_in"`
	MinAmountOut     Amount `json:"min_amount_out"`
	MaxAmountIn      Amount `json:"max_amount_in"`
}

type weightsArgs struct {
	NewWeights []Amount `json:"new_weights"`
	StartBlock uint64   `json:"start_block"`
	EndBlock   uint64   `json:"end_block"`
}

type shareArgs struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Spender string `json:"spender"`
	Amount  Amount `json:"amount"`
}

type swapArgs struct {
	TokenIn        string `json:"token_in"`
	TokenOut       string `json:"token_out"`
	TokenAmountIn  Amount `json:"token_amount_in"`
	TokenAmountOut Amount `json:"token_amount_out"`
	MinAmountOut   Amount `json:"min_amount_out"`
	MaxAmountIn    Amount `json:"max_amount_in"`
	MaxPrice       Amount `json:"max_price"`
}

func decodeArgs(raw json.RawMessage, dst interface{}) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBadArgs, err)
	}
	return nil
}
