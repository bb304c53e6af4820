package token

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	alice   = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob     = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	tokenA  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	spender = common.HexToAddress("0x5555555555555555555555555555555555555555")
)

func TestLedgerMintTransferBurn(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(Meta{Address: tokenA, Symbol: "AAA", Decimals: 18})

	require.NoError(t, l.Mint(alice, big.NewInt(100)))
	require.NoError(t, l.Transfer(ctx, alice, bob, big.NewInt(40)))
	require.Equal(t, "60", l.BalanceOf(alice).String())
	require.Equal(t, "40", l.BalanceOf(bob).String())

	err := l.Transfer(ctx, bob, alice, big.NewInt(41))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	require.ErrorIs(t, l.Transfer(ctx, alice, common.Address{}, big.NewInt(1)), ErrZeroAddress)

	require.NoError(t, l.Burn(alice, big.NewInt(60)))
	require.Equal(t, "40", l.TotalSupply().String())
	require.Equal(t, "0", l.BalanceOf(alice).String())
	require.ErrorIs(t, l.Burn(alice, big.NewInt(1)), ErrInsufficientBalance)
}

func TestLedgerTransferFromSpendsAllowance(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(Meta{Address: tokenA, Symbol: "AAA"})
	require.NoError(t, l.Mint(alice, big.NewInt(100)))

	err := l.TransferFrom(ctx, spender, alice, bob, big.NewInt(10))
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	require.NoError(t, l.Approve(alice, spender, big.NewInt(30)))
	require.NoError(t, l.TransferFrom(ctx, spender, alice, bob, big.NewInt(10)))
	require.Equal(t, "20", l.Allowance(alice, spender).String())

	// the holder never needs an allowance for itself
	require.NoError(t, l.TransferFrom(ctx, alice, alice, bob, big.NewInt(5)))

	require.NoError(t, l.Approve(alice, spender, MaxAllowance()))
	require.NoError(t, l.TransferFrom(ctx, spender, alice, bob, big.NewInt(5)))
	require.Equal(t, MaxAllowance().String(), l.Allowance(alice, spender).String())
}

func TestLedgerFailedTransferFromKeepsAllowance(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(Meta{Address: tokenA, Symbol: "AAA"})
	require.NoError(t, l.Mint(alice, big.NewInt(5)))
	require.NoError(t, l.Approve(alice, spender, big.NewInt(10)))

	err := l.TransferFrom(ctx, spender, alice, bob, big.NewInt(10))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, "10", l.Allowance(alice, spender).String())
}

func TestLedgerStateRoundTrip(t *testing.T) {
	l := NewLedger(Meta{Address: tokenA, Name: "Token A", Symbol: "AAA", Decimals: 6})
	require.NoError(t, l.Mint(alice, big.NewInt(7)))
	require.NoError(t, l.Mint(bob, big.NewInt(3)))
	require.NoError(t, l.Approve(alice, spender, big.NewInt(2)))

	restored, err := LedgerFromState(l.State())
	require.NoError(t, err)
	require.Equal(t, "10", restored.TotalSupply().String())
	require.Equal(t, "7", restored.BalanceOf(alice).String())
	require.Equal(t, "2", restored.Allowance(alice, spender).String())
	require.Equal(t, uint8(6), restored.Meta().Decimals)

	state := l.State()
	state.TotalSupply = "11"
	_, err = LedgerFromState(state)
	require.Error(t, err)
}

func TestRegistryHook(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	a, err := r.Register(Meta{Address: tokenA, Symbol: "AAA"})
	require.NoError(t, err)

	_, err = r.Register(Meta{Address: tokenA})
	require.Error(t, err)

	var seen []common.Address
	hookErr := errors.New("hook rejected")
	r.SetHook(func(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
		seen = append(seen, token)
		if to == bob {
			return hookErr
		}
		return nil
	})

	b, err := r.Register(Meta{Address: tokenB, Symbol: "BBB"})
	require.NoError(t, err)

	require.NoError(t, a.Mint(alice, big.NewInt(10)))
	require.NoError(t, b.Mint(alice, big.NewInt(10)))
	require.NoError(t, a.Transfer(ctx, alice, spender, big.NewInt(1)))
	require.ErrorIs(t, b.Transfer(ctx, alice, bob, big.NewInt(1)), hookErr)
	require.Equal(t, []common.Address{tokenA, tokenB}, seen)

	_, err = r.Ledger(common.HexToAddress("0x01"))
	require.ErrorIs(t, err, ErrUnknownToken)
	require.Equal(t, []common.Address{tokenA, tokenB}, r.Tokens())
}

type ctxKey struct{}

func TestHookSeesTransferContext(t *testing.T) {
	r := NewRegistry()
	a, err := r.Register(Meta{Address: tokenA})
	require.NoError(t, err)
	require.NoError(t, a.Mint(alice, big.NewInt(10)))
	require.NoError(t, a.Approve(alice, spender, big.NewInt(10)))

	var got []interface{}
	r.SetHook(func(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
		got = append(got, ctx.Value(ctxKey{}))
		return nil
	})

	ctx := context.WithValue(context.Background(), ctxKey{}, "outer")
	require.NoError(t, a.Transfer(ctx, alice, bob, big.NewInt(1)))
	require.NoError(t, a.TransferFrom(ctx, spender, alice, bob, big.NewInt(1)))
	require.Equal(t, []interface{}{"outer", "outer"}, got)
}
