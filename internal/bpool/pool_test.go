package bpool

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"smartpool/internal/bmath"
	"smartpool/internal/guard"
	"smartpool/internal/model"
	"smartpool/internal/token"
)

var (
	poolAddr   = common.HexToAddress("0x9999999999999999999999999999999999999999")
	controller = common.HexToAddress("0x00000000000000000000000000000000000c0de0")
	trader     = common.HexToAddress("0x0000000000000000000000000000000000007777")
	tokenA     = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB     = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	tokenC     = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
)

type fixture struct {
	reg  *token.Registry
	pool *Pool
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	reg := token.NewRegistry()
	for _, addr := range []common.Address{tokenA, tokenB, tokenC} {
		l, err := reg.Register(token.Meta{Address: addr, Symbol: addr.Hex()[:6], Decimals: 18})
		require.NoError(t, err)
		require.NoError(t, l.Mint(controller, bmath.Ether(1000)))
		require.NoError(t, l.Mint(trader, bmath.Ether(1000)))
		require.NoError(t, l.Approve(controller, poolAddr, token.MaxAllowance()))
		require.NoError(t, l.Approve(trader, poolAddr, token.MaxAllowance()))
	}
	return fixture{reg: reg, pool: New(poolAddr, controller, reg, nil)}
}

func (f fixture) balance(t *testing.T, tok, holder common.Address) *big.Int {
	t.Helper()
	l, err := f.reg.Ledger(tok)
	require.NoError(t, err)
	return l.BalanceOf(holder)
}

func TestBindRebindUnbind(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.ErrorIs(t, f.pool.Bind(ctx, trader, tokenA, bmath.Ether(100), bmath.Ether(5)), ErrNotController)
	require.NoError(t, f.pool.Bind(ctx, controller, tokenA, bmath.Ether(100), bmath.Ether(5)))
	require.NoError(t, f.pool.Bind(ctx, controller, tokenB, bmath.Ether(200), bmath.Ether(5)))
	require.ErrorIs(t, f.pool.Bind(ctx, controller, tokenA, bmath.Ether(1), bmath.Ether(1)), ErrIsBound)

	require.Equal(t, bmath.Ether(100).String(), f.balance(t, tokenA, poolAddr).String())
	require.Equal(t, bmath.Ether(10).String(), f.pool.TotalDenormalizedWeight().String())
	require.Equal(t, []common.Address{tokenA, tokenB}, f.pool.CurrentTokens())

	// raise balance and weight, then lower balance
	require.NoError(t, f.pool.Rebind(ctx, controller, tokenA, bmath.Ether(150), bmath.Ether(10)))
	require.Equal(t, bmath.Ether(850).String(), f.balance(t, tokenA, controller).String())
	require.NoError(t, f.pool.Rebind(ctx, controller, tokenA, bmath.Ether(120), bmath.Ether(10)))
	require.Equal(t, bmath.Ether(880).String(), f.balance(t, tokenA, controller).String())
	require.Equal(t, bmath.Ether(15).String(), f.pool.TotalDenormalizedWeight().String())

	require.ErrorIs(t, f.pool.Rebind(ctx, controller, tokenA, bmath.Ether(120), bmath.Ether(51)), ErrMaxWeight)
	require.ErrorIs(t, f.pool.Rebind(ctx, controller, tokenA, bmath.Ether(120), big.NewInt(1)), ErrMinWeight)
	require.ErrorIs(t, f.pool.Rebind(ctx, controller, tokenC, bmath.Ether(1), bmath.Ether(1)), ErrNotBound)

	amount, err := f.pool.Unbind(ctx, controller, tokenA)
	require.NoError(t, err)
	require.Equal(t, bmath.Ether(120).String(), amount.String())
	require.Equal(t, bmath.Ether(1000).String(), f.balance(t, tokenA, controller).String())
	require.Equal(t, []common.Address{tokenB}, f.pool.CurrentTokens())
	require.Equal(t, bmath.Ether(5).String(), f.pool.TotalDenormalizedWeight().String())
	require.False(t, f.pool.IsBound(tokenA))
}

func TestTotalWeightLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.pool.Bind(ctx, controller, tokenA, bmath.Ether(10), bmath.Ether(30)))
	require.ErrorIs(t, f.pool.Bind(ctx, controller, tokenB, bmath.Ether(10), bmath.Ether(21)), ErrMaxTotalWeight)
	require.NoError(t, f.pool.Bind(ctx, controller, tokenB, bmath.Ether(10), bmath.Ether(20)))
}

func TestSwapFeeBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.ErrorIs(t, f.pool.SetSwapFee(ctx, controller, big.NewInt(1)), ErrMinFee)
	require.ErrorIs(t, f.pool.SetSwapFee(ctx, controller, bmath.Ether(1)), ErrMaxFee)
	require.ErrorIs(t, f.pool.SetSwapFee(ctx, trader, bmath.MinFee), ErrNotController)
	require.NoError(t, f.pool.SetSwapFee(ctx, controller, bmath.MaxFee))
	require.Equal(t, bmath.MaxFee.String(), f.pool.SwapFee().String())
}

func TestSwapExactAmountIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.pool.Bind(ctx, controller, tokenA, bmath.Ether(100), bmath.Ether(5)))
	require.NoError(t, f.pool.Bind(ctx, controller, tokenB, bmath.Ether(200), bmath.Ether(5)))

	_, err := f.pool.SwapExactAmountIn(ctx, trader, tokenA, bmath.Ether(10), tokenB, big.NewInt(0), bmath.Ether(100))
	require.ErrorIs(t, err, ErrSwapNotPublic)

	require.NoError(t, f.pool.SetPublicSwap(ctx, controller, true))

	_, err = f.pool.SwapExactAmountIn(ctx, trader, tokenA, bmath.Ether(51), tokenB, big.NewInt(0), bmath.Ether(100))
	require.ErrorIs(t, err, ErrMaxInRatio)

	res, err := f.pool.SwapExactAmountIn(ctx, trader, tokenA, bmath.Ether(10), tokenB, bmath.Ether(18), bmath.Ether(100))
	require.NoError(t, err)
	require.Equal(t, 1, res.AmountOut.Cmp(bmath.Ether(18)))

	bal, err := f.pool.Balance(tokenA)
	require.NoError(t, err)
	require.Equal(t, bmath.Ether(110).String(), bal.String())
	require.Equal(t, bmath.Ether(990).String(), f.balance(t, tokenA, trader).String())

	events := f.pool.DrainEvents()
	require.Len(t, events, 1)
	require.Equal(t, model.EventSwap, events[0].EventName)
	require.Empty(t, f.pool.DrainEvents())
}

func TestSwapExactAmountOutLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.pool.Bind(ctx, controller, tokenA, bmath.Ether(100), bmath.Ether(5)))
	require.NoError(t, f.pool.Bind(ctx, controller, tokenB, bmath.Ether(200), bmath.Ether(5)))
	require.NoError(t, f.pool.SetPublicSwap(ctx, controller, true))

	_, err := f.pool.SwapExactAmountOut(ctx, trader, tokenA, bmath.Ether(1), tokenB, bmath.Ether(10), bmath.Ether(100))
	require.ErrorIs(t, err, ErrLimitIn)

	res, err := f.pool.SwapExactAmountOut(ctx, trader, tokenA, bmath.Ether(10), tokenB, bmath.Ether(10), bmath.Ether(100))
	require.NoError(t, err)
	require.Equal(t, bmath.Ether(10).String(), res.AmountOut.String())
	require.Equal(t, bmath.Ether(1010).String(), f.balance(t, tokenB, trader).String())
}

func TestGulpAndStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.pool.Bind(ctx, controller, tokenA, bmath.Ether(100), bmath.Ether(5)))
	require.NoError(t, f.pool.Bind(ctx, controller, tokenB, bmath.Ether(200), bmath.Ether(5)))

	la, err := f.reg.Ledger(tokenA)
	require.NoError(t, err)
	require.NoError(t, la.Transfer(ctx, trader, poolAddr, bmath.Ether(1)))
	require.NoError(t, f.pool.Gulp(ctx, tokenA))
	bal, err := f.pool.Balance(tokenA)
	require.NoError(t, err)
	require.Equal(t, bmath.Ether(101).String(), bal.String())

	restored, err := FromState(f.pool.State(), f.reg, nil)
	require.NoError(t, err)
	require.Equal(t, f.pool.State(), restored.State())
}

func TestReentrantHookIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.pool.Bind(ctx, controller, tokenA, bmath.Ether(100), bmath.Ether(5)))
	require.NoError(t, f.pool.Bind(ctx, controller, tokenB, bmath.Ether(200), bmath.Ether(5)))
	require.NoError(t, f.pool.SetPublicSwap(ctx, controller, true))

	var nestedErr error
	f.reg.SetHook(func(ctx context.Context, tok, from, to common.Address, amount *big.Int) error {
		if to == trader && nestedErr == nil {
			nestedErr = f.pool.Gulp(ctx, tokenA)
		}
		return nil
	})

	_, err := f.pool.SwapExactAmountIn(ctx, trader, tokenA, bmath.Ether(1), tokenB, big.NewInt(0), bmath.Ether(100))
	require.NoError(t, err)
	require.ErrorIs(t, nestedErr, guard.ErrReentrant)
}
