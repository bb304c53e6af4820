package smartpool

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"smartpool/internal/bmath"
	"smartpool/internal/bpool"
	"smartpool/internal/entryexit"
	"smartpool/internal/guard"
	"smartpool/internal/model"
	"smartpool/internal/token"
)

var (
	spAddr     = common.HexToAddress("0x5000000000000000000000000000000000000005")
	bpAddr     = common.HexToAddress("0x9999999999999999999999999999999999999999")
	admin      = common.HexToAddress("0x000000000000000000000000000000000000ad01")
	feeSetter  = common.HexToAddress("0x000000000000000000000000000000000000fee5")
	binder     = common.HexToAddress("0x000000000000000000000000000000000000b1d0")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	tokenA     = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB     = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	tokenC     = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	allHolders = []common.Address{admin, binder, alice}
)

type env struct {
	reg *token.Registry
	bp  *bpool.Pool
	sp  *Pool
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{reg: token.NewRegistry()}
	for _, addr := range []common.Address{tokenA, tokenB, tokenC} {
		l, err := e.reg.Register(token.Meta{Address: addr, Decimals: 18})
		require.NoError(t, err)
		for _, holder := range allHolders {
			require.NoError(t, l.Mint(holder, bmath.Ether(1000)))
			require.NoError(t, l.Approve(holder, spAddr, token.MaxAllowance()))
		}
	}
	e.bp = bpool.New(bpAddr, spAddr, e.reg, nil)
	e.sp = New(spAddr, e.reg, nil)
	return e
}

// newLiveEnv returns an initialized pool with tokenA (100, w5) and tokenB (200, w5) bound.
func newLiveEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.sp.Init(ctx, admin, e.bp, "Smart Pool", "SPT", bmath.InitPoolSupply))
	require.NoError(t, e.sp.Bind(ctx, admin, tokenA, bmath.Ether(100), bmath.Ether(5)))
	require.NoError(t, e.sp.Bind(ctx, admin, tokenB, bmath.Ether(200), bmath.Ether(5)))
	e.sp.DrainEvents()
	return e
}

func (e *env) balance(t *testing.T, tok, holder common.Address) string {
	t.Helper()
	l, err := e.reg.Ledger(tok)
	require.NoError(t, err)
	return l.BalanceOf(holder).String()
}

func TestInitValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	require.ErrorIs(t, e.sp.Init(ctx, admin, nil, "n", "s", bmath.Ether(1)), ErrZeroAddress)
	require.ErrorIs(t, e.sp.Init(ctx, admin, e.bp, "n", "s", big.NewInt(0)), ErrZeroSupply)

	foreign := bpool.New(common.HexToAddress("0x01"), alice, e.reg, nil)
	require.ErrorIs(t, e.sp.Init(ctx, admin, foreign, "n", "s", bmath.Ether(1)), ErrNotUnderlyingController)

	_, err := e.sp.JoinPool(ctx, alice, bmath.Ether(1), nil)
	require.ErrorIs(t, err, ErrNotInitialized)
	require.ErrorIs(t, e.sp.SetController(ctx, admin, alice), ErrNotInitialized)
	require.False(t, e.sp.Initialized())

	require.NoError(t, e.sp.Init(ctx, admin, e.bp, "Smart Pool", "SPT", bmath.InitPoolSupply))
	require.ErrorIs(t, e.sp.Init(ctx, admin, e.bp, "again", "X", bmath.Ether(1)), ErrAlreadyInitialized)

	require.Equal(t, admin, e.sp.Controller())
	require.Equal(t, admin, e.sp.SwapFeeSetter())
	require.Equal(t, admin, e.sp.TokenBinder())
	require.Equal(t, bpAddr, e.sp.Underlying())
	require.Equal(t, bmath.InitPoolSupply.String(), e.sp.BalanceOf(admin).String())

	events := e.sp.DrainEvents()
	require.Len(t, events, 1)
	require.Equal(t, model.EventInitialized, events[0].EventName)
}

func TestRoleGating(t *testing.T) {
	ctx := context.Background()
	e := newLiveEnv(t)

	require.ErrorIs(t, e.sp.SetSwapFeeSetter(ctx, alice, feeSetter), ErrNotController)
	require.ErrorIs(t, e.sp.SetTokenBinder(ctx, admin, common.Address{}), ErrZeroAddress)
	require.NoError(t, e.sp.SetSwapFeeSetter(ctx, admin, feeSetter))
	require.NoError(t, e.sp.SetTokenBinder(ctx, admin, binder))

	require.ErrorIs(t, e.sp.SetSwapFee(ctx, alice, bmath.MaxFee), ErrNotSwapFeeSetter)
	require.NoError(t, e.sp.SetSwapFee(ctx, feeSetter, bmath.MaxFee))
	fee, err := e.sp.SwapFee()
	require.NoError(t, err)
	require.Equal(t, bmath.MaxFee.String(), fee.String())
	require.NoError(t, e.sp.SetSwapFee(ctx, admin, bmath.MinFee))
	require.ErrorIs(t, e.sp.SetSwapFee(ctx, feeSetter, bmath.Ether(1)), bpool.ErrMaxFee)

	require.NoError(t, e.sp.SetPublicSwap(ctx, feeSetter, true))
	public, err := e.sp.IsPublicSwap()
	require.NoError(t, err)
	require.True(t, public)

	require.ErrorIs(t, e.sp.Bind(ctx, admin, tokenC, bmath.Ether(10), bmath.Ether(1)), ErrNotTokenBinder)
	require.NoError(t, e.sp.Bind(ctx, binder, tokenC, bmath.Ether(10), bmath.Ether(1)))

	require.ErrorIs(t, e.sp.SetCap(ctx, feeSetter, bmath.Ether(1)), ErrNotController)

	// handing over the controller role locks the old controller out
	require.NoError(t, e.sp.SetController(ctx, admin, alice))
	require.ErrorIs(t, e.sp.SetController(ctx, admin, admin), ErrNotController)
	require.Equal(t, alice, e.sp.Controller())

	var roles []string
	for _, ev := range e.sp.DrainEvents() {
		if ev.EventName == model.EventRoleChanged {
			roles = append(roles, ev.Decoded.(model.RoleChangedEventData).Role)
		}
	}
	require.Equal(t, []string{model.RoleSwapFeeSetter, model.RoleTokenBinder, model.RoleController}, roles)
	require.Equal(t, bpAddr, e.sp.Underlying())
}

func TestBindRebindUnbindMoveTokens(t *testing.T) {
	ctx := context.Background()
	e := newLiveEnv(t)

	require.Equal(t, bmath.Ether(900).String(), e.balance(t, tokenA, admin))
	require.Equal(t, "0", e.balance(t, tokenA, spAddr))
	require.Equal(t, bmath.Ether(100).String(), e.balance(t, tokenA, bpAddr))

	require.NoError(t, e.sp.Rebind(ctx, admin, tokenA, bmath.Ether(150), bmath.Ether(5)))
	require.Equal(t, bmath.Ether(850).String(), e.balance(t, tokenA, admin))
	require.NoError(t, e.sp.Rebind(ctx, admin, tokenA, bmath.Ether(60), bmath.Ether(5)))
	require.Equal(t, bmath.Ether(940).String(), e.balance(t, tokenA, admin))
	require.Equal(t, bmath.Ether(60).String(), e.balance(t, tokenA, bpAddr))

	require.NoError(t, e.sp.Unbind(ctx, admin, tokenA))
	require.Equal(t, bmath.Ether(1000).String(), e.balance(t, tokenA, admin))
	tokens, err := e.sp.Tokens()
	require.NoError(t, err)
	require.Equal(t, []common.Address{tokenB}, tokens)
}

func TestRejectedBindRefundsCaller(t *testing.T) {
	ctx := context.Background()
	e := newLiveEnv(t)

	err := e.sp.Bind(ctx, admin, tokenC, bmath.Ether(10), bmath.Ether(41))
	require.ErrorIs(t, err, bpool.ErrMaxTotalWeight)
	require.Equal(t, bmath.Ether(1000).String(), e.balance(t, tokenC, admin))
	require.Equal(t, "0", e.balance(t, tokenC, spAddr))
}

func TestJoinExitThroughPool(t *testing.T) {
	ctx := context.Background()
	e := newLiveEnv(t)

	amounts, err := e.sp.JoinPool(ctx, alice, bmath.Ether(10), nil)
	require.NoError(t, err)
	require.Len(t, amounts, 2)
	require.Equal(t, bmath.Ether(10).String(), e.sp.BalanceOf(alice).String())
	require.Equal(t, bmath.Ether(990).String(), e.balance(t, tokenA, alice))

	require.NoError(t, e.sp.SetCap(ctx, admin, bmath.Ether(115)))
	_, err = e.sp.JoinPool(ctx, alice, bmath.Ether(10), nil)
	require.ErrorIs(t, err, entryexit.ErrCapExceeded)

	_, err = e.sp.ExitPool(ctx, alice, bmath.Ether(10), nil)
	require.NoError(t, err)
	require.Equal(t, "0", e.sp.BalanceOf(alice).String())
	require.Equal(t, bmath.InitPoolSupply.String(), e.sp.TotalSupply().String())

	out, err := e.sp.JoinswapExternAmountIn(ctx, alice, tokenA, bmath.Ether(1), big.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, out.String(), e.sp.BalanceOf(alice).String())

	tokenOut, err := e.sp.ExitswapPoolAmountIn(ctx, alice, tokenA, out, big.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, 1, bmath.Ether(1).Cmp(tokenOut))

	var joins, exits int
	for _, ev := range e.sp.DrainEvents() {
		switch ev.EventName {
		case model.EventJoin:
			joins++
		case model.EventExit:
			exits++
		}
	}
	require.Equal(t, 3, joins)
	require.Equal(t, 3, exits)
}

func TestShareTransfers(t *testing.T) {
	ctx := context.Background()
	e := newLiveEnv(t)

	require.NoError(t, e.sp.Transfer(ctx, admin, alice, bmath.Ether(5)))
	require.ErrorIs(t, e.sp.TransferFrom(ctx, binder, alice, binder, bmath.Ether(1)), token.ErrInsufficientAllowance)
	require.NoError(t, e.sp.Approve(ctx, alice, binder, bmath.Ether(2)))
	require.NoError(t, e.sp.TransferFrom(ctx, binder, alice, binder, bmath.Ether(1)))
	require.Equal(t, bmath.Ether(1).String(), e.sp.Allowance(alice, binder).String())
	require.Equal(t, bmath.Ether(4).String(), e.sp.BalanceOf(alice).String())
	require.Equal(t, bmath.InitPoolSupply.String(), e.sp.TotalSupply().String())
}

func TestReentrantJoinFromTokenHook(t *testing.T) {
	ctx := context.Background()
	e := newLiveEnv(t)

	var nested error
	e.reg.SetHook(func(ctx context.Context, tok, from, to common.Address, amount *big.Int) error {
		if to == spAddr && nested == nil {
			_, nested = e.sp.JoinPool(ctx, from, bmath.Ether(1), nil)
		}
		return nil
	})

	_, err := e.sp.JoinPool(ctx, alice, bmath.Ether(10), nil)
	require.NoError(t, err)
	require.ErrorIs(t, nested, guard.ErrReentrant)
	require.Equal(t, bmath.Ether(110).String(), e.sp.TotalSupply().String())
}

func TestGradualWeights(t *testing.T) {
	ctx := context.Background()
	e := newLiveEnv(t)

	tokens, err := e.sp.Tokens()
	require.NoError(t, err)
	target := []*big.Int{bmath.Ether(8), bmath.Ether(2)}
	require.Equal(t, []common.Address{tokenA, tokenB}, tokens)

	require.ErrorIs(t, e.sp.UpdateWeightsGradually(ctx, alice, target, 10, 20, 0), ErrNotController)
	require.NoError(t, e.sp.UpdateWeightsGradually(ctx, admin, target, 10, 20, 0))
	require.ErrorIs(t, e.sp.Bind(ctx, admin, tokenC, bmath.Ether(10), bmath.Ether(1)), ErrScheduleActive)

	require.NoError(t, e.sp.PokeWeights(ctx, alice, 15))
	w, err := e.bp.DenormalizedWeight(tokenA)
	require.NoError(t, err)
	require.Equal(t, "6500000000000000000", w.String())

	require.NoError(t, e.sp.PokeWeights(ctx, alice, 20))
	w, err = e.bp.DenormalizedWeight(tokenB)
	require.NoError(t, err)
	require.Equal(t, bmath.Ether(2).String(), w.String())
	require.Nil(t, e.sp.State().Schedule)
	require.NoError(t, e.sp.Bind(ctx, admin, tokenC, bmath.Ether(10), bmath.Ether(1)))
}

func TestStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := newLiveEnv(t)
	require.NoError(t, e.sp.SetCap(ctx, admin, bmath.Ether(500)))
	require.NoError(t, e.sp.UpdateWeightsGradually(ctx, admin, []*big.Int{bmath.Ether(8), bmath.Ether(2)}, 10, 20, 0))

	state := e.sp.State()
	restored, err := FromState(state, e.bp, e.reg, nil)
	require.NoError(t, err)
	require.Equal(t, state, restored.State())
	require.Equal(t, bmath.Ether(500).String(), restored.Cap().String())

	_, err = FromState(state, bpool.New(common.HexToAddress("0x02"), spAddr, e.reg, nil), e.reg, nil)
	require.Error(t, err)
}

func TestCapitalFlowsNeedBoundTokens(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.sp.Init(ctx, admin, e.bp, "Smart Pool", "SPT", bmath.InitPoolSupply))

	_, err := e.sp.JoinPool(ctx, alice, bmath.Ether(900), nil)
	require.ErrorIs(t, err, entryexit.ErrNoTokens)
	require.Equal(t, "0", e.sp.BalanceOf(alice).String())

	require.NoError(t, e.sp.Bind(ctx, admin, tokenA, bmath.Ether(100), bmath.Ether(5)))
	require.NoError(t, e.sp.Unbind(ctx, admin, tokenA))
	_, err = e.sp.JoinPool(ctx, alice, bmath.Ether(10), nil)
	require.ErrorIs(t, err, entryexit.ErrNoTokens)
	_, err = e.sp.ExitPool(ctx, admin, bmath.Ether(10), nil)
	require.ErrorIs(t, err, entryexit.ErrNoTokens)
	require.Equal(t, bmath.InitPoolSupply.String(), e.sp.TotalSupply().String())
}

func TestFailedExitKeepsPoolUsable(t *testing.T) {
	ctx := context.Background()
	e := newLiveEnv(t)

	_, err := e.sp.ExitPool(ctx, admin, e.sp.TotalSupply(), nil)
	require.ErrorIs(t, err, entryexit.ErrMinBalance)
	require.Equal(t, bmath.InitPoolSupply.String(), e.sp.BalanceOf(admin).String())
	require.Equal(t, bmath.Ether(900).String(), e.balance(t, tokenA, admin))

	l, err := e.reg.Ledger(tokenB)
	require.NoError(t, err)
	require.NoError(t, l.Approve(alice, spAddr, big.NewInt(0)))
	_, err = e.sp.JoinPool(ctx, alice, bmath.Ether(10), nil)
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)
	require.Equal(t, bmath.Ether(1000).String(), e.balance(t, tokenA, alice))

	_, err = e.sp.ExitPool(ctx, admin, bmath.Ether(50), nil)
	require.NoError(t, err)
	require.Equal(t, bmath.Ether(50).String(), e.sp.TotalSupply().String())
}
