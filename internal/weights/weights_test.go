package weights

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"smartpool/internal/bmath"
	"smartpool/internal/bpool"
	"smartpool/internal/token"
)

var (
	self   = common.HexToAddress("0x5000000000000000000000000000000000000005")
	tokenA = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenB = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

func newPool(t *testing.T) *bpool.Pool {
	t.Helper()
	ctx := context.Background()
	reg := token.NewRegistry()
	addr := common.HexToAddress("0x9999999999999999999999999999999999999999")
	bp := bpool.New(addr, self, reg, nil)
	for tok, w := range map[common.Address]int64{tokenA: 10, tokenB: 40} {
		l, err := reg.Register(token.Meta{Address: tok, Decimals: 18})
		require.NoError(t, err)
		require.NoError(t, l.Mint(self, bmath.Ether(100)))
		require.NoError(t, l.Approve(self, addr, token.MaxAllowance()))
		require.NoError(t, bp.Bind(ctx, self, tok, bmath.Ether(100), bmath.Ether(w)))
	}
	return bp
}

func weightOf(t *testing.T, bp *bpool.Pool, tok common.Address) string {
	t.Helper()
	w, err := bp.DenormalizedWeight(tok)
	require.NoError(t, err)
	return w.String()
}

func targetFor(bp *bpool.Pool, byToken map[common.Address]int64) []*big.Int {
	var out []*big.Int
	for _, tok := range bp.CurrentTokens() {
		out = append(out, bmath.Ether(byToken[tok]))
	}
	return out
}

func TestPlanValidation(t *testing.T) {
	bp := newPool(t)

	_, err := Plan(bp, targetFor(bp, map[common.Address]int64{tokenA: 40, tokenB: 10}), 100, 100, 50)
	require.ErrorIs(t, err, ErrBadRange)

	_, err = Plan(bp, []*big.Int{bmath.Ether(1)}, 100, 200, 50)
	require.ErrorIs(t, err, ErrLengthMismatch)

	_, err = Plan(bp, targetFor(bp, map[common.Address]int64{tokenA: 51, tokenB: 10}), 100, 200, 50)
	require.ErrorIs(t, err, ErrWeightRange)

	_, err = Plan(bp, targetFor(bp, map[common.Address]int64{tokenA: 40, tokenB: 20}), 100, 200, 50)
	require.ErrorIs(t, err, ErrTotalWeight)

	s, err := Plan(bp, targetFor(bp, map[common.Address]int64{tokenA: 40, tokenB: 10}), 10, 200, 50)
	require.NoError(t, err)
	require.Equal(t, uint64(50), s.StartBlock)
}

func TestPokeInterpolatesAndFinishes(t *testing.T) {
	ctx := context.Background()
	bp := newPool(t)

	s, err := Plan(bp, targetFor(bp, map[common.Address]int64{tokenA: 40, tokenB: 10}), 100, 200, 90)
	require.NoError(t, err)

	_, _, err = Poke(ctx, bp, self, s, 99)
	require.ErrorIs(t, err, ErrTooEarly)

	_, done, err := Poke(ctx, bp, self, s, 150)
	require.NoError(t, err)
	require.False(t, done)
	require.Equal(t, bmath.Ether(25).String(), weightOf(t, bp, tokenA))
	require.Equal(t, bmath.Ether(25).String(), weightOf(t, bp, tokenB))

	_, done, err = Poke(ctx, bp, self, s, 250)
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, bmath.Ether(40).String(), weightOf(t, bp, tokenA))
	require.Equal(t, bmath.Ether(10).String(), weightOf(t, bp, tokenB))

	bal, err := bp.Balance(tokenA)
	require.NoError(t, err)
	require.Equal(t, bmath.Ether(100).String(), bal.String())
}

func TestPokeWithoutSchedule(t *testing.T) {
	_, _, err := Poke(context.Background(), newPool(t), self, nil, 1)
	require.ErrorIs(t, err, ErrNoSchedule)
}

func TestWeightsAtRoundsDown(t *testing.T) {
	s := &Schedule{
		StartBlock:   0,
		EndBlock:     3,
		Tokens:       []common.Address{tokenA, tokenB},
		StartWeights: []*big.Int{big.NewInt(10), big.NewInt(20)},
		NewWeights:   []*big.Int{big.NewInt(20), big.NewInt(10)},
	}
	got := s.WeightsAt(1)
	require.Equal(t, "13", got[0].String())
	require.Equal(t, "16", got[1].String())
}

func TestScheduleModelRoundTrip(t *testing.T) {
	bp := newPool(t)
	s, err := Plan(bp, targetFor(bp, map[common.Address]int64{tokenA: 40, tokenB: 10}), 100, 200, 0)
	require.NoError(t, err)

	back, err := FromModel(s.Model())
	require.NoError(t, err)
	require.Equal(t, s.Model(), back.Model())

	none, err := FromModel(nil)
	require.NoError(t, err)
	require.Nil(t, none)
}
