package bmath

import "math/big"

var (
	bone     = big.NewInt(1_000_000_000_000_000_000)
	halfBone = big.NewInt(500_000_000_000_000_000)

	MinBoundTokens = 2
	MaxBoundTokens = 8

	MinFee = new(big.Int).Quo(bone, big.NewInt(1_000_000))
	MaxFee = new(big.Int).Quo(bone, big.NewInt(10))
	// ExitFee is charged on the pool-share side of exits. It is zero.
	ExitFee = big.NewInt(0)

	MinWeight      = new(big.Int).Set(bone)
	MaxWeight      = new(big.Int).Mul(bone, big.NewInt(50))
	MaxTotalWeight = new(big.Int).Mul(bone, big.NewInt(50))
	MinBalance     = new(big.Int).Quo(bone, big.NewInt(1_000_000_000_000))

	InitPoolSupply = new(big.Int).Mul(bone, big.NewInt(100))

	MinPowBase   = big.NewInt(1)
	MaxPowBase   = new(big.Int).Sub(new(big.Int).Mul(bone, big.NewInt(2)), big.NewInt(1))
	PowPrecision = new(big.Int).Quo(bone, big.NewInt(10_000_000_000))

	MaxInRatio  = new(big.Int).Quo(bone, big.NewInt(2))
	MaxOutRatio = new(big.Int).Add(new(big.Int).Quo(bone, big.NewInt(3)), big.NewInt(1))

	// MaxUint256 is used as an "unlimited" allowance.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)
