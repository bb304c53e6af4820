package bmath

import "math/big"

// SpotPrice is the price of tokenOut in units of tokenIn, fee included.
//
//	sP = (bI / wI) / (bO / wO) * 1 / (1 - sF)
func SpotPrice(balanceIn, weightIn, balanceOut, weightOut, swapFee *big.Int) (*big.Int, error) {
	c := &calc{}
	numer := c.div(balanceIn, weightIn)
	denom := c.div(balanceOut, weightOut)
	ratio := c.div(numer, denom)
	scale := c.div(bone, c.sub(bone, swapFee))
	if c.err != nil {
		return nil, c.err
	}
	return Mul(ratio, scale), nil
}

// OutGivenIn returns the amount of tokenOut received for amountIn of tokenIn.
//
//	aO = bO * (1 - (bI / (bI + aI * (1 - sF))) ^ (wI / wO))
func OutGivenIn(balanceIn, weightIn, balanceOut, weightOut, amountIn, swapFee *big.Int) (*big.Int, error) {
	c := &calc{}
	weightRatio := c.div(weightIn, weightOut)
	adjustedIn := Mul(amountIn, c.sub(bone, swapFee))
	y := c.div(balanceIn, Add(balanceIn, adjustedIn))
	foo := c.pow(y, weightRatio)
	bar := c.sub(bone, foo)
	if c.err != nil {
		return nil, c.err
	}
	return Mul(balanceOut, bar), nil
}

// InGivenOut returns the amount of tokenIn required to receive amountOut.
//
//	aI = bI * ((bO / (bO - aO)) ^ (wO / wI) - 1) / (1 - sF)
func InGivenOut(balanceIn, weightIn, balanceOut, weightOut, amountOut, swapFee *big.Int) (*big.Int, error) {
	c := &calc{}
	weightRatio := c.div(weightOut, weightIn)
	diff := c.sub(balanceOut, amountOut)
	y := c.div(balanceOut, diff)
	foo := c.sub(c.pow(y, weightRatio), bone)
	out := c.div(Mul(balanceIn, foo), c.sub(bone, swapFee))
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

// PoolOutGivenSingleIn returns pool shares minted for a single-asset deposit.
// Only the portion of the deposit that is implicitly swapped pays the fee.
func PoolOutGivenSingleIn(balanceIn, weightIn, poolSupply, totalWeight, amountIn, swapFee *big.Int) (*big.Int, error) {
	c := &calc{}
	normalizedWeight := c.div(weightIn, totalWeight)
	zaz := Mul(c.sub(bone, normalizedWeight), swapFee)
	amountInAfterFee := Mul(amountIn, c.sub(bone, zaz))

	newBalanceIn := Add(balanceIn, amountInAfterFee)
	inRatio := c.div(newBalanceIn, balanceIn)

	poolRatio := c.pow(inRatio, normalizedWeight)
	newPoolSupply := Mul(poolRatio, poolSupply)
	out := c.sub(newPoolSupply, poolSupply)
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

// SingleInGivenPoolOut returns the single-asset deposit needed to mint poolAmountOut.
func SingleInGivenPoolOut(balanceIn, weightIn, poolSupply, totalWeight, poolAmountOut, swapFee *big.Int) (*big.Int, error) {
	c := &calc{}
	normalizedWeight := c.div(weightIn, totalWeight)
	newPoolSupply := Add(poolSupply, poolAmountOut)
	poolRatio := c.div(newPoolSupply, poolSupply)

	boo := c.div(bone, normalizedWeight)
	inRatio := c.pow(poolRatio, boo)
	newBalanceIn := Mul(inRatio, balanceIn)
	amountInAfterFee := c.sub(newBalanceIn, balanceIn)

	zar := Mul(c.sub(bone, normalizedWeight), swapFee)
	out := c.div(amountInAfterFee, c.sub(bone, zar))
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

// SingleOutGivenPoolIn returns the single asset paid out for burning poolAmountIn.
func SingleOutGivenPoolIn(balanceOut, weightOut, poolSupply, totalWeight, poolAmountIn, swapFee *big.Int) (*big.Int, error) {
	c := &calc{}
	normalizedWeight := c.div(weightOut, totalWeight)
	poolAmountInAfterExitFee := Mul(poolAmountIn, c.sub(bone, ExitFee))
	newPoolSupply := c.sub(poolSupply, poolAmountInAfterExitFee)
	poolRatio := c.div(newPoolSupply, poolSupply)

	outRatio := c.pow(poolRatio, c.div(bone, normalizedWeight))
	newBalanceOut := Mul(outRatio, balanceOut)
	amountOutBeforeFee := c.sub(balanceOut, newBalanceOut)

	zaz := Mul(c.sub(bone, normalizedWeight), swapFee)
	if c.err != nil {
		return nil, c.err
	}
	out := Mul(amountOutBeforeFee, c.sub(bone, zaz))
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}

// PoolInGivenSingleOut returns the pool shares burned to withdraw amountOut of one asset.
func PoolInGivenSingleOut(balanceOut, weightOut, poolSupply, totalWeight, amountOut, swapFee *big.Int) (*big.Int, error) {
	c := &calc{}
	normalizedWeight := c.div(weightOut, totalWeight)
	zoo := c.sub(bone, normalizedWeight)
	zar := Mul(zoo, swapFee)
	amountOutBeforeFee := c.div(amountOut, c.sub(bone, zar))

	newBalanceOut := c.sub(balanceOut, amountOutBeforeFee)
	outRatio := c.div(newBalanceOut, balanceOut)

	poolRatio := c.pow(outRatio, normalizedWeight)
	newPoolSupply := Mul(poolRatio, poolSupply)
	poolAmountInAfterExitFee := c.sub(poolSupply, newPoolSupply)

	out := c.div(poolAmountInAfterExitFee, c.sub(bone, ExitFee))
	if c.err != nil {
		return nil, c.err
	}
	return out, nil
}
