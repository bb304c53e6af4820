package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"smartpool/internal/bmath"
	"smartpool/internal/model"
	"smartpool/internal/token"
)

type handler func(ctx context.Context, e *Engine, caller common.Address, call model.Call) error

var handlers map[string]handler

func init() {
	handlers = map[string]handler{
		// asset ledgers
		"register_token": registerToken,
		"mint":           mintToken,
		"approve_token":  approveToken,
		"transfer_token": transferToken,

		// smart pool administration
		"init":                initPool,
		"set_controller":      setRole(func(e *Engine) roleSetter { return e.pool.SetController }),
		"set_swap_fee_setter": setRole(func(e *Engine) roleSetter { return e.pool.SetSwapFeeSetter }),
		"set_token_binder":    setRole(func(e *Engine) roleSetter { return e.pool.SetTokenBinder }),
		"set_swap_fee":        setSwapFee,
		"set_public_swap":     setPublicSwap,
		"set_cap":             setCap,
		"bind":                bind,
		"rebind":              rebind,
		"unbind":              unbind,

		// capital
		"join_pool":                  joinPool,
		"exit_pool":                  exitPool,
		"exit_pool_taking_loss":      exitPoolTakingLoss,
		"joinswap_extern_amount_in":  joinswapExternAmountIn,
		"joinswap_pool_amount_out":   joinswapPoolAmountOut,
		"exitswap_pool_amount_in":    exitswapPoolAmountIn,
		"exitswap_extern_amount_out": exitswapExternAmountOut,
		"update_weights_gradually":   updateWeightsGradually,
		"poke_weights":               pokeWeights,

		// pool share token
		"transfer":      transferShares,
		"approve":       approveShares,
		"transfer_from": transferSharesFrom,

		// underlying pool
		"swap_exact_amount_in":  swapExactAmountIn,
		"swap_exact_amount_out": swapExactAmountOut,
		"gulp":                  gulp,
	}
}

func ledgerArg(e *Engine, raw string) (*token.Ledger, error) {
	addr, err := address(raw, "token")
	if err != nil {
		return nil, err
	}
	return e.tokens.Ledger(addr)
}

func registerToken(_ context.Context, e *Engine, _ common.Address, call model.Call) error {
	var args registerTokenArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	addr, err := address(args.Address, "address")
	if err != nil {
		return err
	}
	if args.Decimals == 0 {
		args.Decimals = 18
	}
	_, err = e.tokens.Register(token.Meta{Address: addr, Name: args.Name, Symbol: args.Symbol, Decimals: args.Decimals})
	return err
}

// mintToken credits new asset tokens. Ledgers have no owner, so any caller may mint.
func mintToken(_ context.Context, e *Engine, _ common.Address, call model.Call) error {
	var args tokenAmountArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	ledger, err := ledgerArg(e, args.Token)
	if err != nil {
		return err
	}
	to, err := address(args.To, "to")
	if err != nil {
		return err
	}
	amount, err := args.Amount.value("amount")
	if err != nil {
		return err
	}
	return ledger.Mint(to, amount)
}

func approveToken(_ context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args tokenAmountArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	ledger, err := ledgerArg(e, args.Token)
	if err != nil {
		return err
	}
	spender, err := address(args.Spender, "spender")
	if err != nil {
		return err
	}
	amount := args.Amount.optional()
	if amount == nil {
		amount = token.MaxAllowance()
	}
	return ledger.Approve(caller, spender, amount)
}

func transferToken(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args tokenAmountArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	ledger, err := ledgerArg(e, args.Token)
	if err != nil {
		return err
	}
	to, err := address(args.To, "to")
	if err != nil {
		return err
	}
	amount, err := args.Amount.value("amount")
	if err != nil {
		return err
	}
	return ledger.Transfer(ctx, caller, to, amount)
}

func initPool(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args initArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	supply := args.InitialSupply.optional()
	if supply == nil {
		supply = bmath.InitPoolSupply
	}
	return e.pool.Init(ctx, caller, e.underlying, args.Name, args.Symbol, supply)
}

type roleSetter func(ctx context.Context, caller, next common.Address) error

func setRole(pick func(e *Engine) roleSetter) handler {
	return func(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
		var args roleArgs
		if err := decodeArgs(call.Args, &args); err != nil {
			return err
		}
		next, err := address(args.Address, "address")
		if err != nil {
			return err
		}
		return pick(e)(ctx, caller, next)
	}
}

func setSwapFee(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args swapFeeArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	fee, err := args.Fee.value("fee")
	if err != nil {
		return err
	}
	return e.pool.SetSwapFee(ctx, caller, fee)
}

func setPublicSwap(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args publicSwapArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	return e.pool.SetPublicSwap(ctx, caller, args.Enabled)
}

func setCap(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args capArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	return e.pool.SetCap(ctx, caller, args.Cap.optional())
}

func bind(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	tok, balance, denorm, err := bindParams(call)
	if err != nil {
		return err
	}
	return e.pool.Bind(ctx, caller, tok, balance, denorm)
}

func rebind(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	tok, balance, denorm, err := bindParams(call)
	if err != nil {
		return err
	}
	return e.pool.Rebind(ctx, caller, tok, balance, denorm)
}

func bindParams(call model.Call) (tok common.Address, balance, denorm *big.Int, err error) {
	var args bindArgs
	if err = decodeArgs(call.Args, &args); err != nil {
		return
	}
	if tok, err = address(args.Token, "token"); err != nil {
		return
	}
	if balance, err = args.Balance.value("balance"); err != nil {
		return
	}
	denorm, err = args.Denorm.value("denorm")
	return
}

func unbind(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args bindArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	tok, err := address(args.Token, "token")
	if err != nil {
		return err
	}
	return e.pool.Unbind(ctx, caller, tok)
}

func joinPool(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args joinArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	out, err := args.PoolAmountOut.value("pool_amount_out")
	if err != nil {
		return err
	}
	limits, err := amounts(args.MaxAmountsIn, "max_amounts_in")
	if err != nil {
		return err
	}
	_, err = e.pool.JoinPool(ctx, caller, out, limits)
	return err
}

func exitPool(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args exitArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	in, err := args.PoolAmountIn.value("pool_amount_in")
	if err != nil {
		return err
	}
	limits, err := amounts(args.MinAmountsOut, "min_amounts_out")
	if err != nil {
		return err
	}
	_, err = e.pool.ExitPool(ctx, caller, in, limits)
	return err
}

func exitPoolTakingLoss(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args exitArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	in, err := args.PoolAmountIn.value("pool_amount_in")
	if err != nil {
		return err
	}
	loss, err := addresses(args.LossTokens, "loss_tokens")
	if err != nil {
		return err
	}
	_, err = e.pool.ExitPoolTakingLoss(ctx, caller, in, loss)
	return err
}

func singleAssetParams(call model.Call, fixed, limit string) (common.Address, *big.Int, *big.Int, error) {
	var args singleAssetArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return common.Address{}, nil, nil, err
	}
	tok, err := address(args.Token, "token")
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	fields := map[string]Amount{
		"token_amount_in":     args.TokenAmountIn,
		"token_amount_out":    args.TokenAmountOut,
		"pool_amount_in":      args.PoolAmountIn,
		"pool_amount_out":     args.PoolAmountOut,
		"min_pool_amount_out": args.MinPoolAmountOut,
		"max_pool_amount_in":  args.MaxPoolAmountIn,
		"min_amount_out":      args.MinAmountOut,
		"max_amount_in":       args.MaxAmountIn,
	}
	amount, err := fields[fixed].value(fixed)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	bound, err := fields[limit].value(limit)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	return tok, amount, bound, nil
}

func joinswapExternAmountIn(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	tok, amount, limit, err := singleAssetParams(call, "token_amount_in", "min_pool_amount_out")
	if err != nil {
		return err
	}
	_, err = e.pool.JoinswapExternAmountIn(ctx, caller, tok, amount, limit)
	return err
}

func joinswapPoolAmountOut(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	tok, amount, limit, err := singleAssetParams(call, "pool_amount_out", "max_amount_in")
	if err != nil {
		return err
	}
	_, err = e.pool.JoinswapPoolAmountOut(ctx, caller, tok, amount, limit)
	return err
}

func exitswapPoolAmountIn(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	tok, amount, limit, err := singleAssetParams(call, "pool_amount_in", "min_amount_out")
	if err != nil {
		return err
	}
	_, err = e.pool.ExitswapPoolAmountIn(ctx, caller, tok, amount, limit)
	return err
}

func exitswapExternAmountOut(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	tok, amount, limit, err := singleAssetParams(call, "token_amount_out", "max_pool_amount_in")
	if err != nil {
		return err
	}
	_, err = e.pool.ExitswapExternAmountOut(ctx, caller, tok, amount, limit)
	return err
}

func updateWeightsGradually(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args weightsArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	target, err := amounts(args.NewWeights, "new_weights")
	if err != nil {
		return err
	}
	return e.pool.UpdateWeightsGradually(ctx, caller, target, args.StartBlock, args.EndBlock, call.Block)
}

func pokeWeights(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	return e.pool.PokeWeights(ctx, caller, call.Block)
}

func transferShares(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args shareArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	to, err := address(args.To, "to")
	if err != nil {
		return err
	}
	amount, err := args.Amount.value("amount")
	if err != nil {
		return err
	}
	return e.pool.Transfer(ctx, caller, to, amount)
}

func approveShares(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args shareArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	spender, err := address(args.Spender, "spender")
	if err != nil {
		return err
	}
	amount := args.Amount.optional()
	if amount == nil {
		amount = token.MaxAllowance()
	}
	return e.pool.Approve(ctx, caller, spender, amount)
}

func transferSharesFrom(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	var args shareArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	from, err := address(args.From, "from")
	if err != nil {
		return err
	}
	to, err := address(args.To, "to")
	if err != nil {
		return err
	}
	amount, err := args.Amount.value("amount")
	if err != nil {
		return err
	}
	return e.pool.TransferFrom(ctx, caller, from, to, amount)
}

func swapParams(call model.Call) (swapArgs, common.Address, common.Address, error) {
	var args swapArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return args, common.Address{}, common.Address{}, err
	}
	in, err := address(args.TokenIn, "token_in")
	if err != nil {
		return args, common.Address{}, common.Address{}, err
	}
	out, err := address(args.TokenOut, "token_out")
	if err != nil {
		return args, common.Address{}, common.Address{}, err
	}
	if args.MaxPrice.Int == nil {
		args.MaxPrice.Int = bmath.MaxUint256
	}
	return args, in, out, nil
}

func swapExactAmountIn(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	args, in, out, err := swapParams(call)
	if err != nil {
		return err
	}
	amountIn, err := args.TokenAmountIn.value("token_amount_in")
	if err != nil {
		return err
	}
	minOut, err := args.MinAmountOut.value("min_amount_out")
	if err != nil {
		return err
	}
	_, err = e.underlying.SwapExactAmountIn(ctx, caller, in, amountIn, out, minOut, args.MaxPrice.Int)
	return err
}

func swapExactAmountOut(ctx context.Context, e *Engine, caller common.Address, call model.Call) error {
	args, in, out, err := swapParams(call)
	if err != nil {
		return err
	}
	maxIn, err := args.MaxAmountIn.value("max_amount_in")
	if err != nil {
		return err
	}
	amountOut, err := args.TokenAmountOut.value("token_amount_out")
	if err != nil {
		return err
	}
	_, err = e.underlying.SwapExactAmountOut(ctx, caller, in, maxIn, out, amountOut, args.MaxPrice.Int)
	return err
}

func gulp(ctx context.Context, e *Engine, _ common.Address, call model.Call) error {
	var args bindArgs
	if err := decodeArgs(call.Args, &args); err != nil {
		return err
	}
	tok, err := address(args.Token, "token")
	if err != nil {
		return err
	}
	return e.underlying.Gulp(ctx, tok)
}
