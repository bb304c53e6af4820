// Package smartpool implements the smart pool: a share token wrapped around an
// underlying weighted pool that it controls.
//
// Privileged calls are gated by three roles (controller, swap fee setter and
// token binder). Capital operations are forwarded to the entryexit and weights
// packages and, through them, to the underlying pool. Every mutating entry
// point holds the pool's reentrancy guard for its whole duration.
package smartpool

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"smartpool/internal/entryexit"
	"smartpool/internal/guard"
	"smartpool/internal/model"
	"smartpool/internal/token"
	"smartpool/internal/weights"
)

var (
	ErrNotInitialized          = errors.New("smartpool: not initialized")
	ErrAlreadyInitialized      = errors.New("smartpool: already initialized")
	ErrNotController           = errors.New("smartpool: caller is not controller")
	ErrNotSwapFeeSetter        = errors.New("smartpool: caller is not swap fee setter")
	ErrNotTokenBinder          = errors.New("smartpool: caller is not token binder")
	ErrZeroAddress             = errors.New("smartpool: zero address")
	ErrZeroSupply              = errors.New("smartpool: zero initial supply")
	ErrNotUnderlyingController = errors.New("smartpool: pool does not control underlying")
	ErrScheduleActive          = errors.New("smartpool: weight update in progress")
)

// ShareDecimals is the precision of the pool share token.
const ShareDecimals = 18

// UnderlyingPool is the weighted pool wrapped by a smart pool.
type UnderlyingPool interface {
	entryexit.Underlying
	Controller() common.Address
	IsPublicSwap() bool
	SetSwapFee(ctx context.Context, caller common.Address, fee *big.Int) error
	SetPublicSwap(ctx context.Context, caller common.Address, public bool) error
	Bind(ctx context.Context, caller, tok common.Address, balance, denorm *big.Int) error
	Unbind(ctx context.Context, caller, tok common.Address) (*big.Int, error)
}

// Pool is a smart pool. The zero value is not usable; call New.
type Pool struct {
	address common.Address
	tokens  *token.Registry
	logger  *zap.Logger
	lock    guard.Lock

	mu            sync.RWMutex
	underlying    UnderlyingPool
	controller    common.Address
	swapFeeSetter common.Address
	tokenBinder   common.Address
	name          string
	symbol        string
	cap           *big.Int
	shares        *token.Ledger
	schedule      *weights.Schedule
	events        []model.Event
}

// New returns an uninitialized smart pool at address. Underlying asset
// transfers go through tokens.
func New(address common.Address, tokens *token.Registry, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		address: address,
		tokens:  tokens,
		logger:  logger.With(zap.String("pool", address.Hex())),
	}
}

// Init binds the pool to its underlying pool, grants all roles to caller and
// mints initialSupply shares to caller. It can succeed only once.
func (p *Pool) Init(ctx context.Context, caller common.Address, underlying UnderlyingPool, name, symbol string, initialSupply *big.Int) error {
	return p.guarded(ctx, "init", func(ctx context.Context) error {
		p.mu.Lock()
		defer p.mu.Unlock()

		if p.underlying != nil {
			return ErrAlreadyInitialized
		}
		if underlying == nil || underlying.Address() == (common.Address{}) {
			return ErrZeroAddress
		}
		if initialSupply == nil || initialSupply.Sign() <= 0 {
			return ErrZeroSupply
		}
		if underlying.Controller() != p.address {
			return ErrNotUnderlyingController
		}

		shares := token.NewLedger(token.Meta{Address: p.address, Name: name, Symbol: symbol, Decimals: ShareDecimals})
		if err := shares.Mint(caller, initialSupply); err != nil {
			return err
		}

		p.underlying = underlying
		p.controller = caller
		p.swapFeeSetter = caller
		p.tokenBinder = caller
		p.name = name
		p.symbol = symbol
		p.shares = shares

		p.emitLocked(model.EventInitialized, model.InitializedEventData{
			Caller:        caller.Hex(),
			Underlying:    underlying.Address().Hex(),
			Name:          name,
			Symbol:        symbol,
			InitialSupply: initialSupply.String(),
		})
		p.logger.Info("pool initialized",
			zap.String("underlying", underlying.Address().Hex()),
			zap.String("controller", caller.Hex()),
			zap.String("initial_supply", initialSupply.String()),
		)
		return nil
	})
}

// guarded runs fn holding the reentrancy guard and records its outcome.
func (p *Pool) guarded(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, release, err := p.lock.Enter(ctx)
	if err == nil {
		func() {
			defer release()
			err = fn(ctx)
		}()
	}

	operationsCounter.WithLabelValues(op, resultLabel(err)).Inc()
	if err != nil {
		p.logger.Debug("operation failed", zap.String("op", op), zap.Error(err))
	}
	return err
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, guard.ErrReentrant),
		errors.Is(err, ErrNotController),
		errors.Is(err, ErrNotSwapFeeSetter),
		errors.Is(err, ErrNotTokenBinder):
		return "rejected"
	default:
		return "error"
	}
}

// ready returns the underlying pool, failing before Init.
func (p *Pool) ready() (UnderlyingPool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.underlying == nil {
		return nil, ErrNotInitialized
	}
	return p.underlying, nil
}

func (p *Pool) requireRole(role string, caller common.Address) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.underlying == nil {
		return ErrNotInitialized
	}
	switch role {
	case model.RoleController:
		if caller != p.controller {
			return ErrNotController
		}
	case model.RoleSwapFeeSetter:
		// the controller keeps fee authority alongside the delegated setter
		if caller != p.swapFeeSetter && caller != p.controller {
			return ErrNotSwapFeeSetter
		}
	case model.RoleTokenBinder:
		if caller != p.tokenBinder {
			return ErrNotTokenBinder
		}
	}
	return nil
}

func (p *Pool) emit(name string, decoded interface{}) {
	p.mu.Lock()
	p.emitLocked(name, decoded)
	p.mu.Unlock()
}

func (p *Pool) emitLocked(name string, decoded interface{}) {
	p.events = append(p.events, model.Event{
		Address:   p.address.Hex(),
		EventName: name,
		Decoded:   decoded,
	})
}

// DrainEvents returns and clears events emitted since the last drain.
func (p *Pool) DrainEvents() []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.events
	p.events = nil
	return out
}

func (p *Pool) entryExit() (entryexit.Pool, error) {
	u, err := p.ready()
	if err != nil {
		return entryexit.Pool{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	var capacity *big.Int
	if p.cap != nil {
		capacity = new(big.Int).Set(p.cap)
	}
	return entryexit.Pool{
		Self:       p.address,
		Underlying: u,
		Shares:     p.shares,
		Tokens:     p.tokens,
		Cap:        capacity,
		Emit:       p.emit,
	}, nil
}
