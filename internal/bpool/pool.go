package bpool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"smartpool/internal/bmath"
	"smartpool/internal/guard"
	"smartpool/internal/model"
	"smartpool/internal/token"
)

var (
	ErrNotController    = errors.New("bpool: not controller")
	ErrIsBound          = errors.New("bpool: token already bound")
	ErrNotBound         = errors.New("bpool: token not bound")
	ErrMaxTokens        = errors.New("bpool: max bound tokens")
	ErrMinWeight        = errors.New("bpool: weight below minimum")
	ErrMaxWeight        = errors.New("bpool: weight above maximum")
	ErrMaxTotalWeight   = errors.New("bpool: total weight above maximum")
	ErrMinBalance       = errors.New("bpool: balance below minimum")
	ErrMinFee           = errors.New("bpool: fee below minimum")
	ErrMaxFee           = errors.New("bpool: fee above maximum")
	ErrSwapNotPublic    = errors.New("bpool: swap not public")
	ErrMaxInRatio       = errors.New("bpool: amount in above max ratio")
	ErrMaxOutRatio      = errors.New("bpool: amount out above max ratio")
	ErrBadLimitPrice    = errors.New("bpool: bad limit price")
	ErrLimitOut         = errors.New("bpool: amount out below limit")
	ErrLimitIn          = errors.New("bpool: amount in above limit")
	ErrLimitPrice       = errors.New("bpool: spot price above limit")
	ErrMathApprox       = errors.New("bpool: math approximation")
	ErrZeroController   = errors.New("bpool: zero controller")
	ErrUnsupportedState = errors.New("bpool: invalid state")
)

type record struct {
	index   int
	denorm  *big.Int
	balance *big.Int
}

// Pool is an in-memory weighted pool managed by a single controller. It never
// finalizes: liquidity only moves through Bind/Rebind/Unbind by the controller
// and through public swaps.
type Pool struct {
	address common.Address
	tokens  *token.Registry
	logger  *zap.Logger
	lock    guard.Lock

	mu          sync.RWMutex
	controller  common.Address
	swapFee     *big.Int
	publicSwap  bool
	bound       []common.Address
	records     map[common.Address]*record
	totalWeight *big.Int
	events      []model.Event
}

// New creates an empty pool controlled by controller.
func New(address, controller common.Address, tokens *token.Registry, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		address:     address,
		tokens:      tokens,
		logger:      logger,
		controller:  controller,
		swapFee:     new(big.Int).Set(bmath.MinFee),
		records:     make(map[common.Address]*record),
		totalWeight: big.NewInt(0),
	}
}

func (p *Pool) Address() common.Address {
	return p.address
}

func (p *Pool) Controller() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.controller
}

func (p *Pool) SwapFee() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.swapFee)
}

func (p *Pool) IsPublicSwap() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.publicSwap
}

func (p *Pool) IsBound(tok common.Address) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.records[tok]
	return ok
}

// CurrentTokens returns bound tokens in binding order.
func (p *Pool) CurrentTokens() []common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]common.Address, len(p.bound))
	copy(out, p.bound)
	return out
}

func (p *Pool) Balance(tok common.Address) (*big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[tok]
	if !ok {
		return nil, fmt.Errorf("%s: %w", tok.Hex(), ErrNotBound)
	}
	return new(big.Int).Set(rec.balance), nil
}

func (p *Pool) DenormalizedWeight(tok common.Address) (*big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rec, ok := p.records[tok]
	if !ok {
		return nil, fmt.Errorf("%s: %w", tok.Hex(), ErrNotBound)
	}
	return new(big.Int).Set(rec.denorm), nil
}

func (p *Pool) TotalDenormalizedWeight() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.totalWeight)
}

func (p *Pool) NormalizedWeight(tok common.Address) (*big.Int, error) {
	denorm, err := p.DenormalizedWeight(tok)
	if err != nil {
		return nil, err
	}
	return bmath.Div(denorm, p.TotalDenormalizedWeight())
}

// SetSwapFee sets the fee charged on swaps and single-asset joins/exits.
func (p *Pool) SetSwapFee(ctx context.Context, caller common.Address, fee *big.Int) error {
	_, release, err := p.lock.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.controller {
		return ErrNotController
	}
	if fee.Cmp(bmath.MinFee) < 0 {
		return ErrMinFee
	}
	if fee.Cmp(bmath.MaxFee) > 0 {
		return ErrMaxFee
	}
	p.swapFee = new(big.Int).Set(fee)
	return nil
}

func (p *Pool) SetPublicSwap(ctx context.Context, caller common.Address, public bool) error {
	_, release, err := p.lock.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.controller {
		return ErrNotController
	}
	p.publicSwap = public
	return nil
}

func (p *Pool) SetController(ctx context.Context, caller, controller common.Address) error {
	_, release, err := p.lock.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	p.mu.Lock()
	defer p.mu.Unlock()
	if caller != p.controller {
		return ErrNotController
	}
	if controller == (common.Address{}) {
		return ErrZeroController
	}
	p.controller = controller
	return nil
}

// Bind registers a new token and pulls its initial balance from the controller.
func (p *Pool) Bind(ctx context.Context, caller, tok common.Address, balance, denorm *big.Int) error {
	ctx, release, err := p.lock.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	p.mu.Lock()
	if caller != p.controller {
		p.mu.Unlock()
		return ErrNotController
	}
	if _, ok := p.records[tok]; ok {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", tok.Hex(), ErrIsBound)
	}
	if len(p.bound) >= bmath.MaxBoundTokens {
		p.mu.Unlock()
		return ErrMaxTokens
	}
	if err := p.checkWeightLocked(big.NewInt(0), denorm); err != nil {
		p.mu.Unlock()
		return err
	}
	p.mu.Unlock()

	if balance.Cmp(bmath.MinBalance) < 0 {
		return ErrMinBalance
	}
	if err := p.pull(ctx, tok, caller, balance); err != nil {
		return err
	}

	p.mu.Lock()
	p.records[tok] = &record{
		index:   len(p.bound),
		denorm:  new(big.Int).Set(denorm),
		balance: new(big.Int).Set(balance),
	}
	p.bound = append(p.bound, tok)
	p.totalWeight.Add(p.totalWeight, denorm)
	p.mu.Unlock()

	p.logger.Debug("bind", zap.String("token", tok.Hex()), zap.String("balance", balance.String()), zap.String("denorm", denorm.String()))
	return nil
}

// Rebind changes a bound token's weight and balance. A higher balance is
// pulled from the controller; a lower one is returned to it.
func (p *Pool) Rebind(ctx context.Context, caller, tok common.Address, balance, denorm *big.Int) error {
	ctx, release, err := p.lock.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	p.mu.Lock()
	if caller != p.controller {
		p.mu.Unlock()
		return ErrNotController
	}
	rec, ok := p.records[tok]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("%s: %w", tok.Hex(), ErrNotBound)
	}
	if err := p.checkWeightLocked(rec.denorm, denorm); err != nil {
		p.mu.Unlock()
		return err
	}
	oldBalance := new(big.Int).Set(rec.balance)
	p.mu.Unlock()

	if balance.Cmp(bmath.MinBalance) < 0 {
		return ErrMinBalance
	}

	if balance.Cmp(oldBalance) > 0 {
		if err := p.pull(ctx, tok, caller, new(big.Int).Sub(balance, oldBalance)); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.totalWeight.Sub(p.totalWeight, rec.denorm)
	p.totalWeight.Add(p.totalWeight, denorm)
	rec.denorm = new(big.Int).Set(denorm)
	rec.balance = new(big.Int).Set(balance)
	p.mu.Unlock()

	if balance.Cmp(oldBalance) < 0 {
		withdrawn := new(big.Int).Sub(oldBalance, balance)
		fee := bmath.Mul(withdrawn, bmath.ExitFee)
		if err := p.push(ctx, tok, caller, new(big.Int).Sub(withdrawn, fee)); err != nil {
			return err
		}
	}
	return nil
}

// Unbind removes a token and returns its whole balance to the controller.
func (p *Pool) Unbind(ctx context.Context, caller, tok common.Address) (*big.Int, error) {
	ctx, release, err := p.lock.Enter(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	p.mu.Lock()
	if caller != p.controller {
		p.mu.Unlock()
		return nil, ErrNotController
	}
	rec, ok := p.records[tok]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", tok.Hex(), ErrNotBound)
	}
	balance := new(big.Int).Set(rec.balance)
	p.totalWeight.Sub(p.totalWeight, rec.denorm)

	last := len(p.bound) - 1
	moved := p.bound[last]
	p.bound[rec.index] = moved
	p.records[moved].index = rec.index
	p.bound = p.bound[:last]
	delete(p.records, tok)
	p.mu.Unlock()

	fee := bmath.Mul(balance, bmath.ExitFee)
	amount := new(big.Int).Sub(balance, fee)
	if err := p.push(ctx, tok, caller, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// Gulp absorbs tokens sent directly to the pool into the recorded balance.
func (p *Pool) Gulp(ctx context.Context, tok common.Address) error {
	_, release, err := p.lock.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()

	ledger, err := p.tokens.Ledger(tok)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[tok]
	if !ok {
		return fmt.Errorf("%s: %w", tok.Hex(), ErrNotBound)
	}
	rec.balance = ledger.BalanceOf(p.address)
	return nil
}

// DrainEvents returns and clears events emitted since the last drain.
func (p *Pool) DrainEvents() []model.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.events
	p.events = nil
	return out
}

func (p *Pool) emit(name string, decoded interface{}) {
	p.mu.Lock()
	p.events = append(p.events, model.Event{
		Address:   p.address.Hex(),
		EventName: name,
		Decoded:   decoded,
	})
	p.mu.Unlock()
}

func (p *Pool) checkWeightLocked(oldDenorm, denorm *big.Int) error {
	if denorm.Cmp(bmath.MinWeight) < 0 {
		return ErrMinWeight
	}
	if denorm.Cmp(bmath.MaxWeight) > 0 {
		return ErrMaxWeight
	}
	total := new(big.Int).Sub(p.totalWeight, oldDenorm)
	total.Add(total, denorm)
	if total.Cmp(bmath.MaxTotalWeight) > 0 {
		return ErrMaxTotalWeight
	}
	return nil
}

func (p *Pool) pull(ctx context.Context, tok, from common.Address, amount *big.Int) error {
	ledger, err := p.tokens.Ledger(tok)
	if err != nil {
		return err
	}
	if err := ledger.TransferFrom(ctx, p.address, from, p.address, amount); err != nil {
		return fmt.Errorf("pull %s: %w", tok.Hex(), err)
	}
	return nil
}

func (p *Pool) push(ctx context.Context, tok, to common.Address, amount *big.Int) error {
	ledger, err := p.tokens.Ledger(tok)
	if err != nil {
		return err
	}
	if err := ledger.Transfer(ctx, p.address, to, amount); err != nil {
		return fmt.Errorf("push %s: %w", tok.Hex(), err)
	}
	return nil
}
