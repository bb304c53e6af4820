package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"smartpool/internal/model"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrZeroAddress           = errors.New("zero address")
	ErrNegativeAmount        = errors.New("negative amount")
	ErrUnknownToken          = errors.New("unknown token")
)

// maxAllowance is never decremented by TransferFrom.
var maxAllowance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// MaxAllowance returns 2^256-1.
func MaxAllowance() *big.Int {
	return new(big.Int).Set(maxAllowance)
}

// Hook runs after every successful transfer on a ledger. A non-nil error is
// returned to the caller of the transfer.
//
// ctx is the context the transfer was made with. A hook that calls back into
// a guarded pool must pass it on: the pool then fails with
// guard.ErrReentrant, while a fresh context waits on the pool's lock, which
// the transfer's caller still holds, and never returns.
type Hook func(ctx context.Context, token, from, to common.Address, amount *big.Int) error

// Meta describes a fungible token.
type Meta struct {
	Address  common.Address
	Name     string
	Symbol   string
	Decimals uint8
}

// Ledger is an ERC20-style balance book.
type Ledger struct {
	meta Meta

	mu          sync.RWMutex
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
	hook        Hook
}

func NewLedger(meta Meta) *Ledger {
	return &Ledger{
		meta:        meta,
		totalSupply: big.NewInt(0),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (l *Ledger) Meta() Meta {
	return l.meta
}

func (l *Ledger) Address() common.Address {
	return l.meta.Address
}

func (l *Ledger) setHook(hook Hook) {
	l.mu.Lock()
	l.hook = hook
	l.mu.Unlock()
}

func (l *Ledger) TotalSupply() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.totalSupply)
}

func (l *Ledger) BalanceOf(holder common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if bal, ok := l.balances[holder]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if amt, ok := l.allowances[owner][spender]; ok {
		return new(big.Int).Set(amt)
	}
	return big.NewInt(0)
}

func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[common.Address]*big.Int)
	}
	l.allowances[owner][spender] = new(big.Int).Set(amount)
	return nil
}

// Transfer moves amount from one holder to another.
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	if err := l.move(from, to, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	hook := l.hook
	l.mu.Unlock()

	return l.runHook(ctx, hook, from, to, amount)
}

// TransferFrom moves amount on behalf of from, spending spender's allowance
// unless spender is the holder.
func (l *Ledger) TransferFrom(ctx context.Context, spender, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	if spender != from {
		allowed := l.allowances[from][spender]
		if allowed == nil || allowed.Cmp(amount) < 0 {
			l.mu.Unlock()
			return fmt.Errorf("%s: %w", l.meta.Symbol, ErrInsufficientAllowance)
		}
		if err := l.move(from, to, amount); err != nil {
			l.mu.Unlock()
			return err
		}
		if allowed.Cmp(maxAllowance) != 0 {
			l.allowances[from][spender] = new(big.Int).Sub(allowed, amount)
		}
	} else if err := l.move(from, to, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	hook := l.hook
	l.mu.Unlock()

	return l.runHook(ctx, hook, from, to, amount)
}

// Mint creates amount and credits it to holder.
func (l *Ledger) Mint(to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalSupply.Add(l.totalSupply, amount)
	l.credit(to, amount)
	return nil
}

// Burn destroys amount from holder.
func (l *Ledger) Burn(from common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.totalSupply.Sub(l.totalSupply, amount)
	return nil
}

func (l *Ledger) move(from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := l.debit(from, amount); err != nil {
		return err
	}
	l.credit(to, amount)
	return nil
}

func (l *Ledger) debit(holder common.Address, amount *big.Int) error {
	bal := l.balances[holder]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("%s: %w", l.meta.Symbol, ErrInsufficientBalance)
	}
	bal.Sub(bal, amount)
	if bal.Sign() == 0 {
		delete(l.balances, holder)
	}
	return nil
}

func (l *Ledger) credit(holder common.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	bal := l.balances[holder]
	if bal == nil {
		bal = new(big.Int)
		l.balances[holder] = bal
	}
	bal.Add(bal, amount)
}

func (l *Ledger) runHook(ctx context.Context, hook Hook, from, to common.Address, amount *big.Int) error {
	if hook == nil {
		return nil
	}
	return hook(ctx, l.meta.Address, from, to, new(big.Int).Set(amount))
}

// State returns a serializable copy of the ledger.
func (l *Ledger) State() model.LedgerState {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state := model.LedgerState{
		Address:     l.meta.Address.Hex(),
		Name:        l.meta.Name,
		Symbol:      l.meta.Symbol,
		Decimals:    l.meta.Decimals,
		TotalSupply: l.totalSupply.String(),
		Balances:    make(map[string]string, len(l.balances)),
	}
	for holder, bal := range l.balances {
		state.Balances[holder.Hex()] = bal.String()
	}
	for owner, spenders := range l.allowances {
		for spender, amt := range spenders {
			state.Allowances = append(state.Allowances, model.AllowanceState{
				Owner:   owner.Hex(),
				Spender: spender.Hex(),
				Amount:  amt.String(),
			})
		}
	}
	sort.Slice(state.Allowances, func(i, j int) bool {
		if state.Allowances[i].Owner != state.Allowances[j].Owner {
			return state.Allowances[i].Owner < state.Allowances[j].Owner
		}
		return state.Allowances[i].Spender < state.Allowances[j].Spender
	})
	return state
}

// LedgerFromState rebuilds a ledger from its serialized form.
func LedgerFromState(state model.LedgerState) (*Ledger, error) {
	if !common.IsHexAddress(state.Address) {
		return nil, fmt.Errorf("invalid token address: %s", state.Address)
	}
	l := NewLedger(Meta{
		Address:  common.HexToAddress(state.Address),
		Name:     state.Name,
		Symbol:   state.Symbol,
		Decimals: state.Decimals,
	})

	sum := big.NewInt(0)
	for holder, raw := range state.Balances {
		if !common.IsHexAddress(holder) {
			return nil, fmt.Errorf("invalid holder address: %s", holder)
		}
		bal, err := parseAmount(raw)
		if err != nil {
			return nil, fmt.Errorf("balance of %s: %w", holder, err)
		}
		l.credit(common.HexToAddress(holder), bal)
		sum.Add(sum, bal)
	}
	l.totalSupply = sum
	if state.TotalSupply != "" {
		declared, err := parseAmount(state.TotalSupply)
		if err != nil {
			return nil, fmt.Errorf("total supply: %w", err)
		}
		if declared.Cmp(sum) != 0 {
			return nil, fmt.Errorf("total supply %s does not match balances %s", declared, sum)
		}
	}

	for _, a := range state.Allowances {
		if !common.IsHexAddress(a.Owner) || !common.IsHexAddress(a.Spender) {
			return nil, fmt.Errorf("invalid allowance address: %s/%s", a.Owner, a.Spender)
		}
		amt, err := parseAmount(a.Amount)
		if err != nil {
			return nil, fmt.Errorf("allowance: %w", err)
		}
		if err := l.Approve(common.HexToAddress(a.Owner), common.HexToAddress(a.Spender), amt); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func parseAmount(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	if parsed.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	return parsed, nil
}
