package token

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"smartpool/internal/model"
)

// Registry holds the ledgers of the underlying assets, keyed by token address.
type Registry struct {
	mu      sync.RWMutex
	ledgers map[common.Address]*Ledger
	hook    Hook
}

func NewRegistry() *Registry {
	return &Registry{ledgers: make(map[common.Address]*Ledger)}
}

// Register creates a ledger for meta.Address. Registering twice fails.
func (r *Registry) Register(meta Meta) (*Ledger, error) {
	if meta.Address == (common.Address{}) {
		return nil, ErrZeroAddress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ledgers[meta.Address]; ok {
		return nil, fmt.Errorf("token %s already registered", meta.Address.Hex())
	}
	l := NewLedger(meta)
	l.setHook(r.hook)
	r.ledgers[meta.Address] = l
	return l, nil
}

// Ledger returns the ledger for a token address.
func (r *Registry) Ledger(addr common.Address) (*Ledger, error) {
	r.mu.RLock()
	l, ok := r.ledgers[addr]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr.Hex(), ErrUnknownToken)
	}
	return l, nil
}

// Tokens lists registered token addresses in ascending order.
func (r *Registry) Tokens() []common.Address {
	r.mu.RLock()
	out := make([]common.Address, 0, len(r.ledgers))
	for addr := range r.ledgers {
		out = append(out, addr)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// SetHook installs a transfer hook on every current and future ledger.
func (r *Registry) SetHook(hook Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = hook
	for _, l := range r.ledgers {
		l.setHook(hook)
	}
}

// State returns the ledgers in address order.
func (r *Registry) State() []model.LedgerState {
	tokens := r.Tokens()
	out := make([]model.LedgerState, 0, len(tokens))
	for _, addr := range tokens {
		l, err := r.Ledger(addr)
		if err != nil {
			continue
		}
		out = append(out, l.State())
	}
	return out
}

// RegistryFromState rebuilds a registry from serialized ledgers.
func RegistryFromState(states []model.LedgerState) (*Registry, error) {
	r := NewRegistry()
	for _, state := range states {
		l, err := LedgerFromState(state)
		if err != nil {
			return nil, err
		}
		if _, ok := r.ledgers[l.Address()]; ok {
			return nil, fmt.Errorf("token %s listed twice", l.Address().Hex())
		}
		r.ledgers[l.Address()] = l
	}
	return r, nil
}
