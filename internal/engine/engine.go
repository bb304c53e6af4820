// Package engine drives a smart pool, its underlying pool and the asset
// ledgers from scripted calls, and emits the resulting events in order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"smartpool/internal/bpool"
	"smartpool/internal/model"
	"smartpool/internal/smartpool"
	"smartpool/internal/token"
)

var (
	ErrUnknownOp       = errors.New("engine: unknown operation")
	ErrBadArgs         = errors.New("engine: bad arguments")
	ErrMissingArg      = errors.New("engine: missing argument")
	ErrBadAddress      = errors.New("engine: bad address")
	ErrBlockRegression = errors.New("engine: block number went backwards")
	ErrAlreadySeeded   = errors.New("engine: pool already in use")
)

// Config identifies the contracts the engine simulates.
type Config struct {
	ChainID    uint64
	Pool       common.Address
	Underlying common.Address
}

// Engine owns the simulated state. Apply is not safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	tokens     *token.Registry
	underlying *bpool.Pool
	pool       *smartpool.Pool

	seq   uint64
	block uint64
}

// New returns an engine with no registered tokens and an uninitialized smart
// pool that controls an empty underlying pool.
func New(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens := token.NewRegistry()
	return &Engine{
		cfg:        cfg,
		logger:     logger,
		tokens:     tokens,
		underlying: bpool.New(cfg.Underlying, cfg.Pool, tokens, logger.Named("bpool")),
		pool:       smartpool.New(cfg.Pool, tokens, logger.Named("smartpool")),
	}
}

func (e *Engine) Pool() *smartpool.Pool {
	return e.pool
}

func (e *Engine) UnderlyingPool() *bpool.Pool {
	return e.underlying
}

func (e *Engine) Tokens() *token.Registry {
	return e.tokens
}

// Seq returns the sequence number of the last emitted event.
func (e *Engine) Seq() uint64 {
	return e.seq
}

func (e *Engine) Block() uint64 {
	return e.block
}

// Ops lists the operation names Apply accepts.
func Ops() []string {
	out := make([]string, 0, len(handlers))
	for op := range handlers {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

// Apply executes one call and returns the events it produced. A failed call
// produces no events; partial effects of a call that failed midway are kept.
func (e *Engine) Apply(ctx context.Context, call model.Call) ([]model.Event, error) {
	if call.Block < e.block {
		return nil, fmt.Errorf("%w: %d < %d", ErrBlockRegression, call.Block, e.block)
	}
	caller, err := address(call.Caller, "caller")
	if err != nil {
		return nil, err
	}
	op := strings.ToLower(strings.TrimSpace(call.Op))
	handler, ok := handlers[op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, call.Op)
	}
	e.block = call.Block

	if err := handler(ctx, e, caller, call); err != nil {
		e.discardEvents()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e.collect(call), nil
}

// collect drains pending events from both pools and stamps them.
func (e *Engine) collect(call model.Call) []model.Event {
	events := append(e.pool.DrainEvents(), e.underlying.DrainEvents()...)
	for i := range events {
		e.seq++
		events[i].Seq = e.seq
		events[i].ChainID = e.cfg.ChainID
		events[i].BlockNumber = call.Block
		events[i].LogIndex = uint64(i)
	}
	if len(events) > 0 {
		e.logger.Debug("call applied", zap.String("op", call.Op), zap.Uint64("block", call.Block), zap.Int("events", len(events)))
	}
	return events
}

func (e *Engine) discardEvents() {
	e.pool.DrainEvents()
	e.underlying.DrainEvents()
}
