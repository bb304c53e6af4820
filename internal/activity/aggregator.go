// Package activity rolls pool events up into per-pool block windows.
package activity

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"smartpool/internal/model"
)

// Sink receives closed windows.
type Sink func(ctx context.Context, windows []model.ActivityWindow) error

// Config controls aggregation behavior.
type Config struct {
	WindowBlocks uint64
	BatchSize    int
	// FromBlock skips events before this block.
	FromBlock uint64
}

// Summary counts what a run saw.
type Summary struct {
	Total   int
	Skipped int
	Failed  int
	Windows int
}

// Aggregator folds an event stream into windows. Events for one pool are
// expected in block order; a window closes when the pool's next event falls
// into a later window.
type Aggregator struct {
	cfg          Config
	logger       *zap.Logger
	accumulators map[string]*Accumulator
}

func NewAggregator(cfg Config, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		cfg:          cfg,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run reads JSONL events from r and hands closed windows to sink in batches.
func (a *Aggregator) Run(ctx context.Context, r io.Reader, sink Sink) (Summary, error) {
	var sum Summary
	if sink == nil {
		return sum, fmt.Errorf("sink is nil")
	}
	if a.cfg.WindowBlocks == 0 {
		return sum, fmt.Errorf("window blocks must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.ActivityWindow, 0, a.cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := sink(ctx, batch); err != nil {
			return err
		}
		sum.Windows += len(batch)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		sum.Total++

		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			sum.Failed++
			a.logger.Warn("decode event", zap.Error(err))
			continue
		}
		if rec.BlockNumber < a.cfg.FromBlock || rec.Address == "" {
			sum.Skipped++
			continue
		}

		start := windowStart(rec.BlockNumber, a.cfg.WindowBlocks)
		key := strings.ToLower(rec.Address)
		acc := a.accumulators[key]
		if acc != nil && acc.WindowStart != start {
			batch = append(batch, acc.Window())
			acc = nil
			if len(batch) >= a.cfg.BatchSize {
				if err := flush(); err != nil {
					return sum, err
				}
			}
		}
		if acc == nil {
			acc = newAccumulator(rec, start, start+a.cfg.WindowBlocks-1)
			a.accumulators[key] = acc
		}

		if err := acc.add(rec); err != nil {
			sum.Failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", rec.Address), zap.String("event", rec.EventName))
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return sum, fmt.Errorf("scan input: %w", err)
	}

	keys := make([]string, 0, len(a.accumulators))
	for k := range a.accumulators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		batch = append(batch, a.accumulators[k].Window())
	}
	a.accumulators = make(map[string]*Accumulator)

	if err := flush(); err != nil {
		return sum, err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", sum.Total),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
		zap.Int("windows", sum.Windows),
	)
	return sum, nil
}

func windowStart(block, size uint64) uint64 {
	return block - (block % size)
}
