package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"smartpool/internal/model"
	"smartpool/internal/onchain"
	"smartpool/internal/storage"
)

// LogSource is the chain access the runner needs; chain.Client satisfies it.
type LogSource interface {
	ChainID(ctx context.Context) (uint64, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock    uint64
	ToBlock      uint64
	Addresses    []common.Address
	Topic0       []common.Hash
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// Runner streams pool logs from the chain, decodes them and writes the events
// to storage. Undecodable logs go to the error sink and do not stop the run.
type Runner struct {
	cfg        RunConfig
	chain      LogSource
	decoder    *onchain.Decoder
	storage    storage.Storage
	checkpoint Checkpointer
	onError    func(model.DecodeError)
	logger     *zap.Logger
	seen       map[string]struct{}
}

func NewRunner(
	cfg RunConfig,
	source LogSource,
	decoder *onchain.Decoder,
	sink storage.Storage,
	checkpoint Checkpointer,
	onError func(model.DecodeError),
	logger *zap.Logger,
) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		chain:      source,
		decoder:    decoder,
		storage:    sink,
		checkpoint: checkpoint,
		onError:    onError,
		logger:     logger,
		seen:       make(map[string]struct{}),
	}
}

// Run executes the indexing loop and returns the number of events written.
func (r *Runner) Run(ctx context.Context) (int, error) {
	if r.chain == nil {
		return 0, fmt.Errorf("chain client is nil")
	}
	if r.decoder == nil {
		return 0, fmt.Errorf("decoder is nil")
	}
	if r.storage == nil {
		return 0, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return 0, fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Addresses) == 0 {
		return 0, fmt.Errorf("at least one address is required")
	}

	chainID, err := r.chain.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("get chain id: %w", err)
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return 0, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return 0, err
		}
		if ok && last >= from {
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return 0, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	topic0 := r.cfg.Topic0
	if len(topic0) == 0 {
		topic0 = r.decoder.Topics()
	}

	written := 0
	pending := ranges
	for len(pending) > 0 {
		blockRange := pending[0]
		pending = pending[1:]

		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To, topic0)
		if err != nil {
			left, right, ok := blockRange.Halve()
			if ok && rangeTooLarge(err) {
				r.logger.Warn("log query too large, splitting",
					zap.Uint64("from", blockRange.From),
					zap.Uint64("to", blockRange.To),
					zap.Uint64("blocks", blockRange.Len()),
				)
				pending = append([]BlockRange{left, right}, pending...)
				continue
			}
			return written, fmt.Errorf("filter logs: %w", err)
		}

		events := make([]model.Event, 0, len(logs))
		for _, log := range logs {
			if log.Removed {
				indexedLogsCounter.WithLabelValues("removed").Inc()
				continue
			}
			if r.isDuplicate(log) {
				indexedLogsCounter.WithLabelValues("duplicate").Inc()
				continue
			}
			if !r.decoder.CanDecode(log) {
				indexedLogsCounter.WithLabelValues("skipped").Inc()
				continue
			}

			ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return written, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			event, err := r.decoder.Decode(chainID, log, ts)
			if err != nil {
				indexedLogsCounter.WithLabelValues("failed").Inc()
				r.logger.Debug("decode failed", zap.String("tx", log.TxHash.Hex()), zap.Uint("index", log.Index), zap.Error(err))
				if r.onError != nil {
					r.onError(decodeErrorFromLog(chainID, log, err))
				}
				continue
			}
			indexedLogsCounter.WithLabelValues("decoded").Inc()
			events = append(events, event)
		}

		if err := r.storage.PutEventBatch(ctx, events); err != nil {
			return written, fmt.Errorf("store events: %w", err)
		}
		written += len(events)

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(ctx, blockRange.To); err != nil {
				return written, err
			}
		}

		r.logger.Info("batch complete", zap.Int("events", len(events)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return written, nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, topic0 []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	policy := r.retryPolicy()
	policy.permanent = rangeTooLarge
	err := policy.do(ctx, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, r.cfg.Addresses, topic0)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := r.retryPolicy().do(ctx, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) retryPolicy() retryPolicy {
	return retryPolicy{maxRetries: r.cfg.MaxRetries, baseDelay: r.cfg.RetryBackoff}
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
