package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"smartpool/internal/model"
	"smartpool/internal/storage"
)

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Calls   int
	Applied int
	Failed  int
	Events  int
}

// ReplayOptions controls how Replay handles sinks and failures.
type ReplayOptions struct {
	Sink        storage.Storage
	OnError     func(model.CallError) error
	StopOnError bool
}

// Replay applies JSON-lines calls from r in order. Events of each applied call
// are written to the sink as one batch. Failed calls are reported through
// OnError and skipped unless StopOnError is set.
func (e *Engine) Replay(ctx context.Context, r io.Reader, opts ReplayOptions) (ReplayResult, error) {
	var res ReplayResult

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		res.Calls++

		var call model.Call
		err := json.Unmarshal(line, &call)
		var events []model.Event
		if err == nil {
			events, err = e.Apply(ctx, call)
		} else {
			err = fmt.Errorf("%w: line %d: %v", ErrBadArgs, lineNo, err)
		}
		if err != nil {
			res.Failed++
			e.logger.Debug("call failed", zap.Int("line", lineNo), zap.String("op", call.Op), zap.Error(err))
			if opts.OnError != nil {
				report := model.CallError{Line: lineNo, Block: call.Block, Caller: call.Caller, Op: call.Op, Error: err.Error()}
				if werr := opts.OnError(report); werr != nil {
					return res, fmt.Errorf("report error: %w", werr)
				}
			}
			if opts.StopOnError {
				return res, fmt.Errorf("line %d: %w", lineNo, err)
			}
			continue
		}

		res.Applied++
		res.Events += len(events)
		if opts.Sink != nil && len(events) > 0 {
			if err := opts.Sink.PutEventBatch(ctx, events); err != nil {
				return res, fmt.Errorf("store events: %w", err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return res, fmt.Errorf("scan input: %w", err)
	}
	return res, nil
}
