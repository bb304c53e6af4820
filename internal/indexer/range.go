package indexer

import (
	"fmt"
	"strings"
)

// BlockRange is an inclusive block span queried with one FilterLogs call.
type BlockRange struct {
	From uint64
	To   uint64
}

func (r BlockRange) Len() uint64 {
	return r.To - r.From + 1
}

// Halve splits r into two adjacent spans. A single block cannot be split.
func (r BlockRange) Halve() (BlockRange, BlockRange, bool) {
	if r.From >= r.To {
		return r, BlockRange{}, false
	}
	mid := r.From + (r.To-r.From)/2
	return BlockRange{From: r.From, To: mid}, BlockRange{From: mid + 1, To: r.To}, true
}

// SplitRange cuts [from, to] into consecutive spans of at most batchSize blocks.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block %d is before from block %d", to, from)
	}

	ranges := make([]BlockRange, 0, (to-from)/batchSize+1)
	for start := from; ; start += batchSize {
		end := to
		if to-start >= batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			return ranges, nil
		}
	}
}

// Messages nodes use when a log query spans too many blocks or results.
var rangeLimitHints = []string{
	"query returned more than",
	"block range",
	"too many",
	"limit exceeded",
	"response size",
}

// rangeTooLarge reports whether err asks for a smaller log query. Such errors
// are not retried as is; the runner halves the span instead.
func rangeTooLarge(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range rangeLimitHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
