package indexer

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 106, 3)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	want := []BlockRange{{100, 102}, {103, 105}, {106, 106}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}

	got, err = SplitRange(7, 7, 1000)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if !reflect.DeepEqual(got, []BlockRange{{7, 7}}) {
		t.Fatalf("single block: %+v", got)
	}

	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}

func TestBlockRangeHalve(t *testing.T) {
	left, right, ok := BlockRange{From: 10, To: 15}.Halve()
	if !ok || left != (BlockRange{10, 12}) || right != (BlockRange{13, 15}) {
		t.Fatalf("halve even: %v %+v %+v", ok, left, right)
	}
	if left.Len()+right.Len() != 6 {
		t.Fatalf("halves lost blocks")
	}

	left, right, ok = BlockRange{From: 10, To: 11}.Halve()
	if !ok || left != (BlockRange{10, 10}) || right != (BlockRange{11, 11}) {
		t.Fatalf("halve pair: %v %+v %+v", ok, left, right)
	}

	if _, _, ok := (BlockRange{From: 5, To: 5}).Halve(); ok {
		t.Fatalf("single block must not split")
	}
}

func TestRangeTooLarge(t *testing.T) {
	cases := map[string]bool{
		"query returned more than 10000 results": true,
		"eth_getLogs block range too large":      true,
		"Log response size exceeded":             true,
		"connection refused":                     false,
	}
	for msg, want := range cases {
		if got := rangeTooLarge(errors.New(msg)); got != want {
			t.Fatalf("%q: got %v", msg, got)
		}
	}
	if rangeTooLarge(nil) {
		t.Fatalf("nil error is not a range error")
	}
}

func TestRetryPolicy(t *testing.T) {
	ctx := context.Background()
	flaky := errors.New("rpc unavailable")
	fatal := errors.New("fatal")

	calls := 0
	err := retryPolicy{maxRetries: 3, baseDelay: time.Millisecond}.do(ctx, func(context.Context) error {
		calls++
		if calls < 3 {
			return flaky
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third attempt, got %v after %d", err, calls)
	}

	calls = 0
	err = retryPolicy{maxRetries: 2, baseDelay: time.Millisecond}.do(ctx, func(context.Context) error {
		calls++
		return flaky
	})
	if !errors.Is(err, flaky) || calls != 3 {
		t.Fatalf("expected 3 attempts, got %d (%v)", calls, err)
	}

	calls = 0
	policy := retryPolicy{maxRetries: 5, baseDelay: time.Millisecond, permanent: func(err error) bool { return errors.Is(err, fatal) }}
	err = policy.do(ctx, func(context.Context) error {
		calls++
		return fatal
	})
	if !errors.Is(err, fatal) || calls != 1 {
		t.Fatalf("permanent error retried: %d", calls)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	calls = 0
	err = retryPolicy{maxRetries: 5, baseDelay: time.Hour}.do(cancelled, func(context.Context) error {
		calls++
		return flaky
	})
	if !errors.Is(err, context.Canceled) || calls != 1 {
		t.Fatalf("cancelled context: %v after %d", err, calls)
	}
}
