package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"smartpool/internal/model"
)

func readLines(t *testing.T, path string) []model.Event {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var out []model.Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var ev model.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		out = append(out, ev)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestJsonlStorageAppends(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")
	s := NewJsonlStorage(path)

	require.NoError(t, s.PutEventBatch(ctx, nil))
	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "empty batch should not create the file")

	require.NoError(t, s.PutEventBatch(ctx, []model.Event{{Seq: 1, EventName: model.EventJoin}}))
	require.NoError(t, s.PutEventBatch(ctx, []model.Event{{Seq: 2, EventName: model.EventExit}, {Seq: 3, EventName: model.EventTransfer}}))

	events := readLines(t, path)
	require.Len(t, events, 3)
	require.Equal(t, uint64(3), events[2].Seq)
	require.Equal(t, model.EventExit, events[1].EventName)
}

type recordingSink struct {
	got [][]model.Event
	err error
}

func (r *recordingSink) PutEventBatch(_ context.Context, events []model.Event) error {
	r.got = append(r.got, events)
	return r.err
}

func TestFanoutStopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	first := &recordingSink{err: boom}
	second := &recordingSink{}

	err := Fanout{nil, first, second}.PutEventBatch(context.Background(), []model.Event{{Seq: 1}})
	require.ErrorIs(t, err, boom)
	require.Len(t, first.got, 1)
	require.Empty(t, second.got)
}
