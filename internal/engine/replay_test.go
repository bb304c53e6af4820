package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"smartpool/internal/bmath"
	"smartpool/internal/model"
	"smartpool/internal/smartpool"
)

type memSink struct {
	batches [][]model.Event
}

func (m *memSink) PutEventBatch(_ context.Context, events []model.Event) error {
	m.batches = append(m.batches, events)
	return nil
}

func script(t *testing.T, calls []model.Call, extra ...string) string {
	t.Helper()
	var buf bytes.Buffer
	for _, c := range calls {
		line, err := json.Marshal(c)
		require.NoError(t, err)
		buf.Write(line)
		buf.WriteByte('\n')
	}
	for _, line := range extra {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.String()
}

func TestReplayReportsFailuresAndContinues(t *testing.T) {
	e := newTestEngine()
	sink := &memSink{}
	var failures []model.CallError

	input := script(t, setupScript(),
		"",
		"# comment",
		`{"block":3,"caller":"`+aliceHex+`","op":"set_controller","args":{"address":"`+aliceHex+`"}}`,
		`not json`,
		`{"block":3,"caller":"`+aliceHex+`","op":"join_pool","args":{"pool_amount_out":"`+bmath.Ether(1).String()+`"}}`,
	)

	res, err := e.Replay(context.Background(), strings.NewReader(input), ReplayOptions{
		Sink:    sink,
		OnError: func(ce model.CallError) error { failures = append(failures, ce); return nil },
	})
	require.NoError(t, err)
	require.Equal(t, len(setupScript())+3, res.Calls)
	require.Equal(t, 2, res.Failed)
	require.Equal(t, len(setupScript())+1, res.Applied)
	require.Equal(t, 3+2, res.Events)

	require.Len(t, failures, 2)
	require.Equal(t, "set_controller", failures[0].Op)
	require.Contains(t, failures[0].Error, smartpool.ErrNotController.Error())
	require.Equal(t, len(setupScript())+4, failures[1].Line)

	total := 0
	for _, b := range sink.batches {
		total += len(b)
	}
	require.Equal(t, res.Events, total)
}

func TestReplayStopOnError(t *testing.T) {
	e := newTestEngine()
	input := script(t, []model.Call{call(1, adminHex, "unknown_op", nil), call(1, adminHex, "register_token", map[string]string{"address": tokenAHex})})

	res, err := e.Replay(context.Background(), strings.NewReader(input), ReplayOptions{StopOnError: true})
	require.ErrorIs(t, err, ErrUnknownOp)
	require.Equal(t, 1, res.Calls)
	require.Equal(t, 0, res.Applied)
}
