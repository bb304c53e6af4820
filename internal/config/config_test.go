package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func indexFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("index", pflag.ContinueOnError)
	fs.String("rpc", "", "")
	fs.Uint64("from", 0, "")
	fs.Uint64("to", 0, "")
	fs.StringSlice("address", nil, "")
	fs.StringSlice("topic0", nil, "")
	fs.Uint64("batch-size", 2000, "")
	fs.Duration("retry-backoff", 500*time.Millisecond, "")
	fs.String("log-level", "info", "")
	return fs
}

func TestLoadIndexPrecedence(t *testing.T) {
	t.Setenv("SMARTPOOL_BATCH_SIZE", "25")
	t.Setenv("SMARTPOOL_TOPIC0", "LOG_JOIN, LOG_EXIT")
	t.Setenv("SMARTPOOL_LOG_LEVEL", "warn")

	fs := indexFlags()
	require.NoError(t, fs.Parse([]string{
		"--rpc=http://localhost:8545",
		"--from=10",
		"--address=0x1111111111111111111111111111111111111111,0x2222222222222222222222222222222222222222",
		"--log-level=debug",
	}))

	cfg, err := LoadIndex("", fs)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:8545", cfg.RPCURL)
	require.Equal(t, uint64(10), cfg.FromBlock)
	require.Len(t, cfg.Addresses, 2)
	require.Equal(t, []string{"LOG_JOIN", "LOG_EXIT"}, cfg.Topic0)
	require.Equal(t, uint64(25), cfg.BatchSize, "env beats defaults")
	require.Equal(t, "debug", cfg.LogLevel, "flags beat env")
	require.True(t, cfg.CheckpointEnabled)
	require.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
	require.Equal(t, 5, cfg.MaxRetries)
}

func TestLoadApplyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smartpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chain-id: 56\nin: calls.jsonl\nstop-on-error: true\npool: \"0x5000000000000000000000000000000000000005\"\n"), 0o644))

	fs := pflag.NewFlagSet("apply", pflag.ContinueOnError)
	fs.Uint64("chain-id", 1, "")
	fs.String("in", "", "")
	require.NoError(t, fs.Parse([]string{"--chain-id=97"}))

	cfg, err := LoadApply(path, fs)
	require.NoError(t, err)
	require.Equal(t, uint64(97), cfg.ChainID)
	require.Equal(t, "calls.jsonl", cfg.In)
	require.True(t, cfg.StopOnError)
	require.Equal(t, "0x5000000000000000000000000000000000000005", cfg.Pool)
	require.Equal(t, DefaultUnderlyingAddress, cfg.Underlying)
	require.Equal(t, "default", cfg.StateName)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := LoadInspect(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}
