package config

import "github.com/spf13/pflag"

// Default contract addresses for replays that do not name their own.
const (
	DefaultPoolAddress       = "0x0000000000000000000000000000000000005000"
	DefaultUnderlyingAddress = "0x000000000000000000000000000000000000b001"
)

// ApplyConfig holds configuration for replaying a call script.
type ApplyConfig struct {
	Common
	In          string
	Out         string
	Errors      string
	Seed        string
	Snapshot    string
	Resume      bool
	ChainID     uint64
	Pool        string
	Underlying  string
	StopOnError bool
	PGDSN       string
	PGMigrate   bool
	StateName   string
}

// LoadApply merges config file, environment variables, and flags into ApplyConfig.
func LoadApply(cfgFile string, flags *pflag.FlagSet) (ApplyConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":           "./data/events.jsonl",
		"errors":        "./data/call_errors.jsonl",
		"chain-id":      uint64(1),
		"pool":          DefaultPoolAddress,
		"underlying":    DefaultUnderlyingAddress,
		"stop-on-error": false,
		"pg-migrate":    true,
		"state-name":    "default",
	})
	if err != nil {
		return ApplyConfig{}, err
	}

	return ApplyConfig{
		Common:      common(v),
		In:          v.GetString("in"),
		Out:         v.GetString("out"),
		Errors:      v.GetString("errors"),
		Seed:        v.GetString("seed"),
		Snapshot:    v.GetString("snapshot"),
		Resume:      v.GetBool("resume"),
		ChainID:     v.GetUint64("chain-id"),
		Pool:        v.GetString("pool"),
		Underlying:  v.GetString("underlying"),
		StopOnError: v.GetBool("stop-on-error"),
		PGDSN:       v.GetString("pg-dsn"),
		PGMigrate:   v.GetBool("pg-migrate"),
		StateName:   v.GetString("state-name"),
	}, nil
}
