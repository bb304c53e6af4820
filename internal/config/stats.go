package config

import "github.com/spf13/pflag"

// StatsConfig holds configuration for rolling events into activity windows.
type StatsConfig struct {
	Common
	In           string
	Out          string
	WindowBlocks uint64
	FromBlock    uint64
	BatchSize    int
	PGDSN        string
	PGMigrate    bool
}

func LoadStats(cfgFile string, flags *pflag.FlagSet) (StatsConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":           "./data/activity.jsonl",
		"window-blocks": uint64(100),
		"batch-size":    1000,
		"pg-migrate":    true,
	})
	if err != nil {
		return StatsConfig{}, err
	}

	return StatsConfig{
		Common:       common(v),
		In:           v.GetString("in"),
		Out:          v.GetString("out"),
		WindowBlocks: v.GetUint64("window-blocks"),
		FromBlock:    v.GetUint64("from"),
		BatchSize:    v.GetInt("batch-size"),
		PGDSN:        v.GetString("pg-dsn"),
		PGMigrate:    v.GetBool("pg-migrate"),
	}, nil
}
