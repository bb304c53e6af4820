package config

import "github.com/spf13/pflag"

// InspectConfig holds configuration for reading an underlying pool from chain.
type InspectConfig struct {
	Common
	RPCURL string
	Pool   string
	Block  uint64
	Out    string
}

func LoadInspect(cfgFile string, flags *pflag.FlagSet) (InspectConfig, error) {
	v, err := newViper(cfgFile, flags, nil)
	if err != nil {
		return InspectConfig{}, err
	}

	return InspectConfig{
		Common: common(v),
		RPCURL: v.GetString("rpc"),
		Pool:   v.GetString("pool"),
		Block:  v.GetUint64("block"),
		Out:    v.GetString("out"),
	}, nil
}
