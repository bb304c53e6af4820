package model

// Event names. The LOG_* names match the underlying pool's on-chain events so
// engine output and indexed chain logs share one schema.
const (
	EventJoin            = "LOG_JOIN"
	EventExit            = "LOG_EXIT"
	EventSwap            = "LOG_SWAP"
	EventInitialized     = "PoolInitialized"
	EventRoleChanged     = "RoleChanged"
	EventSwapFeeSet      = "SwapFeeSet"
	EventPublicSwapSet   = "PublicSwapSet"
	EventCapSet          = "CapSet"
	EventTokenBound      = "TokenBound"
	EventTokenRebound    = "TokenRebound"
	EventTokenUnbound    = "TokenUnbound"
	EventWeightsSchedule = "WeightsUpdateScheduled"
	EventWeightsPoked    = "WeightsPoked"
	EventTransfer        = "Transfer"
)

// Role names used in RoleChanged events.
const (
	RoleController    = "controller"
	RoleSwapFeeSetter = "swap_fee_setter"
	RoleTokenBinder   = "token_binder"
)

// Event is an emitted pool event, either produced by the engine or decoded
// from chain logs.
type Event struct {
	Seq         uint64      `json:"seq"`
	ChainID     uint64      `json:"chain_id,omitempty"`
	BlockNumber uint64      `json:"block_number"`
	TxHash      string      `json:"tx_hash,omitempty"`
	LogIndex    uint64      `json:"log_index"`
	Address     string      `json:"address"`
	EventName   string      `json:"event_name"`
	Timestamp   uint64      `json:"timestamp,omitempty"`
	Decoded     interface{} `json:"decoded"`
	Raw         *RawLogRef  `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}
