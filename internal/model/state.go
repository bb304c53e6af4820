package model

// LedgerState is the serialized form of a fungible token ledger.
type LedgerState struct {
	Address     string            `json:"address"`
	Name        string            `json:"name,omitempty"`
	Symbol      string            `json:"symbol,omitempty"`
	Decimals    uint8             `json:"decimals"`
	TotalSupply string            `json:"total_supply"`
	Balances    map[string]string `json:"balances"`
	Allowances  []AllowanceState  `json:"allowances,omitempty"`
}

// AllowanceState is one owner/spender allowance.
type AllowanceState struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// BoundToken is a token registered with the underlying pool.
type BoundToken struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Weight  string `json:"denorm"`
}

// UnderlyingState captures the underlying pool configuration and bindings.
type UnderlyingState struct {
	Address     string       `json:"address"`
	Controller  string       `json:"controller"`
	SwapFee     string       `json:"swap_fee"`
	PublicSwap  bool         `json:"public_swap"`
	TotalWeight string       `json:"total_weight,omitempty"`
	Tokens      []BoundToken `json:"tokens"`
}

// WeightSchedule is a pending gradual weight update.
type WeightSchedule struct {
	StartBlock   uint64        `json:"start_block"`
	EndBlock     uint64        `json:"end_block"`
	StartWeights []TokenWeight `json:"start_weights"`
	NewWeights   []TokenWeight `json:"new_weights"`
}

// TokenWeight pairs a token with a denormalized weight.
type TokenWeight struct {
	Token  string `json:"token"`
	Weight string `json:"denorm"`
}

// SmartPoolState is the persisted state of the smart pool itself.
type SmartPoolState struct {
	Record   PoolRecord      `json:"record"`
	Shares   LedgerState     `json:"shares"`
	Schedule *WeightSchedule `json:"schedule,omitempty"`
}

// Snapshot is the full engine state: asset ledgers, underlying pool, smart pool.
type Snapshot struct {
	Seq        uint64          `json:"seq"`
	Block      uint64          `json:"block"`
	Tokens     []LedgerState   `json:"tokens"`
	Underlying UnderlyingState `json:"underlying"`
	Pool       SmartPoolState  `json:"pool"`
	UpdatedAt  string          `json:"updated_at,omitempty"`
}

// TokenMeta is the ERC-20 metadata of a bound token as read from chain.
// Seeding registers one ledger per entry; Name and Symbol may be empty for
// tokens that expose neither the string nor the bytes32 accessors.
type TokenMeta struct {
	Address  string `json:"address"`
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals uint8  `json:"decimals"`
}

// PoolState is an underlying pool read from chain, with token metadata.
type PoolState struct {
	ChainID     uint64          `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	Underlying  UnderlyingState `json:"underlying"`
	TokenMeta   []TokenMeta     `json:"token_meta"`
}
