package model

// ActivityWindow summarizes pool events over a block window.
// TokensIn and TokensOut map token address to a decimal amount.
type ActivityWindow struct {
	ChainID       uint64            `json:"chain_id"`
	Address       string            `json:"address"`
	WindowStart   uint64            `json:"window_start_block"`
	WindowEnd     uint64            `json:"window_end_block"`
	FirstBlock    uint64            `json:"first_block"`
	LastBlock     uint64            `json:"last_block"`
	SwapCount     uint64            `json:"swap_count"`
	JoinCount     uint64            `json:"join_count"`
	ExitCount     uint64            `json:"exit_count"`
	TransferCount uint64            `json:"transfer_count"`
	TokensIn      map[string]string `json:"tokens_in"`
	TokensOut     map[string]string `json:"tokens_out"`
}
