package model

// JoinEventData is a LOG_JOIN payload. Amounts are decimal strings.
type JoinEventData struct {
	Caller   string `json:"caller"`
	TokenIn  string `json:"token_in"`
	AmountIn string `json:"amount_in"`
}

// ExitEventData is a LOG_EXIT payload.
type ExitEventData struct {
	Caller    string `json:"caller"`
	TokenOut  string `json:"token_out"`
	AmountOut string `json:"amount_out"`
}

// SwapEventData is a LOG_SWAP payload.
type SwapEventData struct {
	Caller    string `json:"caller"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

type InitializedEventData struct {
	Caller        string `json:"caller"`
	Underlying    string `json:"underlying"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	InitialSupply string `json:"initial_supply"`
}

type RoleChangedEventData struct {
	Role     string `json:"role"`
	Caller   string `json:"caller"`
	Previous string `json:"previous"`
	Current  string `json:"current"`
}

type SwapFeeEventData struct {
	Caller  string `json:"caller"`
	SwapFee string `json:"swap_fee"`
}

type PublicSwapEventData struct {
	Caller  string `json:"caller"`
	Enabled bool   `json:"enabled"`
}

type CapEventData struct {
	Caller string `json:"caller"`
	Cap    string `json:"cap"`
}

// BindEventData covers TokenBound and TokenRebound.
type BindEventData struct {
	Caller  string `json:"caller"`
	Token   string `json:"token"`
	Balance string `json:"balance"`
	Weight  string `json:"denorm"`
}

type UnbindEventData struct {
	Caller string `json:"caller"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
}

type WeightsScheduleEventData struct {
	Caller     string        `json:"caller"`
	StartBlock uint64        `json:"start_block"`
	EndBlock   uint64        `json:"end_block"`
	NewWeights []TokenWeight `json:"new_weights"`
}

type WeightsPokedEventData struct {
	Block   uint64        `json:"block"`
	Weights []TokenWeight `json:"weights"`
}

type TransferEventData struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}
