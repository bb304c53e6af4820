package model

// PoolRecord is the registration record of a smart pool.
type PoolRecord struct {
	Address       string `json:"address"`
	Underlying    string `json:"underlying"`
	Controller    string `json:"controller"`
	SwapFeeSetter string `json:"swap_fee_setter"`
	TokenBinder   string `json:"token_binder"`
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Cap           string `json:"cap,omitempty"`
}
