package model

import "encoding/json"

// Call is one scripted operation replayed against the engine.
type Call struct {
	Block  uint64          `json:"block"`
	Caller string          `json:"caller"`
	Op     string          `json:"op"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// CallError records a failed call from a script.
type CallError struct {
	Line   int    `json:"line"`
	Block  uint64 `json:"block"`
	Caller string `json:"caller"`
	Op     string `json:"op"`
	Error  string `json:"error"`
}
