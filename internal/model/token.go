package model

// Token is cached metadata for a contract address. Symbol and Decimals stay
// nil when the contract does not answer the standard metadata calls; they can
// be backfilled later without touching existing raw events.
type Token struct {
	ID       int64   `json:"id"`
	Network  string  `json:"network"`
	Address  string  `json:"address"`
	Symbol   *string `json:"symbol,omitempty"`
	Decimals *int16  `json:"decimals,omitempty"`
}
