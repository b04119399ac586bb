package model

import "encoding/json"

// EventFact is the projection of a RawEvent the aggregation engine works on.
type EventFact struct {
	Day           string // YYYY-MM-DD, UTC
	Network       string
	Type          EventType
	TokenID       *int64
	TokenDecimals *int16
	AmountNorm    *float64
	Relayer       *string
	Metadata      json.RawMessage
}

// DailyFlow holds per-day deposit/withdrawal volume for one token.
// Rows below the cohort threshold are never materialized.
type DailyFlow struct {
	Day               string  `json:"day"`
	Network           string  `json:"network"`
	TokenID           int64   `json:"token_id"`
	TotalDeposits     float64 `json:"total_deposits"`
	TotalWithdrawals  float64 `json:"total_withdrawals"`
	NetFlow           float64 `json:"net_flow"`
	DepositTxCount    int64   `json:"deposit_tx_count"`
	WithdrawalTxCount int64   `json:"withdrawal_tx_count"`
}

// RelayerStatsDaily holds per-day relayer concentration metrics.
type RelayerStatsDaily struct {
	Day            string  `json:"day"`
	Network        string  `json:"network"`
	ActiveRelayers int64   `json:"active_relayers"`
	Top5Share      float64 `json:"top5_share"`
	HHI            float64 `json:"hhi"`
	TotalTxs       int64   `json:"total_txs"`
}

// RelayerFeeRevenueDaily holds per-day fee revenue for one relayer and token.
type RelayerFeeRevenueDaily struct {
	Day      string  `json:"day"`
	Network  string  `json:"network"`
	Relayer  string  `json:"relayer"`
	TokenID  int64   `json:"token_id"`
	TotalFees float64 `json:"total_fees"`
	AvgFee   float64 `json:"avg_fee"`
	TxCount  int64   `json:"tx_count"`
}

// DailyTokenDiversity counts distinct tokens seen per day and network.
type DailyTokenDiversity struct {
	Day        string `json:"day"`
	Network    string `json:"network"`
	TokenCount int64  `json:"token_count"`
}
