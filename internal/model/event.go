package model

import (
	"encoding/json"
	"math/big"
)

// EventType classifies a raw event into the domain taxonomy.
type EventType string

const (
	EventDeposit        EventType = "deposit"
	EventWithdrawal     EventType = "withdrawal"
	EventRelayerPayment EventType = "relayer_payment"
	EventOther          EventType = "other"
)

// DecodedEvent is the output of one decode strategy for one log sub-entry.
// Amount may be nil when the strategy could not recover it; the ingester
// stores "0" and marks the event partial in that case.
type DecodedEvent struct {
	EventName string
	Type      EventType
	SubIndex  uint32
	Token     string // checksummed address, empty when unknown
	Amount    *big.Int
	Fee       *big.Int
	From      string
	To        string
	Relayer   string
	Partial   bool
}

// RawEvent is the persisted form of a decoded log entry. Immutable once
// written; uniqueness is (network, tx_hash, log_index, sub_index).
type RawEvent struct {
	Network      string          `json:"network"`
	TxHash       string          `json:"tx_hash"`
	LogIndex     uint64          `json:"log_index"`
	SubIndex     uint32          `json:"sub_index"`
	BlockNumber  uint64          `json:"block_number"`
	BlockTime    uint64          `json:"block_time"`
	ContractRole string          `json:"contract_role"`
	EventName    string          `json:"event_name"`
	Type         EventType       `json:"type"`
	TokenID      *int64          `json:"token_id,omitempty"`
	AmountRaw    string          `json:"amount_raw"`
	AmountNorm   *float64        `json:"amount_norm,omitempty"`
	Relayer      *string         `json:"relayer,omitempty"`
	FromAddr     *string         `json:"from_addr,omitempty"`
	ToAddr       *string         `json:"to_addr,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// EventMetadata is the shape of the RawEvent metadata blob.
type EventMetadata struct {
	Fee     string `json:"fee,omitempty"`
	Partial bool   `json:"partial,omitempty"`
}
