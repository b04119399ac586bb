package decode

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"shieldscope/internal/model"
)

// candidateWordOffsets are the 32-byte word positions where old-generation
// commitment logs place the token address field.
var candidateWordOffsets = []int{4, 5, 7}

// Legacy is the fallback strategy for known non-standard log encodings. It
// scans the payload for an address-shaped word and emits a partial deposit
// event; amounts are not recoverable and are recorded as zero.
type Legacy struct {
	topics map[common.Hash]struct{}
}

// NewLegacy builds the fallback strategy for the given topic0 signatures.
func NewLegacy(topics []common.Hash) *Legacy {
	set := make(map[common.Hash]struct{}, len(topics))
	for _, topic := range topics {
		set[topic] = struct{}{}
	}
	return &Legacy{topics: set}
}

func (l *Legacy) Name() string { return "legacy" }

// CanDecode limits the fallback to the registered legacy signatures; anything
// else must be skipped, not guessed at.
func (l *Legacy) CanDecode(topic0 common.Hash) bool {
	_, ok := l.topics[topic0]
	return ok
}

// Decode extracts the token address from a legacy payload, trying the known
// candidate offsets first and a full linear scan second.
func (l *Legacy) Decode(log types.Log) ([]model.DecodedEvent, error) {
	token, ok := scanTokenAddress(log.Data)
	if !ok {
		return nil, fmt.Errorf("no address-shaped word in %d byte payload", len(log.Data))
	}

	return []model.DecodedEvent{{
		EventName: "LegacyShield",
		Type:      model.EventDeposit,
		Token:     token.Hex(),
		Partial:   true,
	}}, nil
}

func scanTokenAddress(data []byte) (common.Address, bool) {
	for _, offset := range candidateWordOffsets {
		if addr, ok := addressAtWord(data, offset); ok {
			return addr, true
		}
	}
	for offset := 0; offset*32 < len(data); offset++ {
		if addr, ok := addressAtWord(data, offset); ok {
			return addr, true
		}
	}
	return common.Address{}, false
}

// addressAtWord reports whether the 32-byte word at the given word offset
// holds a 20-byte address right-padded with zeros to word width, the layout
// the old-generation contracts used for packed token fields.
func addressAtWord(data []byte, wordOffset int) (common.Address, bool) {
	start := wordOffset * 32
	if start < 0 || start+32 > len(data) {
		return common.Address{}, false
	}
	word := data[start : start+32]
	for _, b := range word[20:] {
		if b != 0 {
			return common.Address{}, false
		}
	}
	addr := common.BytesToAddress(word[:20])
	if addr == (common.Address{}) {
		return common.Address{}, false
	}
	return addr, true
}
