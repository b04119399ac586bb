package decode

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"shieldscope/internal/model"
)

var legacyTopic = common.HexToHash("0x00000000000000000000000000000000000000000000000000000000feedface")

func legacyWord(addr common.Address) []byte {
	word := make([]byte, 32)
	copy(word, addr.Bytes())
	return word
}

func TestLegacyCandidateOffset(t *testing.T) {
	strategy := NewLegacy([]common.Hash{legacyTopic})

	tokenAddr := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	data := make([]byte, 8*32)
	copy(data[4*32:], legacyWord(tokenAddr))

	events, err := strategy.Decode(types.Log{Topics: []common.Hash{legacyTopic}, Data: data})
	if err != nil {
		t.Fatalf("decode legacy: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Token != tokenAddr.Hex() {
		t.Fatalf("token mismatch: %s", events[0].Token)
	}
	if events[0].Type != model.EventDeposit {
		t.Fatalf("type mismatch: %s", events[0].Type)
	}
	if !events[0].Partial {
		t.Fatalf("legacy event should be marked partial")
	}
	if events[0].Amount != nil {
		t.Fatalf("legacy amounts are unrecoverable, got %v", events[0].Amount)
	}
}

func TestLegacyLinearScanFallback(t *testing.T) {
	strategy := NewLegacy([]common.Hash{legacyTopic})

	// Address placed outside every candidate offset.
	tokenAddr := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	data := make([]byte, 3*32)
	copy(data[2*32:], legacyWord(tokenAddr))

	events, err := strategy.Decode(types.Log{Topics: []common.Hash{legacyTopic}, Data: data})
	if err != nil {
		t.Fatalf("decode legacy: %v", err)
	}
	if len(events) != 1 || events[0].Token != tokenAddr.Hex() {
		t.Fatalf("linear scan missed the address: %+v", events)
	}
}

func TestLegacyNoAddressErrors(t *testing.T) {
	strategy := NewLegacy([]common.Hash{legacyTopic})

	data := make([]byte, 2*32)
	for i := range data {
		data[i] = 0xff
	}

	if _, err := strategy.Decode(types.Log{Topics: []common.Hash{legacyTopic}, Data: data}); err == nil {
		t.Fatalf("expected error when no address-shaped word exists")
	}
}

func TestLegacyIgnoresUnregisteredTopics(t *testing.T) {
	strategy := NewLegacy([]common.Hash{legacyTopic})
	if strategy.CanDecode(common.HexToHash("0x01")) {
		t.Fatalf("unregistered topic must not be decodable")
	}
}
