package decode

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"shieldscope/internal/model"
)

// maxSubEntries caps the number of sub-entries decoded from one batched log
// so the sub-index can never alias across logs.
const maxSubEntries = 1024

type tokenData struct {
	TokenType    uint8
	TokenAddress common.Address
	TokenSubID   *big.Int
}

type shieldCommitment struct {
	Npk   [32]byte
	Token tokenData
	Value *big.Int
}

// Structured decodes logs against the registered pool event schemas.
type Structured struct {
	contractABI abi.ABI
	topicToName map[common.Hash]string
	logger      *zap.Logger
}

// NewStructured builds the structured strategy from the pool ABI.
func NewStructured(logger *zap.Logger) (*Structured, error) {
	contractABI, err := PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	topicToName := make(map[common.Hash]string, len(contractABI.Events))
	for name, event := range contractABI.Events {
		topicToName[event.ID] = name
	}

	return &Structured{
		contractABI: contractABI,
		topicToName: topicToName,
		logger:      logger,
	}, nil
}

func (s *Structured) Name() string { return "structured" }

// CanDecode checks whether topic0 belongs to a registered event schema.
func (s *Structured) CanDecode(topic0 common.Hash) bool {
	_, ok := s.topicToName[topic0]
	return ok
}

// Decode unpacks a log against its event schema. Batched Shield logs emit one
// event per commitment with sub-index equal to the commitment's position.
func (s *Structured) Decode(log types.Log) ([]model.DecodedEvent, error) {
	name, ok := s.topicToName[log.Topics[0]]
	if !ok {
		return nil, fmt.Errorf("unregistered topic0: %s", log.Topics[0].Hex())
	}

	switch name {
	case "Shield":
		return s.decodeShield(log)
	case "Unshield":
		return s.decodeUnshield(log)
	case "RelayerPayment":
		return s.decodeRelayerPayment(log)
	default:
		// Structurally valid but carrying nothing the pipeline tracks as
		// flow; keep the event for completeness.
		return []model.DecodedEvent{{
			EventName: name,
			Type:      ClassifyEvent(name),
			Amount:    big.NewInt(0),
		}}, nil
	}
}

func (s *Structured) decodeShield(log types.Log) ([]model.DecodedEvent, error) {
	event := s.contractABI.Events["Shield"]
	out, err := event.Inputs.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack Shield: %w", err)
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("unexpected Shield values: %d", len(out))
	}

	commitments := *abi.ConvertType(out[2], new([]shieldCommitment)).(*[]shieldCommitment)
	fees := *abi.ConvertType(out[3], new([]*big.Int)).(*[]*big.Int)

	if len(commitments) > maxSubEntries {
		s.logger.Warn("shield commitment batch truncated",
			zap.String("tx", log.TxHash.Hex()),
			zap.Uint("log_index", log.Index),
			zap.Int("entries", len(commitments)),
		)
		commitments = commitments[:maxSubEntries]
	}

	events := make([]model.DecodedEvent, 0, len(commitments))
	for i, commitment := range commitments {
		decoded := model.DecodedEvent{
			EventName: "Shield",
			Type:      model.EventDeposit,
			SubIndex:  uint32(i),
			Token:     commitment.Token.TokenAddress.Hex(),
			Amount:    commitment.Value,
		}
		if i < len(fees) && fees[i] != nil && fees[i].Sign() > 0 {
			decoded.Fee = fees[i]
		}
		events = append(events, decoded)
	}
	return events, nil
}

func (s *Structured) decodeUnshield(log types.Log) ([]model.DecodedEvent, error) {
	event := s.contractABI.Events["Unshield"]
	out, err := event.Inputs.Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack Unshield: %w", err)
	}
	if len(out) != 4 {
		return nil, fmt.Errorf("unexpected Unshield values: %d", len(out))
	}

	to := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	token := *abi.ConvertType(out[1], new(tokenData)).(*tokenData)
	amount := *abi.ConvertType(out[2], new(*big.Int)).(**big.Int)
	fee := *abi.ConvertType(out[3], new(*big.Int)).(**big.Int)

	decoded := model.DecodedEvent{
		EventName: "Unshield",
		Type:      model.EventWithdrawal,
		Token:     token.TokenAddress.Hex(),
		Amount:    amount,
		To:        to.Hex(),
	}
	if fee != nil && fee.Sign() > 0 {
		decoded.Fee = fee
	}
	return []model.DecodedEvent{decoded}, nil
}

func (s *Structured) decodeRelayerPayment(log types.Log) ([]model.DecodedEvent, error) {
	event := s.contractABI.Events["RelayerPayment"]
	if len(log.Topics) != 2 {
		return nil, fmt.Errorf("expected 2 topics, got %d", len(log.Topics))
	}

	var indexed struct {
		Relayer common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	out, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack RelayerPayment: %w", err)
	}
	if len(out) != 2 {
		return nil, fmt.Errorf("unexpected RelayerPayment values: %d", len(out))
	}

	token := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	amount := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)

	return []model.DecodedEvent{{
		EventName: "RelayerPayment",
		Type:      model.EventRelayerPayment,
		Token:     token.Hex(),
		Amount:    amount,
		Relayer:   indexed.Relayer.Hex(),
	}}, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}
