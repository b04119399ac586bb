package decode

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"shieldscope/internal/model"
)

// Strategy decodes one log into zero or more domain events. CanDecode gates
// which logs the strategy applies to; Decode errors mean the log is malformed
// for this strategy, not that the batch should fail.
type Strategy interface {
	Name() string
	CanDecode(topic0 common.Hash) bool
	Decode(log types.Log) ([]model.DecodedEvent, error)
}

// Chain tries strategies in priority order and takes the first applicable
// result. A log matching no strategy, or failing every applicable one, yields
// an empty result and never an error.
type Chain struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewChain builds a decode chain. Strategy order is priority order.
func NewChain(logger *zap.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{strategies: strategies, logger: logger}
}

// Decode resolves a raw log into typed events. Never panics or errors past
// this boundary; unmatched and malformed logs are skipped.
func (c *Chain) Decode(log types.Log) []model.DecodedEvent {
	if len(log.Topics) == 0 {
		return nil
	}
	topic0 := log.Topics[0]

	for _, strategy := range c.strategies {
		if !strategy.CanDecode(topic0) {
			continue
		}
		events, err := strategy.Decode(log)
		if err != nil {
			c.logger.Debug("decode failed",
				zap.String("strategy", strategy.Name()),
				zap.String("tx", log.TxHash.Hex()),
				zap.Uint("log_index", log.Index),
				zap.Error(err),
			)
			continue
		}
		return events
	}

	c.logger.Debug("no strategy for log",
		zap.String("topic0", topic0.Hex()),
		zap.String("tx", log.TxHash.Hex()),
	)
	return nil
}

// ClassifyEvent maps a structurally decoded event name to its domain type.
func ClassifyEvent(name string) model.EventType {
	switch name {
	case "Shield":
		return model.EventDeposit
	case "Unshield":
		return model.EventWithdrawal
	case "RelayerPayment":
		return model.EventRelayerPayment
	default:
		return model.EventOther
	}
}
