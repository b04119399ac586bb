package token

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Metadata holds what the contract admits to. Either field may stay nil when
// the contract does not implement the standard calls.
type Metadata struct {
	Symbol   *string
	Decimals *int16
}

// ContractCaller is the slice of the chain client metadata fetching needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Fetcher reads token metadata via read-only contract calls.
type Fetcher struct {
	caller ContractCaller
	logger *zap.Logger
}

// NewFetcher builds a metadata fetcher over the chain client.
func NewFetcher(caller ContractCaller, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{caller: caller, logger: logger}
}

// FetchMetadata attempts the decimals and symbol calls independently. It never
// errors: a non-standard contract simply yields unknown metadata.
func (f *Fetcher) FetchMetadata(ctx context.Context, address common.Address) Metadata {
	var meta Metadata

	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		f.logger.Warn("parse erc20 abi", zap.Error(err))
		return meta
	}

	if values, err := f.call(ctx, address, "decimals", stringABI); err == nil {
		if decimals, ok := values[0].(uint8); ok {
			d := int16(decimals)
			meta.Decimals = &d
		}
	} else {
		f.logger.Debug("decimals call failed", zap.String("token", address.Hex()), zap.Error(err))
	}

	if values, err := f.call(ctx, address, "symbol", stringABI); err == nil {
		if symbol, ok := values[0].(string); ok && symbol != "" {
			meta.Symbol = &symbol
		}
	} else if bytes32ABI, abiErr := erc20ABIBytes32Instance(); abiErr == nil {
		if values, err := f.call(ctx, address, "symbol", bytes32ABI); err == nil {
			if symbol, ok := bytes32ToString(values[0]); ok && symbol != "" {
				meta.Symbol = &symbol
			}
		} else {
			f.logger.Debug("symbol call failed", zap.String("token", address.Hex()), zap.Error(err))
		}
	}

	return meta
}

func (f *Fetcher) call(ctx context.Context, address common.Address, method string, parsed abi.ABI) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &address, Data: data}
	resp, err := f.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}
