package decode

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const poolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "treeNumber", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "startPosition", "type": "uint256"},
      {
        "indexed": false,
        "internalType": "struct CommitmentPreimage[]",
        "name": "commitments",
        "type": "tuple[]",
        "components": [
          {"internalType": "bytes32", "name": "npk", "type": "bytes32"},
          {
            "internalType": "struct TokenData",
            "name": "token",
            "type": "tuple",
            "components": [
              {"internalType": "uint8", "name": "tokenType", "type": "uint8"},
              {"internalType": "address", "name": "tokenAddress", "type": "address"},
              {"internalType": "uint256", "name": "tokenSubID", "type": "uint256"}
            ]
          },
          {"internalType": "uint120", "name": "value", "type": "uint120"}
        ]
      },
      {"indexed": false, "internalType": "uint256[]", "name": "fees", "type": "uint256[]"}
    ],
    "name": "Shield",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "address", "name": "to", "type": "address"},
      {
        "indexed": false,
        "internalType": "struct TokenData",
        "name": "token",
        "type": "tuple",
        "components": [
          {"internalType": "uint8", "name": "tokenType", "type": "uint8"},
          {"internalType": "address", "name": "tokenAddress", "type": "address"},
          {"internalType": "uint256", "name": "tokenSubID", "type": "uint256"}
        ]
      },
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "fee", "type": "uint256"}
    ],
    "name": "Unshield",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "relayer", "type": "address"},
      {"indexed": false, "internalType": "address", "name": "token", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
    ],
    "name": "RelayerPayment",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint16", "name": "treeNumber", "type": "uint16"},
      {"indexed": false, "internalType": "bytes32[]", "name": "nullifiers", "type": "bytes32[]"}
    ],
    "name": "Nullified",
    "type": "event"
  }
]`

var (
	poolABI     abi.ABI
	poolABIOnce sync.Once
	poolABIErr  error
)

// PoolABI returns the parsed privacy-pool contract ABI.
func PoolABI() (abi.ABI, error) {
	poolABIOnce.Do(func() {
		poolABI, poolABIErr = abi.JSON(strings.NewReader(poolABIJSON))
	})
	return poolABI, poolABIErr
}
