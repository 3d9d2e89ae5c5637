package events

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const stakerABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "poolID", "type": "uint256"},
      {"indexed": true, "internalType": "uint256", "name": "tokenType", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "tokenAddress", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "tokenID", "type": "uint256"}
    ],
    "name": "StakingPoolCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "uint256", "name": "poolID", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "administrator", "type": "address"},
      {"indexed": false, "internalType": "bool", "name": "transferable", "type": "bool"},
      {"indexed": false, "internalType": "uint256", "name": "lockupSeconds", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "cooldownSeconds", "type": "uint256"}
    ],
    "name": "StakingPoolConfigured",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "positionTokenID", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "poolID", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountOrTokenID", "type": "uint256"}
    ],
    "name": "Staked",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "positionTokenID", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"}
    ],
    "name": "UnstakeInitiated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "positionTokenID", "type": "uint256"},
      {"indexed": true, "internalType": "address", "name": "owner", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "poolID", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "amountOrTokenID", "type": "uint256"}
    ],
    "name": "Unstaked",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": true, "internalType": "uint256", "name": "tokenId", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  }
]`

var (
	stakerABI     abi.ABI
	stakerABIOnce sync.Once
	stakerABIErr  error
)

// StakerABI returns the parsed staker event ABI.
func StakerABI() (abi.ABI, error) {
	stakerABIOnce.Do(func() {
		stakerABI, stakerABIErr = abi.JSON(strings.NewReader(stakerABIJSON))
	})
	return stakerABI, stakerABIErr
}
