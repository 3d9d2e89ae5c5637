// Package chain talks to an EVM node: the head block for the ledger clock
// and staker contract logs for the indexer.
package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Client is a thin RPC client. Block timestamps never change once a block
// exists, so they are memoized per block number.
type Client struct {
	rpc *rpc.Client
	eth *ethclient.Client

	blockTimes sync.Map // uint64 -> uint64
}

func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rc, eth: ethclient.NewClient(rc)}, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

// LatestHeader returns the head of the chain.
func (c *Client) LatestHeader(ctx context.Context) (*types.Header, error) {
	return c.eth.HeaderByNumber(ctx, nil)
}

func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	if ts, ok := c.blockTimes.Load(number); ok {
		return ts.(uint64), nil
	}
	header, err := c.eth.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}
	c.blockTimes.Store(number, header.Time)
	return header.Time, nil
}

// FilterLogs returns the logs emitted by contracts within [from, to] whose
// first topic is one of topic0. An empty topic0 matches every event.
func (c *Client) FilterLogs(ctx context.Context, from, to uint64, contracts []common.Address, topic0 []common.Hash) ([]types.Log, error) {
	return c.eth.FilterLogs(ctx, logQuery(from, to, contracts, topic0))
}

func logQuery(from, to uint64, contracts []common.Address, topic0 []common.Hash) ethereum.FilterQuery {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: contracts,
	}
	if len(topic0) > 0 {
		q.Topics = [][]common.Hash{topic0}
	}
	return q
}
